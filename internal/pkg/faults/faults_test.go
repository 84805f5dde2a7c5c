package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(New(KindValidation, "bad input")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := New(KindGateway, "provider down")
	outer := fmt.Errorf("verify: %w", inner)

	assert.True(t, IsKind(outer, KindGateway))
	assert.Equal(t, KindGateway, KindOf(outer))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	f := Wrap(KindUnavailable, cause, "inventory check failed")

	assert.ErrorIs(t, f, cause)
	assert.Contains(t, f.Error(), "inventory check failed")
	assert.Contains(t, f.Error(), "connection refused")
	assert.Equal(t, "inventory check failed", f.Message())
}

func TestWithCode(t *testing.T) {
	f := New(KindConflict, "session expired").WithCode(CodeSessionExpired)

	assert.Equal(t, CodeSessionExpired, CodeOf(f))
	assert.Equal(t, CodeSessionExpired, CodeOf(fmt.Errorf("outer: %w", f)))
}

func TestCodeDefaultsToKind(t *testing.T) {
	assert.Equal(t, "validation", CodeOf(New(KindValidation, "bad")))
	assert.Equal(t, "internal", CodeOf(errors.New("plain")))
}
