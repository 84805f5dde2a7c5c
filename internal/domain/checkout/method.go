package checkout

import "fmt"

// Method identifies a payment method. The set is closed: each method maps to
// exactly one gateway adapter.
type Method string

const (
	// MethodCard is the online card/wallet gateway with immediate confirmation.
	MethodCard Method = "card"
	// MethodWalletA and MethodWalletB are redirect-based regional wallets
	// whose payments resume via an asynchronous callback.
	MethodWalletA Method = "walletA"
	MethodWalletB Method = "walletB"
	// MethodCOD is cash on delivery: no external provider involved.
	MethodCOD Method = "cod"
)

func Methods() []Method {
	return []Method{MethodCard, MethodWalletA, MethodWalletB, MethodCOD}
}

func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodCard, MethodWalletA, MethodWalletB, MethodCOD:
		return Method(s), nil
	default:
		return "", fmt.Errorf("checkout: unknown payment method %q", s)
	}
}

// Redirect reports whether the method completes through a provider redirect
// and therefore returns a payment URL from initiation.
func (m Method) Redirect() bool {
	return m == MethodWalletA || m == MethodWalletB
}
