package observability

const (
	MCheckoutRequests MetricKey = "checkout_requests_total"
	MCheckoutDuration MetricKey = "checkout_duration_seconds"

	MGatewayRequests        MetricKey = "gateway_requests_total"
	MGatewayRequestDuration MetricKey = "gateway_request_duration_seconds"

	MOrdersCommitted MetricKey = "orders_committed_total"
	MSessionsExpired MetricKey = "sessions_expired_total"

	MNotificationsSent MetricKey = "notifications_sent_total"

	MHTTPRequests        MetricKey = "http_requests_total"
	MHTTPRequestDuration MetricKey = "http_request_duration_seconds"
)
