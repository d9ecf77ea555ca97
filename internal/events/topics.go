package events

// Topic constants for domain events emitted by the payment service.
const (
	TopicPaymentSettled  = "payment.settled"
	TopicPaymentPending  = "payment.pending"
	TopicPaymentRejected = "payment.rejected"
	TopicPaymentExpired  = "payment.expired"
	TopicPaymentURLBuilt = "payment.url_built"
)
