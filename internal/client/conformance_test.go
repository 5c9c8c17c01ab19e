package client

import "github.com/mfgtrack/be-order-tracking/internal/service"

// Compile-time checks that the delivery clients satisfy the gateway
// interfaces the dispatcher and fan-out services declare.
var (
	_ service.PushGateway    = (*FCMClient)(nil)
	_ service.EmailGateway   = (*Mailer)(nil)
	_ service.EventPublisher = (*EventPublisher)(nil)
)
