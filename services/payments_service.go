package services

import (
	"context"
	"time"

	"paygate/entity"
)

// Gateway talks to the PayGate HTTP API. Calls are bounded by the configured
// per-endpoint timeouts; infrastructure failures surface as gateway errors
// and are never mistaken for declined payments.
type Gateway interface {
	Checkout(ctx context.Context, request *entity.CheckoutRequest) (*entity.CheckoutResponse, error)
	SearchTransactions(ctx context.Context, request *entity.SearchRequest) ([]entity.Transaction, error)
	// MarkTestPaymentAsPaid is only available against non-production PayGate
	// instances.
	MarkTestPaymentAsPaid(ctx context.Context, paymentRef string) error
}

// PaymentProcessor is the payment-processor contract of the host platform.
type PaymentProcessor interface {
	// GetTransactionParameters initiates a checkout for the basket and returns
	// the parameters needed to redirect the user to the hosted payment page.
	// The merchant reference is derived from the basket, so repeated calls for
	// the same unpaid basket produce the same reference.
	GetTransactionParameters(ctx context.Context, basket *entity.Basket) (*entity.TransactionParameters, error)

	// HandleProcessorResponse verifies a claimed payment against the PayGate
	// transaction search and returns the normalized confirmation. A payment
	// that cannot be confirmed fails with a declined error.
	HandleProcessorResponse(ctx context.Context, paymentRef string) (*entity.HandledResponse, error)

	// HandleServerCallback processes a server-to-server payment notification.
	// Redelivery of an already applied notification is a no-op.
	HandleServerCallback(ctx context.Context, callback *entity.ServerCallback) error

	// RetryBasketsPaid sweeps PayGate for completed transactions in the time
	// range whose server callback was never received and re-applies them.
	RetryBasketsPaid(ctx context.Context, from, to time.Time) error

	// IssueCredit is not supported by the PayGate API.
	IssueCredit(ctx context.Context, orderNumber string, amountCents int64, currency string) error
}
