package services

import (
	"context"

	"paygate/entity"
)

// Database is the host-side store consumed by the payment processor. Order
// placement is its single point of payment-state mutation and must stay
// idempotent: placing an order for an already finalized order number is a
// no-op.
type Database interface {
	WriteLogMessage(data Data) error

	GetBasket(ctx context.Context, id int) (*entity.Basket, error)
	GetBasketByOrderNumber(ctx context.Context, orderNumber string) (*entity.Basket, error)

	GetOrder(ctx context.Context, orderNumber string) (*entity.Order, error)
	OrderExists(ctx context.Context, orderNumber string) (bool, error)
	// PlaceOrder finalizes the basket's payment state. It returns false when
	// the order was already finalized and nothing was written.
	PlaceOrder(ctx context.Context, order *entity.Order) (bool, error)

	SaveProcessorResponse(ctx context.Context, response *entity.ProcessorResponse) error
}

type Data interface {
	DataType() string
}
