package entity

import "time"

const (
	OrderStatusPaid   = "paid"
	OrderStatusFailed = "failed"
)

// Order is the finalized outcome of a basket payment. Placing an order is
// the single point of payment-state mutation; a basket without an order is
// still payable.
type Order struct {
	OrderNumber   string    `json:"order_number" bson:"order_number"`
	BasketId      int       `json:"basket_id" bson:"basket_id"`
	Status        string    `json:"status" bson:"status"`
	TotalCents    int64     `json:"total_cents" bson:"total_cents"`
	Currency      string    `json:"currency" bson:"currency"`
	TransactionId string    `json:"transaction_id" bson:"transaction_id"`
	CardType      string    `json:"card_type,omitempty" bson:"card_type,omitempty"`
	CardNumber    string    `json:"card_number,omitempty" bson:"card_number,omitempty"`
	Result        string    `json:"result,omitempty" bson:"result,omitempty"`
	TimePlaced    time.Time `json:"time_placed" bson:"time_placed"`
}

// Finalized reports whether the order reached a terminal payment state.
func (o *Order) Finalized() bool {
	return o.Status == OrderStatusPaid || o.Status == OrderStatusFailed
}
