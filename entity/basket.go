// Package entity defines data models for the PayGate payment service.
package entity

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultOrderPrefix = "EDX"
	// order numbers are offset so they never collide with raw basket ids
	orderNumberOffset = 100000
)

// Basket is the host platform's unit of purchase before payment.
// The service reads baskets, it never mutates them; payment state
// lives on the Order placed for the basket.
type Basket struct {
	Id            int      `json:"basket_id" bson:"basket_id"`
	Prefix        string   `json:"prefix,omitempty" bson:"prefix,omitempty"`
	OwnerName     string   `json:"owner_name" bson:"owner_name"`
	OwnerEmail    string   `json:"owner_email" bson:"owner_email"`
	Language      string   `json:"language" bson:"language"`
	Currency      string   `json:"currency" bson:"currency"`
	TotalCents    int64    `json:"total_cents" bson:"total_cents"`
	ProductTitles []string `json:"product_titles" bson:"product_titles"`
}

// OrderNumber derives the merchant reference for this basket. The derivation
// is deterministic, so repeated checkouts for the same unpaid basket always
// carry the same reference.
func (b *Basket) OrderNumber() string {
	prefix := b.Prefix
	if prefix == "" {
		prefix = defaultOrderPrefix
	}
	return fmt.Sprintf("%s-%d", prefix, orderNumberOffset+b.Id)
}

// TransactionDesc joins the basket product titles into the description
// shown on the PayGate payment page.
func (b *Basket) TransactionDesc() string {
	return strings.Join(b.ProductTitles, "\n")
}

// BasketIdFromOrderNumber reverses OrderNumber back to the basket id.
func BasketIdFromOrderNumber(number string) (int, error) {
	_, digits, found := strings.Cut(number, "-")
	if !found {
		return 0, fmt.Errorf("invalid order number: %s", number)
	}
	value, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("invalid order number: %s; %v", number, err)
	}
	id := value - orderNumberOffset
	if id < 0 {
		return 0, fmt.Errorf("invalid order number: %s", number)
	}
	return id, nil
}
