package entity

import (
	"fmt"
	"strings"
)

// Flag decodes boolean fields that PayGate delivers either as JSON booleans
// or as "true"/"false" strings, depending on the callback channel.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	value := strings.Trim(string(data), `"`)
	switch strings.ToLower(value) {
	case "true", "1":
		*f = true
	case "false", "0", "", "null":
		*f = false
	default:
		return fmt.Errorf("invalid boolean value: %s", value)
	}
	return nil
}

// ServerCallback is the asynchronous server-to-server payment notification.
// PayGate delivers it at least once per payment event; handling must stay
// safe under redelivery.
type ServerCallback struct {
	StatusCode      string `json:"statusCode"`
	Success         Flag   `json:"success"`
	MerchantCode    string `json:"MerchantCode"`
	ReturnCode      string `json:"returnCode"`
	ShortMessage    string `json:"shortMessage"`
	PaymentRef      string `json:"payment_ref"`
	PaymentValue    string `json:"paymentValue"`
	IsPaid          Flag   `json:"is_paid"`
	TransactionId   string `json:"transaction_id"`
	CardMaskedPan   string `json:"card_masked_pan"`
	PaymentTypeCode string `json:"payment_type_code"`
	// Retry marks callbacks the service sends to itself while reconciling
	// transactions whose original callback was lost
	Retry Flag `json:"retry_baskets_payed_in_paygate,omitempty"`
}

// Paid reports whether the notification claims a successful payment. Some
// delivery channels strip the notification down to the bare payment
// reference; such a minimal notification is still a payment claim, only an
// affirmative non-completed status counts as a failure report. The claim
// is still verified against the transaction search API before any order
// is placed.
func (c *ServerCallback) Paid() bool {
	if bool(c.IsPaid) || bool(c.Success) {
		return true
	}
	return c.StatusCode == "" || c.StatusCode == StatusCompleted
}
