package entity

// StatusCompleted marks a completed transaction on the PayGate side.
const StatusCompleted = "C"

// SearchRequest represents the PayGate BackOfficeSearchTransactions API
// request body.
type SearchRequest struct {
	AccessToken  string `json:"ACCESS_TOKEN"`
	MerchantCode string `json:"MERCHANT_CODE"`
	PaymentRef   string `json:"PAYMENT_REF,omitempty"`
	StatusCode   string `json:"STATUS_CODE"`
	// SortDirection is ASC or DESC
	SortDirection string `json:"SORT_DIRECTION"`
	SortColumn    string `json:"SORT_COLUMN"`
	// NextRows and OffsetRows page through the result set
	NextRows   int `json:"NEXT_ROWS"`
	OffsetRows int `json:"OFFSET_ROWS"`
	// FromDatetime and ToDatetime filter by posted transaction datetime,
	// ISO 8601 formatted
	FromDatetime string `json:"FROM_DATETIME,omitempty"`
	ToDatetime   string `json:"TO_DATETIME,omitempty"`
}

// Transaction is a single row of a BackOfficeSearchTransactions result.
type Transaction struct {
	MerchantCode    string `json:"MERCHANT_CODE" bson:"merchant_code"`
	StatusCode      string `json:"STATUS_CODE" bson:"status_code"`
	PaymentRef      string `json:"PAYMENT_REF" bson:"payment_ref"`
	PaymentAmount   string `json:"PAYMENT_AMOUNT" bson:"payment_amount"`
	TransactionId   string `json:"TRANSACTION_ID" bson:"transaction_id"`
	PaymentTypeCode string `json:"PAYMENT_TYPE_CODE" bson:"payment_type_code"`
	CardMaskedPan   string `json:"CARD_MASKED_PAN" bson:"card_masked_pan"`
}
