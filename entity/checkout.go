package entity

// CheckoutRequest represents the PayGate CheckOut API request body.
// Field names follow the vendor's upper-snake wire format.
type CheckoutRequest struct {
	AccessToken     string `json:"ACCESS_TOKEN"`
	MerchantCode    string `json:"MERCHANT_CODE"`
	IsRecurrent     bool   `json:"IS_RECURRENT"`
	ClientName      string `json:"CLIENT_NAME"`
	Email           string `json:"EMAIL"`
	Language        string `json:"LANGUAGE"`
	// PaymentRef identifies the transaction on both sides; PayGate echoes it
	// back on every callback
	PaymentRef      string `json:"PAYMENT_REF"`
	TransactionDesc string `json:"TRANSACTION_DESC"`
	Currency        string `json:"CURRENCY"`
	// TotalAmount in decimal format XXXXX.XX
	TotalAmount  string   `json:"TOTAL_AMOUNT"`
	PaymentTypes []string `json:"PAYMENT_TYPES"`

	CallbackSuccessURL  string          `json:"CALLBACK_SUCCESS_URL"`
	CallbackCancelURL   string          `json:"CALLBACK_CANCEL_URL"`
	CallbackFailureURL  string          `json:"CALLBACK_FAILURE_URL"`
	CallbackServerURL   string          `json:"CALLBACK_SERVER_URL"`
	CallbackServerParms []CallbackParam `json:"CALLBACK_SERVER_PARMS"`
}

// CallbackParam is an extra key/value pair PayGate includes on the
// server-to-server callback.
type CallbackParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CheckoutResponse represents the PayGate CheckOut API response.
type CheckoutResponse struct {
	Success            Flag   `json:"Success"`
	URL                string `json:"URL"`
	SessionToken       string `json:"SessionToken"`
	PaymentId          string `json:"PaymentID"`
	ReturnCode         string `json:"ReturnCode"`
	ShortReturnMessage string `json:"ShortReturnMessage"`
	LongReturnMessage  string `json:"LongReturnMessage"`
}

// TransactionParameters is what the host needs to redirect the user to the
// PayGate hosted payment page.
type TransactionParameters struct {
	PaymentPageUrl  string            `json:"payment_page_url"`
	PaymentFormData map[string]string `json:"payment_form_data"`
}

// HandledResponse is the normalized confirmation of a verified payment.
type HandledResponse struct {
	TransactionId string `json:"transaction_id"`
	TotalCents    int64  `json:"total_cents"`
	Currency      string `json:"currency"`
	CardNumber    string `json:"card_number"`
	CardType      string `json:"card_type"`
}
