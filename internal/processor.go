package internal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"paygate/config"
	"paygate/entity"
	"paygate/services"
)

const (
	pathCallbackSuccess = "/callback/success/"
	pathCallbackCancel  = "/callback/cancel/"
	pathCallbackFailure = "/callback/failure/"
	pathCallbackServer  = "/callback/server/"
)

// retryPageSize is how many completed transactions a reconciliation sweep
// reads per search call.
const retryPageSize = 100

// Processor implements the host platform's payment-processor contract for
// PayGate. It owns no payment state: the store's order placement is the
// single point of mutation, which keeps callback handling idempotent under
// the at-least-once delivery PayGate provides.
//
// The payment flow:
//
//  1. GetTransactionParameters starts a payment session
//  2. the user is redirected to the PayGate payment page
//  3. PayGate redirects the user to the success, cancel or failure callback
//  4. PayGate calls the server callback and the order is placed as paid
type Processor struct {
	conf     *config.Config
	gateway  services.Gateway
	database services.Database
	logger   services.LogHandler

	mutex sync.Mutex
	locks map[string]*referenceLock
}

// referenceLock is a per-reference mutex with a holder count, so the entry
// can be removed exactly when the last holder releases it.
type referenceLock struct {
	mutex sync.Mutex
	refs  int
}

func NewProcessor(conf *config.Config) *Processor {
	return &Processor{
		conf:  conf,
		locks: make(map[string]*referenceLock),
	}
}

func (p *Processor) SetGateway(gateway services.Gateway) {
	p.gateway = gateway
}

func (p *Processor) SetDatabase(database services.Database) {
	p.database = database
}

func (p *Processor) SetLogger(logger services.LogHandler) {
	p.logger = logger
}

// lockReference serializes operations on a single merchant reference so a
// redelivered callback cannot race its duplicate. Different references
// proceed in parallel.
func (p *Processor) lockReference(ref string) *referenceLock {
	p.mutex.Lock()
	lock, ok := p.locks[ref]
	if !ok {
		lock = &referenceLock{}
		p.locks[ref] = lock
	}
	lock.refs++
	p.mutex.Unlock()

	lock.mutex.Lock()
	return lock
}

func (p *Processor) unlockReference(ref string, lock *referenceLock) {
	lock.mutex.Unlock()

	p.mutex.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(p.locks, ref)
	}
	p.mutex.Unlock()
}

// GetTransactionParameters starts a PayGate checkout for the basket and
// returns the hosted payment page parameters. The merchant reference is
// derived from the basket id, so a retried checkout reuses the same
// reference.
func (p *Processor) GetTransactionParameters(ctx context.Context, basket *entity.Basket) (*entity.TransactionParameters, error) {
	if basket.TotalCents <= 0 {
		return nil, &ValidationError{Field: "basket", Reason: fmt.Sprintf("amount must be positive, got %s", entity.FormatAmount(basket.TotalCents))}
	}

	paymentRef := basket.OrderNumber()
	p.logger.Info(fmt.Sprintf("started payment for basket %d, reference %s", basket.Id, paymentRef))

	request := &entity.CheckoutRequest{
		AccessToken:         p.conf.PayGate.AccessToken,
		MerchantCode:        p.conf.PayGate.MerchantCode,
		IsRecurrent:         false,
		ClientName:          basket.OwnerName,
		Email:               basket.OwnerEmail,
		Language:            language(basket.Language),
		PaymentRef:          paymentRef,
		TransactionDesc:     basket.TransactionDesc(),
		Currency:            basket.Currency,
		TotalAmount:         entity.FormatAmount(basket.TotalCents),
		PaymentTypes:        p.conf.PayGate.PaymentTypes,
		CallbackSuccessURL:  p.callbackUrl(pathCallbackSuccess),
		CallbackCancelURL:   p.callbackUrl(pathCallbackCancel),
		CallbackFailureURL:  p.callbackUrl(pathCallbackFailure),
		CallbackServerURL:   p.callbackUrl(pathCallbackServer),
		CallbackServerParms: []entity.CallbackParam{},
	}

	response, err := p.gateway.Checkout(ctx, request)
	if err != nil {
		p.recordResponse(ctx, paymentRef, "checkout", "error", err.Error())
		return nil, err
	}
	if !bool(response.Success) {
		p.logger.Warn(fmt.Sprintf(
			"checkout not succeed for basket %d: payment_id=%s; code=%s; %s; %s",
			basket.Id, response.PaymentId, response.ReturnCode,
			response.ShortReturnMessage, response.LongReturnMessage))
		p.recordResponse(ctx, paymentRef, "checkout", "not_success", response)
		return nil, &GatewayError{Message: fmt.Sprintf("checkout not successful: code %s; %s", response.ReturnCode, response.LongReturnMessage)}
	}

	p.recordResponse(ctx, paymentRef, "checkout", "success", response)
	p.logger.Info(fmt.Sprintf("basket %d obtained paygate payment id %s", basket.Id, response.PaymentId))

	return &entity.TransactionParameters{
		PaymentPageUrl: response.URL,
		PaymentFormData: map[string]string{
			"SessionToken": response.SessionToken,
		},
	}, nil
}

// HandleProcessorResponse double-checks a claimed payment against the
// PayGate back-office search. Trust, but verify: a single completed
// transaction with a matching merchant code and reference must exist,
// otherwise the payment is treated as declined.
func (p *Processor) HandleProcessorResponse(ctx context.Context, paymentRef string) (*entity.HandledResponse, error) {
	request := &entity.SearchRequest{
		AccessToken:   p.conf.PayGate.AccessToken,
		MerchantCode:  p.conf.PayGate.MerchantCode,
		PaymentRef:    paymentRef,
		StatusCode:    entity.StatusCompleted,
		SortDirection: "ASC",
		SortColumn:    "PAYMENT_REF",
		NextRows:      2,
		OffsetRows:    0,
	}

	transactions, err := p.gateway.SearchTransactions(ctx, request)
	if err != nil {
		p.recordResponse(ctx, paymentRef, "search", "error", err.Error())
		return nil, err
	}
	p.recordResponse(ctx, paymentRef, "search", "received", transactions)

	if len(transactions) != 1 {
		return nil, &DeclinedError{PaymentRef: paymentRef, Message: fmt.Sprintf("expected one completed transaction, found %d", len(transactions))}
	}
	transaction := transactions[0]
	if transaction.MerchantCode != p.conf.PayGate.MerchantCode ||
		transaction.StatusCode != entity.StatusCompleted ||
		transaction.PaymentRef != paymentRef {
		return nil, &DeclinedError{PaymentRef: paymentRef, Message: "completed transaction does not match this merchant and reference"}
	}

	totalCents, err := entity.ParseAmount(transaction.PaymentAmount)
	if err != nil {
		return nil, &GatewayError{Message: "parse transaction amount", Cause: err}
	}

	// the search result carries no currency, take it from the basket
	currency := ""
	if p.database != nil {
		basket, err := p.database.GetBasketByOrderNumber(ctx, paymentRef)
		if err == nil && basket != nil {
			currency = basket.Currency
		}
	}

	cardNumber := transaction.CardMaskedPan
	if cardNumber == "" {
		cardNumber = transaction.PaymentTypeCode
	}

	return &entity.HandledResponse{
		TransactionId: transaction.TransactionId,
		TotalCents:    totalCents,
		Currency:      currency,
		CardNumber:    cardNumber,
		CardType:      transaction.PaymentTypeCode,
	}, nil
}

// HandleServerCallback processes an asynchronous payment notification.
// The claim is verified against PayGate before any order is placed, and
// placement is an idempotent no-op when the order is already finalized, so
// redelivered notifications never double-apply a payment.
func (p *Processor) HandleServerCallback(ctx context.Context, callback *entity.ServerCallback) error {
	if callback.PaymentRef == "" {
		return &ValidationError{Field: "payment_ref", Reason: "missing"}
	}
	if callback.MerchantCode != "" && callback.MerchantCode != p.conf.PayGate.MerchantCode {
		return &ValidationError{Field: "MerchantCode", Reason: fmt.Sprintf("unknown merchant %s", callback.MerchantCode)}
	}
	if p.database == nil {
		return fmt.Errorf("database not set")
	}

	lock := p.lockReference(callback.PaymentRef)
	defer p.unlockReference(callback.PaymentRef, lock)

	basket, err := p.database.GetBasketByOrderNumber(ctx, callback.PaymentRef)
	if err != nil || basket == nil {
		p.logger.Warn(fmt.Sprintf("callback for unknown reference %s", callback.PaymentRef))
		return fmt.Errorf("%w: %s", ErrUnknownReference, callback.PaymentRef)
	}

	p.recordResponse(ctx, callback.PaymentRef, "server_callback", "received", callback)

	order, err := p.database.GetOrder(ctx, callback.PaymentRef)
	if err == nil && order != nil && order.Finalized() {
		p.logger.Info(fmt.Sprintf("order %s already finalized, callback ignored", callback.PaymentRef))
		return nil
	}

	if !callback.Paid() {
		p.logger.Warn(fmt.Sprintf("payment %s not paid: status=%s; code=%s; %s",
			callback.PaymentRef, callback.StatusCode, callback.ReturnCode, callback.ShortMessage))
		p.recordResponse(ctx, callback.PaymentRef, "server_callback", "not_paid", callback)
		return nil
	}

	handled, err := p.HandleProcessorResponse(ctx, callback.PaymentRef)
	if err != nil {
		p.logger.Error(fmt.Sprintf("verify payment %s", callback.PaymentRef), err)
		return err
	}

	placed, err := p.database.PlaceOrder(ctx, &entity.Order{
		OrderNumber:   callback.PaymentRef,
		BasketId:      basket.Id,
		Status:        entity.OrderStatusPaid,
		TotalCents:    handled.TotalCents,
		Currency:      handled.Currency,
		TransactionId: handled.TransactionId,
		CardType:      handled.CardType,
		CardNumber:    handled.CardNumber,
		Result:        "paid by paygate",
		TimePlaced:    time.Now(),
	})
	if err != nil {
		p.logger.Error(fmt.Sprintf("place order %s", callback.PaymentRef), err)
		return err
	}
	if !placed {
		p.logger.Info(fmt.Sprintf("order %s was finalized concurrently, callback ignored", callback.PaymentRef))
		return nil
	}

	p.logger.Info(fmt.Sprintf("order %s placed as paid, amount %s %s",
		callback.PaymentRef, entity.FormatAmount(handled.TotalCents), handled.Currency))
	return nil
}

// RetryBasketsPaid recovers transactions whose server callback was never
// received: it pages through completed PayGate transactions in the time
// range and re-applies the callback path for baskets without an order.
func (p *Processor) RetryBasketsPaid(ctx context.Context, from, to time.Time) error {
	if p.database == nil {
		return fmt.Errorf("database not set")
	}
	offset := 0
	for {
		request := &entity.SearchRequest{
			AccessToken:   p.conf.PayGate.AccessToken,
			MerchantCode:  p.conf.PayGate.MerchantCode,
			StatusCode:    entity.StatusCompleted,
			SortDirection: "ASC",
			SortColumn:    "PAYMENT_REF",
			NextRows:      retryPageSize,
			OffsetRows:    offset,
			FromDatetime:  from.Format(time.RFC3339),
			ToDatetime:    to.Format(time.RFC3339),
		}
		transactions, err := p.gateway.SearchTransactions(ctx, request)
		if err != nil {
			return err
		}

		for i := range transactions {
			paymentRef := transactions[i].PaymentRef

			basket, err := p.database.GetBasketByOrderNumber(ctx, paymentRef)
			if err != nil || basket == nil {
				p.logger.Warn(fmt.Sprintf("can't find basket for reference %s", paymentRef))
				continue
			}
			exists, err := p.database.OrderExists(ctx, paymentRef)
			if err != nil {
				p.logger.Error(fmt.Sprintf("check order %s", paymentRef), err)
				continue
			}
			if exists {
				p.logger.Info(fmt.Sprintf("order already exists for reference %s", paymentRef))
				continue
			}

			p.logger.Info(fmt.Sprintf("retrying server callback for reference %s", paymentRef))
			err = p.HandleServerCallback(ctx, &entity.ServerCallback{
				PaymentRef: paymentRef,
				StatusCode: entity.StatusCompleted,
				Success:    true,
				IsPaid:     true,
				Retry:      true,
			})
			if err != nil {
				p.logger.Error(fmt.Sprintf("retry callback for reference %s", paymentRef), err)
			}
		}

		if len(transactions) < retryPageSize {
			return nil
		}
		offset += retryPageSize
	}
}

// IssueCredit always fails: PayGate exposes no refund operation.
func (p *Processor) IssueCredit(ctx context.Context, orderNumber string, amountCents int64, currency string) error {
	p.logger.Warn(fmt.Sprintf("credit of %s %s requested for order %s", entity.FormatAmount(amountCents), currency, orderNumber))
	return ErrCreditNotSupported
}

func (p *Processor) callbackUrl(path string) string {
	return strings.TrimSuffix(p.conf.PayGate.EcommerceURL, "/") + path
}

func (p *Processor) recordResponse(ctx context.Context, paymentRef, operation, outcome string, payload interface{}) {
	if p.database == nil {
		return
	}
	err := p.database.SaveProcessorResponse(ctx, &entity.ProcessorResponse{
		PaymentRef: paymentRef,
		Operation:  operation,
		Outcome:    outcome,
		Payload:    payload,
		Time:       time.Now(),
	})
	if err != nil {
		p.logger.Error(fmt.Sprintf("save processor response for %s", paymentRef), err)
	}
}

// language trims a locale like "en-US" down to the bare language code the
// PayGate API expects.
func language(locale string) string {
	code, _, _ := strings.Cut(locale, "-")
	if code == "" {
		return "en"
	}
	return code
}
