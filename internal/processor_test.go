package internal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paygate/entity"
)

func testBasket() *entity.Basket {
	return &entity.Basket{
		Id:            19,
		OwnerName:     "Test User",
		OwnerEmail:    "user@example.com",
		Language:      "en-US",
		Currency:      "EUR",
		TotalCents:    100,
		ProductTitles: []string{"Demo Course"},
	}
}

func newTestProcessor(gateway *fakeGateway, database *fakeDatabase) *Processor {
	processor := NewProcessor(testConfig())
	processor.SetLogger(NewLogger("processor", false, nil))
	processor.SetGateway(gateway)
	processor.SetDatabase(database)
	return processor
}

func TestGetTransactionParameters(t *testing.T) {
	gateway := &fakeGateway{
		checkoutResponse: &entity.CheckoutResponse{
			Success:      true,
			URL:          "https://pay.example.com/session",
			SessionToken: "token-123",
			PaymentId:    "42",
		},
	}
	database := newFakeDatabase(testBasket())
	processor := newTestProcessor(gateway, database)

	parameters, err := processor.GetTransactionParameters(context.Background(), testBasket())
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/session", parameters.PaymentPageUrl)
	assert.Equal(t, "token-123", parameters.PaymentFormData["SessionToken"])

	require.Len(t, gateway.checkoutRequests, 1)
	request := gateway.checkoutRequests[0]
	assert.Equal(t, "EDX-100019", request.PaymentRef)
	assert.Equal(t, "1.00", request.TotalAmount)
	assert.Equal(t, "EUR", request.Currency)
	assert.Equal(t, "en", request.Language)
	assert.Equal(t, "NAUFCCN", request.MerchantCode)
	assert.Equal(t, "https://shop.example.com/callback/server/", request.CallbackServerURL)
	assert.Equal(t, "https://shop.example.com/callback/success/", request.CallbackSuccessURL)
	assert.Equal(t, "https://shop.example.com/callback/cancel/", request.CallbackCancelURL)
	assert.Equal(t, "https://shop.example.com/callback/failure/", request.CallbackFailureURL)
}

func TestGetTransactionParametersDeterministicReference(t *testing.T) {
	gateway := &fakeGateway{
		checkoutResponse: &entity.CheckoutResponse{Success: true, URL: "https://pay.example.com", SessionToken: "t"},
	}
	processor := newTestProcessor(gateway, newFakeDatabase(testBasket()))

	_, err := processor.GetTransactionParameters(context.Background(), testBasket())
	require.NoError(t, err)
	_, err = processor.GetTransactionParameters(context.Background(), testBasket())
	require.NoError(t, err)

	require.Len(t, gateway.checkoutRequests, 2)
	assert.Equal(t, gateway.checkoutRequests[0].PaymentRef, gateway.checkoutRequests[1].PaymentRef)
}

func TestGetTransactionParametersRejectsNonPositiveAmount(t *testing.T) {
	processor := newTestProcessor(&fakeGateway{}, newFakeDatabase())

	basket := testBasket()
	basket.TotalCents = 0
	_, err := processor.GetTransactionParameters(context.Background(), basket)

	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestGetTransactionParametersCheckoutNotSuccess(t *testing.T) {
	gateway := &fakeGateway{
		checkoutResponse: &entity.CheckoutResponse{
			Success:            false,
			ReturnCode:         "E01",
			LongReturnMessage:  "merchant disabled",
			ShortReturnMessage: "error",
		},
	}
	processor := newTestProcessor(gateway, newFakeDatabase(testBasket()))

	_, err := processor.GetTransactionParameters(context.Background(), testBasket())

	var gatewayErr *GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	assert.Contains(t, gatewayErr.Message, "E01")
}

func TestGetTransactionParametersGatewayFailure(t *testing.T) {
	gateway := &fakeGateway{checkoutErr: &GatewayError{Message: "post request", Cause: errors.New("connection refused")}}
	database := newFakeDatabase(testBasket())
	processor := newTestProcessor(gateway, database)

	_, err := processor.GetTransactionParameters(context.Background(), testBasket())

	var gatewayErr *GatewayError
	assert.ErrorAs(t, err, &gatewayErr)
	// the failure is audited, no order state is touched
	assert.NotEmpty(t, database.responses)
	assert.Empty(t, database.orders)
}

func completedTransaction(paymentRef string) entity.Transaction {
	return entity.Transaction{
		MerchantCode:    "NAUFCCN",
		StatusCode:      entity.StatusCompleted,
		PaymentRef:      paymentRef,
		PaymentAmount:   "1.00",
		TransactionId:   paymentRef,
		PaymentTypeCode: "REFMB",
		CardMaskedPan:   "1234",
	}
}

func TestHandleProcessorResponse(t *testing.T) {
	gateway := &fakeGateway{transactions: []entity.Transaction{completedTransaction("EDX-100019")}}
	processor := newTestProcessor(gateway, newFakeDatabase(testBasket()))

	handled, err := processor.HandleProcessorResponse(context.Background(), "EDX-100019")
	require.NoError(t, err)
	assert.Equal(t, int64(100), handled.TotalCents)
	assert.Equal(t, "EUR", handled.Currency)
	assert.Equal(t, "EDX-100019", handled.TransactionId)
	assert.Equal(t, "REFMB", handled.CardType)
	assert.Equal(t, "1234", handled.CardNumber)
}

func TestHandleProcessorResponseNoCompletedTransaction(t *testing.T) {
	gateway := &fakeGateway{}
	processor := newTestProcessor(gateway, newFakeDatabase(testBasket()))

	_, err := processor.HandleProcessorResponse(context.Background(), "EDX-100019")

	var declined *DeclinedError
	assert.ErrorAs(t, err, &declined)
}

func TestHandleProcessorResponseMerchantMismatch(t *testing.T) {
	transaction := completedTransaction("EDX-100019")
	transaction.MerchantCode = "OTHER"
	gateway := &fakeGateway{transactions: []entity.Transaction{transaction}}
	processor := newTestProcessor(gateway, newFakeDatabase(testBasket()))

	_, err := processor.HandleProcessorResponse(context.Background(), "EDX-100019")

	var declined *DeclinedError
	assert.ErrorAs(t, err, &declined)
}

func paidCallback(paymentRef string) *entity.ServerCallback {
	return &entity.ServerCallback{
		StatusCode:   entity.StatusCompleted,
		Success:      true,
		MerchantCode: "NAUFCCN",
		PaymentRef:   paymentRef,
		PaymentValue: "1.00",
		IsPaid:       true,
	}
}

func TestHandleServerCallbackPlacesOrder(t *testing.T) {
	gateway := &fakeGateway{transactions: []entity.Transaction{completedTransaction("EDX-100019")}}
	database := newFakeDatabase(testBasket())
	processor := newTestProcessor(gateway, database)

	err := processor.HandleServerCallback(context.Background(), paidCallback("EDX-100019"))
	require.NoError(t, err)

	order, err := database.GetOrder(context.Background(), "EDX-100019")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusPaid, order.Status)
	assert.Equal(t, int64(100), order.TotalCents)
	assert.Equal(t, "EUR", order.Currency)
	assert.Equal(t, 19, order.BasketId)
}

func TestHandleServerCallbackMinimalPayload(t *testing.T) {
	// some delivery channels strip the notification down to the reference
	// alone; it still counts as a payment claim and goes through verification
	gateway := &fakeGateway{transactions: []entity.Transaction{completedTransaction("EDX-100019")}}
	database := newFakeDatabase(testBasket())
	processor := newTestProcessor(gateway, database)

	err := processor.HandleServerCallback(context.Background(), &entity.ServerCallback{PaymentRef: "EDX-100019"})
	require.NoError(t, err)

	order, err := database.GetOrder(context.Background(), "EDX-100019")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusPaid, order.Status)
	assert.Equal(t, 1, gateway.searchCount())
}

func TestHandleServerCallbackIdempotent(t *testing.T) {
	gateway := &fakeGateway{transactions: []entity.Transaction{completedTransaction("EDX-100019")}}
	database := newFakeDatabase(testBasket())
	processor := newTestProcessor(gateway, database)

	require.NoError(t, processor.HandleServerCallback(context.Background(), paidCallback("EDX-100019")))
	searches := gateway.searchCount()
	placed := database.placeCalls

	// redelivery of the same notification is a no-op
	require.NoError(t, processor.HandleServerCallback(context.Background(), paidCallback("EDX-100019")))

	assert.Len(t, database.orders, 1)
	assert.Equal(t, entity.OrderStatusPaid, database.orders["EDX-100019"].Status)
	assert.Equal(t, placed, database.placeCalls)
	assert.Equal(t, searches, gateway.searchCount())
}

func TestLockReferenceSerialization(t *testing.T) {
	processor := NewProcessor(testConfig())

	const workers = 16
	var wg sync.WaitGroup
	var failures int32
	inside := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock := processor.lockReference("EDX-100019")
			inside++
			if inside != 1 {
				atomic.AddInt32(&failures, 1)
			}
			inside--
			processor.unlockReference("EDX-100019", lock)
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&failures))
	// the last holder removes the entry
	assert.Empty(t, processor.locks)
}

func TestHandleServerCallbackConcurrentRedelivery(t *testing.T) {
	gateway := &fakeGateway{transactions: []entity.Transaction{completedTransaction("EDX-100019")}}
	database := newFakeDatabase(testBasket())
	processor := newTestProcessor(gateway, database)

	const deliveries = 8
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = processor.HandleServerCallback(context.Background(), paidCallback("EDX-100019"))
		}()
	}
	wg.Wait()

	// deliveries are serialized per reference: the first one places the
	// order, the rest see it finalized and stop before the search
	assert.Len(t, database.orders, 1)
	assert.Equal(t, entity.OrderStatusPaid, database.orders["EDX-100019"].Status)
	assert.Equal(t, 1, database.placeCalls)
	assert.Equal(t, 1, gateway.searchCount())
}

func TestHandleServerCallbackUnknownReference(t *testing.T) {
	gateway := &fakeGateway{transactions: []entity.Transaction{completedTransaction("EDX-100099")}}
	database := newFakeDatabase()
	processor := newTestProcessor(gateway, database)

	err := processor.HandleServerCallback(context.Background(), paidCallback("EDX-100099"))

	assert.ErrorIs(t, err, ErrUnknownReference)
	assert.Empty(t, database.orders)
}

func TestHandleServerCallbackMissingReference(t *testing.T) {
	processor := newTestProcessor(&fakeGateway{}, newFakeDatabase())

	err := processor.HandleServerCallback(context.Background(), &entity.ServerCallback{Success: true})

	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestHandleServerCallbackMerchantMismatch(t *testing.T) {
	database := newFakeDatabase(testBasket())
	processor := newTestProcessor(&fakeGateway{}, database)

	callback := paidCallback("EDX-100019")
	callback.MerchantCode = "SOMEONE_ELSE"
	err := processor.HandleServerCallback(context.Background(), callback)

	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.Empty(t, database.orders)
}

func TestHandleServerCallbackNotPaid(t *testing.T) {
	database := newFakeDatabase(testBasket())
	processor := newTestProcessor(&fakeGateway{}, database)

	callback := &entity.ServerCallback{
		StatusCode:   "E",
		MerchantCode: "NAUFCCN",
		PaymentRef:   "EDX-100019",
		ReturnCode:   "D01",
		ShortMessage: "declined by issuer",
	}
	err := processor.HandleServerCallback(context.Background(), callback)

	// a failed attempt is recorded, the basket stays payable
	require.NoError(t, err)
	assert.Empty(t, database.orders)
	var outcomes []string
	for _, response := range database.responses {
		outcomes = append(outcomes, response.Outcome)
	}
	assert.Contains(t, outcomes, "not_paid")
}

func TestHandleServerCallbackVerificationFails(t *testing.T) {
	// the notification claims paid but the search cannot confirm it
	database := newFakeDatabase(testBasket())
	processor := newTestProcessor(&fakeGateway{}, database)

	err := processor.HandleServerCallback(context.Background(), paidCallback("EDX-100019"))

	var declined *DeclinedError
	assert.ErrorAs(t, err, &declined)
	assert.Empty(t, database.orders)
}

func TestHandleServerCallbackGatewayDown(t *testing.T) {
	gateway := &fakeGateway{searchErr: &GatewayError{Message: "request timeout or cancelled", Cause: context.DeadlineExceeded}}
	database := newFakeDatabase(testBasket())
	processor := newTestProcessor(gateway, database)

	err := processor.HandleServerCallback(context.Background(), paidCallback("EDX-100019"))

	var gatewayErr *GatewayError
	assert.ErrorAs(t, err, &gatewayErr)
	assert.Empty(t, database.orders)
}

func TestRetryBasketsPaid(t *testing.T) {
	gateway := &fakeGateway{transactions: []entity.Transaction{
		completedTransaction("EDX-100019"), // known basket, no order yet
		completedTransaction("EDX-100020"), // known basket, already ordered
		completedTransaction("EDX-100777"), // unknown basket
	}}
	database := newFakeDatabase(testBasket(), &entity.Basket{Id: 20, Currency: "EUR", TotalCents: 2000})
	database.orders["EDX-100020"] = &entity.Order{OrderNumber: "EDX-100020", Status: entity.OrderStatusPaid}
	processor := newTestProcessor(gateway, database)

	err := processor.RetryBasketsPaid(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)

	assert.Len(t, database.orders, 2)
	assert.Equal(t, entity.OrderStatusPaid, database.orders["EDX-100019"].Status)
	_, exists := database.orders["EDX-100777"]
	assert.False(t, exists)
}

func TestIssueCreditNotSupported(t *testing.T) {
	processor := newTestProcessor(&fakeGateway{}, newFakeDatabase())

	err := processor.IssueCredit(context.Background(), "EDX-100019", 100, "EUR")

	assert.ErrorIs(t, err, ErrCreditNotSupported)
}
