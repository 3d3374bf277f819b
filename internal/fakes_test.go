package internal

import (
	"context"
	"errors"
	"sync"

	"paygate/config"
	"paygate/entity"
	"paygate/services"
)

func testConfig() *config.Config {
	conf := &config.Config{}
	conf.PayGate.AccessToken = "PwdX_XXXX_YYYY"
	conf.PayGate.MerchantCode = "NAUFCCN"
	conf.PayGate.BasicAuthUser = "NAU"
	conf.PayGate.BasicAuthPass = "APassword"
	conf.PayGate.EcommerceURL = "https://shop.example.com"
	conf.PayGate.CancelCheckoutPath = "/checkout/cancel-checkout/"
	conf.PayGate.ErrorPath = "/checkout/error/"
	conf.PayGate.ReceiptPagePath = "/checkout/receipt/"
	conf.PayGate.PaymentTypes = []string{"VISA", "MBWAY", "REFMB"}
	conf.PayGate.CheckoutTimeoutSec = 10
	conf.PayGate.SearchTransactionsTimeoutSec = 10
	conf.PayGate.MarkTestPaymentAsPaidTimeoutSec = 10
	return conf
}

// fakeDatabase is an in-memory services.Database for tests.
type fakeDatabase struct {
	mu         sync.Mutex
	baskets    map[int]*entity.Basket
	orders     map[string]*entity.Order
	responses  []*entity.ProcessorResponse
	logs       []services.Data
	placeCalls int
}

func newFakeDatabase(baskets ...*entity.Basket) *fakeDatabase {
	db := &fakeDatabase{
		baskets: make(map[int]*entity.Basket),
		orders:  make(map[string]*entity.Order),
	}
	for _, basket := range baskets {
		db.baskets[basket.Id] = basket
	}
	return db
}

func (f *fakeDatabase) WriteLogMessage(data services.Data) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, data)
	return nil
}

func (f *fakeDatabase) GetBasket(_ context.Context, id int) (*entity.Basket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	basket, ok := f.baskets[id]
	if !ok {
		return nil, errors.New("basket not found")
	}
	return basket, nil
}

func (f *fakeDatabase) GetBasketByOrderNumber(ctx context.Context, orderNumber string) (*entity.Basket, error) {
	id, err := entity.BasketIdFromOrderNumber(orderNumber)
	if err != nil {
		return nil, err
	}
	return f.GetBasket(ctx, id)
}

func (f *fakeDatabase) GetOrder(_ context.Context, orderNumber string) (*entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderNumber]
	if !ok {
		return nil, errors.New("order not found")
	}
	return order, nil
}

func (f *fakeDatabase) OrderExists(_ context.Context, orderNumber string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.orders[orderNumber]
	return ok, nil
}

func (f *fakeDatabase) PlaceOrder(_ context.Context, order *entity.Order) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placeCalls++
	existing, ok := f.orders[order.OrderNumber]
	if ok && existing.Finalized() {
		return false, nil
	}
	f.orders[order.OrderNumber] = order
	return true, nil
}

func (f *fakeDatabase) SaveProcessorResponse(_ context.Context, response *entity.ProcessorResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response)
	return nil
}

// fakeGateway is a scriptable services.Gateway for tests.
type fakeGateway struct {
	mu               sync.Mutex
	checkoutResponse *entity.CheckoutResponse
	checkoutErr      error
	transactions     []entity.Transaction
	searchErr        error
	checkoutRequests []*entity.CheckoutRequest
	searchRequests   []*entity.SearchRequest
	markPaidRefs     []string
}

func (f *fakeGateway) Checkout(_ context.Context, request *entity.CheckoutRequest) (*entity.CheckoutResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkoutRequests = append(f.checkoutRequests, request)
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return f.checkoutResponse, nil
}

func (f *fakeGateway) SearchTransactions(_ context.Context, request *entity.SearchRequest) ([]entity.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchRequests = append(f.searchRequests, request)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if request.PaymentRef == "" {
		return f.transactions, nil
	}
	var matched []entity.Transaction
	for _, transaction := range f.transactions {
		if transaction.PaymentRef == request.PaymentRef {
			matched = append(matched, transaction)
		}
	}
	return matched, nil
}

func (f *fakeGateway) MarkTestPaymentAsPaid(_ context.Context, paymentRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markPaidRefs = append(f.markPaidRefs, paymentRef)
	return nil
}

func (f *fakeGateway) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searchRequests)
}
