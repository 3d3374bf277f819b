package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gitee.com/golang-module/dongle"

	"paygate/config"
	"paygate/entity"
	"paygate/services"
)

// Gateway is the HTTP client for the PayGate API. Every call carries HTTP
// basic authentication and is bounded by the endpoint's configured timeout.
type Gateway struct {
	conf       *config.Config
	logger     services.LogHandler
	httpClient *http.Client

	checkoutUrl string
	searchUrl   string
	markPaidUrl string
}

// NewGateway creates a gateway client with a pooled HTTP transport. Request
// deadlines come from per-call contexts, not from the client itself.
func NewGateway(conf *config.Config) *Gateway {
	return &Gateway{
		conf:        conf,
		checkoutUrl: conf.PayGate.CheckoutURL,
		searchUrl:   conf.PayGate.SearchTransactionsURL,
		markPaidUrl: conf.PayGate.MarkTestPaymentAsPaidURL,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DisableKeepAlives:   false,
			},
		},
	}
}

func (g *Gateway) SetLogger(logger services.LogHandler) {
	g.logger = logger
}

// Checkout registers a payment session with PayGate and returns the hosted
// payment page data. A response with Success=false is returned to the caller
// as is; deciding whether that is fatal belongs to the processor.
func (g *Gateway) Checkout(ctx context.Context, request *entity.CheckoutRequest) (*entity.CheckoutResponse, error) {
	body, err := g.post(ctx, g.checkoutUrl, g.checkoutTimeout(), request)
	if err != nil {
		return nil, err
	}
	var response entity.CheckoutResponse
	if err = json.Unmarshal(body, &response); err != nil {
		return nil, &GatewayError{Message: "parse checkout response", Cause: err}
	}
	return &response, nil
}

// SearchTransactions queries the back-office transaction search endpoint.
func (g *Gateway) SearchTransactions(ctx context.Context, request *entity.SearchRequest) ([]entity.Transaction, error) {
	body, err := g.post(ctx, g.searchUrl, g.searchTimeout(), request)
	if err != nil {
		return nil, err
	}
	var transactions []entity.Transaction
	if err = json.Unmarshal(body, &transactions); err != nil {
		return nil, &GatewayError{Message: "parse search response", Cause: err}
	}
	return transactions, nil
}

// MarkTestPaymentAsPaid flips a pending payment to paid on a test PayGate
// instance. Production instances reject the call.
func (g *Gateway) MarkTestPaymentAsPaid(ctx context.Context, paymentRef string) error {
	request := map[string]string{
		"ACCESS_TOKEN":  g.conf.PayGate.AccessToken,
		"MERCHANT_CODE": g.conf.PayGate.MerchantCode,
		"PAYMENT_REF":   paymentRef,
	}
	timeout := time.Duration(g.conf.PayGate.MarkTestPaymentAsPaidTimeoutSec) * time.Second
	_, err := g.post(ctx, g.markPaidUrl, timeout, request)
	return err
}

func (g *Gateway) checkoutTimeout() time.Duration {
	return time.Duration(g.conf.PayGate.CheckoutTimeoutSec) * time.Second
}

func (g *Gateway) searchTimeout() time.Duration {
	return time.Duration(g.conf.PayGate.SearchTransactionsTimeoutSec) * time.Second
}

func (g *Gateway) post(parentCtx context.Context, url string, timeout time.Duration, payload interface{}) ([]byte, error) {
	requestData, err := json.Marshal(payload)
	if err != nil {
		return nil, &GatewayError{Message: "encode request", Cause: err}
	}

	ctx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestData))
	if err != nil {
		return nil, &GatewayError{Message: "create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+g.basicAuth())

	g.logger.Debug(fmt.Sprintf("calling %s with payload %s", url, string(requestData)))

	response, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &GatewayError{Message: "request timeout or cancelled", Cause: ctx.Err()}
		}
		return nil, &GatewayError{Message: "post request", Cause: err}
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			g.logger.Error("close response body", err)
		}
	}(response.Body)

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &GatewayError{Message: "read response body", Cause: err}
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		g.logger.Warn(fmt.Sprintf("unexpected response from %s: status %d; %s", url, response.StatusCode, string(body)))
		return nil, &GatewayError{Message: "invalid api response", Status: response.StatusCode}
	}
	return body, nil
}

// All calls to PayGate require basic authentication as the first layer
// of security.
func (g *Gateway) basicAuth() string {
	credentials := g.conf.PayGate.BasicAuthUser + ":" + g.conf.PayGate.BasicAuthPass
	return dongle.Encode.FromString(credentials).ByBase64().ToString()
}
