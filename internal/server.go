package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"paygate/config"
	"paygate/entity"
	"paygate/services"
)

const (
	checkoutBasket  = "/checkout/:basket_id"
	callbackServer  = "/callback/server/"
	callbackSuccess = "/callback/success/"
	callbackCancel  = "/callback/cancel/"
	callbackError   = "/callback/error/"
	callbackFailure = "/callback/failure/"
	reconcile       = "/reconcile"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	processor  services.PaymentProcessor
	database   services.Database
	logger     services.LogHandler
}

func NewServer(conf *config.Config) *Server {

	server := Server{
		conf: conf,
	}

	// register itself as a router for httpServer handler
	router := httprouter.New()
	server.Register(router)
	server.httpServer = &http.Server{
		Handler: router,
	}

	return &server
}

func (s *Server) Register(router *httprouter.Router) {
	router.GET(checkoutBasket, s.checkout)
	router.POST(callbackServer, s.serverCallback)
	router.GET(callbackSuccess, s.successCallback)
	router.POST(callbackSuccess, s.successCallback)
	router.GET(callbackCancel, s.cancelCallback)
	router.GET(callbackError, s.errorCallback)
	router.GET(callbackFailure, s.errorCallback)
	router.POST(reconcile, s.reconcile)
}

func (s *Server) SetProcessor(processor services.PaymentProcessor) {
	s.processor = processor
}

func (s *Server) SetDatabase(database services.Database) {
	s.database = database
}

func (s *Server) SetLogger(logger services.LogHandler) {
	s.logger = logger
}

func (s *Server) Start() error {
	if s.conf == nil {
		return fmt.Errorf("configuration not loaded")
	}

	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIP, s.conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	if s.conf.Listen.TLS {
		s.logger.Info(fmt.Sprintf("starting https TLS on %s", serverAddress))
		err = s.httpServer.ServeTLS(listener, s.conf.Listen.CertFile, s.conf.Listen.KeyFile)
	} else {
		s.logger.Info(fmt.Sprintf("starting http on %s", serverAddress))
		err = s.httpServer.Serve(listener)
	}

	return err
}

// checkout initiates a payment for a basket and responds with the hosted
// payment page parameters.
func (s *Server) checkout(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := WithRequestID(r.Context())
	reqID := GetRequestID(ctx)

	basketId := ps.ByName("basket_id")
	id, err := strconv.Atoi(basketId)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("[%s] invalid basket id: %s; %v", reqID, basketId, err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if s.database == nil {
		s.logger.Warn(fmt.Sprintf("[%s] checkout unavailable: database not set", reqID))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	basket, err := s.database.GetBasket(ctx, id)
	if err != nil || basket == nil {
		s.logger.Warn(fmt.Sprintf("[%s] basket %d not found", reqID, id))
		w.WriteHeader(http.StatusNotFound)
		return
	}

	parameters, err := s.processor.GetTransactionParameters(ctx, basket)
	if err != nil {
		s.logger.Error(fmt.Sprintf("[%s] checkout basket %d", reqID, id), err)
		w.WriteHeader(s.statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(parameters); err != nil {
		s.logger.Error(fmt.Sprintf("[%s] encode checkout response", reqID), err)
	}
}

// serverCallback receives the asynchronous server-to-server payment
// notification. A non-2xx status tells PayGate to deliver the notification
// again later, which is safe because order placement is idempotent.
func (s *Server) serverCallback(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := WithRequestID(r.Context())
	reqID := GetRequestID(ctx)

	clientIP := ClientIP(r)
	if !AllowedClientIP(clientIP, s.conf.PayGate.CallbackServerAllowedNetworks) {
		s.logger.Warn(fmt.Sprintf("[%s] server callback from blocked address %s", reqID, clientIP))
		http.Error(w, "Unauthorized invalid allowed ip address", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error(fmt.Sprintf("[%s] server callback: read body", reqID), err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var callback entity.ServerCallback
	if err = json.Unmarshal(body, &callback); err != nil {
		s.logger.Warn(fmt.Sprintf("[%s] server callback: decode body: %v; %s", reqID, err, string(body)))
		http.Error(w, "Incorrect payment_ref", http.StatusPreconditionFailed)
		return
	}

	s.logger.Info(fmt.Sprintf("[%s] server callback for reference %s", reqID, callback.PaymentRef))

	if err = s.processor.HandleServerCallback(ctx, &callback); err != nil {
		s.logger.Error(fmt.Sprintf("[%s] server callback for reference %s", reqID, callback.PaymentRef), err)
		status := s.statusFor(err)
		var validation *ValidationError
		if errors.As(err, &validation) {
			http.Error(w, "Incorrect payment_ref", status)
			return
		}
		w.WriteHeader(status)
		return
	}

	fmt.Fprint(w, "Received server callback with success")
}

// successCallback handles the user returning from PayGate after paying.
// The payment claim is verified and applied through the same path as the
// server callback, then the user is sent to the receipt page.
func (s *Server) successCallback(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := WithRequestID(r.Context())
	reqID := GetRequestID(ctx)

	callback := callbackFromRequest(r)
	if callback.PaymentRef == "" {
		s.logger.Warn(fmt.Sprintf("[%s] success callback without payment_ref", reqID))
		s.finish(w, r, s.errorUrl())
		return
	}

	if err := s.processor.HandleServerCallback(ctx, callback); err != nil {
		s.logger.Error(fmt.Sprintf("[%s] success callback for reference %s", reqID, callback.PaymentRef), err)
		s.finish(w, r, s.errorUrl())
		return
	}

	s.finish(w, r, s.receiptUrl(callback.PaymentRef))
}

// cancelCallback handles the user cancelling the payment inside PayGate.
// A cancel is an outcome, not an error: the basket stays payable.
func (s *Server) cancelCallback(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := WithRequestID(r.Context())
	s.logger.Info(fmt.Sprintf("[%s] payment cancelled by user", GetRequestID(ctx)))
	http.Redirect(w, r, s.cancelUrl(), http.StatusFound)
}

// errorCallback handles PayGate redirecting the user after an internal or
// upstream payment error.
func (s *Server) errorCallback(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := WithRequestID(r.Context())
	s.logger.Warn(fmt.Sprintf("[%s] payment finished with error", GetRequestID(ctx)))
	http.Redirect(w, r, s.errorUrl(), http.StatusFound)
}

// reconcile triggers a sweep for completed transactions whose server
// callback was lost.
func (s *Server) reconcile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := WithRequestID(r.Context())
	reqID := GetRequestID(ctx)

	var window struct {
		From time.Time `json:"from"`
		To   time.Time `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&window); err != nil {
		s.logger.Warn(fmt.Sprintf("[%s] reconcile: decode body: %v", reqID, err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !window.From.Before(window.To) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := s.processor.RetryBasketsPaid(ctx, window.From, window.To); err != nil {
		s.logger.Error(fmt.Sprintf("[%s] reconcile", reqID), err)
		w.WriteHeader(s.statusFor(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// finish answers a user-redirect callback: browsers following a GET are
// redirected, server-side POSTs just get an acknowledgement.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, location string) {
	if r.Method == http.MethodPost {
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, location, http.StatusFound)
}

func (s *Server) statusFor(err error) int {
	var gateway *GatewayError
	if errors.As(err, &gateway) {
		return http.StatusBadGateway
	}
	var declined *DeclinedError
	if errors.As(err, &declined) {
		return http.StatusConflict
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return http.StatusPreconditionFailed
	}
	if errors.Is(err, ErrUnknownReference) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) cancelUrl() string {
	return s.pageUrl(s.conf.PayGate.CancelCheckoutPath)
}

func (s *Server) errorUrl() string {
	return s.pageUrl(s.conf.PayGate.ErrorPath)
}

func (s *Server) receiptUrl(orderNumber string) string {
	return s.pageUrl(s.conf.PayGate.ReceiptPagePath) + "?order_number=" + url.QueryEscape(orderNumber)
}

func (s *Server) pageUrl(path string) string {
	return strings.TrimSuffix(s.conf.PayGate.EcommerceURL, "/") + path
}

// callbackFromRequest reads the callback fields PayGate appends to the
// user-redirect URLs, or posts as a form.
func callbackFromRequest(r *http.Request) *entity.ServerCallback {
	var values url.Values
	if r.Method == http.MethodPost {
		_ = r.ParseForm()
		values = r.PostForm
	} else {
		values = r.URL.Query()
	}

	return &entity.ServerCallback{
		StatusCode:      values.Get("statusCode"),
		Success:         entity.Flag(strings.EqualFold(values.Get("success"), "true")),
		MerchantCode:    values.Get("MerchantCode"),
		ReturnCode:      values.Get("returnCode"),
		PaymentRef:      values.Get("payment_ref"),
		PaymentValue:    values.Get("paymentValue"),
		IsPaid:          entity.Flag(strings.EqualFold(values.Get("is_paid"), "true")),
		TransactionId:   values.Get("transaction_id"),
		CardMaskedPan:   values.Get("card_masked_pan"),
		PaymentTypeCode: values.Get("payment_type_code"),
	}
}
