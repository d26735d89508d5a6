// Package api serves the exchange over HTTP: read endpoints, signed request
// submission and a WebSocket feed of deals.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
	"github.com/uhyunpark/hyperdex/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperdex/pkg/app/dex"
)

const (
	maxBodyBytes  = 64 << 10
	defaultLimit  = 100
	defaultLevels = 20
)

type ctxKey struct{}

// Server handles REST API and WebSocket connections.
type Server struct {
	svc      *dex.Service
	verifier *transaction.Verifier
	log      *zap.SugaredLogger
	validate *validator.Validate
	router   *mux.Router
	hub      *Hub
	handler  http.Handler
	srv      *http.Server
}

func NewServer(svc *dex.Service, verifier *transaction.Verifier, log *zap.SugaredLogger, allowedOrigins []string) *Server {
	validate := validator.New()
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	})

	checkOrigin := func(r *http.Request) bool {
		return r.Header.Get("Origin") == "" || c.OriginAllowed(r)
	}

	s := &Server{
		svc:      svc,
		verifier: verifier,
		log:      log,
		validate: validate,
		router:   mux.NewRouter(),
		hub:      NewHub(log, validate, checkOrigin),
	}
	s.hub.book = func(id uint64) (*OrderbookSnapshot, error) {
		return s.orderbook(id, defaultLevels)
	}
	s.setupRoutes()
	s.handler = c.Handler(s.router)
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestID, s.accessLog)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/config", s.handleGetConfig).Methods(http.MethodGet)

	api.HandleFunc("/sympairs", s.handleGetSymPairs).Methods(http.MethodGet)
	api.HandleFunc("/sympairs/{id:[0-9]+}", s.handleGetSymPair).Methods(http.MethodGet)
	api.HandleFunc("/sympairs/{id:[0-9]+}/orderbook", s.handleGetOrderbook).Methods(http.MethodGet)
	api.HandleFunc("/sympairs/{id:[0-9]+}/deals", s.handleGetDeals).Methods(http.MethodGet)

	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods(http.MethodGet)
	api.HandleFunc("/deals/{id:[0-9]+}", s.handleGetDeal).Methods(http.MethodGet)

	api.HandleFunc("/accounts/{address}/balances", s.handleGetBalances).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{address}/orders", s.handleGetAccountOrders).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{address}/nonce", s.handleGetNonce).Methods(http.MethodGet)

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods(http.MethodPost)
	api.HandleFunc("/match", s.handleMatch).Methods(http.MethodPost)
	api.HandleFunc("/withdraw", s.handleWithdraw).Methods(http.MethodPost)

	s.router.Handle("/ws", s.hub)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// Hub is the deal sink to register with the service.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Handler() http.Handler { return s.handler }

// Start serves on addr until Shutdown. It returns http.ErrServerClosed
// after a clean shutdown.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.log.Infow("api_starting", "addr", ln.Addr().String())
	return s.srv.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.srv.Shutdown(ctx)
}

// ==============================
// Middleware
// ==============================

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps WebSocket upgrades working behind the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debugw("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", requestIDFrom(r),
		)
	})
}

// ==============================
// Read handlers
// ==============================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, initialized, err := s.svc.Config()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     s.svc.Version(),
		"initialized": initialized,
		"ws_clients":  s.hub.ClientCount(),
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, ok, err := s.svc.Config()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		respondError(w, r, http.StatusServiceUnavailable, "not initialized", "dex config is not set")
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleGetSymPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.svc.SymPairs()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]SymPairInfo, len(pairs))
	for i, p := range pairs {
		out[i] = symPairInfo(p)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSymPair(w http.ResponseWriter, r *http.Request) {
	p, ok, err := s.svc.SymPair(pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		respondError(w, r, http.StatusNotFound, "sympair not found", "")
		return
	}
	respondJSON(w, http.StatusOK, symPairInfo(p))
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	q := depthQuery{Levels: queryInt(r, "levels", defaultLevels)}
	if err := s.validate.Struct(q); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid levels", err.Error())
		return
	}
	id := pathID(r)
	if _, ok, err := s.svc.SymPair(id); err != nil {
		s.fail(w, r, err)
		return
	} else if !ok {
		respondError(w, r, http.StatusNotFound, "sympair not found", "")
		return
	}
	snap, err := s.orderbook(id, q.Levels)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) orderbook(id uint64, levels int) (*OrderbookSnapshot, error) {
	depth, err := s.svc.Depth(id, levels)
	if err != nil {
		return nil, err
	}
	return &OrderbookSnapshot{
		SymPairID: id,
		Bids:      priceLevels(depth.Bids),
		Asks:      priceLevels(depth.Asks),
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

func (s *Server) handleGetDeals(w http.ResponseWriter, r *http.Request) {
	q := pageQuery{Limit: queryInt(r, "limit", defaultLimit)}
	if err := s.validate.Struct(q); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}
	deals, err := s.svc.DealsByPair(pathID(r), q.Limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dealInfos(deals))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, ok, err := s.svc.GetOrder(pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		respondError(w, r, http.StatusNotFound, "order not found", "")
		return
	}
	respondJSON(w, http.StatusOK, orderInfo(o))
}

func (s *Server) handleGetDeal(w http.ResponseWriter, r *http.Request) {
	d, ok, err := s.svc.GetDeal(pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		respondError(w, r, http.StatusNotFound, "deal not found", "")
		return
	}
	respondJSON(w, http.StatusOK, dealInfo(d))
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	bals, err := s.svc.Balances(addr)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, balanceInfos(bals))
}

func (s *Server) handleGetAccountOrders(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	q := pageQuery{Limit: queryInt(r, "limit", defaultLimit)}
	if err := s.validate.Struct(q); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}
	orders, err := s.svc.OrdersByOwner(addr, q.Limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]*OrderInfo, len(orders))
	for i, o := range orders {
		out[i] = orderInfo(o)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetNonce(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	n, err := s.svc.Nonce(addr)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, NonceInfo{Address: addr.Hex(), Nonce: n})
}

// ==============================
// Signed submissions
// ==============================

// accept reads a signed envelope of the wanted type, verifies it and burns
// its nonce. The caller executes the request only when accept returns true.
func (s *Server) accept(w http.ResponseWriter, r *http.Request, want transaction.TxType) (*transaction.SignedTransaction, dex.Auth, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "failed to read body", err.Error())
		return nil, nil, false
	}
	tx, err := transaction.ParseTransaction(body)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid transaction", err.Error())
		return nil, nil, false
	}
	if tx.Type != want {
		respondError(w, r, http.StatusBadRequest, "invalid transaction type", "expected type="+string(want))
		return nil, nil, false
	}
	if err := s.validate.Struct(tx); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid transaction", err.Error())
		return nil, nil, false
	}
	auth, err := s.verifier.Signers(tx)
	if err != nil {
		s.fail(w, r, err)
		return nil, nil, false
	}
	if err := s.svc.ConsumeNonce(tx.Signer(), tx.Nonce()); err != nil {
		s.fail(w, r, err)
		return nil, nil, false
	}
	return tx, auth, true
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	tx, auth, ok := s.accept(w, r, transaction.TxTypeOrder)
	if !ok {
		return
	}
	req, err := transaction.OrderRequest(tx.Order)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	o, err := s.svc.NewOrder(auth, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, SubmitResponse{Status: "accepted", Order: orderInfo(o)})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	tx, auth, ok := s.accept(w, r, transaction.TxTypeCancel)
	if !ok {
		return
	}
	o, err := s.svc.Cancel(auth, tx.Cancel.OrderID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, SubmitResponse{Status: "canceled", Order: orderInfo(o)})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	tx, auth, ok := s.accept(w, r, transaction.TxTypeMatch)
	if !ok {
		return
	}
	req, err := transaction.MatchRequest(tx.Match)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	deals, err := s.svc.Match(auth, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, SubmitResponse{Status: "matched", Deals: dealInfos(deals)})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	tx, auth, ok := s.accept(w, r, transaction.TxTypeWithdraw)
	if !ok {
		return
	}
	wd, err := transaction.WithdrawRequest(tx.Withdraw)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Withdraw(auth, wd.Owner, wd.Token, wd.Quant); err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, SubmitResponse{Status: "withdrawn"})
}

// ==============================
// Helper Functions
// ==============================

// fail maps service errors onto HTTP statuses. Internal errors are logged
// and their text withheld.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, transaction.ErrBadSignature):
		respondError(w, r, http.StatusUnauthorized, "invalid signature", err.Error())
	case fault.IsNothingMatched(err):
		respondError(w, r, http.StatusConflict, "nothing matched", err.Error())
	case fault.IsValidation(err):
		respondError(w, r, http.StatusBadRequest, "rejected", err.Error())
	default:
		s.log.Errorw("request_failed", "path", r.URL.Path, "request_id", requestIDFrom(r), "error", err)
		respondError(w, r, http.StatusInternalServerError, "internal error", "")
	}
}

func pathID(r *http.Request) uint64 {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	return id
}

func pathAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	v := mux.Vars(r)["address"]
	if !common.IsHexAddress(v) {
		respondError(w, r, http.StatusBadRequest, "invalid address", v)
		return common.Address{}, false
	}
	return common.HexToAddress(v), true
}

// queryInt returns def when key is absent and -1 when it is malformed, so
// validation rejects it.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: requestIDFrom(r),
	})
}
