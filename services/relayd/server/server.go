package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"swaprelay/crypto"
	"swaprelay/native/amm"
	"swaprelay/native/common"
	"swaprelay/native/relay"
	"swaprelay/observability"
	"swaprelay/services/relayd/storage"
)

// Ledger is the slice of the exchange engine the HTTP surface drives.
type Ledger interface {
	AddLiquidity(caller [20]byte, asset string, amount *big.Int) error
	RemoveLiquidity(caller [20]byte, asset string, amount *big.Int) error
	SetFeeRate(caller [20]byte, rateBps uint32) error
	QuotePrice(assetIn, assetOut string) (*big.Int, error)
	FeeRateBps() uint32
}

// SwapRelay is the slice of the relay engine the HTTP surface drives.
type SwapRelay interface {
	ExecuteSwap(req *relay.SwapRequest, signature []byte) (*amm.SettleResult, error)
	Nonce(signer [20]byte) (uint64, error)
	ChainID() *big.Int
	Address() [20]byte
}

// PauseSwitch toggles module-level circuit breakers.
type PauseSwitch interface {
	SetPaused(module string, paused bool)
}

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress string
	AdminAddress  [20]byte
}

// Server hosts the public relay surface plus authenticated admin endpoints.
// All state-changing calls are serialised behind one mutex so engine
// transactions never interleave.
type Server struct {
	cfg       Config
	relay     SwapRelay
	ledger    Ledger
	pauses    PauseSwitch
	store     *storage.Storage
	metrics   *observability.RelayMetrics
	logger    *slog.Logger
	adminAuth *Authenticator
	now       func() time.Time

	mu     sync.Mutex
	router http.Handler
}

// New constructs a configured HTTP server.
func New(cfg Config, rel SwapRelay, ledger Ledger, pauses PauseSwitch, store *storage.Storage, auth *Authenticator, logger *slog.Logger) (*Server, error) {
	if rel == nil {
		return nil, fmt.Errorf("relay required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if auth == nil {
		return nil, fmt.Errorf("admin authenticator required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		cfg:       cfg,
		relay:     rel,
		ledger:    ledger,
		pauses:    pauses,
		store:     store,
		metrics:   observability.Relay(),
		logger:    logger,
		adminAuth: auth,
		now:       time.Now,
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context is cancelled, then drains with the given grace
// period.
func (s *Server) Run(ctx context.Context, grace time.Duration) error {
	httpSrv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Post("/swaps", s.handleSubmitSwap)
		api.Get("/nonce/{signer}", s.handleNonce)
		api.Get("/price", s.handlePrice)

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(s.adminAuth.Middleware(ScopeAdmin))
			admin.Post("/liquidity", s.handleLiquidity)
			admin.Post("/fee", s.handleFee)
			admin.Post("/pause", s.handlePause)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type swapSubmission struct {
	Pool         string `json:"pool"`
	Signer       string `json:"signer"`
	AssetIn      string `json:"asset_in"`
	AssetOut     string `json:"asset_out"`
	AmountIn     string `json:"amount_in"`
	MinAmountOut string `json:"min_amount_out"`
	Nonce        uint64 `json:"nonce"`
	Deadline     int64  `json:"deadline"`
	Signature    string `json:"signature"`
}

type swapReceipt struct {
	ID        string `json:"id"`
	Signer    string `json:"signer"`
	AssetIn   string `json:"asset_in"`
	AssetOut  string `json:"asset_out"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Fee       string `json:"fee"`
	Nonce     uint64 `json:"nonce"`
}

func (s *Server) handleSubmitSwap(w http.ResponseWriter, r *http.Request) {
	start := s.now()
	var body swapSubmission
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.metrics.ObserveSubmission("malformed", start)
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req, signature, err := decodeSubmission(body)
	if err != nil {
		s.metrics.ObserveSubmission("malformed", start)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	result, execErr := s.relay.ExecuteSwap(req, signature)
	s.mu.Unlock()

	id := uuid.NewString()
	rec := storage.SubmissionRecord{
		ID:         id,
		Signer:     body.Signer,
		AssetIn:    req.AssetIn,
		AssetOut:   req.AssetOut,
		AmountIn:   req.AmountIn.String(),
		Nonce:      req.Nonce,
		ReceivedAt: start,
	}
	if execErr != nil {
		rec.Outcome = "rejected"
		rec.Detail = execErr.Error()
		s.audit(r.Context(), rec)
		s.metrics.ObserveSubmission("rejected", start)
		s.logger.Info("swap rejected", "signer", body.Signer, "nonce", req.Nonce, "err", execErr)
		writeError(w, statusForError(execErr), execErr.Error())
		return
	}

	rec.Outcome = "executed"
	rec.AmountOut = result.AmountOut.String()
	rec.Fee = result.Fee.String()
	s.audit(r.Context(), rec)
	s.metrics.ObserveSubmission("executed", start)
	s.metrics.ObserveSettlement()
	s.logger.Info("swap executed",
		"signer", body.Signer,
		"asset_in", req.AssetIn,
		"asset_out", req.AssetOut,
		"amount_out", result.AmountOut.String(),
		"nonce", req.Nonce,
	)
	writeJSON(w, http.StatusOK, swapReceipt{
		ID:        id,
		Signer:    body.Signer,
		AssetIn:   req.AssetIn,
		AssetOut:  req.AssetOut,
		AmountIn:  result.AmountIn.String(),
		AmountOut: result.AmountOut.String(),
		Fee:       result.Fee.String(),
		Nonce:     req.Nonce,
	})
}

func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "signer")
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid signer address")
		return
	}
	var signer [20]byte
	copy(signer[:], addr.Bytes())
	s.mu.Lock()
	nonce, err := s.relay.Nonce(signer)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "nonce lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"signer": raw,
		"nonce":  nonce,
	})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	assetIn := strings.TrimSpace(r.URL.Query().Get("asset_in"))
	assetOut := strings.TrimSpace(r.URL.Query().Get("asset_out"))
	if assetIn == "" || assetOut == "" {
		writeError(w, http.StatusBadRequest, "asset_in and asset_out required")
		return
	}
	// Quotes share the settlement mutex so a read never observes the
	// uncommitted overlay of an in-flight transaction.
	s.mu.Lock()
	price, err := s.ledger.QuotePrice(assetIn, assetOut)
	feeBps := s.ledger.FeeRateBps()
	s.mu.Unlock()
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset_in":  assetIn,
		"asset_out": assetOut,
		"price":     price.String(),
		"scale":     18,
		"fee_bps":   feeBps,
	})
}

type liquidityRequest struct {
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
	Direction string `json:"direction"`
}

func (s *Server) handleLiquidity(w http.ResponseWriter, r *http.Request) {
	var body liquidityRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(body.Amount), 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	s.mu.Lock()
	var err error
	switch strings.ToLower(strings.TrimSpace(body.Direction)) {
	case "add":
		err = s.ledger.AddLiquidity(s.cfg.AdminAddress, body.Asset, amount)
	case "remove":
		err = s.ledger.RemoveLiquidity(s.cfg.AdminAddress, body.Asset, amount)
	default:
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "direction must be add or remove")
		return
	}
	s.mu.Unlock()
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type feeRequest struct {
	RateBps uint32 `json:"rate_bps"`
}

func (s *Server) handleFee(w http.ResponseWriter, r *http.Request) {
	var body feeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	s.mu.Lock()
	err := s.ledger.SetFeeRate(s.cfg.AdminAddress, body.RateBps)
	s.mu.Unlock()
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rate_bps": body.RateBps})
}

type pauseRequest struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if s.pauses == nil {
		writeError(w, http.StatusNotImplemented, "pause control not wired")
		return
	}
	var body pauseRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	module := strings.TrimSpace(body.Module)
	if module == "" {
		writeError(w, http.StatusBadRequest, "module required")
		return
	}
	s.pauses.SetPaused(module, body.Paused)
	s.logger.Info("module pause toggled", "module", module, "paused", body.Paused)
	writeJSON(w, http.StatusOK, map[string]interface{}{"module": module, "paused": body.Paused})
}

func (s *Server) audit(ctx context.Context, rec storage.SubmissionRecord) {
	if s.store == nil {
		return
	}
	if err := s.store.RecordSubmission(ctx, rec); err != nil {
		s.logger.Warn("audit write failed", "id", rec.ID, "err", err)
	}
}

func decodeSubmission(body swapSubmission) (*relay.SwapRequest, []byte, error) {
	pool, err := decodeAccount(body.Pool)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid pool address")
	}
	signer, err := decodeAccount(body.Signer)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid signer address")
	}
	amountIn, ok := new(big.Int).SetString(strings.TrimSpace(body.AmountIn), 10)
	if !ok {
		return nil, nil, fmt.Errorf("invalid amount_in")
	}
	minOut, ok := new(big.Int).SetString(strings.TrimSpace(body.MinAmountOut), 10)
	if !ok {
		return nil, nil, fmt.Errorf("invalid min_amount_out")
	}
	signature, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(body.Signature), "0x"))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid signature encoding")
	}
	req := &relay.SwapRequest{
		Pool:         pool,
		Signer:       signer,
		AssetIn:      strings.TrimSpace(body.AssetIn),
		AssetOut:     strings.TrimSpace(body.AssetOut),
		AmountIn:     amountIn,
		MinAmountOut: minOut,
		Nonce:        body.Nonce,
		Deadline:     body.Deadline,
	}
	return req, signature, nil
}

func decodeAccount(raw string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return out, err
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, relay.ErrInvalidSignature), errors.Is(err, relay.ErrPoolMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, relay.ErrInvalidNonce):
		return http.StatusConflict
	case errors.Is(err, relay.ErrExpiredRequest):
		return http.StatusUnprocessableEntity
	case errors.Is(err, amm.ErrUnauthorized), errors.Is(err, amm.ErrInvalidAdministrator):
		return http.StatusForbidden
	case errors.Is(err, amm.ErrSlippageExceeded),
		errors.Is(err, amm.ErrInsufficientLiquidity),
		errors.Is(err, amm.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, amm.ErrInvalidPair),
		errors.Is(err, amm.ErrInvalidAsset),
		errors.Is(err, amm.ErrInvalidAmount),
		errors.Is(err, amm.ErrInvalidFeeRate):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrModulePaused):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
