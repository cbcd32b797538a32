// Package main runs the trading and settlement service:
// - Quote API: fee-adjusted buy/sell pricing from the bonding curve
// - Trade API: validated buy/sell execution with slippage protection
// - Lifecycle API: drive a season through resolution, streaming progress
// - Prometheus metrics and health endpoints
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/sirupsen/logrus"

	"sof-orchestrator/internal/config"
	"sof-orchestrator/internal/contracts"
	"sof-orchestrator/internal/domain"
	"sof-orchestrator/internal/ledger"
	"sof-orchestrator/internal/lifecycle"
	"sof-orchestrator/internal/observability"
	"sof-orchestrator/internal/pricing"
	"sof-orchestrator/internal/storage"
	"sof-orchestrator/internal/storage/memory"
	"sof-orchestrator/internal/storage/migrations"
	pgstore "sof-orchestrator/internal/storage/postgres"
	"sof-orchestrator/internal/trading"
	"sof-orchestrator/internal/validation"
)

// Server wires the trading components behind the HTTP API.
type Server struct {
	cfg       *config.Config
	log       *logrus.Logger
	session   *ledger.Session
	estimator *pricing.Estimator
	validator *validation.Validator
	executor  *trading.Executor
	lcConfig  lifecycle.Config
	snapshots storage.SeasonSnapshotStore

	started time.Time

	mu        sync.Mutex
	resolving map[uint64]bool
	trades    int
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	listenAddr := flag.String("listen", "", "HTTP listen address (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go observability.TrackUptime(ctx)

	// Ledger client, with new-head notifications when a WebSocket
	// endpoint is configured.
	opts := []ledger.ClientOption{ledger.WithWaitTimeout(cfg.ConfirmTimeout())}
	if cfg.Chain.WSURL != "" {
		heads, err := ledger.NewHeadSource(ctx, cfg.Chain.WSURL, nil)
		if err != nil {
			log.WithError(err).Warn("Head source unavailable, falling back to receipt polling")
		} else {
			defer heads.Close()
			opts = append(opts, ledger.WithHeadSource(heads.Heads()))
		}
	}
	client := ledger.NewHTTPClient(cfg.Chain.HTTPURL, opts...)

	chainID, err := client.ChainID(ctx)
	if err != nil {
		log.Fatalf("Read chain id: %v", err)
	}
	if cfg.Chain.ChainID != 0 && chainID != cfg.Chain.ChainID {
		log.Fatalf("Chain id mismatch: node reports %d, config expects %d", chainID, cfg.Chain.ChainID)
	}

	session := &ledger.Session{
		Account: cfg.AccountAddress(),
		ChainID: chainID,
		Client:  client,
	}

	results, snapshots, cleanup, err := createStores(ctx, cfg, *useMemory)
	if err != nil {
		log.Fatalf("Create stores: %v", err)
	}
	defer cleanup()

	execCfg := trading.Config{
		Token:               cfg.TokenAddress(),
		Confirmations:       cfg.Chain.Confirmations,
		UnknownRefreshDelay: cfg.UnknownRefreshDelay(),
	}
	lcCfg := lifecycle.DefaultConfig(cfg.RaffleAddress())
	lcCfg.Confirmations = cfg.Chain.Confirmations
	lcCfg.VRFPollInterval = cfg.VRFPollInterval()

	server := &Server{
		cfg:       cfg,
		log:       log,
		session:   session,
		estimator: pricing.NewEstimator(log),
		validator: validation.NewValidator(cfg.TokenAddress(), nil),
		executor:  trading.NewExecutor(execCfg, log, &logNotifier{log: log}, nil, results),
		lcConfig:  lcCfg,
		snapshots: snapshots,
		started:   time.Now(),
		resolving: make(map[uint64]bool),
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: server.routes(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Infof("Received signal %v, shutting down", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("HTTP shutdown")
		}
	}()

	log.Infof("Listening on %s (chain %d, account %s)", cfg.Server.ListenAddr, chainID, session.Account)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("HTTP server: %v", err)
	}
	log.Info("Shutdown complete")
}

// createStores creates the trade result and snapshot stores.
func createStores(ctx context.Context, cfg *config.Config, useMemory bool) (storage.TradeResultStore, storage.SeasonSnapshotStore, func(), error) {
	if useMemory {
		return memory.NewTradeResultStore(), memory.NewSeasonSnapshotStore(), func() {}, nil
	}
	if cfg.Database.PostgresDSN == "" {
		return nil, nil, nil, fmt.Errorf("database.postgres_dsn is required (use --use-memory for in-memory storage)")
	}

	pool, err := pgstore.NewPool(ctx, cfg.Database.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	cleanup := func() { pool.Close() }
	return pgstore.NewTradeResultStore(pool), pgstore.NewSeasonSnapshotStore(pool), cleanup, nil
}

// logNotifier surfaces trade notifications in the service log.
type logNotifier struct {
	log logrus.FieldLogger
}

func (n *logNotifier) Notify(note domain.Notification) {
	entry := n.log.WithFields(logrus.Fields{
		"notification_id": note.ID,
		"tx_hash":         note.TxHash,
	})
	if note.Type == domain.NotifyError {
		entry.Warn(note.Message)
		return
	}
	entry.Info(note.Message)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("GET /quote", s.handleQuote)
	mux.HandleFunc("POST /trade/buy", s.handleTrade(domain.SideBuy))
	mux.HandleFunc("POST /trade/sell", s.handleTrade(domain.SideSell))
	mux.HandleFunc("GET /season/{id}/activity", s.handleActivity)
	mux.HandleFunc("POST /season/{id}/resolve", s.handleResolve)

	return mux
}

// readSeason fetches the season record fresh from the ledger.
func (s *Server) readSeason(ctx context.Context, seasonID uint64) (*domain.Season, error) {
	cv, err := s.session.Client.ReadContract(ctx, s.cfg.RaffleAddress(), contracts.RaffleGetSeasonDetails, new(big.Int).SetUint64(seasonID))
	if err != nil {
		return nil, err
	}
	return contracts.SeasonFromValue(seasonID, cv)
}

func (s *Server) readCurveConfig(ctx context.Context, season *domain.Season) (*domain.CurveConfig, error) {
	cv, err := s.session.Client.ReadContract(ctx, season.CurveAddress, contracts.CurveConfigFn)
	if err != nil {
		return nil, err
	}
	return contracts.CurveConfigFromValue(cv)
}

// quoteResponse is the JSON shape of GET /quote.
type quoteResponse struct {
	SeasonID       uint64 `json:"season_id"`
	Side           string `json:"side"`
	TicketAmount   string `json:"ticket_amount"`
	BaseAmount     string `json:"base_amount"`
	AdjustedAmount string `json:"adjusted_amount"`
	Degraded       bool   `json:"degraded"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	seasonID, err := strconv.ParseUint(r.URL.Query().Get("season_id"), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "season_id is required")
		return
	}
	amount, ok := new(big.Int).SetString(r.URL.Query().Get("amount"), 10)
	if !ok || amount.Sign() <= 0 {
		httpError(w, http.StatusBadRequest, "amount must be a positive integer")
		return
	}
	side := domain.SideBuy
	if strings.EqualFold(r.URL.Query().Get("side"), string(domain.SideSell)) {
		side = domain.SideSell
	}

	season, err := s.readSeason(r.Context(), seasonID)
	if err != nil {
		httpError(w, http.StatusBadGateway, fmt.Sprintf("read season: %v", err))
		return
	}

	var quote *domain.TradeQuote
	if side == domain.SideSell {
		quote = s.estimator.QuoteSell(r.Context(), s.session, season.CurveAddress, amount)
	} else {
		quote = s.estimator.QuoteBuy(r.Context(), s.session, season.CurveAddress, amount)
	}
	observability.RecordQuoteComputed(string(side))

	writeJSON(w, http.StatusOK, quoteResponse{
		SeasonID:       seasonID,
		Side:           string(side),
		TicketAmount:   amount.String(),
		BaseAmount:     quote.BaseAmount.String(),
		AdjustedAmount: quote.AdjustedAmount.String(),
		Degraded:       quote.IsZero(),
	})
}

// tradeRequest is the JSON body of POST /trade/buy and /trade/sell.
type tradeRequest struct {
	SeasonID     uint64  `json:"season_id"`
	TicketAmount string  `json:"ticket_amount"`
	SlippagePct  float64 `json:"slippage_pct"`
}

// tradeResponse is the JSON shape of a finished or rejected trade.
type tradeResponse struct {
	IntentID     string `json:"intent_id,omitempty"`
	SeasonID     uint64 `json:"season_id"`
	Side         string `json:"side"`
	TicketAmount string `json:"ticket_amount"`
	Outcome      string `json:"outcome"`
	Success      bool   `json:"success"`
	TxHash       string `json:"tx_hash,omitempty"`
	ErrorReason  string `json:"error_reason,omitempty"`
}

func (s *Server) handleTrade(side domain.TradeSide) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tradeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
			return
		}
		amount, ok := new(big.Int).SetString(req.TicketAmount, 10)
		if !ok || amount.Sign() <= 0 {
			httpError(w, http.StatusBadRequest, "ticket_amount must be a positive integer")
			return
		}
		slippage := req.SlippagePct
		if slippage == 0 {
			slippage = s.cfg.Trading.DefaultSlippagePct
		}

		ctx := r.Context()
		season, err := s.readSeason(ctx, req.SeasonID)
		if err != nil {
			httpError(w, http.StatusBadGateway, fmt.Sprintf("read season: %v", err))
			return
		}
		curveCfg, err := s.readCurveConfig(ctx, season)
		if err != nil {
			httpError(w, http.StatusBadGateway, fmt.Sprintf("read curve: %v", err))
			return
		}

		var quote *domain.TradeQuote
		if side == domain.SideSell {
			quote = s.estimator.QuoteSell(ctx, s.session, season.CurveAddress, amount)
		} else {
			quote = s.estimator.QuoteBuy(ctx, s.session, season.CurveAddress, amount)
		}
		if quote.IsZero() {
			httpError(w, http.StatusBadGateway, "pricing unavailable")
			return
		}

		verdict, err := s.validator.Validate(ctx, s.session, &validation.Request{
			Side:          side,
			Season:        season,
			Curve:         curveCfg,
			TicketAmount:  amount,
			EstimatedCost: quote.AdjustedAmount,
		})
		if err != nil {
			httpError(w, http.StatusBadGateway, fmt.Sprintf("validate: %v", err))
			return
		}
		if !verdict.OK {
			observability.RecordTradeRejected(string(side), string(verdict.Reason))
			writeJSON(w, http.StatusUnprocessableEntity, tradeResponse{
				SeasonID:     req.SeasonID,
				Side:         string(side),
				TicketAmount: amount.String(),
				Outcome:      string(domain.OutcomeRejected),
				ErrorReason:  string(verdict.Reason),
			})
			return
		}

		var result *domain.TradeResult
		if side == domain.SideSell {
			result = s.executor.ExecuteSell(ctx, s.session, &trading.SellParams{
				SeasonID:     req.SeasonID,
				Curve:        season.CurveAddress,
				TicketAmount: amount,
				QuotedPayout: quote.AdjustedAmount,
				SlippagePct:  slippage,
			})
		} else {
			result = s.executor.ExecuteBuy(ctx, s.session, &trading.BuyParams{
				SeasonID:     req.SeasonID,
				Curve:        season.CurveAddress,
				TicketAmount: amount,
				QuotedCost:   quote.AdjustedAmount,
				SlippagePct:  slippage,
			})
		}

		s.mu.Lock()
		s.trades++
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, tradeResponse{
			IntentID:     result.IntentID,
			SeasonID:     result.SeasonID,
			Side:         string(result.Side),
			TicketAmount: result.TicketAmount.String(),
			Outcome:      string(result.Outcome),
			Success:      result.Success,
			TxHash:       result.TxHash,
			ErrorReason:  result.ErrorReason,
		})
	}
}

// activityEntry is one decoded curve trade event.
type activityEntry struct {
	Kind         string `json:"kind"`
	Account      string `json:"account"`
	TicketAmount string `json:"ticket_amount"`
	SofAmount    string `json:"sof_amount"`
	BlockNumber  uint64 `json:"block_number"`
	TxHash       string `json:"tx_hash"`
}

// activityResponse is the JSON shape of GET /season/{id}/activity.
type activityResponse struct {
	SeasonID uint64          `json:"season_id"`
	Entries  []activityEntry `json:"entries"`
}

// handleActivity lists the season's on-chain trade history from the
// curve's TokensPurchased and TokensSold events.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	seasonID, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "season id must be an integer")
		return
	}

	season, err := s.readSeason(r.Context(), seasonID)
	if err != nil {
		httpError(w, http.StatusBadGateway, fmt.Sprintf("read season: %v", err))
		return
	}

	purchases, err := s.readTradeEvents(r.Context(), season.CurveAddress, contracts.CurveTokensPurchased, "purchase")
	if err != nil {
		httpError(w, http.StatusBadGateway, fmt.Sprintf("read purchases: %v", err))
		return
	}
	sales, err := s.readTradeEvents(r.Context(), season.CurveAddress, contracts.CurveTokensSold, "sale")
	if err != nil {
		httpError(w, http.StatusBadGateway, fmt.Sprintf("read sales: %v", err))
		return
	}

	entries := append(purchases, sales...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].BlockNumber < entries[j].BlockNumber })

	writeJSON(w, http.StatusOK, activityResponse{SeasonID: seasonID, Entries: entries})
}

// readTradeEvents fetches and decodes one trade event type from the
// curve. Records that fail to decode are skipped, not fatal.
func (s *Server) readTradeEvents(ctx context.Context, curve *ethtypes.Address0xHex, event *abi.Entry, kind string) ([]activityEntry, error) {
	logs, err := s.session.Client.GetLogs(ctx, curve, event, 0, 0)
	if err != nil {
		return nil, err
	}

	sig := ethtypes.HexBytes0xPrefix(event.SignatureHashBytes())
	entries := make([]activityEntry, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) == 0 || !bytes.Equal(l.Topics[0], sig) {
			continue
		}
		cv, err := event.DecodeEventDataCtx(ctx, l.Topics, l.Data)
		if err != nil {
			s.log.WithError(err).WithField("tx_hash", l.TxHash).Warn("Skipping undecodable trade event")
			continue
		}
		if len(cv.Children) != 3 {
			continue
		}

		entry := activityEntry{
			Kind:        kind,
			BlockNumber: l.BlockNumber,
			TxHash:      l.TxHash,
		}
		if v, ok := cv.Children[0].Value.(*big.Int); ok {
			var addr ethtypes.Address0xHex
			v.FillBytes(addr[:])
			entry.Account = addr.String()
		}
		if v, ok := cv.Children[1].Value.(*big.Int); ok {
			entry.TicketAmount = v.String()
		}
		if v, ok := cv.Children[2].Value.(*big.Int); ok {
			entry.SofAmount = v.String()
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// handleResolve drives the season's resolution and streams progress as
// chunked plain text, one line per step.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	seasonID, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "season id must be an integer")
		return
	}

	// One resolution at a time per season.
	s.mu.Lock()
	if s.resolving[seasonID] {
		s.mu.Unlock()
		httpError(w, http.StatusConflict, fmt.Sprintf("season %d resolution already in progress", seasonID))
		return
	}
	s.resolving[seasonID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.resolving, seasonID)
		s.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	var writeMu sync.Mutex
	sink := func(message string) {
		writeMu.Lock()
		defer writeMu.Unlock()
		fmt.Fprintln(w, message)
		if flusher != nil {
			flusher.Flush()
		}
	}

	orchestrator := lifecycle.NewOrchestrator(s.lcConfig, s.log, sink, s.snapshots)
	result, err := orchestrator.Resolve(r.Context(), s.session, seasonID)
	switch {
	case err == nil:
		sink(fmt.Sprintf("done: season %d is %s", seasonID, result.FinalStatus))
	case errors.Is(err, lifecycle.ErrVRFPending):
		sink(fmt.Sprintf("pending: season %d randomness not yet fulfilled, retry later", seasonID))
	default:
		sink(fmt.Sprintf("error: %v", err))
	}
}

// statusResponse is the JSON shape of GET /status.
type statusResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	ChainID uint64 `json:"chain_id"`
	Account string `json:"account"`
	Trades  int    `json:"trades"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	trades := s.trades
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "running",
		Uptime:  time.Since(s.started).String(),
		ChainID: s.session.ChainID,
		Account: s.session.Account.String(),
		Trades:  trades,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
