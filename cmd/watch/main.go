// Package main records bonding-curve pricing over time: on every tick
// it quotes a unit buy and sell for each watched season and appends the
// samples to the ClickHouse quote timeseries.
package main

import (
	"context"
	"errors"
	"flag"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"sof-orchestrator/internal/config"
	"sof-orchestrator/internal/contracts"
	"sof-orchestrator/internal/domain"
	"sof-orchestrator/internal/ledger"
	"sof-orchestrator/internal/observability"
	"sof-orchestrator/internal/pricing"
	"sof-orchestrator/internal/storage"
	chstore "sof-orchestrator/internal/storage/clickhouse"
	"sof-orchestrator/internal/storage/migrations"
)

// sampler reads curve pricing for the watched seasons on a fixed cadence.
type sampler struct {
	log       *logrus.Logger
	session   *ledger.Session
	cfg       *config.Config
	estimator *pricing.Estimator
	store     storage.QuoteTimeseriesStore
	seasons   []uint64
	unit      *big.Int
	interval  time.Duration
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	seasonsFlag := flag.String("seasons", "", "Comma-separated season ids to watch (required)")
	interval := flag.Duration("interval", 0, "Sampling interval (overrides config)")
	metricsAddr := flag.String("metrics-addr", ":9091", "Prometheus metrics HTTP address")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.Database.ClickhouseDSN == "" {
		log.Fatal("database.clickhouse_dsn is required")
	}

	seasons := parseSeasons(*seasonsFlag)
	if len(seasons) == 0 {
		log.Fatal("--seasons is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("Received signal %v, shutting down", sig)
		cancel()
	}()

	client := ledger.NewHTTPClient(cfg.Chain.HTTPURL)
	chainID, err := client.ChainID(ctx)
	if err != nil {
		log.Fatalf("Read chain id: %v", err)
	}
	session := &ledger.Session{
		Account: cfg.AccountAddress(),
		ChainID: chainID,
		Client:  client,
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Database.ClickhouseDSN)
	if err != nil {
		log.Fatalf("Connect to clickhouse: %v", err)
	}
	defer conn.Close()

	go serveMetrics(log, *metricsAddr)
	go observability.TrackUptime(ctx)

	s := &sampler{
		log:       log,
		session:   session,
		cfg:       cfg,
		estimator: pricing.NewEstimator(log),
		store:     chstore.NewQuoteTimeseriesStore(conn),
		seasons:   seasons,
		unit:      big.NewInt(cfg.Sampler.TicketUnit),
		interval:  cfg.SamplerInterval(),
	}
	if *interval > 0 {
		s.interval = *interval
	}

	log.Infof("Sampling %d seasons every %s", len(seasons), s.interval)
	if err := s.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Sampler: %v", err)
	}
	log.Info("Shutdown complete")
}

func parseSeasons(flagValue string) []uint64 {
	var seasons []uint64
	for _, part := range strings.Split(flagValue, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			continue
		}
		seasons = append(seasons, id)
	}
	return seasons
}

func serveMetrics(log *logrus.Logger, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	log.Infof("Metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Warn("Metrics server")
	}
}

// run samples immediately and then on every tick until ctx ends.
func (s *sampler) run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sampleAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sampleAll(ctx)
		}
	}
}

// sampleAll takes one sample per watched season and stores the batch.
// A season that cannot be sampled is skipped, not fatal.
func (s *sampler) sampleAll(ctx context.Context) {
	now := time.Now().UnixMilli()

	var points []*domain.QuotePoint
	for _, seasonID := range s.seasons {
		point, err := s.sample(ctx, seasonID, now)
		if err != nil {
			s.log.WithError(err).WithField("season_id", seasonID).Warn("Sample skipped")
			continue
		}
		observability.DefaultMetrics.QuotePointsSampled.Inc()
		points = append(points, point)
	}
	if len(points) == 0 {
		return
	}

	if err := s.store.InsertBulk(ctx, points); err != nil {
		s.log.WithError(err).Warn("Store samples")
		return
	}
	observability.DefaultMetrics.QuotePointsStored.Add(float64(len(points)))
	observability.DefaultMetrics.LastSuccessfulSample.SetToCurrentTime()
	s.log.WithField("points", len(points)).Debug("Samples stored")
}

func (s *sampler) sample(ctx context.Context, seasonID uint64, sampledAt int64) (*domain.QuotePoint, error) {
	cv, err := s.session.Client.ReadContract(ctx, s.cfg.RaffleAddress(), contracts.RaffleGetSeasonDetails, new(big.Int).SetUint64(seasonID))
	if err != nil {
		return nil, err
	}
	season, err := contracts.SeasonFromValue(seasonID, cv)
	if err != nil {
		return nil, err
	}

	cfgVal, err := s.session.Client.ReadContract(ctx, season.CurveAddress, contracts.CurveConfigFn)
	if err != nil {
		return nil, err
	}
	curveCfg, err := contracts.CurveConfigFromValue(cfgVal)
	if err != nil {
		return nil, err
	}

	buy := s.estimator.QuoteBuy(ctx, s.session, season.CurveAddress, s.unit)
	sell := s.estimator.QuoteSell(ctx, s.session, season.CurveAddress, s.unit)
	if buy.IsZero() {
		return nil, errors.New("buy quote degraded to zero")
	}

	return &domain.QuotePoint{
		SeasonID:    seasonID,
		SampledAt:   sampledAt,
		TotalSupply: curveCfg.TotalSupply.Uint64(),
		BasePrice:   bigToFloat(buy.BaseAmount),
		BuyPrice:    bigToFloat(buy.AdjustedAmount),
		SellPrice:   bigToFloat(sell.AdjustedAmount),
	}, nil
}

func bigToFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
