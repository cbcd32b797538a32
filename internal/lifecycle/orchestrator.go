// Package lifecycle drives a season through its resolution state
// machine: end request, randomness fulfillment, prize extraction, and
// distributor funding.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/sirupsen/logrus"

	"sof-orchestrator/internal/contracts"
	"sof-orchestrator/internal/domain"
	"sof-orchestrator/internal/ledger"
	"sof-orchestrator/internal/observability"
	"sof-orchestrator/internal/revert"
	"sof-orchestrator/internal/storage"
)

var (
	// ErrPrerequisite means the distributor is not ready to be funded.
	// It is fatal: the orchestrator performs no writes and operators
	// must fix the deployment before retrying.
	ErrPrerequisite = errors.New("distributor prerequisites not met")

	// ErrVRFPending means randomness is not yet fulfilled. It is a
	// normal retryable condition, not a failure.
	ErrVRFPending = errors.New("randomness not yet fulfilled")

	// ErrNotResolvable means the season is in a state resolution cannot
	// act on.
	ErrNotResolvable = errors.New("season not resolvable")
)

// StatusSink receives incremental progress messages during a
// resolution run. Implementations must not block.
type StatusSink func(message string)

// Config tunes orchestrator behavior.
type Config struct {
	// Raffle is the raffle manager contract.
	Raffle *ethtypes.Address0xHex

	// Confirmations is how many confirmations each write waits for.
	Confirmations int

	// VRFPollInterval is the cadence of fulfillment polls.
	VRFPollInterval time.Duration
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig(raffle *ethtypes.Address0xHex) Config {
	return Config{
		Raffle:          raffle,
		Confirmations:   1,
		VRFPollInterval: 10 * time.Second,
	}
}

// Result is the terminal outcome of one resolution run.
type Result struct {
	SeasonID    uint64
	FinalStatus domain.SeasonStatus

	// AlreadyCompleted is set when the season was Completed before the
	// run performed any writes.
	AlreadyCompleted bool

	// TxHashes lists the transactions this run submitted, in order.
	TxHashes []string

	// Checkpoint is the last rebuilt working snapshot.
	Checkpoint *domain.LifecycleCheckpoint
}

// Orchestrator resolves seasons. One Resolve call handles one season,
// strictly sequentially; independent seasons may resolve concurrently
// on separate calls.
type Orchestrator struct {
	cfg       Config
	log       logrus.FieldLogger
	sink      StatusSink
	snapshots storage.SeasonSnapshotStore // nil disables the audit trail
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator. A nil sink logs progress
// through logrus; a nil snapshot store disables the audit trail.
func NewOrchestrator(cfg Config, log logrus.FieldLogger, sink StatusSink, snapshots storage.SeasonSnapshotStore) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Confirmations <= 0 {
		cfg.Confirmations = 1
	}
	if cfg.VRFPollInterval <= 0 {
		cfg.VRFPollInterval = 10 * time.Second
	}
	o := &Orchestrator{
		cfg:       cfg,
		log:       log,
		sink:      sink,
		snapshots: snapshots,
		now:       time.Now,
	}
	if o.sink == nil {
		o.sink = func(message string) { log.Info(message) }
	}
	return o
}

// Resolve drives the season toward Completed. Every iteration re-reads
// ledger state first; nothing observed earlier is trusted across steps.
func (o *Orchestrator) Resolve(ctx context.Context, session *ledger.Session, seasonID uint64) (*Result, error) {
	result := &Result{SeasonID: seasonID}

	var (
		lastStatus domain.SeasonStatus
		haveLast   bool
		lastTx     string
	)

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		season, err := o.readSeason(ctx, session, seasonID)
		if err != nil {
			return result, err
		}
		result.FinalStatus = season.Status
		result.Checkpoint = &domain.LifecycleCheckpoint{
			SeasonID: seasonID,
			Status:   season.Status,
		}

		if !haveLast || season.Status != lastStatus {
			o.sink(fmt.Sprintf("season %d status: %s", seasonID, season.Status))
			o.recordSnapshot(ctx, seasonID, season.Status, lastTx)
			lastStatus, haveLast = season.Status, true
		}

		switch season.Status {
		case domain.StatusCompleted:
			result.AlreadyCompleted = len(result.TxHashes) == 0
			if result.AlreadyCompleted {
				o.sink(fmt.Sprintf("season %d already completed, nothing to do", seasonID))
				observability.RecordResolution("already_completed")
			} else {
				observability.RecordResolution("completed")
			}
			return result, nil

		case domain.StatusNotStarted:
			return result, fmt.Errorf("%w: season %d has not started", ErrNotResolvable, seasonID)

		case domain.StatusActive:
			// Prerequisites are verified before the first write so a
			// misconfigured distributor never strands a half-resolved season.
			if err := o.checkPrerequisites(ctx, session, season, result.Checkpoint); err != nil {
				return result, err
			}
			txHash, err := o.submitAndWait(ctx, session, contracts.RaffleRequestSeasonEnd, seasonID, "request_season_end")
			if err != nil {
				return result, err
			}
			o.sink(fmt.Sprintf("season %d end requested (tx %s)", seasonID, txHash))
			lastTx = txHash
			result.TxHashes = append(result.TxHashes, txHash)

		case domain.StatusEndRequested, domain.StatusVRFPending:
			if err := o.awaitRandomness(ctx, session, seasonID, result.Checkpoint); err != nil {
				if errors.Is(err, ErrVRFPending) {
					observability.RecordResolution("vrf_pending")
				}
				return result, err
			}
			o.sink(fmt.Sprintf("season %d randomness fulfilled", seasonID))
			// Give the fulfillment callback one poll interval to move
			// the status forward before re-reading.
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(o.cfg.VRFPollInterval):
			}

		case domain.StatusDistributing:
			record, err := o.readDistributorRecord(ctx, session, season)
			if err != nil {
				return result, err
			}
			if record.Funded {
				// Idempotence guard: a previous run already funded this
				// season, so there is nothing left to write.
				o.sink(fmt.Sprintf("season %d distributor already funded", seasonID))
				observability.RecordResolution("already_funded")
				return result, nil
			}
			if err := o.checkPrerequisites(ctx, session, season, result.Checkpoint); err != nil {
				return result, err
			}

			txHash, err := o.submitAndWait(ctx, session, contracts.RaffleExtractPrizePool, seasonID, "extract_prize_pool")
			if err != nil {
				return result, err
			}
			o.sink(fmt.Sprintf("season %d prize pool extracted (tx %s)", seasonID, txHash))
			result.TxHashes = append(result.TxHashes, txHash)

			txHash, err = o.submitAndWait(ctx, session, contracts.RaffleFundDistributor, seasonID, "fund_distributor")
			if err != nil {
				return result, err
			}
			o.sink(fmt.Sprintf("season %d distributor funded (tx %s)", seasonID, txHash))
			lastTx = txHash
			result.TxHashes = append(result.TxHashes, txHash)

		default:
			return result, fmt.Errorf("%w: season %d has unknown status %d", ErrNotResolvable, seasonID, uint8(season.Status))
		}
	}
}

func (o *Orchestrator) readSeason(ctx context.Context, session *ledger.Session, seasonID uint64) (*domain.Season, error) {
	cv, err := session.Client.ReadContract(ctx, o.cfg.Raffle, contracts.RaffleGetSeasonDetails, new(big.Int).SetUint64(seasonID))
	if err != nil {
		return nil, fmt.Errorf("read season %d: %w", seasonID, err)
	}
	season, err := contracts.SeasonFromValue(seasonID, cv)
	if err != nil {
		return nil, fmt.Errorf("decode season %d: %w", seasonID, err)
	}
	return season, nil
}

func (o *Orchestrator) readDistributorRecord(ctx context.Context, session *ledger.Session, season *domain.Season) (*domain.DistributorSeasonRecord, error) {
	cv, err := session.Client.ReadContract(ctx, season.DistributorAddress, contracts.DistributorGetSeason, new(big.Int).SetUint64(season.ID))
	if err != nil {
		return nil, fmt.Errorf("read distributor record: %w", err)
	}
	record, err := contracts.DistributorRecordFromValue(cv)
	if err != nil {
		return nil, fmt.Errorf("decode distributor record: %w", err)
	}
	return record, nil
}

// checkPrerequisites verifies the distributor is configured and the
// raffle holds its funding role. Failure is fatal and precedes any write.
func (o *Orchestrator) checkPrerequisites(ctx context.Context, session *ledger.Session, season *domain.Season, cp *domain.LifecycleCheckpoint) error {
	if contracts.ZeroAddress(season.DistributorAddress) {
		return fmt.Errorf("%w: season %d has no distributor configured", ErrPrerequisite, season.ID)
	}
	cp.DistributorConfigured = true

	roleCV, err := session.Client.ReadContract(ctx, season.DistributorAddress, contracts.DistributorRaffleRole)
	if err != nil {
		return fmt.Errorf("read RAFFLE_ROLE: %w", err)
	}
	role, err := contracts.SingleBytes32(roleCV)
	if err != nil {
		return fmt.Errorf("decode RAFFLE_ROLE: %w", err)
	}

	grantedCV, err := session.Client.ReadContract(ctx, season.DistributorAddress, contracts.DistributorHasRole, role.String(), o.cfg.Raffle.String())
	if err != nil {
		return fmt.Errorf("read hasRole: %w", err)
	}
	granted, err := contracts.SingleBool(grantedCV)
	if err != nil {
		return fmt.Errorf("decode hasRole: %w", err)
	}
	if !granted {
		return fmt.Errorf("%w: raffle is missing the distributor funding role", ErrPrerequisite)
	}
	cp.RoleGranted = true
	return nil
}

// awaitRandomness polls VRF fulfillment until it lands or ctx ends.
func (o *Orchestrator) awaitRandomness(ctx context.Context, session *ledger.Session, seasonID uint64, cp *domain.LifecycleCheckpoint) error {
	return o.pollUntil(ctx, func() (bool, error) {
		observability.DefaultMetrics.VRFPolls.Inc()

		reqCV, err := session.Client.ReadContract(ctx, o.cfg.Raffle, contracts.RaffleVRFRequestForSeason, new(big.Int).SetUint64(seasonID))
		if err != nil {
			return false, fmt.Errorf("read vrf request: %w", err)
		}
		requestID, err := contracts.SingleBigInt(reqCV)
		if err != nil {
			return false, fmt.Errorf("decode vrf request: %w", err)
		}
		if requestID.Sign() == 0 {
			// End requested but the VRF request has not been made yet.
			return false, nil
		}
		cp.VRFRequestID = requestID

		fulfilledCV, err := session.Client.ReadContract(ctx, o.cfg.Raffle, contracts.RaffleIsRequestFulfilled, requestID)
		if err != nil {
			return false, fmt.Errorf("read vrf fulfillment: %w", err)
		}
		return contracts.SingleBool(fulfilledCV)
	})
}

// pollUntil runs cond immediately and then on every poll interval until
// it returns true, it fails, or ctx ends. Context expiry maps to
// ErrVRFPending: the caller retries the whole resolution later.
func (o *Orchestrator) pollUntil(ctx context.Context, cond func() (bool, error)) error {
	ticker := time.NewTicker(o.cfg.VRFPollInterval)
	defer ticker.Stop()

	for {
		done, err := cond()
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrVRFPending, ctx.Err())
		case <-ticker.C:
		}
	}
}

// submitAndWait encodes fn(seasonID), submits it, and blocks for the
// confirmation. There is no optimistic advancement: a write that cannot
// be confirmed fails the step.
func (o *Orchestrator) submitAndWait(ctx context.Context, session *ledger.Session, fn *abi.Entry, seasonID uint64, step string) (string, error) {
	data, err := fn.EncodeCallDataValues([]interface{}{new(big.Int).SetUint64(seasonID)})
	if err != nil {
		observability.RecordLifecycleStep(step, "error")
		return "", fmt.Errorf("encode %s call: %w", fn.Name, err)
	}
	tx := &ledger.TxConfig{From: session.Account, To: o.cfg.Raffle, Data: data}

	txHash, err := session.Client.Submit(ctx, tx)
	if err != nil {
		observability.RecordLifecycleStep(step, "error")
		return "", fmt.Errorf("%s: %s", fn.Name, revert.Classify(err, contracts.RaffleErrors))
	}

	receipt, err := session.Client.WaitForConfirmation(ctx, txHash, o.cfg.Confirmations)
	if err != nil {
		observability.RecordLifecycleStep(step, "error")
		return "", fmt.Errorf("%s confirmation (tx %s): %w", fn.Name, txHash, err)
	}
	if !receipt.Success {
		observability.RecordLifecycleStep(step, "reverted")
		reason := revert.Classify(&ledger.RevertError{Data: receipt.RevertReason}, contracts.RaffleErrors)
		return "", fmt.Errorf("%s reverted (tx %s): %s", fn.Name, txHash, reason)
	}

	observability.RecordLifecycleStep(step, "ok")
	return txHash, nil
}

// recordSnapshot appends an audit record, best-effort.
func (o *Orchestrator) recordSnapshot(ctx context.Context, seasonID uint64, status domain.SeasonStatus, txHash string) {
	if o.snapshots == nil {
		return
	}
	snap := &domain.SeasonSnapshot{
		SeasonID:   seasonID,
		Status:     status,
		TxHash:     txHash,
		ObservedAt: o.now().UnixMilli(),
	}
	if err := o.snapshots.Insert(ctx, snap); err != nil {
		o.log.WithError(err).WithField("season_id", seasonID).Warn("persist season snapshot")
	}
}
