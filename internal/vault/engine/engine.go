// Package engine runs the death verification workflow: opening events,
// tallying multisig approvals and generating asset transfers once quorum is
// reached.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"

	apperrors "github.com/louisbranch/legacyvault/internal/platform/errors"
	"github.com/louisbranch/legacyvault/internal/platform/id"
	"github.com/louisbranch/legacyvault/internal/platform/timeouts"
	"github.com/louisbranch/legacyvault/internal/vault/domain"
	"github.com/louisbranch/legacyvault/internal/vault/storage"
)

// Engine coordinates verification events against the ledger store.
type Engine struct {
	users     storage.UserStore
	assets    storage.AssetStore
	events    storage.EventStore
	transfers storage.TransferStore

	now    func() time.Time
	newID  func() (string, error)
	logger *log.Logger
}

// Option adjusts an Engine during construction.
type Option func(*Engine)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides record id generation, mainly for tests.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithLogger overrides the engine logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an Engine over the given stores.
func New(users storage.UserStore, assets storage.AssetStore, events storage.EventStore, transfers storage.TransferStore, opts ...Option) *Engine {
	e := &Engine{
		users:     users,
		assets:    assets,
		events:    events,
		transfers: transfers,
		now:       time.Now,
		newID:     id.NewID,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateEvent opens a pending verification event for a subject user.
func (e *Engine) CreateEvent(ctx context.Context, input domain.CreateEventInput) (domain.DeathVerificationEvent, error) {
	event, err := domain.NewDeathVerificationEvent(input, e.now, e.newID)
	if err != nil {
		return domain.DeathVerificationEvent{}, err
	}

	if _, err := e.users.GetUser(ctx, event.UserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.DeathVerificationEvent{}, apperrors.New(apperrors.CodeNotFound,
				fmt.Sprintf("subject user %s not found", event.UserID))
		}
		return domain.DeathVerificationEvent{}, fmt.Errorf("load subject user: %w", err)
	}

	if err := e.events.CreateEvent(ctx, event); err != nil {
		return domain.DeathVerificationEvent{}, fmt.Errorf("create event: %w", err)
	}
	e.logger.Printf("opened verification event %s for user %s (required approvals %d)",
		event.ID, event.UserID, event.RequiredApprovals)
	return event, nil
}

// GetEvent returns one verification event by id.
func (e *Engine) GetEvent(ctx context.Context, eventID string) (domain.DeathVerificationEvent, error) {
	event, err := e.events.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.DeathVerificationEvent{}, apperrors.New(apperrors.CodeNotFound,
				fmt.Sprintf("verification event %s not found", eventID))
		}
		return domain.DeathVerificationEvent{}, fmt.Errorf("load event: %w", err)
	}
	return event, nil
}

// ListEvents returns every verification event, oldest first.
func (e *Engine) ListEvents(ctx context.Context) ([]domain.DeathVerificationEvent, error) {
	return e.events.ListEvents(ctx)
}

// ApprovalResult reports the outcome of one submitted approval: the recorded
// approval, the event as of the tally, and any transfers generated when this
// approval met quorum.
type ApprovalResult struct {
	Approval  domain.MultisigApproval
	Event     domain.DeathVerificationEvent
	Triggered bool
	Transfers []domain.AssetTransfer
}

// SubmitApproval records an approval verdict against a pending event. An
// approved verdict bumps the tally; the approval that reaches quorum flips
// the event to verified and generates the transfer batch. A rejected verdict
// is recorded without touching the tally.
//
// The tally and the transfer batch are separate transactions. If the batch
// fails the event stays verified with zero transfers and GenerateTransfers
// can be rerun to complete it.
func (e *Engine) SubmitApproval(ctx context.Context, input domain.SubmitApprovalInput) (ApprovalResult, error) {
	event, err := e.GetEvent(ctx, input.EventID)
	if err != nil {
		return ApprovalResult{}, err
	}

	approval, err := domain.NewMultisigApproval(input, e.now, e.newID)
	if err != nil {
		return ApprovalResult{}, err
	}

	if err := e.events.InsertApproval(ctx, approval); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicate):
			return ApprovalResult{}, apperrors.New(apperrors.CodeApprovalDuplicate,
				fmt.Sprintf("approver %s already voted on event %s", approval.ApproverID, approval.EventID))
		case errors.Is(err, storage.ErrNotFound):
			return ApprovalResult{}, apperrors.New(apperrors.CodeNotFound,
				fmt.Sprintf("verification event %s not found", approval.EventID))
		default:
			return ApprovalResult{}, fmt.Errorf("insert approval: %w", err)
		}
	}

	result := ApprovalResult{Approval: approval, Event: event}
	if approval.Status != domain.ApprovalStatusApproved {
		e.logger.Printf("recorded %s verdict by %s on event %s", approval.Status, approval.ApproverID, approval.EventID)
		return result, nil
	}

	updated, err := retryConflicts(ctx, func() (domain.DeathVerificationEvent, error) {
		return e.events.IncrementApprovals(ctx, approval.EventID)
	})
	if err != nil {
		return ApprovalResult{}, fmt.Errorf("tally approval: %w", err)
	}
	result.Event = updated
	e.logger.Printf("event %s tally %d/%d", updated.ID, updated.CurrentApprovals, updated.RequiredApprovals)

	if !domain.ShouldTriggerTransfer(updated.CurrentApprovals, updated.RequiredApprovals, updated.Status) {
		return result, nil
	}

	won, err := retryConflicts(ctx, func() (bool, error) {
		return e.events.MarkVerified(ctx, approval.EventID)
	})
	if err != nil {
		return ApprovalResult{}, fmt.Errorf("mark verified: %w", err)
	}
	if !won {
		// Another approval already flipped the event; its caller owns
		// transfer generation.
		return result, nil
	}

	result.Event.Status = domain.EventStatusVerified
	result.Triggered = true
	e.logger.Printf("event %s verified, generating transfers", updated.ID)

	transfers, err := e.GenerateTransfers(ctx, approval.EventID)
	if err != nil {
		// The event stays verified; an operator reruns generation.
		e.logger.Printf("transfer generation for event %s failed: %v", approval.EventID, err)
		return result, nil
	}
	result.Transfers = transfers
	return result, nil
}

// GenerateTransfers builds pending transfers for every (active asset,
// beneficiary) pair of a verified event's subject. It is a no-op when the
// event is not verified or already has transfers, which makes it safe to
// rerun after a failed batch.
func (e *Engine) GenerateTransfers(ctx context.Context, eventID string) ([]domain.AssetTransfer, error) {
	event, err := e.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status != domain.EventStatusVerified {
		return nil, nil
	}

	existing, err := e.transfers.CountTransfersByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("count transfers: %w", err)
	}
	if existing > 0 {
		return nil, nil
	}

	assets, err := e.assets.ListAssetsByOwner(ctx, event.UserID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}

	var batch []domain.AssetTransfer
	for _, asset := range assets {
		if !asset.Active {
			continue
		}
		beneficiaries, err := e.assets.ListBeneficiariesByAsset(ctx, asset.ID)
		if err != nil {
			return nil, fmt.Errorf("list beneficiaries for asset %s: %w", asset.ID, err)
		}
		for _, beneficiary := range beneficiaries {
			transfer, err := domain.NewAssetTransfer(asset, beneficiary, event, e.now, e.newID)
			if err != nil {
				return nil, err
			}
			batch = append(batch, transfer)
		}
	}
	if len(batch) == 0 {
		e.logger.Printf("event %s verified with no transferable assets", eventID)
		return nil, nil
	}

	if err := e.transfers.CreateTransfers(ctx, batch); err != nil {
		// A duplicate row means a concurrent generation already persisted
		// this event's batch; the unique recipient index makes the rerun
		// guard race-free.
		if errors.Is(err, storage.ErrDuplicate) {
			e.logger.Printf("transfers for event %s already generated", eventID)
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.CodeTransferBatchFailed,
			fmt.Sprintf("persist %d transfers for event %s", len(batch), eventID), err)
	}
	e.logger.Printf("generated %d transfers for event %s", len(batch), eventID)
	return batch, nil
}

// retryConflicts retries a store operation while it reports transient row
// contention, up to the approval retry budget. A budget exhausted on
// contention surfaces as a concurrency conflict.
func retryConflicts[T any](ctx context.Context, op func() (T, error)) (T, error) {
	value, err := backoff.Retry(ctx, func() (T, error) {
		value, err := op()
		if err != nil && !errors.Is(err, storage.ErrConflict) {
			return value, backoff.Permanent(err)
		}
		return value, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(timeouts.ApprovalRetry),
	)
	if err != nil && errors.Is(err, storage.ErrConflict) {
		return value, apperrors.Wrap(apperrors.CodeConcurrencyConflict, "storage contention persisted", err)
	}
	return value, err
}
