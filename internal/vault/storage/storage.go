// Package storage defines the Ledger Store contracts the vault core depends
// on: durable per-row reads and writes for users, assets, beneficiaries,
// verification events, approvals and transfers.
package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/legacyvault/internal/vault/domain"
	"github.com/louisbranch/legacyvault/internal/vault/filter"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate indicates a unique constraint rejected the write.
	ErrDuplicate = errors.New("record already exists")
	// ErrConflict indicates transient row contention; callers may retry.
	ErrConflict = errors.New("storage conflict")
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
}

// AssetStore persists digital assets and their beneficiaries.
type AssetStore interface {
	CreateAsset(ctx context.Context, asset domain.DigitalAsset) error
	GetAsset(ctx context.Context, assetID string) (domain.DigitalAsset, error)
	PutAsset(ctx context.Context, asset domain.DigitalAsset) error
	ListAssetsByOwner(ctx context.Context, ownerID string) ([]domain.DigitalAsset, error)
	CreateBeneficiary(ctx context.Context, beneficiary domain.Beneficiary) error
	ListBeneficiariesByAsset(ctx context.Context, assetID string) ([]domain.Beneficiary, error)
}

// EventStore persists death verification events and their approvals. The
// tally primitives are the concurrency contract of the engine:
//
//   - IncrementApprovals bumps the counter inside the database so two
//     concurrent approvals can never lose an update, and returns the row as
//     of the bump.
//   - MarkVerified is a compare-and-swap on status; it reports true for
//     exactly one caller per event, which is what makes the transfer trigger
//     fire once.
type EventStore interface {
	CreateEvent(ctx context.Context, event domain.DeathVerificationEvent) error
	GetEvent(ctx context.Context, eventID string) (domain.DeathVerificationEvent, error)
	ListEvents(ctx context.Context) ([]domain.DeathVerificationEvent, error)
	InsertApproval(ctx context.Context, approval domain.MultisigApproval) error
	IncrementApprovals(ctx context.Context, eventID string) (domain.DeathVerificationEvent, error)
	MarkVerified(ctx context.Context, eventID string) (bool, error)
}

// TransferStore persists generated asset transfers.
type TransferStore interface {
	// CreateTransfers inserts the whole batch in one transaction; a failed
	// insert rolls back every row so an event never has a partial set.
	CreateTransfers(ctx context.Context, transfers []domain.AssetTransfer) error
	CountTransfersByEvent(ctx context.Context, eventID string) (int, error)
	// ListTransfersForUser returns transfers where the user is sender or
	// recipient, optionally narrowed by a parsed list filter.
	ListTransfersForUser(ctx context.Context, userID string, cond filter.Condition) ([]domain.AssetTransfer, error)
}
