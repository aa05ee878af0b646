package domain

import (
	"fmt"
	"time"

	"github.com/louisbranch/legacyvault/internal/platform/id"
)

// TransferStatus is the lifecycle state of a generated transfer record.
// The engine creates transfers pending and never advances them; completion
// is a downstream concern.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
)

// TransferMetadata is the snapshot captured at generation time so downstream
// consumers never need to re-join beneficiary or asset tables.
type TransferMetadata struct {
	SharePercentage float64   `json:"share_percentage"`
	AssetType       AssetType `json:"asset_type"`
}

// AssetTransfer is one generated ownership transfer: one row per
// (asset, beneficiary) pair of a verified event.
type AssetTransfer struct {
	ID           string
	AssetID      string
	FromUserID   string
	ToUserID     string
	DeathEventID string
	Status       TransferStatus
	Metadata     TransferMetadata
	TransferDate time.Time
	CreatedAt    time.Time
}

// NewAssetTransfer derives a pending transfer for one beneficiary of one
// asset owned by the deceased.
func NewAssetTransfer(asset DigitalAsset, beneficiary Beneficiary, event DeathVerificationEvent, now func() time.Time, idGenerator func() (string, error)) (AssetTransfer, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	transferID, err := idGenerator()
	if err != nil {
		return AssetTransfer{}, fmt.Errorf("generate transfer id: %w", err)
	}

	createdAt := now().UTC()
	return AssetTransfer{
		ID:           transferID,
		AssetID:      asset.ID,
		FromUserID:   event.UserID,
		ToUserID:     beneficiary.UserID,
		DeathEventID: event.ID,
		Status:       TransferStatusPending,
		Metadata: TransferMetadata{
			SharePercentage: beneficiary.SharePercentage(),
			AssetType:       asset.Type,
		},
		TransferDate: createdAt,
		CreatedAt:    createdAt,
	}, nil
}
