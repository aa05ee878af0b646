package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/legacyvault/internal/platform/errors"
	"github.com/louisbranch/legacyvault/internal/platform/id"
)

// AssetType classifies a digital asset.
type AssetType string

const (
	AssetTypeCryptoWallet AssetType = "crypto_wallet"
	AssetTypeSocialMedia  AssetType = "social_media"
	AssetTypeCloudStorage AssetType = "cloud_storage"
	AssetTypeDocuments    AssetType = "documents"
	AssetTypeOther        AssetType = "other"
)

// ParseAssetType validates a raw asset type value.
func ParseAssetType(value string) (AssetType, error) {
	switch AssetType(strings.TrimSpace(value)) {
	case AssetTypeCryptoWallet:
		return AssetTypeCryptoWallet, nil
	case AssetTypeSocialMedia:
		return AssetTypeSocialMedia, nil
	case AssetTypeCloudStorage:
		return AssetTypeCloudStorage, nil
	case AssetTypeDocuments:
		return AssetTypeDocuments, nil
	case AssetTypeOther:
		return AssetTypeOther, nil
	default:
		return "", apperrors.WithMetadata(apperrors.CodeAssetInvalidType,
			fmt.Sprintf("unknown asset type %q", value),
			map[string]string{"asset_type": value})
	}
}

// DigitalAsset is a single digital holding registered by its owner. Assets are
// never deleted; deactivation flips Active off.
type DigitalAsset struct {
	ID                 string
	OwnerID            string
	Type               AssetType
	Name               string
	Description        string
	AccessInstructions map[string]any
	Metadata           map[string]any
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CreateAssetInput describes the data needed to register an asset.
type CreateAssetInput struct {
	OwnerID            string
	Type               AssetType
	Name               string
	Description        string
	AccessInstructions map[string]any
	Metadata           map[string]any
}

// NewDigitalAsset creates an active asset with a generated ID and timestamps.
func NewDigitalAsset(input CreateAssetInput, now func() time.Time, idGenerator func() (string, error)) (DigitalAsset, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		return DigitalAsset{}, apperrors.New(apperrors.CodeAssetOwnerMissing, "asset owner is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return DigitalAsset{}, apperrors.New(apperrors.CodeAssetNameEmpty, "asset name is required")
	}
	assetType, err := ParseAssetType(string(input.Type))
	if err != nil {
		return DigitalAsset{}, err
	}

	assetID, err := idGenerator()
	if err != nil {
		return DigitalAsset{}, fmt.Errorf("generate asset id: %w", err)
	}

	createdAt := now().UTC()
	return DigitalAsset{
		ID:                 assetID,
		OwnerID:            ownerID,
		Type:               assetType,
		Name:               name,
		Description:        strings.TrimSpace(input.Description),
		AccessInstructions: input.AccessInstructions,
		Metadata:           input.Metadata,
		Active:             true,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}, nil
}

// UpdateAssetInput carries a partial asset mutation; nil fields are untouched.
type UpdateAssetInput struct {
	Name               *string
	Description        *string
	Type               *AssetType
	AccessInstructions map[string]any
	Metadata           map[string]any
	Active             *bool
}

// ApplyUpdate returns a copy of the asset with the patch applied and the
// update timestamp advanced.
func (a DigitalAsset) ApplyUpdate(input UpdateAssetInput, now func() time.Time) (DigitalAsset, error) {
	if now == nil {
		now = time.Now
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return DigitalAsset{}, apperrors.New(apperrors.CodeAssetNameEmpty, "asset name is required")
		}
		a.Name = name
	}
	if input.Description != nil {
		a.Description = strings.TrimSpace(*input.Description)
	}
	if input.Type != nil {
		assetType, err := ParseAssetType(string(*input.Type))
		if err != nil {
			return DigitalAsset{}, err
		}
		a.Type = assetType
	}
	if input.AccessInstructions != nil {
		a.AccessInstructions = input.AccessInstructions
	}
	if input.Metadata != nil {
		a.Metadata = input.Metadata
	}
	if input.Active != nil {
		a.Active = *input.Active
	}
	a.UpdatedAt = now().UTC()
	return a, nil
}
