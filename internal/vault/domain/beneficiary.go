package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "github.com/louisbranch/legacyvault/internal/platform/errors"
	"github.com/louisbranch/legacyvault/internal/platform/id"
)

// ShareCapHundredths is the maximum combined share across one asset's
// beneficiaries: 100%, stored as hundredths of a percent.
const ShareCapHundredths = 100 * 100

// Beneficiary binds one asset to one recipient with a share of it. The share
// is kept as an integer count of hundredths of a percent so two-decimal
// precision survives storage round trips.
type Beneficiary struct {
	ID               string
	AssetID          string
	UserID           string
	ShareHundredths  int
	ApprovalRequired bool
	HasApproved      bool
	CreatedAt        time.Time
}

// SharePercentage reports the share as a percentage value.
func (b Beneficiary) SharePercentage() float64 {
	return float64(b.ShareHundredths) / 100
}

// ShareFromPercentage converts a percentage into hundredths, rejecting values
// outside [0, 100] or with more than two decimal places.
func ShareFromPercentage(value float64) (int, error) {
	if value < 0 || value > 100 || math.IsNaN(value) {
		return 0, apperrors.New(apperrors.CodeBeneficiaryInvalidShare,
			fmt.Sprintf("share percentage %v is outside [0, 100]", value))
	}
	scaled := value * 100
	hundredths := math.Round(scaled)
	if math.Abs(scaled-hundredths) > 1e-6 {
		return 0, apperrors.New(apperrors.CodeBeneficiaryInvalidShare,
			fmt.Sprintf("share percentage %v exceeds two decimal places", value))
	}
	return int(hundredths), nil
}

// ValidateShareSum checks that adding a share keeps an asset's combined
// beneficiary share at or under 100%.
func ValidateShareSum(existingHundredths, addingHundredths int) error {
	if existingHundredths+addingHundredths > ShareCapHundredths {
		return apperrors.WithMetadata(apperrors.CodeBeneficiaryShareOverCap,
			"combined beneficiary share would exceed 100%",
			map[string]string{
				"existing_share": fmt.Sprintf("%.2f", float64(existingHundredths)/100),
				"adding_share":   fmt.Sprintf("%.2f", float64(addingHundredths)/100),
			})
	}
	return nil
}

// CreateBeneficiaryInput describes the data needed to add a beneficiary.
type CreateBeneficiaryInput struct {
	AssetID          string
	UserID           string
	SharePercentage  float64
	ApprovalRequired bool
}

// NewBeneficiary creates a beneficiary with a generated ID. The share-sum cap
// across the asset is the caller's check via ValidateShareSum, since it needs
// the asset's existing rows.
func NewBeneficiary(input CreateBeneficiaryInput, now func() time.Time, idGenerator func() (string, error)) (Beneficiary, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	assetID := strings.TrimSpace(input.AssetID)
	if assetID == "" {
		return Beneficiary{}, apperrors.New(apperrors.CodeNotFound, "asset id is required")
	}
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return Beneficiary{}, apperrors.New(apperrors.CodeBeneficiaryUserMissing, "beneficiary user is required")
	}
	hundredths, err := ShareFromPercentage(input.SharePercentage)
	if err != nil {
		return Beneficiary{}, err
	}

	beneficiaryID, err := idGenerator()
	if err != nil {
		return Beneficiary{}, fmt.Errorf("generate beneficiary id: %w", err)
	}

	return Beneficiary{
		ID:               beneficiaryID,
		AssetID:          assetID,
		UserID:           userID,
		ShareHundredths:  hundredths,
		ApprovalRequired: input.ApprovalRequired,
		HasApproved:      false,
		CreatedAt:        now().UTC(),
	}, nil
}
