package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/louisbranch/legacyvault/internal/platform/errors"
	"github.com/louisbranch/legacyvault/internal/platform/requestctx"
	"github.com/louisbranch/legacyvault/internal/vault/domain"
	"github.com/louisbranch/legacyvault/internal/vault/storage"
)

type assetPayload struct {
	ID                 string         `json:"id"`
	OwnerID            string         `json:"owner_id"`
	AssetType          string         `json:"asset_type"`
	Name               string         `json:"name"`
	Description        string         `json:"description,omitempty"`
	AccessInstructions map[string]any `json:"access_instructions,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	IsActive           bool           `json:"is_active"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func toAssetPayload(asset domain.DigitalAsset) assetPayload {
	return assetPayload{
		ID:                 asset.ID,
		OwnerID:            asset.OwnerID,
		AssetType:          string(asset.Type),
		Name:               asset.Name,
		Description:        asset.Description,
		AccessInstructions: asset.AccessInstructions,
		Metadata:           asset.Metadata,
		IsActive:           asset.Active,
		CreatedAt:          asset.CreatedAt,
		UpdatedAt:          asset.UpdatedAt,
	}
}

type beneficiaryPayload struct {
	ID               string    `json:"id"`
	AssetID          string    `json:"asset_id"`
	UserID           string    `json:"user_id"`
	SharePercentage  float64   `json:"share_percentage"`
	ApprovalRequired bool      `json:"approval_required"`
	HasApproved      bool      `json:"has_approved"`
	CreatedAt        time.Time `json:"created_at"`
}

func toBeneficiaryPayload(beneficiary domain.Beneficiary) beneficiaryPayload {
	return beneficiaryPayload{
		ID:               beneficiary.ID,
		AssetID:          beneficiary.AssetID,
		UserID:           beneficiary.UserID,
		SharePercentage:  beneficiary.SharePercentage(),
		ApprovalRequired: beneficiary.ApprovalRequired,
		HasApproved:      beneficiary.HasApproved,
		CreatedAt:        beneficiary.CreatedAt,
	}
}

type createAssetRequest struct {
	AssetType          string         `json:"asset_type"`
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	AccessInstructions map[string]any `json:"access_instructions"`
	Metadata           map[string]any `json:"metadata"`
}

func (h *Handler) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	asset, err := domain.NewDigitalAsset(domain.CreateAssetInput{
		OwnerID:            requestctx.UserIDFromContext(r.Context()),
		Type:               domain.AssetType(req.AssetType),
		Name:               req.Name,
		Description:        req.Description,
		AccessInstructions: req.AccessInstructions,
		Metadata:           req.Metadata,
	}, h.now, h.newID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.assets.CreateAsset(r.Context(), asset); err != nil {
		h.writeError(w, fmt.Errorf("create asset: %w", err))
		return
	}
	writeJSON(w, http.StatusCreated, toAssetPayload(asset))
}

func (h *Handler) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.assets.ListAssetsByOwner(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, fmt.Errorf("list assets: %w", err))
		return
	}

	payload := make([]assetPayload, 0, len(assets))
	for _, asset := range assets {
		payload = append(payload, toAssetPayload(asset))
	}
	writeJSON(w, http.StatusOK, payload)
}

// ownedAsset loads an asset and hides it from everyone but its owner.
func (h *Handler) ownedAsset(r *http.Request, assetID string) (domain.DigitalAsset, error) {
	asset, err := h.assets.GetAsset(r.Context(), assetID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.DigitalAsset{}, apperrors.New(apperrors.CodeNotFound,
				fmt.Sprintf("asset %s not found", assetID))
		}
		return domain.DigitalAsset{}, fmt.Errorf("load asset: %w", err)
	}
	if asset.OwnerID != requestctx.UserIDFromContext(r.Context()) {
		return domain.DigitalAsset{}, apperrors.New(apperrors.CodeNotFound,
			fmt.Sprintf("asset %s not found", assetID))
	}
	return asset, nil
}

type assetDetailPayload struct {
	assetPayload
	Beneficiaries []beneficiaryPayload `json:"beneficiaries"`
}

func (h *Handler) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.ownedAsset(r, chi.URLParam(r, "assetID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	beneficiaries, err := h.assets.ListBeneficiariesByAsset(r.Context(), asset.ID)
	if err != nil {
		h.writeError(w, fmt.Errorf("list beneficiaries: %w", err))
		return
	}

	detail := assetDetailPayload{
		assetPayload:  toAssetPayload(asset),
		Beneficiaries: make([]beneficiaryPayload, 0, len(beneficiaries)),
	}
	for _, beneficiary := range beneficiaries {
		detail.Beneficiaries = append(detail.Beneficiaries, toBeneficiaryPayload(beneficiary))
	}
	writeJSON(w, http.StatusOK, detail)
}

type updateAssetRequest struct {
	Name               *string        `json:"name"`
	Description        *string        `json:"description"`
	AssetType          *string        `json:"asset_type"`
	AccessInstructions map[string]any `json:"access_instructions"`
	Metadata           map[string]any `json:"metadata"`
	IsActive           *bool          `json:"is_active"`
}

func (h *Handler) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	var req updateAssetRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	asset, err := h.ownedAsset(r, chi.URLParam(r, "assetID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	input := domain.UpdateAssetInput{
		Name:               req.Name,
		Description:        req.Description,
		AccessInstructions: req.AccessInstructions,
		Metadata:           req.Metadata,
		Active:             req.IsActive,
	}
	if req.AssetType != nil {
		assetType := domain.AssetType(*req.AssetType)
		input.Type = &assetType
	}

	updated, err := asset.ApplyUpdate(input, h.now)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.assets.PutAsset(r.Context(), updated); err != nil {
		h.writeError(w, fmt.Errorf("update asset: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, toAssetPayload(updated))
}

type addBeneficiaryRequest struct {
	UserID           string  `json:"user_id"`
	SharePercentage  float64 `json:"share_percentage"`
	ApprovalRequired bool    `json:"approval_required"`
}

func (h *Handler) handleAddBeneficiary(w http.ResponseWriter, r *http.Request) {
	var req addBeneficiaryRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	asset, err := h.ownedAsset(r, chi.URLParam(r, "assetID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	if _, err := h.users.GetUser(r.Context(), req.UserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, apperrors.New(apperrors.CodeBeneficiaryUserMissing,
				fmt.Sprintf("beneficiary user %s not found", req.UserID)))
			return
		}
		h.writeError(w, fmt.Errorf("load beneficiary user: %w", err))
		return
	}

	beneficiary, err := domain.NewBeneficiary(domain.CreateBeneficiaryInput{
		AssetID:          asset.ID,
		UserID:           req.UserID,
		SharePercentage:  req.SharePercentage,
		ApprovalRequired: req.ApprovalRequired,
	}, h.now, h.newID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	existing, err := h.assets.ListBeneficiariesByAsset(r.Context(), asset.ID)
	if err != nil {
		h.writeError(w, fmt.Errorf("list beneficiaries: %w", err))
		return
	}
	total := 0
	for _, row := range existing {
		total += row.ShareHundredths
	}
	if err := domain.ValidateShareSum(total, beneficiary.ShareHundredths); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.assets.CreateBeneficiary(r.Context(), beneficiary); err != nil {
		h.writeError(w, fmt.Errorf("create beneficiary: %w", err))
		return
	}
	writeJSON(w, http.StatusCreated, toBeneficiaryPayload(beneficiary))
}
