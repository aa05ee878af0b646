package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/louisbranch/legacyvault/internal/platform/requestctx"
	"github.com/louisbranch/legacyvault/internal/vault/domain"
	"github.com/louisbranch/legacyvault/internal/vault/filter"
)

type transferMetadataPayload struct {
	SharePercentage float64 `json:"share_percentage"`
	AssetType       string  `json:"asset_type"`
}

type transferPayload struct {
	ID             string                  `json:"id"`
	AssetID        string                  `json:"asset_id"`
	FromUserID     string                  `json:"from_user_id"`
	ToUserID       string                  `json:"to_user_id"`
	DeathEventID   string                  `json:"death_event_id"`
	TransferStatus string                  `json:"transfer_status"`
	Metadata       transferMetadataPayload `json:"metadata"`
	TransferDate   time.Time               `json:"transfer_date"`
	CreatedAt      time.Time               `json:"created_at"`
}

func toTransferPayload(transfer domain.AssetTransfer) transferPayload {
	return transferPayload{
		ID:             transfer.ID,
		AssetID:        transfer.AssetID,
		FromUserID:     transfer.FromUserID,
		ToUserID:       transfer.ToUserID,
		DeathEventID:   transfer.DeathEventID,
		TransferStatus: string(transfer.Status),
		Metadata: transferMetadataPayload{
			SharePercentage: transfer.Metadata.SharePercentage,
			AssetType:       string(transfer.Metadata.AssetType),
		},
		TransferDate: transfer.TransferDate,
		CreatedAt:    transfer.CreatedAt,
	}
}

func (h *Handler) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	cond := filter.Condition{}
	if raw := r.URL.Query().Get("filter"); raw != "" {
		parsed, err := filter.ParseTransferFilter(raw)
		if err != nil {
			h.writeError(w, err)
			return
		}
		cond = parsed
	}

	transfers, err := h.transfers.ListTransfersForUser(r.Context(), requestctx.UserIDFromContext(r.Context()), cond)
	if err != nil {
		h.writeError(w, fmt.Errorf("list transfers: %w", err))
		return
	}

	payload := make([]transferPayload, 0, len(transfers))
	for _, transfer := range transfers {
		payload = append(payload, toTransferPayload(transfer))
	}
	writeJSON(w, http.StatusOK, payload)
}
