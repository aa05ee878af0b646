package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/louisbranch/legacyvault/internal/platform/requestctx"
	"github.com/louisbranch/legacyvault/internal/vault/domain"
)

type eventPayload struct {
	ID                string         `json:"id"`
	UserID            string         `json:"user_id"`
	VerificationType  string         `json:"verification_type"`
	EvidenceData      map[string]any `json:"evidence_data,omitempty"`
	RequiredApprovals int            `json:"required_approvals"`
	CurrentApprovals  int            `json:"current_approvals"`
	Status            string         `json:"status"`
	InitiatedBy       string         `json:"initiated_by"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func toEventPayload(event domain.DeathVerificationEvent) eventPayload {
	return eventPayload{
		ID:                event.ID,
		UserID:            event.UserID,
		VerificationType:  string(event.Type),
		EvidenceData:      event.EvidenceData,
		RequiredApprovals: event.RequiredApprovals,
		CurrentApprovals:  event.CurrentApprovals,
		Status:            string(event.Status),
		InitiatedBy:       event.InitiatedBy,
		CreatedAt:         event.CreatedAt,
		UpdatedAt:         event.UpdatedAt,
	}
}

type approvalPayload struct {
	ID         string     `json:"id"`
	EventID    string     `json:"event_id"`
	ApproverID string     `json:"approver_id"`
	Status     string     `json:"status"`
	Comments   string     `json:"comments,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toApprovalPayload(approval domain.MultisigApproval) approvalPayload {
	return approvalPayload{
		ID:         approval.ID,
		EventID:    approval.EventID,
		ApproverID: approval.ApproverID,
		Status:     string(approval.Status),
		Comments:   approval.Comments,
		ApprovedAt: approval.ApprovedAt,
		CreatedAt:  approval.CreatedAt,
	}
}

type createEventRequest struct {
	UserID            string         `json:"user_id"`
	VerificationType  string         `json:"verification_type"`
	EvidenceData      map[string]any `json:"evidence_data"`
	RequiredApprovals int            `json:"required_approvals"`
}

func (h *Handler) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	event, err := h.engine.CreateEvent(r.Context(), domain.CreateEventInput{
		UserID:            req.UserID,
		Type:              domain.VerificationType(req.VerificationType),
		EvidenceData:      req.EvidenceData,
		RequiredApprovals: req.RequiredApprovals,
		InitiatedBy:       requestctx.UserIDFromContext(r.Context()),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventPayload(event))
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.engine.ListEvents(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	payload := make([]eventPayload, 0, len(events))
	for _, event := range events {
		payload = append(payload, toEventPayload(event))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *Handler) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.engine.GetEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventPayload(event))
}

type submitApprovalRequest struct {
	Status   string `json:"status"`
	Comments string `json:"comments"`
}

type approvalResultPayload struct {
	Approval          approvalPayload   `json:"approval"`
	Event             eventPayload      `json:"event"`
	TransferTriggered bool              `json:"transfer_triggered"`
	Transfers         []transferPayload `json:"transfers"`
}

func (h *Handler) handleSubmitApproval(w http.ResponseWriter, r *http.Request) {
	var req submitApprovalRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.engine.SubmitApproval(r.Context(), domain.SubmitApprovalInput{
		EventID:    chi.URLParam(r, "eventID"),
		ApproverID: requestctx.UserIDFromContext(r.Context()),
		Status:     domain.ApprovalStatus(req.Status),
		Comments:   req.Comments,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	payload := approvalResultPayload{
		Approval:          toApprovalPayload(result.Approval),
		Event:             toEventPayload(result.Event),
		TransferTriggered: result.Triggered,
		Transfers:         make([]transferPayload, 0, len(result.Transfers)),
	}
	for _, transfer := range result.Transfers {
		payload.Transfers = append(payload.Transfers, toTransferPayload(transfer))
	}
	writeJSON(w, http.StatusCreated, payload)
}

func (h *Handler) handleRetryTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.engine.GenerateTransfers(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	payload := make([]transferPayload, 0, len(transfers))
	for _, transfer := range transfers {
		payload = append(payload, toTransferPayload(transfer))
	}
	writeJSON(w, http.StatusOK, payload)
}
