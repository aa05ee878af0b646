package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/legacyvault/internal/platform/errors"
	"github.com/louisbranch/legacyvault/internal/platform/id"
)

// ApprovalStatus is the verdict an approver attaches to an event.
type ApprovalStatus string

const (
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
	ApprovalStatusPending  ApprovalStatus = "pending"
)

// ParseApprovalStatus validates a raw approval status value.
func ParseApprovalStatus(value string) (ApprovalStatus, error) {
	switch ApprovalStatus(strings.TrimSpace(value)) {
	case ApprovalStatusApproved:
		return ApprovalStatusApproved, nil
	case ApprovalStatusRejected:
		return ApprovalStatusRejected, nil
	case ApprovalStatusPending:
		return ApprovalStatusPending, nil
	default:
		return "", apperrors.WithMetadata(apperrors.CodeApprovalInvalidStatus,
			fmt.Sprintf("unknown approval status %q", value),
			map[string]string{"approval_status": value})
	}
}

// MultisigApproval is one approver's verdict on one event. At most one
// counted approval exists per (event, approver) pair.
type MultisigApproval struct {
	ID         string
	EventID    string
	ApproverID string
	Status     ApprovalStatus
	Comments   string
	ApprovedAt *time.Time
	CreatedAt  time.Time
}

// SubmitApprovalInput describes the data needed to record an approval.
type SubmitApprovalInput struct {
	EventID    string
	ApproverID string
	Status     ApprovalStatus
	Comments   string
}

// NewMultisigApproval creates an approval record; ApprovedAt is stamped only
// for an approved verdict.
func NewMultisigApproval(input SubmitApprovalInput, now func() time.Time, idGenerator func() (string, error)) (MultisigApproval, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	eventID := strings.TrimSpace(input.EventID)
	if eventID == "" {
		return MultisigApproval{}, apperrors.New(apperrors.CodeNotFound, "event id is required")
	}
	approverID := strings.TrimSpace(input.ApproverID)
	if approverID == "" {
		return MultisigApproval{}, apperrors.New(apperrors.CodeApprovalInvalidStatus, "approver is required")
	}
	status, err := ParseApprovalStatus(string(input.Status))
	if err != nil {
		return MultisigApproval{}, err
	}

	approvalID, err := idGenerator()
	if err != nil {
		return MultisigApproval{}, fmt.Errorf("generate approval id: %w", err)
	}

	createdAt := now().UTC()
	approval := MultisigApproval{
		ID:         approvalID,
		EventID:    eventID,
		ApproverID: approverID,
		Status:     status,
		Comments:   strings.TrimSpace(input.Comments),
		CreatedAt:  createdAt,
	}
	if status == ApprovalStatusApproved {
		approvedAt := createdAt
		approval.ApprovedAt = &approvedAt
	}
	return approval, nil
}
