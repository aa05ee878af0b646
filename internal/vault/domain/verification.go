package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/legacyvault/internal/platform/errors"
	"github.com/louisbranch/legacyvault/internal/platform/id"
)

// VerificationType classifies the evidence backing a death claim.
type VerificationType string

const (
	VerificationTypeDeathCertificate  VerificationType = "death_certificate"
	VerificationTypeMultipleWitnesses VerificationType = "multiple_witnesses"
	VerificationTypeLegalDocument     VerificationType = "legal_document"
)

// ParseVerificationType validates a raw verification type value.
func ParseVerificationType(value string) (VerificationType, error) {
	switch VerificationType(strings.TrimSpace(value)) {
	case VerificationTypeDeathCertificate:
		return VerificationTypeDeathCertificate, nil
	case VerificationTypeMultipleWitnesses:
		return VerificationTypeMultipleWitnesses, nil
	case VerificationTypeLegalDocument:
		return VerificationTypeLegalDocument, nil
	default:
		return "", apperrors.WithMetadata(apperrors.CodeEventInvalidVerificationType,
			fmt.Sprintf("unknown verification type %q", value),
			map[string]string{"verification_type": value})
	}
}

// EventStatus is the lifecycle state of a death verification event.
//
// The engine only ever drives pending -> verified. Rejected and
// requires_more_evidence are valid stored values with no automatic transition
// into or out of them; they stay reachable through administrative mutation
// only.
type EventStatus string

const (
	EventStatusPending              EventStatus = "pending"
	EventStatusVerified             EventStatus = "verified"
	EventStatusRejected             EventStatus = "rejected"
	EventStatusRequiresMoreEvidence EventStatus = "requires_more_evidence"
)

// DeathVerificationEvent is a claim that UserID has died, awaiting quorum.
type DeathVerificationEvent struct {
	ID                string
	UserID            string
	Type              VerificationType
	EvidenceData      map[string]any
	RequiredApprovals int
	CurrentApprovals  int
	Status            EventStatus
	InitiatedBy       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CreateEventInput describes the data needed to open a verification event.
// RequiredApprovals of zero means unspecified and defaults to one.
type CreateEventInput struct {
	UserID            string
	Type              VerificationType
	EvidenceData      map[string]any
	RequiredApprovals int
	InitiatedBy       string
}

// NewDeathVerificationEvent creates a pending event with zero approvals.
func NewDeathVerificationEvent(input CreateEventInput, now func() time.Time, idGenerator func() (string, error)) (DeathVerificationEvent, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return DeathVerificationEvent{}, apperrors.New(apperrors.CodeEventSubjectMissing, "subject user is required")
	}
	initiatedBy := strings.TrimSpace(input.InitiatedBy)
	if initiatedBy == "" {
		return DeathVerificationEvent{}, apperrors.New(apperrors.CodeEventSubjectMissing, "initiator is required")
	}
	verificationType, err := ParseVerificationType(string(input.Type))
	if err != nil {
		return DeathVerificationEvent{}, err
	}

	required := input.RequiredApprovals
	if required == 0 {
		required = 1
	}
	if required < 1 {
		return DeathVerificationEvent{}, apperrors.New(apperrors.CodeEventInvalidRequiredApprovals,
			fmt.Sprintf("required approvals must be at least 1, got %d", input.RequiredApprovals))
	}

	eventID, err := idGenerator()
	if err != nil {
		return DeathVerificationEvent{}, fmt.Errorf("generate event id: %w", err)
	}

	createdAt := now().UTC()
	return DeathVerificationEvent{
		ID:                eventID,
		UserID:            userID,
		Type:              verificationType,
		EvidenceData:      input.EvidenceData,
		RequiredApprovals: required,
		CurrentApprovals:  0,
		Status:            EventStatusPending,
		InitiatedBy:       initiatedBy,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}, nil
}
