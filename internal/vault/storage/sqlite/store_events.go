package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/legacyvault/internal/vault/domain"
	"github.com/louisbranch/legacyvault/internal/vault/storage"
)

const eventColumns = `id, user_id, verification_type, evidence_data, required_approvals, current_approvals, status, initiated_by, created_at, updated_at`

// CreateEvent inserts a death verification event.
func (s *Store) CreateEvent(ctx context.Context, event domain.DeathVerificationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	evidence, err := encodeJSON(event.EvidenceData)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO death_verification_events (`+eventColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.UserID,
		string(event.Type),
		evidence,
		event.RequiredApprovals,
		event.CurrentApprovals,
		string(event.Status),
		event.InitiatedBy,
		toMillis(event.CreatedAt),
		toMillis(event.UpdatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrDuplicate
		}
		if isBusyError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetEvent returns one death verification event by id.
func (s *Store) GetEvent(ctx context.Context, eventID string) (domain.DeathVerificationEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.DeathVerificationEvent{}, err
	}
	if err := s.ready(); err != nil {
		return domain.DeathVerificationEvent{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+eventColumns+` FROM death_verification_events WHERE id = ?`,
		strings.TrimSpace(eventID),
	)
	event, err := scanEvent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DeathVerificationEvent{}, storage.ErrNotFound
		}
		return domain.DeathVerificationEvent{}, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// ListEvents returns every death verification event, oldest first.
func (s *Store) ListEvents(ctx context.Context) ([]domain.DeathVerificationEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+eventColumns+` FROM death_verification_events ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.DeathVerificationEvent
	for rows.Next() {
		event, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}

// InsertApproval records one approver's verdict. The unique index on
// (event_id, approver_id) turns a repeat vote into ErrDuplicate, which is the
// guard that stops a single approver reaching quorum alone.
func (s *Store) InsertApproval(ctx context.Context, approval domain.MultisigApproval) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	var approvedAt any
	if approval.ApprovedAt != nil {
		approvedAt = toMillis(*approval.ApprovedAt)
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO multisig_approvals (id, event_id, approver_id, approval_status, comments, approved_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		approval.ID,
		approval.EventID,
		approval.ApproverID,
		string(approval.Status),
		approval.Comments,
		approvedAt,
		toMillis(approval.CreatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrDuplicate
		}
		if isBusyError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

// IncrementApprovals bumps the approval tally inside the database and returns
// the event as of the bump. Running the increment in SQL rather than
// read-modify-write is what rules out the lost-update race between two
// concurrent approvals.
func (s *Store) IncrementApprovals(ctx context.Context, eventID string) (domain.DeathVerificationEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.DeathVerificationEvent{}, err
	}
	if err := s.ready(); err != nil {
		return domain.DeathVerificationEvent{}, err
	}
	eventID = strings.TrimSpace(eventID)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		if isBusyError(err) {
			return domain.DeathVerificationEvent{}, storage.ErrConflict
		}
		return domain.DeathVerificationEvent{}, fmt.Errorf("begin increment transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(
		ctx,
		`UPDATE death_verification_events
		 SET current_approvals = current_approvals + 1, updated_at = ?
		 WHERE id = ?`,
		nowMillis(),
		eventID,
	)
	if err != nil {
		if isBusyError(err) {
			return domain.DeathVerificationEvent{}, storage.ErrConflict
		}
		return domain.DeathVerificationEvent{}, fmt.Errorf("increment approvals: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return domain.DeathVerificationEvent{}, fmt.Errorf("increment rows affected: %w", err)
	}
	if affected == 0 {
		return domain.DeathVerificationEvent{}, storage.ErrNotFound
	}

	row := tx.QueryRowContext(
		ctx,
		`SELECT `+eventColumns+` FROM death_verification_events WHERE id = ?`,
		eventID,
	)
	event, err := scanEvent(row.Scan)
	if err != nil {
		return domain.DeathVerificationEvent{}, fmt.Errorf("read incremented event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isBusyError(err) {
			return domain.DeathVerificationEvent{}, storage.ErrConflict
		}
		return domain.DeathVerificationEvent{}, fmt.Errorf("commit increment transaction: %w", err)
	}
	return event, nil
}

// MarkVerified flips a pending event to verified. The status predicate makes
// this a compare-and-swap: exactly one caller per event observes true, so the
// transfer trigger fires once no matter how many approvals race past quorum.
func (s *Store) MarkVerified(ctx context.Context, eventID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := s.ready(); err != nil {
		return false, err
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE death_verification_events
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(domain.EventStatusVerified),
		nowMillis(),
		strings.TrimSpace(eventID),
		string(domain.EventStatusPending),
	)
	if err != nil {
		if isBusyError(err) {
			return false, storage.ErrConflict
		}
		return false, fmt.Errorf("mark verified: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark verified rows affected: %w", err)
	}
	return affected == 1, nil
}

func scanEvent(scan func(dest ...any) error) (domain.DeathVerificationEvent, error) {
	var event domain.DeathVerificationEvent
	var verificationType, evidence, status string
	var createdAt, updatedAt int64
	if err := scan(
		&event.ID,
		&event.UserID,
		&verificationType,
		&evidence,
		&event.RequiredApprovals,
		&event.CurrentApprovals,
		&status,
		&event.InitiatedBy,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.DeathVerificationEvent{}, err
	}
	event.Type = domain.VerificationType(verificationType)
	event.Status = domain.EventStatus(status)
	event.CreatedAt = fromMillis(createdAt)
	event.UpdatedAt = fromMillis(updatedAt)

	decoded, err := decodeJSON(evidence)
	if err != nil {
		return domain.DeathVerificationEvent{}, err
	}
	event.EvidenceData = decoded
	return event, nil
}
