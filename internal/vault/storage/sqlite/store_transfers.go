package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/legacyvault/internal/vault/domain"
	"github.com/louisbranch/legacyvault/internal/vault/filter"
	"github.com/louisbranch/legacyvault/internal/vault/storage"
)

const transferColumns = `id, asset_id, from_user_id, to_user_id, death_event_id, transfer_status, metadata, transfer_date, created_at`

// CreateTransfers inserts a whole transfer batch in one transaction. A failed
// insert rolls back every row, so an event either has its full transfer set
// or none at all.
func (s *Store) CreateTransfers(ctx context.Context, transfers []domain.AssetTransfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if len(transfers) == 0 {
		return nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		if isBusyError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("begin transfer batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, transfer := range transfers {
		metadata, err := json.Marshal(transfer.Metadata)
		if err != nil {
			return fmt.Errorf("encode transfer metadata: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO asset_transfers (`+transferColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			transfer.ID,
			transfer.AssetID,
			transfer.FromUserID,
			transfer.ToUserID,
			transfer.DeathEventID,
			string(transfer.Status),
			string(metadata),
			toMillis(transfer.TransferDate),
			toMillis(transfer.CreatedAt),
		); err != nil {
			if isConstraintError(err) {
				return storage.ErrDuplicate
			}
			if isBusyError(err) {
				return storage.ErrConflict
			}
			return fmt.Errorf("insert transfer %s: %w", transfer.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isBusyError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("commit transfer batch: %w", err)
	}
	return nil
}

// CountTransfersByEvent reports how many transfers an event already produced.
func (s *Store) CountTransfersByEvent(ctx context.Context, eventID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.ready(); err != nil {
		return 0, err
	}

	var count int
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM asset_transfers WHERE death_event_id = ?`,
		strings.TrimSpace(eventID),
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count transfers: %w", err)
	}
	return count, nil
}

// ListTransfersForUser returns transfers where the user is sender or
// recipient, optionally narrowed by a parsed list filter.
func (s *Store) ListTransfersForUser(ctx context.Context, userID string, cond filter.Condition) ([]domain.AssetTransfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)

	query := `SELECT ` + transferColumns + ` FROM asset_transfers WHERE (from_user_id = ? OR to_user_id = ?)`
	params := []any{userID, userID}
	if !cond.Empty() {
		query += ` AND ` + cond.Clause
		params = append(params, cond.Params...)
	}
	query += ` ORDER BY created_at, id`

	return s.queryTransfers(ctx, query, params...)
}

func (s *Store) queryTransfers(ctx context.Context, query string, params ...any) ([]domain.AssetTransfer, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []domain.AssetTransfer
	for rows.Next() {
		var transfer domain.AssetTransfer
		var status, metadata string
		var transferDate, createdAt int64
		if err := rows.Scan(
			&transfer.ID,
			&transfer.AssetID,
			&transfer.FromUserID,
			&transfer.ToUserID,
			&transfer.DeathEventID,
			&status,
			&metadata,
			&transferDate,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan transfer row: %w", err)
		}
		transfer.Status = domain.TransferStatus(status)
		transfer.TransferDate = fromMillis(transferDate)
		transfer.CreatedAt = fromMillis(createdAt)
		if err := json.Unmarshal([]byte(metadata), &transfer.Metadata); err != nil {
			return nil, fmt.Errorf("decode transfer metadata: %w", err)
		}
		transfers = append(transfers, transfer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer rows: %w", err)
	}
	return transfers, nil
}
