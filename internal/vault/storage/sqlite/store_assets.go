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

const assetColumns = `id, owner_id, asset_type, name, description, access_instructions, metadata, is_active, created_at, updated_at`

// CreateAsset inserts a digital asset record.
func (s *Store) CreateAsset(ctx context.Context, asset domain.DigitalAsset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	instructions, err := encodeJSON(asset.AccessInstructions)
	if err != nil {
		return err
	}
	metadata, err := encodeJSON(asset.Metadata)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO digital_assets (`+assetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.ID,
		asset.OwnerID,
		string(asset.Type),
		asset.Name,
		asset.Description,
		instructions,
		metadata,
		boolToInt(asset.Active),
		toMillis(asset.CreatedAt),
		toMillis(asset.UpdatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

// GetAsset returns one digital asset by id.
func (s *Store) GetAsset(ctx context.Context, assetID string) (domain.DigitalAsset, error) {
	if err := ctx.Err(); err != nil {
		return domain.DigitalAsset{}, err
	}
	if err := s.ready(); err != nil {
		return domain.DigitalAsset{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+assetColumns+` FROM digital_assets WHERE id = ?`,
		strings.TrimSpace(assetID),
	)
	asset, err := scanAsset(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DigitalAsset{}, storage.ErrNotFound
		}
		return domain.DigitalAsset{}, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// PutAsset replaces a digital asset record after an owner mutation.
func (s *Store) PutAsset(ctx context.Context, asset domain.DigitalAsset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	instructions, err := encodeJSON(asset.AccessInstructions)
	if err != nil {
		return err
	}
	metadata, err := encodeJSON(asset.Metadata)
	if err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE digital_assets
		 SET asset_type = ?, name = ?, description = ?, access_instructions = ?,
		     metadata = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		string(asset.Type),
		asset.Name,
		asset.Description,
		instructions,
		metadata,
		boolToInt(asset.Active),
		toMillis(asset.UpdatedAt),
		asset.ID,
	)
	if err != nil {
		return fmt.Errorf("put asset: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("put asset rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListAssetsByOwner returns every asset owned by a user, oldest first.
func (s *Store) ListAssetsByOwner(ctx context.Context, ownerID string) ([]domain.DigitalAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+assetColumns+` FROM digital_assets WHERE owner_id = ? ORDER BY created_at, id`,
		strings.TrimSpace(ownerID),
	)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.DigitalAsset
	for rows.Next() {
		asset, err := scanAsset(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan asset row: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset rows: %w", err)
	}
	return assets, nil
}

// CreateBeneficiary inserts a beneficiary row for an asset.
func (s *Store) CreateBeneficiary(ctx context.Context, beneficiary domain.Beneficiary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO beneficiaries (id, asset_id, user_id, share_hundredths, approval_required, has_approved, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		beneficiary.ID,
		beneficiary.AssetID,
		beneficiary.UserID,
		beneficiary.ShareHundredths,
		boolToInt(beneficiary.ApprovalRequired),
		boolToInt(beneficiary.HasApproved),
		toMillis(beneficiary.CreatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("create beneficiary: %w", err)
	}
	return nil
}

// ListBeneficiariesByAsset returns every beneficiary of one asset, oldest first.
func (s *Store) ListBeneficiariesByAsset(ctx context.Context, assetID string) ([]domain.Beneficiary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, asset_id, user_id, share_hundredths, approval_required, has_approved, created_at
		 FROM beneficiaries WHERE asset_id = ? ORDER BY created_at, id`,
		strings.TrimSpace(assetID),
	)
	if err != nil {
		return nil, fmt.Errorf("list beneficiaries: %w", err)
	}
	defer rows.Close()

	var beneficiaries []domain.Beneficiary
	for rows.Next() {
		var beneficiary domain.Beneficiary
		var approvalRequired, hasApproved int
		var createdAt int64
		if err := rows.Scan(
			&beneficiary.ID,
			&beneficiary.AssetID,
			&beneficiary.UserID,
			&beneficiary.ShareHundredths,
			&approvalRequired,
			&hasApproved,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan beneficiary row: %w", err)
		}
		beneficiary.ApprovalRequired = approvalRequired != 0
		beneficiary.HasApproved = hasApproved != 0
		beneficiary.CreatedAt = fromMillis(createdAt)
		beneficiaries = append(beneficiaries, beneficiary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate beneficiary rows: %w", err)
	}
	return beneficiaries, nil
}

func scanAsset(scan func(dest ...any) error) (domain.DigitalAsset, error) {
	var asset domain.DigitalAsset
	var assetType, instructions, metadata string
	var active int
	var createdAt, updatedAt int64
	if err := scan(
		&asset.ID,
		&asset.OwnerID,
		&assetType,
		&asset.Name,
		&asset.Description,
		&instructions,
		&metadata,
		&active,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.DigitalAsset{}, err
	}
	asset.Type = domain.AssetType(assetType)
	asset.Active = active != 0
	asset.CreatedAt = fromMillis(createdAt)
	asset.UpdatedAt = fromMillis(updatedAt)

	decodedInstructions, err := decodeJSON(instructions)
	if err != nil {
		return domain.DigitalAsset{}, err
	}
	asset.AccessInstructions = decodedInstructions
	decodedMetadata, err := decodeJSON(metadata)
	if err != nil {
		return domain.DigitalAsset{}, err
	}
	asset.Metadata = decodedMetadata
	return asset, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
