package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/legacyvault/internal/vault/domain"
	"github.com/louisbranch/legacyvault/internal/vault/filter"
	"github.com/louisbranch/legacyvault/internal/vault/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir() + "/vault.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testTime() time.Time {
	return time.Date(2026, time.May, 2, 10, 0, 0, 0, time.UTC)
}

func seedUser(t *testing.T, store *Store, id, email string) {
	t.Helper()
	if err := store.CreateUser(context.Background(), domain.User{
		ID:           id,
		Email:        email,
		PasswordHash: "$2a$10$hash",
		FullName:     "User " + id,
		CreatedAt:    testTime(),
	}); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func TestUserRoundTripAndDuplicateEmail(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user-1", "alice@example.com")

	user, err := store.GetUserByEmail(ctx, "Alice@Example.com ")
	if err != nil {
		t.Fatalf("get user by email: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("user id = %q, want user-1", user.ID)
	}

	err = store.CreateUser(ctx, domain.User{
		ID:           "user-2",
		Email:        "alice@example.com",
		PasswordHash: "$2a$10$hash",
		FullName:     "Duplicate",
		CreatedAt:    testTime(),
	})
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate email err = %v, want ErrDuplicate", err)
	}

	if _, err := store.GetUser(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing user err = %v, want ErrNotFound", err)
	}
}

func TestAssetAndBeneficiaryRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user-1", "owner@example.com")
	seedUser(t, store, "user-2", "heir@example.com")

	asset := domain.DigitalAsset{
		ID:      "asset-1",
		OwnerID: "user-1",
		Type:    domain.AssetTypeCryptoWallet,
		Name:    "Bitcoin Wallet",
		AccessInstructions: map[string]any{
			"seed_location": "safe deposit box",
		},
		Active:    true,
		CreatedAt: testTime(),
		UpdatedAt: testTime(),
	}
	if err := store.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("create asset: %v", err)
	}

	loaded, err := store.GetAsset(ctx, "asset-1")
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if loaded.Name != "Bitcoin Wallet" || loaded.Type != domain.AssetTypeCryptoWallet {
		t.Fatalf("asset round trip mismatch: %+v", loaded)
	}
	if loaded.AccessInstructions["seed_location"] != "safe deposit box" {
		t.Fatalf("access instructions not preserved: %v", loaded.AccessInstructions)
	}

	loaded.Name = "Bitcoin Cold Wallet"
	loaded.Active = false
	loaded.UpdatedAt = testTime().Add(time.Hour)
	if err := store.PutAsset(ctx, loaded); err != nil {
		t.Fatalf("put asset: %v", err)
	}
	updated, err := store.GetAsset(ctx, "asset-1")
	if err != nil {
		t.Fatalf("get updated asset: %v", err)
	}
	if updated.Name != "Bitcoin Cold Wallet" || updated.Active {
		t.Fatalf("asset update not persisted: %+v", updated)
	}

	if err := store.CreateBeneficiary(ctx, domain.Beneficiary{
		ID:               "ben-1",
		AssetID:          "asset-1",
		UserID:           "user-2",
		ShareHundredths:  6000,
		ApprovalRequired: true,
		CreatedAt:        testTime(),
	}); err != nil {
		t.Fatalf("create beneficiary: %v", err)
	}

	beneficiaries, err := store.ListBeneficiariesByAsset(ctx, "asset-1")
	if err != nil {
		t.Fatalf("list beneficiaries: %v", err)
	}
	if len(beneficiaries) != 1 || beneficiaries[0].ShareHundredths != 6000 {
		t.Fatalf("beneficiaries = %+v, want one 60%% row", beneficiaries)
	}
	if !beneficiaries[0].ApprovalRequired {
		t.Fatal("approval_required flag lost")
	}

	assets, err := store.ListAssetsByOwner(ctx, "user-1")
	if err != nil {
		t.Fatalf("list assets: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("owner assets = %d, want 1", len(assets))
	}
}

func seedAsset(t *testing.T, store *Store, id, ownerID string) {
	t.Helper()
	if err := store.CreateAsset(context.Background(), domain.DigitalAsset{
		ID:        id,
		OwnerID:   ownerID,
		Type:      domain.AssetTypeCryptoWallet,
		Name:      "Asset " + id,
		Active:    true,
		CreatedAt: testTime(),
		UpdatedAt: testTime(),
	}); err != nil {
		t.Fatalf("seed asset %s: %v", id, err)
	}
}

func seedEvent(t *testing.T, store *Store, id, subject string, required int) {
	t.Helper()
	if err := store.CreateEvent(context.Background(), domain.DeathVerificationEvent{
		ID:                id,
		UserID:            subject,
		Type:              domain.VerificationTypeDeathCertificate,
		RequiredApprovals: required,
		Status:            domain.EventStatusPending,
		InitiatedBy:       subject,
		CreatedAt:         testTime(),
		UpdatedAt:         testTime(),
	}); err != nil {
		t.Fatalf("seed event %s: %v", id, err)
	}
}

func TestIncrementApprovalsAndMarkVerified(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user-1", "subject@example.com")
	seedEvent(t, store, "evt-1", "user-1", 2)

	event, err := store.IncrementApprovals(ctx, "evt-1")
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if event.CurrentApprovals != 1 {
		t.Fatalf("current approvals = %d, want 1", event.CurrentApprovals)
	}

	event, err = store.IncrementApprovals(ctx, "evt-1")
	if err != nil {
		t.Fatalf("second increment: %v", err)
	}
	if event.CurrentApprovals != 2 {
		t.Fatalf("current approvals = %d, want 2", event.CurrentApprovals)
	}
	if event.Status != domain.EventStatusPending {
		t.Fatalf("status = %s, want still pending", event.Status)
	}

	transitioned, err := store.MarkVerified(ctx, "evt-1")
	if err != nil {
		t.Fatalf("mark verified: %v", err)
	}
	if !transitioned {
		t.Fatal("first mark verified should transition")
	}

	// The compare-and-swap must not fire twice.
	transitioned, err = store.MarkVerified(ctx, "evt-1")
	if err != nil {
		t.Fatalf("second mark verified: %v", err)
	}
	if transitioned {
		t.Fatal("second mark verified must be a no-op")
	}

	if _, err := store.IncrementApprovals(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("increment missing event err = %v, want ErrNotFound", err)
	}
}

func TestInsertApprovalRejectsRepeatApprover(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user-1", "subject@example.com")
	seedUser(t, store, "user-2", "witness@example.com")
	seedEvent(t, store, "evt-1", "user-1", 2)

	approvedAt := testTime()
	approval := domain.MultisigApproval{
		ID:         "app-1",
		EventID:    "evt-1",
		ApproverID: "user-2",
		Status:     domain.ApprovalStatusApproved,
		ApprovedAt: &approvedAt,
		CreatedAt:  testTime(),
	}
	if err := store.InsertApproval(ctx, approval); err != nil {
		t.Fatalf("insert approval: %v", err)
	}

	approval.ID = "app-2"
	if err := store.InsertApproval(ctx, approval); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("repeat approver err = %v, want ErrDuplicate", err)
	}
}

func TestCreateTransfersBatchIsAtomic(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user-1", "subject@example.com")
	seedUser(t, store, "user-2", "heir@example.com")
	seedAsset(t, store, "asset-1", "user-1")
	seedAsset(t, store, "asset-2", "user-1")
	seedEvent(t, store, "evt-1", "user-1", 1)

	batch := []domain.AssetTransfer{
		{
			ID: "tr-1", AssetID: "asset-1", FromUserID: "user-1", ToUserID: "user-2",
			DeathEventID: "evt-1", Status: domain.TransferStatusPending,
			Metadata:     domain.TransferMetadata{SharePercentage: 60, AssetType: domain.AssetTypeCryptoWallet},
			TransferDate: testTime(), CreatedAt: testTime(),
		},
		{
			// Duplicate primary key forces the batch to fail.
			ID: "tr-1", AssetID: "asset-2", FromUserID: "user-1", ToUserID: "user-2",
			DeathEventID: "evt-1", Status: domain.TransferStatusPending,
			TransferDate: testTime(), CreatedAt: testTime(),
		},
	}
	if err := store.CreateTransfers(ctx, batch); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("batch err = %v, want ErrDuplicate", err)
	}

	count, err := store.CountTransfersByEvent(ctx, "evt-1")
	if err != nil {
		t.Fatalf("count transfers: %v", err)
	}
	if count != 0 {
		t.Fatalf("transfers after failed batch = %d, want 0 (rollback)", count)
	}
}

func TestCreateTransfersRejectsRepeatRecipientPerEvent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user-1", "subject@example.com")
	seedUser(t, store, "user-2", "heir@example.com")
	seedAsset(t, store, "asset-1", "user-1")
	seedEvent(t, store, "evt-1", "user-1", 1)

	first := []domain.AssetTransfer{{
		ID: "tr-1", AssetID: "asset-1", FromUserID: "user-1", ToUserID: "user-2",
		DeathEventID: "evt-1", Status: domain.TransferStatusPending,
		TransferDate: testTime(), CreatedAt: testTime(),
	}}
	if err := store.CreateTransfers(ctx, first); err != nil {
		t.Fatalf("first batch: %v", err)
	}

	// Fresh ids, same event, asset and recipient: a regenerated batch
	// must hit the unique index instead of doubling the rows.
	second := []domain.AssetTransfer{{
		ID: "tr-2", AssetID: "asset-1", FromUserID: "user-1", ToUserID: "user-2",
		DeathEventID: "evt-1", Status: domain.TransferStatusPending,
		TransferDate: testTime(), CreatedAt: testTime(),
	}}
	if err := store.CreateTransfers(ctx, second); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("second batch err = %v, want ErrDuplicate", err)
	}

	count, err := store.CountTransfersByEvent(ctx, "evt-1")
	if err != nil {
		t.Fatalf("count transfers: %v", err)
	}
	if count != 1 {
		t.Fatalf("transfers = %d, want 1 after rejected regeneration", count)
	}
}

func TestListTransfersForUserWithFilter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user-1", "subject@example.com")
	seedUser(t, store, "user-2", "heir@example.com")
	seedUser(t, store, "user-3", "other@example.com")
	seedAsset(t, store, "asset-1", "user-1")
	seedAsset(t, store, "asset-2", "user-1")
	seedEvent(t, store, "evt-1", "user-1", 1)

	batch := []domain.AssetTransfer{
		{
			ID: "tr-1", AssetID: "asset-1", FromUserID: "user-1", ToUserID: "user-2",
			DeathEventID: "evt-1", Status: domain.TransferStatusPending,
			Metadata:     domain.TransferMetadata{SharePercentage: 60, AssetType: domain.AssetTypeCryptoWallet},
			TransferDate: testTime(), CreatedAt: testTime(),
		},
		{
			ID: "tr-2", AssetID: "asset-2", FromUserID: "user-1", ToUserID: "user-3",
			DeathEventID: "evt-1", Status: domain.TransferStatusPending,
			Metadata:     domain.TransferMetadata{SharePercentage: 40, AssetType: domain.AssetTypeDocuments},
			TransferDate: testTime(), CreatedAt: testTime(),
		},
	}
	if err := store.CreateTransfers(ctx, batch); err != nil {
		t.Fatalf("create transfers: %v", err)
	}

	transfers, err := store.ListTransfersForUser(ctx, "user-2", filter.Condition{})
	if err != nil {
		t.Fatalf("list transfers: %v", err)
	}
	if len(transfers) != 1 || transfers[0].ID != "tr-1" {
		t.Fatalf("user-2 transfers = %+v, want only tr-1", transfers)
	}
	if transfers[0].Metadata.SharePercentage != 60 {
		t.Fatalf("metadata snapshot = %+v, want 60%% crypto_wallet", transfers[0].Metadata)
	}

	// Sender sees both rows; a filter narrows them.
	cond, err := filter.ParseTransferFilter(`asset_id = "asset-2"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	transfers, err = store.ListTransfersForUser(ctx, "user-1", cond)
	if err != nil {
		t.Fatalf("list filtered transfers: %v", err)
	}
	if len(transfers) != 1 || transfers[0].ID != "tr-2" {
		t.Fatalf("filtered transfers = %+v, want only tr-2", transfers)
	}
}
