package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/legacyvault/internal/auth"
	"github.com/louisbranch/legacyvault/internal/vault/domain"
	"github.com/louisbranch/legacyvault/internal/vault/engine"
	"github.com/louisbranch/legacyvault/internal/vault/filter"
	"github.com/louisbranch/legacyvault/internal/vault/storage"
)

type memStore struct {
	users         map[string]domain.User
	assets        map[string]domain.DigitalAsset
	beneficiaries map[string][]domain.Beneficiary
	events        map[string]*domain.DeathVerificationEvent
	approvals     map[string]map[string]domain.MultisigApproval
	transfers     []domain.AssetTransfer
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[string]domain.User{},
		assets:        map[string]domain.DigitalAsset{},
		beneficiaries: map[string][]domain.Beneficiary{},
		events:        map[string]*domain.DeathVerificationEvent{},
		approvals:     map[string]map[string]domain.MultisigApproval{},
	}
}

func (m *memStore) CreateUser(_ context.Context, user domain.User) error {
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return storage.ErrDuplicate
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memStore) GetUser(_ context.Context, userID string) (domain.User, error) {
	user, ok := m.users[userID]
	if !ok {
		return domain.User{}, storage.ErrNotFound
	}
	return user, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return domain.User{}, storage.ErrNotFound
}

func (m *memStore) CreateAsset(_ context.Context, asset domain.DigitalAsset) error {
	m.assets[asset.ID] = asset
	return nil
}

func (m *memStore) GetAsset(_ context.Context, assetID string) (domain.DigitalAsset, error) {
	asset, ok := m.assets[assetID]
	if !ok {
		return domain.DigitalAsset{}, storage.ErrNotFound
	}
	return asset, nil
}

func (m *memStore) PutAsset(_ context.Context, asset domain.DigitalAsset) error {
	if _, ok := m.assets[asset.ID]; !ok {
		return storage.ErrNotFound
	}
	m.assets[asset.ID] = asset
	return nil
}

func (m *memStore) ListAssetsByOwner(_ context.Context, ownerID string) ([]domain.DigitalAsset, error) {
	var out []domain.DigitalAsset
	for _, asset := range m.assets {
		if asset.OwnerID == ownerID {
			out = append(out, asset)
		}
	}
	return out, nil
}

func (m *memStore) CreateBeneficiary(_ context.Context, beneficiary domain.Beneficiary) error {
	m.beneficiaries[beneficiary.AssetID] = append(m.beneficiaries[beneficiary.AssetID], beneficiary)
	return nil
}

func (m *memStore) ListBeneficiariesByAsset(_ context.Context, assetID string) ([]domain.Beneficiary, error) {
	return m.beneficiaries[assetID], nil
}

func (m *memStore) CreateEvent(_ context.Context, event domain.DeathVerificationEvent) error {
	copied := event
	m.events[event.ID] = &copied
	return nil
}

func (m *memStore) GetEvent(_ context.Context, eventID string) (domain.DeathVerificationEvent, error) {
	event, ok := m.events[eventID]
	if !ok {
		return domain.DeathVerificationEvent{}, storage.ErrNotFound
	}
	return *event, nil
}

func (m *memStore) ListEvents(_ context.Context) ([]domain.DeathVerificationEvent, error) {
	var out []domain.DeathVerificationEvent
	for _, event := range m.events {
		out = append(out, *event)
	}
	return out, nil
}

func (m *memStore) InsertApproval(_ context.Context, approval domain.MultisigApproval) error {
	if _, ok := m.events[approval.EventID]; !ok {
		return storage.ErrNotFound
	}
	byApprover, ok := m.approvals[approval.EventID]
	if !ok {
		byApprover = map[string]domain.MultisigApproval{}
		m.approvals[approval.EventID] = byApprover
	}
	if _, exists := byApprover[approval.ApproverID]; exists {
		return storage.ErrDuplicate
	}
	byApprover[approval.ApproverID] = approval
	return nil
}

func (m *memStore) IncrementApprovals(_ context.Context, eventID string) (domain.DeathVerificationEvent, error) {
	event, ok := m.events[eventID]
	if !ok {
		return domain.DeathVerificationEvent{}, storage.ErrNotFound
	}
	event.CurrentApprovals++
	return *event, nil
}

func (m *memStore) MarkVerified(_ context.Context, eventID string) (bool, error) {
	event, ok := m.events[eventID]
	if !ok {
		return false, storage.ErrNotFound
	}
	if event.Status != domain.EventStatusPending {
		return false, nil
	}
	event.Status = domain.EventStatusVerified
	return true, nil
}

func (m *memStore) CreateTransfers(_ context.Context, transfers []domain.AssetTransfer) error {
	m.transfers = append(m.transfers, transfers...)
	return nil
}

func (m *memStore) CountTransfersByEvent(_ context.Context, eventID string) (int, error) {
	count := 0
	for _, transfer := range m.transfers {
		if transfer.DeathEventID == eventID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) ListTransfersForUser(_ context.Context, userID string, _ filter.Condition) ([]domain.AssetTransfer, error) {
	var out []domain.AssetTransfer
	for _, transfer := range m.transfers {
		if transfer.FromUserID == userID || transfer.ToUserID == userID {
			out = append(out, transfer)
		}
	}
	return out, nil
}

type testAPI struct {
	store  *memStore
	tokens *auth.TokenIssuer
	server http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := newMemStore()
	tokens, err := auth.NewTokenIssuer([]byte("test-secret-test"), "legacyvault")
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}
	quiet := log.New(io.Discard, "", 0)
	eng := engine.New(store, store, store, store, engine.WithLogger(quiet))
	handler := NewHandler(eng, store, store, store, tokens, WithLogger(quiet))
	return &testAPI{store: store, tokens: tokens, server: handler.Router()}
}

func (a *testAPI) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	a.server.ServeHTTP(recorder, req)
	return recorder
}

func decodeResponse[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(recorder.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, recorder.Body.String())
	}
	return out
}

// seedLogin creates a user directly in the store and returns a valid token.
func (a *testAPI) seedLogin(t *testing.T, userID, email string) string {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := a.store.CreateUser(context.Background(), domain.User{
		ID: userID, Email: email, PasswordHash: hash, FullName: "Test " + userID,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, err := a.tokens.Issue(userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func TestRegisterLoginMe(t *testing.T) {
	api := newTestAPI(t)

	recorder := api.request(t, http.MethodPost, "/auth/register", "", map[string]any{
		"email": "Alice@Example.com", "full_name": "Alice Chen", "password": "password123",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("register = %d, want 201 (body %s)", recorder.Code, recorder.Body.String())
	}
	created := decodeResponse[userPayload](t, recorder)
	if created.Email != "alice@example.com" {
		t.Fatalf("email = %q, want normalized lowercase", created.Email)
	}

	recorder = api.request(t, http.MethodPost, "/auth/register", "", map[string]any{
		"email": "alice@example.com", "full_name": "Alice Again", "password": "password123",
	})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("duplicate register = %d, want 409", recorder.Code)
	}

	recorder = api.request(t, http.MethodPost, "/auth/login", "", map[string]any{
		"email": "alice@example.com", "password": "password123",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("login = %d, want 200", recorder.Code)
	}
	session := decodeResponse[loginResponse](t, recorder)
	if session.AccessToken == "" || session.TokenType != "bearer" {
		t.Fatalf("login response = %+v", session)
	}

	recorder = api.request(t, http.MethodGet, "/users/me", session.AccessToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("me = %d, want 200", recorder.Code)
	}
	me := decodeResponse[userPayload](t, recorder)
	if me.ID != created.ID {
		t.Fatalf("me id = %q, want %q", me.ID, created.ID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	api := newTestAPI(t)
	api.seedLogin(t, "user-1", "alice@example.com")

	recorder := api.request(t, http.MethodPost, "/auth/login", "", map[string]any{
		"email": "alice@example.com", "password": "not-the-password",
	})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password = %d, want 401", recorder.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)

	if code := api.request(t, http.MethodGet, "/users/me", "", nil).Code; code != http.StatusUnauthorized {
		t.Fatalf("missing token = %d, want 401", code)
	}
	if code := api.request(t, http.MethodGet, "/users/me", "garbage-token", nil).Code; code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d, want 401", code)
	}
}

func TestAssetOwnershipScoping(t *testing.T) {
	api := newTestAPI(t)
	owner := api.seedLogin(t, "owner", "owner@example.com")
	stranger := api.seedLogin(t, "stranger", "stranger@example.com")

	recorder := api.request(t, http.MethodPost, "/assets", owner, map[string]any{
		"asset_type": "crypto_wallet", "name": "Bitcoin Wallet",
		"access_instructions": map[string]any{"seed_location": "safe"},
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create asset = %d (body %s)", recorder.Code, recorder.Body.String())
	}
	asset := decodeResponse[assetPayload](t, recorder)
	if asset.OwnerID != "owner" || !asset.IsActive {
		t.Fatalf("asset = %+v, want active and owned by principal", asset)
	}

	// Non-owner reads are indistinguishable from missing assets.
	if code := api.request(t, http.MethodGet, "/assets/"+asset.ID, stranger, nil).Code; code != http.StatusNotFound {
		t.Fatalf("stranger read = %d, want 404", code)
	}
	if code := api.request(t, http.MethodGet, "/assets/"+asset.ID, owner, nil).Code; code != http.StatusOK {
		t.Fatalf("owner read = %d, want 200", code)
	}

	recorder = api.request(t, http.MethodPatch, "/assets/"+asset.ID, owner, map[string]any{
		"name": "Bitcoin Cold Wallet", "is_active": false,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("patch = %d (body %s)", recorder.Code, recorder.Body.String())
	}
	patched := decodeResponse[assetPayload](t, recorder)
	if patched.Name != "Bitcoin Cold Wallet" || patched.IsActive {
		t.Fatalf("patched = %+v", patched)
	}
}

func TestBeneficiaryShareCap(t *testing.T) {
	api := newTestAPI(t)
	owner := api.seedLogin(t, "owner", "owner@example.com")
	api.seedLogin(t, "heir-1", "heir1@example.com")
	api.seedLogin(t, "heir-2", "heir2@example.com")

	recorder := api.request(t, http.MethodPost, "/assets", owner, map[string]any{
		"asset_type": "crypto_wallet", "name": "Bitcoin Wallet",
	})
	asset := decodeResponse[assetPayload](t, recorder)

	recorder = api.request(t, http.MethodPost, "/assets/"+asset.ID+"/beneficiaries", owner, map[string]any{
		"user_id": "heir-1", "share_percentage": 60.0,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("first beneficiary = %d (body %s)", recorder.Code, recorder.Body.String())
	}

	recorder = api.request(t, http.MethodPost, "/assets/"+asset.ID+"/beneficiaries", owner, map[string]any{
		"user_id": "heir-2", "share_percentage": 50.0,
	})
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("over-cap beneficiary = %d, want 422 (body %s)", recorder.Code, recorder.Body.String())
	}

	recorder = api.request(t, http.MethodPost, "/assets/"+asset.ID+"/beneficiaries", owner, map[string]any{
		"user_id": "missing-user", "share_percentage": 10.0,
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("missing beneficiary user = %d, want 400", recorder.Code)
	}
}

func TestVerificationWorkflowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	owner := api.seedLogin(t, "owner", "owner@example.com")
	heir := api.seedLogin(t, "heir-1", "heir1@example.com")
	witness1 := api.seedLogin(t, "witness-1", "w1@example.com")
	witness2 := api.seedLogin(t, "witness-2", "w2@example.com")

	recorder := api.request(t, http.MethodPost, "/assets", owner, map[string]any{
		"asset_type": "crypto_wallet", "name": "Bitcoin Wallet",
	})
	asset := decodeResponse[assetPayload](t, recorder)
	api.request(t, http.MethodPost, "/assets/"+asset.ID+"/beneficiaries", owner, map[string]any{
		"user_id": "heir-1", "share_percentage": 100.0,
	})

	recorder = api.request(t, http.MethodPost, "/death-verifications", witness1, map[string]any{
		"user_id": "owner", "verification_type": "death_certificate", "required_approvals": 2,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create event = %d (body %s)", recorder.Code, recorder.Body.String())
	}
	event := decodeResponse[eventPayload](t, recorder)
	if event.Status != "pending" || event.RequiredApprovals != 2 {
		t.Fatalf("event = %+v", event)
	}

	recorder = api.request(t, http.MethodPost, "/death-verifications/"+event.ID+"/approvals", witness1, map[string]any{
		"status": "approved",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("first approval = %d (body %s)", recorder.Code, recorder.Body.String())
	}
	first := decodeResponse[approvalResultPayload](t, recorder)
	if first.TransferTriggered || first.Event.CurrentApprovals != 1 {
		t.Fatalf("first approval result = %+v", first)
	}

	// The same witness cannot vote twice.
	recorder = api.request(t, http.MethodPost, "/death-verifications/"+event.ID+"/approvals", witness1, map[string]any{
		"status": "approved",
	})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("duplicate approval = %d, want 409", recorder.Code)
	}

	recorder = api.request(t, http.MethodPost, "/death-verifications/"+event.ID+"/approvals", witness2, map[string]any{
		"status": "approved",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("quorum approval = %d (body %s)", recorder.Code, recorder.Body.String())
	}
	second := decodeResponse[approvalResultPayload](t, recorder)
	if !second.TransferTriggered || second.Event.Status != "verified" {
		t.Fatalf("quorum result = %+v", second)
	}
	if len(second.Transfers) != 1 || second.Transfers[0].ToUserID != "heir-1" {
		t.Fatalf("transfers = %+v", second.Transfers)
	}
	if second.Transfers[0].Metadata.SharePercentage != 100 {
		t.Fatalf("metadata = %+v", second.Transfers[0].Metadata)
	}

	recorder = api.request(t, http.MethodGet, "/death-verifications", heir, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list events = %d", recorder.Code)
	}
	events := decodeResponse[[]eventPayload](t, recorder)
	if len(events) != 1 || events[0].Status != "verified" {
		t.Fatalf("listed events = %+v", events)
	}

	recorder = api.request(t, http.MethodGet, "/transfers", heir, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list transfers = %d", recorder.Code)
	}
	transfers := decodeResponse[[]transferPayload](t, recorder)
	if len(transfers) != 1 || transfers[0].TransferStatus != "pending" {
		t.Fatalf("heir transfers = %+v", transfers)
	}

	// A retry after success is a no-op, not a duplicate batch.
	recorder = api.request(t, http.MethodPost, "/death-verifications/"+event.ID+"/transfers/retry", witness1, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("retry = %d", recorder.Code)
	}
	if retried := decodeResponse[[]transferPayload](t, recorder); len(retried) != 0 {
		t.Fatalf("retry produced %d transfers, want 0", len(retried))
	}
}

func TestListTransfersRejectsBadFilter(t *testing.T) {
	api := newTestAPI(t)
	token := api.seedLogin(t, "user-1", "u1@example.com")

	recorder := api.request(t, http.MethodGet, "/transfers?filter="+escapeQuery(`no_such_field = "x"`), token, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("bad filter = %d, want 400 (body %s)", recorder.Code, recorder.Body.String())
	}
}

func TestUnknownEventApprovalIs404(t *testing.T) {
	api := newTestAPI(t)
	token := api.seedLogin(t, "user-1", "u1@example.com")

	recorder := api.request(t, http.MethodPost, "/death-verifications/missing/approvals", token, map[string]any{
		"status": "approved",
	})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("unknown event approval = %d, want 404", recorder.Code)
	}
}

func escapeQuery(value string) string {
	replacer := strings.NewReplacer(" ", "%20", `"`, "%22", "=", "%3D")
	return replacer.Replace(value)
}
