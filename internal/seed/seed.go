// Package seed populates a running vault service with a demo estate by
// exercising the full HTTP API: users, an asset with a split inheritance,
// and a verification event driven to quorum.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config holds seeder configuration.
type Config struct {
	BaseURL string
	Verbose bool
}

// DefaultConfig returns the seeder defaults for local development.
func DefaultConfig() Config {
	return Config{BaseURL: "http://localhost:8080"}
}

type client struct {
	base    string
	http    *http.Client
	out     io.Writer
	verbose bool
}

// Run seeds the demo estate against a running vault service and reports
// progress to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	c := &client{
		base:    cfg.BaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		out:     out,
		verbose: cfg.Verbose,
	}

	fmt.Fprintf(out, "seeding demo estate at %s\n", cfg.BaseURL)

	accounts := []struct {
		email, name string
	}{
		{"alice@example.com", "Alice Chen"},
		{"bob@example.com", "Bob Chen"},
		{"carol@example.com", "Carol Chen"},
		{"dr.evans@example.com", "Dr. Evans"},
		{"notary.frank@example.com", "Frank the Notary"},
	}
	ids := map[string]string{}
	tokens := map[string]string{}
	for _, account := range accounts {
		userID, token, err := c.registerAndLogin(ctx, account.email, account.name)
		if err != nil {
			return fmt.Errorf("set up %s: %w", account.email, err)
		}
		ids[account.email] = userID
		tokens[account.email] = token
	}
	fmt.Fprintf(out, "registered %d users\n", len(accounts))

	owner := tokens["alice@example.com"]
	assetID, err := c.createAsset(ctx, owner, map[string]any{
		"asset_type":  "crypto_wallet",
		"name":        "Bitcoin Wallet",
		"description": "Cold storage wallet",
		"access_instructions": map[string]any{
			"seed_location": "safe deposit box 42",
			"exchange":      "none",
		},
	})
	if err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	fmt.Fprintf(out, "created asset %s (Bitcoin Wallet)\n", assetID)

	splits := []struct {
		email string
		share float64
	}{
		{"bob@example.com", 60},
		{"carol@example.com", 40},
	}
	for _, split := range splits {
		if err := c.addBeneficiary(ctx, owner, assetID, ids[split.email], split.share); err != nil {
			return fmt.Errorf("add beneficiary %s: %w", split.email, err)
		}
	}
	fmt.Fprintf(out, "split inheritance 60/40 between Bob and Carol\n")

	witness := tokens["dr.evans@example.com"]
	eventID, err := c.createEvent(ctx, witness, map[string]any{
		"user_id":           ids["alice@example.com"],
		"verification_type": "death_certificate",
		"evidence_data": map[string]any{
			"certificate_number": "DC-2026-0042",
			"issuing_authority":  "County Registrar",
		},
		"required_approvals": 2,
	})
	if err != nil {
		return fmt.Errorf("create verification event: %w", err)
	}
	fmt.Fprintf(out, "opened verification event %s (2 approvals required)\n", eventID)

	for _, approver := range []string{"dr.evans@example.com", "notary.frank@example.com"} {
		triggered, err := c.approve(ctx, tokens[approver], eventID)
		if err != nil {
			return fmt.Errorf("approval by %s: %w", approver, err)
		}
		fmt.Fprintf(out, "approval recorded by %s (transfer triggered: %v)\n", approver, triggered)
	}

	transfers, err := c.listTransfers(ctx, tokens["bob@example.com"])
	if err != nil {
		return fmt.Errorf("list transfers: %w", err)
	}
	fmt.Fprintf(out, "done: %d transfer(s) pending for Bob\n", len(transfers))
	return nil
}

func (c *client) registerAndLogin(ctx context.Context, email, name string) (string, string, error) {
	var registered struct {
		ID string `json:"id"`
	}
	status, err := c.post(ctx, "", "/auth/register", map[string]any{
		"email": email, "full_name": name, "password": "demo-password-123",
	}, &registered)
	if err != nil {
		return "", "", err
	}
	// A rerun against an already-seeded database reuses the account.
	if status != http.StatusCreated && status != http.StatusConflict {
		return "", "", fmt.Errorf("register returned %d", status)
	}

	var session struct {
		AccessToken string `json:"access_token"`
	}
	status, err = c.post(ctx, "", "/auth/login", map[string]any{
		"email": email, "password": "demo-password-123",
	}, &session)
	if err != nil {
		return "", "", err
	}
	if status != http.StatusOK {
		return "", "", fmt.Errorf("login returned %d", status)
	}

	userID := registered.ID
	if userID == "" {
		var me struct {
			ID string `json:"id"`
		}
		status, err = c.get(ctx, session.AccessToken, "/users/me", &me)
		if err != nil {
			return "", "", err
		}
		if status != http.StatusOK {
			return "", "", fmt.Errorf("me returned %d", status)
		}
		userID = me.ID
	}
	return userID, session.AccessToken, nil
}

func (c *client) createAsset(ctx context.Context, token string, body map[string]any) (string, error) {
	var asset struct {
		ID string `json:"id"`
	}
	status, err := c.post(ctx, token, "/assets", body, &asset)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("create asset returned %d", status)
	}
	return asset.ID, nil
}

func (c *client) addBeneficiary(ctx context.Context, token, assetID, userID string, share float64) error {
	status, err := c.post(ctx, token, "/assets/"+assetID+"/beneficiaries", map[string]any{
		"user_id": userID, "share_percentage": share, "approval_required": true,
	}, nil)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("add beneficiary returned %d", status)
	}
	return nil
}

func (c *client) createEvent(ctx context.Context, token string, body map[string]any) (string, error) {
	var event struct {
		ID string `json:"id"`
	}
	status, err := c.post(ctx, token, "/death-verifications", body, &event)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("create event returned %d", status)
	}
	return event.ID, nil
}

func (c *client) approve(ctx context.Context, token, eventID string) (bool, error) {
	var result struct {
		TransferTriggered bool `json:"transfer_triggered"`
	}
	status, err := c.post(ctx, token, "/death-verifications/"+eventID+"/approvals", map[string]any{
		"status": "approved", "comments": "verified the certificate",
	}, &result)
	if err != nil {
		return false, err
	}
	if status != http.StatusCreated {
		return false, fmt.Errorf("approval returned %d", status)
	}
	return result.TransferTriggered, nil
}

func (c *client) listTransfers(ctx context.Context, token string) ([]map[string]any, error) {
	var transfers []map[string]any
	status, err := c.get(ctx, token, "/transfers", &transfers)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list transfers returned %d", status)
	}
	return transfers, nil
}

func (c *client) post(ctx context.Context, token, path string, body, dst any) (int, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(encoded))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, token, path, dst)
}

func (c *client) get(ctx context.Context, token, path string, dst any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return 0, err
	}
	return c.do(req, token, path, dst)
}

func (c *client) do(req *http.Request, token, path string, dst any) (int, error) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", req.Method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read %s response: %w", path, err)
	}
	if c.verbose {
		fmt.Fprintf(c.out, "%s %s -> %d %s\n", req.Method, path, resp.StatusCode, bytes.TrimSpace(raw))
	}
	if dst != nil && resp.StatusCode < http.StatusBadRequest && len(raw) > 0 {
		if err := json.Unmarshal(raw, dst); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}
