// Package claimsvc is the device-side HTTP client for the coordination
// endpoints: the claim operation, the cold-start emergency check, and the
// supervisor roster surface.
package claimsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"sat-dispatch-backend/config"
	"sat-dispatch-backend/internal/reconcile"
)

// tecHeader identifies the calling technician to the coordination service.
const tecHeader = "X-Technician-ID"

// RosterClient is a serviced client as seen by supervisor devices.
type RosterClient struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RosterTechnician is one row of the on-call roster.
type RosterTechnician struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	OnCall         bool           `json:"on_call"`
	Active         bool           `json:"active"`
	CurrentOrderID *int64         `json:"current_order_id"`
	Clients        []RosterClient `json:"clients"`
}

// Client talks to the coordination service on behalf of one technician.
type Client struct {
	baseURL string
	tecID   int64
	client  *http.Client
}

// New creates a coordination client for the given technician. Requests are
// bounded by the configured claim timeout so a claim attempt resolves one way
// or the other within the window the reconciler budgets for.
func New(cfg *config.CoordinationConfig, tecID int64) *Client {
	timeout := cfg.ClaimTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		tecID:   tecID,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// ClearEmergency executes the claim operation. Grant and ownership conflict
// are decoded outcomes; everything else is an error the reconciler treats as
// transient. Safe to call repeatedly: the server keeps granting the owner.
func (c *Client) ClearEmergency(ctx context.Context, orderID string) (reconcile.ClaimOutcome, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/api/emergency/orders/"+orderID+"/clear", nil)
	if err != nil {
		return reconcile.ClaimOutcome{}, err
	}

	var resp struct {
		Granted            bool   `json:"granted"`
		OwnedBySomeoneElse bool   `json:"owned_by_someone_else"`
		Message            string `json:"message"`
	}

	switch status {
	case http.StatusOK, http.StatusForbidden:
		if err := json.Unmarshal(body, &resp); err != nil {
			return reconcile.ClaimOutcome{}, fmt.Errorf("failed to decode claim response: %w", err)
		}
		return reconcile.ClaimOutcome{
			Granted:            resp.Granted,
			OwnedBySomeoneElse: resp.OwnedBySomeoneElse,
			Message:            resp.Message,
		}, nil
	default:
		return reconcile.ClaimOutcome{}, fmt.Errorf("claim returned unexpected status %d", status)
	}
}

// CheckEmergency recovers the pending-alert state for this technician.
func (c *Client) CheckEmergency(ctx context.Context) (string, bool, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/api/emergency/check", nil)
	if err != nil {
		return "", false, err
	}
	if status != http.StatusOK {
		return "", false, fmt.Errorf("emergency check returned status %d", status)
	}

	var resp struct {
		EmergencyOrderID    *string `json:"emergency_order_id"`
		NotificationPending bool    `json:"notification_pending"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", false, fmt.Errorf("failed to decode emergency check response: %w", err)
	}
	if resp.EmergencyOrderID == nil {
		return "", false, nil
	}
	return *resp.EmergencyOrderID, resp.NotificationPending, nil
}

// Roster loads the full on-call roster.
func (c *Client) Roster(ctx context.Context) ([]RosterTechnician, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/api/emergency/tecs", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("roster request returned status %d", status)
	}

	var tecs []RosterTechnician
	if err := json.Unmarshal(body, &tecs); err != nil {
		return nil, fmt.Errorf("failed to decode roster: %w", err)
	}
	return tecs, nil
}

// Clients loads the serviced client list used by the affinity editor.
func (c *Client) Clients(ctx context.Context) ([]RosterClient, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/api/emergency/clients", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("client list request returned status %d", status)
	}

	var clients []RosterClient
	if err := json.Unmarshal(body, &clients); err != nil {
		return nil, fmt.Errorf("failed to decode client list: %w", err)
	}
	return clients, nil
}

// SetOnCall toggles a technician's on-call flag, then refreshes the full
// roster so the caller sees any cascading eligibility change. No optimistic
// local mutation: eligibility is safety-relevant, so the prior roster stays
// authoritative until the server confirms the write.
func (c *Client) SetOnCall(ctx context.Context, tecID int64, value bool) ([]RosterTechnician, error) {
	payload := map[string]any{"on_call": value}
	status, body, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/emergency/tecs/%d/toggle", tecID), payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("on-call toggle failed: %s", serverMessage(body, status))
	}
	return c.Roster(ctx)
}

// ReplaceClients submits the complete target affinity set for a technician
// (whole-set replacement; the last submission wins) and refreshes the roster.
func (c *Client) ReplaceClients(ctx context.Context, tecID int64, clientIDs []int64) ([]RosterTechnician, error) {
	payload := map[string]any{"clients": clientIDs}
	status, body, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/emergency/tecs/%d/clients", tecID), payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("client set replacement failed: %s", serverMessage(body, status))
	}
	return c.Roster(ctx)
}

// do issues one request and returns the status code and body.
func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(tecHeader, strconv.FormatInt(c.tecID, 10))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, body, nil
}

// serverMessage extracts the error message a handler attached, falling back
// to the bare status code.
func serverMessage(body []byte, status int) string {
	var resp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err == nil {
		if resp.Error != "" {
			return resp.Error
		}
		if resp.Message != "" {
			return resp.Message
		}
	}
	return fmt.Sprintf("status %d", status)
}
