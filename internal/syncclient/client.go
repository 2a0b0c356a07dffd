// Package syncclient is the HTTP client for the hosted sync server.
package syncclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// Client is an HTTP client for the kanban sync server.
type Client struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	HTTP     *http.Client
}

// New creates a new sync client.
func New(baseURL, apiKey, deviceID string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		APIKey:   apiKey,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// --- Auth types (mirrors internal/api/auth.go, independently defined) ---

// LoginStartResponse is the response from POST /v1/auth/login/start.
type LoginStartResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// LoginPollResponse is the response from POST /v1/auth/login/poll.
type LoginPollResponse struct {
	Status    string  `json:"status"`
	APIKey    *string `json:"api_key,omitempty"`
	UserID    *string `json:"user_id,omitempty"`
	Email     *string `json:"email,omitempty"`
	ExpiresAt *string `json:"expires_at,omitempty"`
}

// --- Board types ---

// BoardResponse represents a hosted board from the server.
type BoardResponse struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
	DeletedAt *string `json:"deleted_at,omitempty"`
}

// --- Sync types (mirrors internal/api/sync.go, independently defined) ---

// PushRequest is the body for POST /v1/boards/{id}/sync/push.
type PushRequest struct {
	DeviceID  string       `json:"device_id"`
	SessionID string       `json:"session_id"`
	Events    []EventInput `json:"events"`
}

// EventInput is a single event in a push request.
type EventInput struct {
	ClientActionID  string          `json:"client_action_id"`
	ActionType      string          `json:"action_type"`
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	Payload         json.RawMessage `json:"payload"`
	ClientTimestamp string          `json:"client_timestamp"`
}

// PushResponse is the response from a push request.
type PushResponse struct {
	Accepted int              `json:"accepted"`
	Acks     []AckResponse    `json:"acks"`
	Rejected []RejectResponse `json:"rejected,omitempty"`
}

// AckResponse is a single acknowledged event.
type AckResponse struct {
	ClientActionID string `json:"client_action_id"`
	ServerSeq      int64  `json:"server_seq"`
}

// RejectResponse is a single rejected event.
type RejectResponse struct {
	ClientActionID string `json:"client_action_id"`
	Reason         string `json:"reason"`
	ServerSeq      int64  `json:"server_seq,omitempty"`
}

// PullResponse is the response from a pull request.
type PullResponse struct {
	Events        []PullEvent `json:"events"`
	LastServerSeq int64       `json:"last_server_seq"`
	HasMore       bool        `json:"has_more"`
}

// PullEvent is a single event in a pull response.
type PullEvent struct {
	ServerSeq       int64           `json:"server_seq"`
	DeviceID        string          `json:"device_id"`
	SessionID       string          `json:"session_id"`
	ClientActionID  string          `json:"client_action_id"`
	ActionType      string          `json:"action_type"`
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	Payload         json.RawMessage `json:"payload"`
	ClientTimestamp string          `json:"client_timestamp"`
}

// SyncStatusResponse is the response from GET /v1/boards/{id}/sync/status.
type SyncStatusResponse struct {
	EventCount    int64  `json:"event_count"`
	LastServerSeq int64  `json:"last_server_seq"`
	LastEventTime string `json:"last_event_time,omitempty"`
	DeviceSeq     *int64 `json:"device_seq,omitempty"`
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck hits the /healthz endpoint to verify server reachability.
func (c *Client) HealthCheck() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doNoAuth("GET", "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Auth methods ---

// LoginStart initiates the device auth flow. No API key required.
func (c *Client) LoginStart(email string) (*LoginStartResponse, error) {
	body := map[string]string{"email": email}
	var resp LoginStartResponse
	if err := c.doNoAuth("POST", "/v1/auth/login/start", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LoginPoll checks the status of a device auth request. No API key required.
func (c *Client) LoginPoll(deviceCode string) (*LoginPollResponse, error) {
	body := map[string]string{"device_code": deviceCode}
	var resp LoginPollResponse
	if err := c.doNoAuth("POST", "/v1/auth/login/poll", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Board methods ---

// CreateBoard registers a board on the server. id is the local board id;
// the server keeps it so both sides agree on the name of the event log.
func (c *Client) CreateBoard(id, title string) (*BoardResponse, error) {
	body := map[string]string{"id": id, "title": title}
	var resp BoardResponse
	if err := c.do("POST", "/v1/boards", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListBoards lists all hosted boards for the authenticated user.
func (c *Client) ListBoards() ([]BoardResponse, error) {
	var resp []BoardResponse
	if err := c.do("GET", "/v1/boards", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetBoard fetches a single hosted board.
func (c *Client) GetBoard(boardID string) (*BoardResponse, error) {
	var resp BoardResponse
	if err := c.do("GET", "/v1/boards/"+url.PathEscape(boardID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Member types ---

// MemberResponse represents a board member from the server.
type MemberResponse struct {
	BoardID   string `json:"board_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	InvitedBy string `json:"invited_by"`
	CreatedAt string `json:"created_at"`
}

// --- Member methods ---

// AddMember invites a user to a board by email.
func (c *Client) AddMember(boardID, email, role string) (*MemberResponse, error) {
	body := map[string]string{"email": email, "role": role}
	var resp MemberResponse
	if err := c.do("POST", fmt.Sprintf("/v1/boards/%s/members", boardID), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListMembers lists all members of a board.
func (c *Client) ListMembers(boardID string) ([]MemberResponse, error) {
	var resp []MemberResponse
	if err := c.do("GET", fmt.Sprintf("/v1/boards/%s/members", boardID), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// UpdateMemberRole changes a member's role on a board.
func (c *Client) UpdateMemberRole(boardID, userID, role string) error {
	body := map[string]string{"role": role}
	return c.do("PATCH", fmt.Sprintf("/v1/boards/%s/members/%s", boardID, userID), body, nil)
}

// RemoveMember removes a user from a board.
func (c *Client) RemoveMember(boardID, userID string) error {
	return c.do("DELETE", fmt.Sprintf("/v1/boards/%s/members/%s", boardID, userID), nil, nil)
}

// --- Sync methods ---

// Push sends local events to the server.
func (c *Client) Push(boardID string, req *PushRequest) (*PushResponse, error) {
	var resp PushResponse
	if err := c.do("POST", fmt.Sprintf("/v1/boards/%s/sync/push", boardID), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PushWithRegister pushes, and if the server does not know the board yet
// (first push from this account, or a wiped server) registers it under
// the local board id and retries exactly once.
func (c *Client) PushWithRegister(boardID, boardTitle string, req *PushRequest) (*PushResponse, error) {
	resp, err := c.Push(boardID, req)
	if err == nil {
		return resp, nil
	}
	if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrForbidden) {
		return nil, err
	}

	if _, cerr := c.CreateBoard(boardID, boardTitle); cerr != nil {
		return nil, fmt.Errorf("register board %s: %w", boardID, cerr)
	}
	return c.Push(boardID, req)
}

// Pull fetches remote events from the server. The client's own device id
// is always excluded so a device never replays its own events.
func (c *Client) Pull(boardID string, afterSeq int64, limit int) (*PullResponse, error) {
	params := url.Values{}
	params.Set("after_server_seq", strconv.FormatInt(afterSeq, 10))
	params.Set("limit", strconv.Itoa(limit))
	if c.DeviceID != "" {
		params.Set("device_id", c.DeviceID)
	}

	var resp PullResponse
	if err := c.do("GET", fmt.Sprintf("/v1/boards/%s/sync/pull?%s", boardID, params.Encode()), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SyncStatus gets the sync status for a board.
func (c *Client) SyncStatus(boardID string) (*SyncStatusResponse, error) {
	params := url.Values{}
	if c.DeviceID != "" {
		params.Set("device_id", c.DeviceID)
	}
	path := fmt.Sprintf("/v1/boards/%s/sync/status", boardID)
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp SyncStatusResponse
	if err := c.do("GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Realtime ---

// WSTokenResponse is the response from POST /v1/boards/{id}/ws/token.
type WSTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// MintWSToken trades the API key for a short-lived websocket connect token.
func (c *Client) MintWSToken(boardID string) (*WSTokenResponse, error) {
	body := map[string]string{"device_id": c.DeviceID}
	var resp WSTokenResponse
	if err := c.do("POST", fmt.Sprintf("/v1/boards/%s/ws/token", boardID), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WSURL builds the websocket URL for a board given a connect token.
func (c *Client) WSURL(boardID, token string) string {
	base := c.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return fmt.Sprintf("%s/v1/boards/%s/ws?token=%s", base, boardID, url.QueryEscape(token))
}

// --- HTTP helpers ---

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// do executes an authenticated HTTP request.
func (c *Client) do(method, path string, body, result any) error {
	return c.doRequest(method, path, body, result, true)
}

// doNoAuth executes an unauthenticated HTTP request.
func (c *Client) doNoAuth(method, path string, body, result any) error {
	return c.doRequest(method, path, body, result, false)
}

func (c *Client) doRequest(method, path string, body, result any, auth bool) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var wrapped struct {
			Error apiError `json:"error"`
		}
		msg := string(respBody)
		if json.Unmarshal(respBody, &wrapped) == nil && wrapped.Error.Code != "" {
			msg = wrapped.Error.Message
		}
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrForbidden, msg)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		}
		if wrapped.Error.Code != "" {
			e := wrapped.Error
			return &e
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
