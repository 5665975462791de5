// internal/tracker/client.go
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Lifecycle actions understood by the activity-session endpoint.
const (
	ActionStartSession  = "start_session"
	ActionUpdateSession = "update_session"
	ActionEndSession    = "end_session"
)

// LifecycleInfo identifies the session a lifecycle call is for.
type LifecycleInfo struct {
	Identity  Identity
	SessionID string
	Page      string
	Timestamp time.Time
}

// sessionRequest is the JSON body for POST /activity-session.
type sessionRequest struct {
	Action       string    `json:"action"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Branch       string    `json:"branch"`
	SessionID    string    `json:"sessionId"`
	Page         string    `json:"page,omitempty"`
	ActiveTime   int64     `json:"activeTime,omitempty"` // milliseconds
	IdleTime     int64     `json:"idleTime,omitempty"`   // milliseconds
	Interactions int       `json:"interactions,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// actionRequest is the JSON body for POST /activity-actions.
type actionRequest struct {
	UserID     string          `json:"userId"`
	Username   string          `json:"username"`
	Branch     string          `json:"branch,omitempty"`
	ActionType string          `json:"actionType"`
	Metadata   *actionMetadata `json:"metadata,omitempty"`
	SessionID  string          `json:"sessionId,omitempty"`
	Timestamp  time.Time       `json:"timestamp,omitempty"`
}

type actionMetadata struct {
	Page       string         `json:"page,omitempty"`
	Duration   int64          `json:"duration,omitempty"` // milliseconds
	ActionData map[string]any `json:"actionData,omitempty"`
}

// Client dispatches tracker state to the server. Every call is
// fire-and-forget: failures are logged and swallowed, the client never
// blocks the caller and never retries. The next periodic sync carries
// fresh accumulated time, so a lost push heals itself.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
	timeout time.Duration
}

// NewClient creates a dispatch client for the given server base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     logger,
		timeout: 10 * time.Second,
	}
}

// StartSession fires the start_session lifecycle call.
func (c *Client) StartSession(info LifecycleInfo) {
	c.postSession(info, ActionStartSession, Delta{})
}

// UpdateSession fires an additive delta push.
func (c *Client) UpdateSession(info LifecycleInfo, d Delta) {
	c.postSession(info, ActionUpdateSession, d)
}

// EndSession fires the end_session lifecycle call with the final delta.
func (c *Client) EndSession(info LifecycleInfo, d Delta) {
	c.postSession(info, ActionEndSession, d)
}

func (c *Client) postSession(info LifecycleInfo, action string, d Delta) {
	req := sessionRequest{
		Action:       action,
		UserID:       info.Identity.UserID,
		Username:     info.Identity.Username,
		Branch:       info.Identity.Branch,
		SessionID:    info.SessionID,
		Page:         info.Page,
		ActiveTime:   d.Active.Milliseconds(),
		IdleTime:     d.Idle.Milliseconds(),
		Interactions: d.Interactions,
		Timestamp:    info.Timestamp,
	}
	go c.post("/activity-session", action, req)
}

// DispatchAction fires a single action record to the server.
func (c *Client) DispatchAction(id Identity, sessionID string, a Action) {
	req := actionRequest{
		UserID:     id.UserID,
		Username:   id.Username,
		Branch:     id.Branch,
		ActionType: string(a.Kind),
		SessionID:  sessionID,
		Timestamp:  a.Time,
		Metadata: &actionMetadata{
			Page:       a.Page,
			Duration:   a.Duration.Milliseconds(),
			ActionData: payloadFields(a.Payload),
		},
	}
	go c.post("/activity-actions", string(a.Kind), req)
}

// payloadFields flattens a typed payload into the wire metadata shape.
func payloadFields(p Payload) map[string]any {
	switch v := p.(type) {
	case PageViewPayload:
		return map[string]any{"page": v.Page}
	case ExportPayload:
		return map[string]any{"format": v.Format, "rows": v.Rows}
	case DownloadPayload:
		return map[string]any{"report": v.Report}
	case PredictionPayload:
		return map[string]any{"productCount": v.ProductCount, "horizon": v.Horizon}
	case PredictionViewPayload:
		return map[string]any{"predictionId": v.PredictionID}
	case SessionMarkerPayload:
		return map[string]any{"durationMs": v.Duration.Milliseconds()}
	default:
		return nil
	}
}

func (c *Client) post(path, what string, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		c.log.Warn("activity dispatch encode failed",
			zap.String("what", what), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.log.Warn("activity dispatch request failed",
			zap.String("what", what), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("activity dispatch dropped",
			zap.String("what", what), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		c.log.Warn("activity dispatch rejected",
			zap.String("what", what),
			zap.String("status", fmt.Sprintf("%d", resp.StatusCode)))
	}
}
