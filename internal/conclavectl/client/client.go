// Package client is the HTTP client for the conclaved agent API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mellis-dev/conclave/pkg/utils/json"
)

// Agent is the wire shape of one managed agent.
type Agent struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Task      string `json:"task"`
	Status    string `json:"status"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

// SpawnRequest is the request body for spawning an agent.
type SpawnRequest struct {
	Task     string   `json:"task"`
	Items    []string `json:"items,omitempty"`
	Name     string   `json:"name,omitempty"`
	ModelRef string   `json:"model_ref,omitempty"`
}

// WaitResult reports the first-past-the-post wait outcome.
type WaitResult struct {
	TimedOut bool              `json:"timed_out"`
	Statuses map[string]string `json:"statuses"`
}

// AbortResult carries the partial output captured before the abort.
type AbortResult struct {
	AgentID string `json:"agent_id"`
	Output  string `json:"output,omitempty"`
}

// ToolCall mirrors the server's gated tool call shape.
type ToolCall struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Args     map[string]interface{} `json:"args,omitempty"`
	Approval *struct {
		Outcome string `json:"outcome"`
		Reason  string `json:"reason,omitempty"`
	} `json:"approval,omitempty"`
}

// Event is one entry of the session's live event stream.
type Event struct {
	Type     string    `json:"type"`
	AgentID  string    `json:"agent_id,omitempty"`
	CallID   string    `json:"call_id,omitempty"`
	Delta    string    `json:"delta,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
	Status   string    `json:"status,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ConclaveClient is the HTTP client for the conclaved /v1 API.
type ConclaveClient struct {
	BaseURL    string
	Session    string
	HTTPClient *http.Client
}

// New creates a client bound to one session.
func New(baseURL, session string, httpClient *http.Client) *ConclaveClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &ConclaveClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Session:    session,
		HTTPClient: httpClient,
	}
}

func (c *ConclaveClient) sessionPath(suffix string) string {
	return fmt.Sprintf("%s/v1/sessions/%s%s", c.BaseURL, c.Session, suffix)
}

// Spawn creates a new agent and returns its id.
func (c *ConclaveClient) Spawn(ctx context.Context, req *SpawnRequest) (string, error) {
	var resp struct {
		AgentID string `json:"agent_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.sessionPath("/agents"), req, &resp); err != nil {
		return "", err
	}
	return resp.AgentID, nil
}

// List returns all resident agents of the session.
func (c *ConclaveClient) List(ctx context.Context) ([]Agent, error) {
	var resp struct {
		Data []Agent `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.sessionPath("/agents"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Get returns one agent.
func (c *ConclaveClient) Get(ctx context.Context, agentID string) (*Agent, error) {
	var agent Agent
	if err := c.doJSON(ctx, http.MethodGet, c.sessionPath("/agents/"+agentID), nil, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// Input delivers a follow-up message to an agent.
func (c *ConclaveClient) Input(ctx context.Context, agentID, message string, interrupt bool) error {
	body := map[string]interface{}{"message": message, "interrupt": interrupt}
	return c.doJSON(ctx, http.MethodPost, c.sessionPath("/agents/"+agentID+"/input"), body, nil)
}

// Wait blocks until any of the named agents reaches a terminal state.
func (c *ConclaveClient) Wait(ctx context.Context, agentIDs []string, timeoutSec int) (*WaitResult, error) {
	body := map[string]interface{}{"agent_ids": agentIDs, "timeout_sec": timeoutSec}
	var result WaitResult
	if err := c.doJSON(ctx, http.MethodPost, c.sessionPath("/wait"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Abort cancels an agent and returns its partial output.
func (c *ConclaveClient) Abort(ctx context.Context, agentID string) (*AbortResult, error) {
	var result AbortResult
	if err := c.doJSON(ctx, http.MethodPost, c.sessionPath("/agents/"+agentID+"/abort"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Resume reactivates an agent from its persisted history.
func (c *ConclaveClient) Resume(ctx context.Context, agentID string) error {
	return c.doJSON(ctx, http.MethodPost, c.sessionPath("/agents/"+agentID+"/resume"), nil, nil)
}

// Approve resolves a pending approval request.
func (c *ConclaveClient) Approve(ctx context.Context, callID string, approved bool, reason string) error {
	body := map[string]interface{}{"approved": approved, "reason": reason}
	url := fmt.Sprintf("%s/v1/approvals/%s", c.BaseURL, callID)
	return c.doJSON(ctx, http.MethodPost, url, body, nil)
}

// EventCallback is called for each event on the live stream.
type EventCallback func(ev *Event)

// StreamEvents subscribes to the session's SSE stream and calls cb for
// each event until ctx is cancelled or the server closes the stream.
func (c *ConclaveClient) StreamEvents(ctx context.Context, cb EventCallback) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sessionPath("/events"), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	scanner := bufio.NewScanner(resp.Body)
	// Increase buffer for large deltas
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		var ev Event
		if err := json.UnmarshalString(data, &ev); err != nil {
			continue
		}
		cb(&ev)
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

// doJSON issues one request and decodes the response into out (when
// non-nil). Error envelopes are turned into descriptive errors.
func (c *ConclaveClient) doJSON(ctx context.Context, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("server error %d: %s", apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
