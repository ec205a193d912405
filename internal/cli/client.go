package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// LeaseResponse — lease из API.
type LeaseResponse struct {
	OwnerToken       string  `json:"owner_token"`
	AcquiredAt       string  `json:"acquired_at"`
	ExpiresAt        string  `json:"expires_at"`
	Expired          bool    `json:"expired"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

// ScopeResponse — scope из API.
type ScopeResponse struct {
	ID           string         `json:"id"`
	ChatID       int64          `json:"chat_id"`
	Name         string         `json:"name,omitempty"`
	PollCron     string         `json:"poll_cron"`
	PairingCron  string         `json:"pairing_cron"`
	Timezone     string         `json:"timezone"`
	Phase        string         `json:"phase"`
	LatestCycle  *CycleResponse `json:"latest_cycle,omitempty"`
	NextOpensAt  string         `json:"next_opens_at,omitempty"`
	NextClosesAt string         `json:"next_closes_at,omitempty"`
}

// CycleResponse — цикл из API.
type CycleResponse struct {
	ID           string `json:"id"`
	ScopeID      string `json:"scope_id"`
	CycleKey     string `json:"cycle_key"`
	Status       string `json:"status"`
	OpensAt      string `json:"opens_at"`
	ClosesAt     string `json:"closes_at"`
	GroupCount   int    `json:"group_count"`
	Insufficient bool   `json:"insufficient"`
	CommittedAt  string `json:"committed_at,omitempty"`
	NotifiedAt   string `json:"notified_at,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// CycleDetailResponse — цикл с группами.
type CycleDetailResponse struct {
	CycleResponse
	Groups []GroupResponse `json:"groups"`
}

// GroupResponse — группа из API.
type GroupResponse struct {
	Members []MemberResponse `json:"members"`
}

// MemberResponse — участник группы.
type MemberResponse struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

// PairCountResponse — запись истории из API.
type PairCountResponse struct {
	A       int64  `json:"a"`
	B       int64  `json:"b"`
	Count   int    `json:"count"`
	LastMet string `json:"last_met"`
}

// PreviewResponse — пробное распределение из API.
type PreviewResponse struct {
	ScopeID      string          `json:"scope_id"`
	CycleKey     string          `json:"cycle_key"`
	Participants int             `json:"participants"`
	Groups       []GroupResponse `json:"groups"`
	Repeats      int             `json:"repeats"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ошибка, которую вернул сервер.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Client ---

// Client — HTTP-клиент для API random coffee.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetLease возвращает текущую запись lease.
func (c *Client) GetLease(ctx context.Context) (*LeaseResponse, error) {
	var lease LeaseResponse
	err := c.get(ctx, "/api/v1/lease", &lease)
	return &lease, err
}

// ListScopes возвращает сконфигурированные scope.
func (c *Client) ListScopes(ctx context.Context) ([]ScopeResponse, error) {
	var scopes []ScopeResponse
	err := c.list(ctx, "/api/v1/scopes", nil, &scopes)
	return scopes, err
}

// ListCycles возвращает циклы scope, новые первыми.
func (c *Client) ListCycles(ctx context.Context, scopeID string, limit int) ([]CycleResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var cycles []CycleResponse
	err := c.list(ctx, "/api/v1/scopes/"+url.PathEscape(scopeID)+"/cycles", params, &cycles)
	return cycles, err
}

// GetCycle возвращает цикл с группами.
func (c *Client) GetCycle(ctx context.Context, id string) (*CycleDetailResponse, error) {
	var cycle CycleDetailResponse
	err := c.get(ctx, "/api/v1/cycles/"+url.PathEscape(id), &cycle)
	return &cycle, err
}

// GetHistory возвращает историю встреч scope.
func (c *Client) GetHistory(ctx context.Context, scopeID string) ([]PairCountResponse, error) {
	var counts []PairCountResponse
	err := c.list(ctx, "/api/v1/scopes/"+url.PathEscape(scopeID)+"/history", nil, &counts)
	return counts, err
}

// Preview запрашивает пробное распределение для цикла.
func (c *Client) Preview(ctx context.Context, scopeID, cycleKey string) (*PreviewResponse, error) {
	body := map[string]string{"cycle_key": cycleKey}
	var preview PreviewResponse
	err := c.post(ctx, "/api/v1/scopes/"+url.PathEscape(scopeID)+"/preview", body, &preview)
	return &preview, err
}

// --- HTTP helpers ---

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.doData(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	return c.doData(ctx, http.MethodPost, path, body, result)
}

func (c *Client) list(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode}
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}
	return apiErr
}
