package stagelinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Stageline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BasePath:    "/v1",
		BearerToken: token,
		Timeout:     10 * time.Second,
	}
}

// Stage represents a pipeline column.
type Stage struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Position    int    `json:"position"`
	Color       string `json:"color"`
	SLAHours    *int   `json:"sla_hours,omitempty"`
	IsFinal     bool   `json:"is_final"`
	IsLost      bool   `json:"is_lost"`
	ActiveCards int    `json:"active_cards"`
}

// Ref is a shallow projection of a linked record.
type Ref struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Plate     string `json:"plate,omitempty"`
	Brand     string `json:"brand,omitempty"`
	Model     string `json:"model,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Color     string `json:"color,omitempty"`
}

// Card represents a card with its linked records.
type Card struct {
	ID             string     `json:"id"`
	StageID        string     `json:"stage_id"`
	Position       int        `json:"position"`
	Title          string     `json:"title"`
	CustomerID     *string    `json:"customer_id,omitempty"`
	VehicleID      *string    `json:"vehicle_id,omitempty"`
	AssignedToID   *string    `json:"assigned_to_id,omitempty"`
	Channel        *string    `json:"channel,omitempty"`
	EstimatedValue *float64   `json:"estimated_value,omitempty"`
	Complaint      *string    `json:"complaint,omitempty"`
	Diagnosis      *string    `json:"diagnosis,omitempty"`
	Tags           []string   `json:"tags"`
	Status         string     `json:"status"`
	SLADeadline    *time.Time `json:"sla_deadline,omitempty"`
	Overdue        bool       `json:"overdue"`
	Customer       *Ref       `json:"customer,omitempty"`
	Vehicle        *Ref       `json:"vehicle,omitempty"`
	AssignedTo     *Ref       `json:"assigned_to,omitempty"`
	Stage          *Ref       `json:"stage,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Column is one Kanban column: a stage and its active cards in order.
type Column struct {
	Stage
	Cards []Card `json:"cards"`
}

// Event represents a timeline entry.
type Event struct {
	ID          int64          `json:"id"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	Action      string         `json:"action"`
	ActorUserID string         `json:"actor_user_id,omitempty"`
	ActorRole   string         `json:"actor_role,omitempty"`
	Actor       *Ref           `json:"actor,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Page is one page of a list response.
type Page[T any] struct {
	Items      []T  `json:"items"`
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// StageInput creates a stage; a zero Position appends it.
type StageInput struct {
	Name     string `json:"name"`
	Position int    `json:"position,omitempty"`
	Color    string `json:"color,omitempty"`
	SLAHours *int   `json:"sla_hours,omitempty"`
	IsFinal  bool   `json:"is_final,omitempty"`
	IsLost   bool   `json:"is_lost,omitempty"`
}

// CardInput creates a card at the end of a stage.
type CardInput struct {
	StageID        string   `json:"stage_id"`
	Title          string   `json:"title"`
	CustomerID     *string  `json:"customer_id,omitempty"`
	VehicleID      *string  `json:"vehicle_id,omitempty"`
	AssignedToID   *string  `json:"assigned_to_id,omitempty"`
	Channel        *string  `json:"channel,omitempty"`
	EstimatedValue *float64 `json:"estimated_value,omitempty"`
	Complaint      *string  `json:"complaint,omitempty"`
	Diagnosis      *string  `json:"diagnosis,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// CardFilter narrows ListCards. Zero values are ignored.
type CardFilter struct {
	StageID      string
	Status       string
	AssignedToID string
	CustomerID   string
	Search       string
	Tags         []string
	Page         int
	Limit        int
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Kanban returns the board.
func (c *Client) Kanban(ctx context.Context) ([]Column, error) {
	var resp []Column
	err := c.do(ctx, http.MethodGet, "kanban", nil, &resp)
	return resp, err
}

// Stages lists stages by position.
func (c *Client) Stages(ctx context.Context) ([]Stage, error) {
	var resp []Stage
	err := c.do(ctx, http.MethodGet, "stages", nil, &resp)
	return resp, err
}

// CreateStage creates a stage.
func (c *Client) CreateStage(ctx context.Context, in StageInput) (Stage, error) {
	var resp Stage
	err := c.do(ctx, http.MethodPost, "stages", in, &resp)
	return resp, err
}

// UpdateStage applies a partial update; keys follow the API field names.
func (c *Client) UpdateStage(ctx context.Context, id string, patch map[string]any) (Stage, error) {
	var resp Stage
	err := c.do(ctx, http.MethodPut, "stages/"+url.PathEscape(id), patch, &resp)
	return resp, err
}

// DeleteStage removes a stage that owns no cards.
func (c *Client) DeleteStage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "stages/"+url.PathEscape(id), nil, nil)
}

// ReorderStages assigns positions by stage id.
func (c *Client) ReorderStages(ctx context.Context, positions map[string]int) ([]Stage, error) {
	items := make([]map[string]any, 0, len(positions))
	for id, pos := range positions {
		items = append(items, map[string]any{"stage_id": id, "position": pos})
	}
	var resp []Stage
	err := c.do(ctx, http.MethodPut, "stages/reorder", map[string]any{"stages": items}, &resp)
	return resp, err
}

// SeedStages creates the default pipeline when the tenant has none.
func (c *Client) SeedStages(ctx context.Context) ([]Stage, bool, error) {
	var resp struct {
		Seeded bool    `json:"seeded"`
		Stages []Stage `json:"stages"`
	}
	err := c.do(ctx, http.MethodPost, "stages/seed", nil, &resp)
	return resp.Stages, resp.Seeded, err
}

// CreateCard creates a card.
func (c *Client) CreateCard(ctx context.Context, in CardInput) (Card, error) {
	var resp Card
	err := c.do(ctx, http.MethodPost, "cards", in, &resp)
	return resp, err
}

// Card fetches a card by id.
func (c *Client) Card(ctx context.Context, id string) (Card, error) {
	var resp Card
	err := c.do(ctx, http.MethodGet, "cards/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// UpdateCard applies a partial update; keys follow the API field names.
func (c *Client) UpdateCard(ctx context.Context, id string, patch map[string]any) (Card, error) {
	var resp Card
	err := c.do(ctx, http.MethodPut, "cards/"+url.PathEscape(id), patch, &resp)
	return resp, err
}

// MoveCard places a card at a 1-based position in a stage.
func (c *Client) MoveCard(ctx context.Context, id, stageID string, position int) (Card, error) {
	body := map[string]any{
		"stage_id": stageID,
		"position": position,
	}
	var resp Card
	err := c.do(ctx, http.MethodPut, "cards/"+url.PathEscape(id)+"/move", body, &resp)
	return resp, err
}

// DeleteCard soft deletes a card.
func (c *Client) DeleteCard(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "cards/"+url.PathEscape(id), nil, nil)
}

// Cards lists cards matching f.
func (c *Client) Cards(ctx context.Context, f CardFilter) (Page[Card], error) {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("stage_id", f.StageID)
	set("status", f.Status)
	set("assigned_to_id", f.AssignedToID)
	set("customer_id", f.CustomerID)
	set("search", f.Search)
	set("tags", strings.Join(f.Tags, ","))
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	endpoint := "cards"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp Page[Card]
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// OverdueCards lists active cards past their SLA deadline.
func (c *Client) OverdueCards(ctx context.Context) ([]Card, error) {
	var resp []Card
	err := c.do(ctx, http.MethodGet, "cards/overdue", nil, &resp)
	return resp, err
}

// CardTimeline returns one page of a card's history, newest first.
func (c *Client) CardTimeline(ctx context.Context, id string, page, limit int) (Page[Event], error) {
	endpoint := fmt.Sprintf("cards/%s/timeline?page=%d&limit=%d", url.PathEscape(id), page, limit)
	var resp Page[Event]
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// RecentEvents returns the tenant activity feed.
func (c *Client) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "timeline/recent"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// RecordEvent appends an externally produced event, such as a proposal
// being sent.
func (c *Client) RecordEvent(ctx context.Context, entityType, entityID, action string, metadata map[string]any) (int64, error) {
	body := map[string]any{
		"entity_type": entityType,
		"entity_id":   entityID,
		"action":      action,
	}
	if metadata != nil {
		body["metadata"] = metadata
	}
	var resp struct {
		ID int64 `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "timeline/events", body, &resp)
	return resp.ID, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var reader io.Reader = http.NoBody
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		reader = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
