package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"stageline/internal/config"
	"stageline/internal/domain"
	"stageline/internal/engine"
	"stageline/internal/metrics"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// Webhook delivery headers.
const (
	HeaderEvent     = "X-Stageline-Event"
	HeaderDelivery  = "X-Stageline-Delivery"
	HeaderTenant    = "X-Stageline-Tenant"
	HeaderSignature = "X-Stageline-Signature"
)

// WebhookDispatcher forwards timeline events to the configured webhooks.
// Each webhook keeps its own cursor, which starts at the latest event when
// the dispatcher first sees it, so only events appended afterwards are sent.
type WebhookDispatcher struct {
	engine   engine.Engine
	webhooks []config.WebhookConfig
	client   *http.Client
	log      *slog.Logger
	interval time.Duration
	mu       sync.Mutex
	cursors  map[int]int64
}

func NewWebhookDispatcher(e engine.Engine, log *slog.Logger) *WebhookDispatcher {
	if log == nil {
		log = slog.Default()
	}
	var hooks []config.WebhookConfig
	if e.Config != nil {
		hooks = e.Config.Webhooks
	}
	return &WebhookDispatcher{
		engine:   e,
		webhooks: hooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		log:      log.With("component", "webhooks"),
		interval: defaultWebhookInterval,
		cursors:  make(map[int]int64),
	}
}

// Start runs the dispatcher in the background until ctx is done. It does
// nothing when no webhook is configured.
func (d *WebhookDispatcher) Start(ctx context.Context) {
	if len(d.webhooks) == 0 {
		return
	}
	go d.run(ctx)
}

func (d *WebhookDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		d.DispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchAll delivers pending events to every webhook once.
func (d *WebhookDispatcher) DispatchAll(ctx context.Context) {
	for i, hook := range d.webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(ctx, i, hook)
	}
}

func (d *WebhookDispatcher) dispatchWebhook(ctx context.Context, idx int, hook config.WebhookConfig) {
	cursor := d.cursorFor(ctx, idx)
	events, err := d.engine.Repo.EventsAfter(ctx, defaultWebhookBatch, cursor, hook.Tenant)
	if err != nil {
		d.log.Error("fetch events failed", "err", err)
		return
	}
	filter := newEventFilter(hook.Events)
	for _, evt := range events {
		if !filter.match(evt.Action) {
			d.setCursor(idx, evt.ID)
			continue
		}
		err := d.postEvent(ctx, hook, evt)
		metrics.WebhookDelivered(err == nil)
		if err != nil {
			// Retried from the same event on the next tick.
			d.log.Warn("delivery failed", "url", hook.URL, "event_id", evt.ID, "err", err)
			return
		}
		d.log.Debug("delivered", "url", hook.URL, "event_id", evt.ID, "action", evt.Action)
		d.setCursor(idx, evt.ID)
	}
}

func (d *WebhookDispatcher) cursorFor(ctx context.Context, idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur, err := d.engine.Repo.LatestEventID(ctx)
	if err != nil {
		d.log.Error("init cursor failed", "err", err)
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *WebhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

// WebhookEvent is the JSON body posted to webhooks.
type WebhookEvent struct {
	ID          int64           `json:"id"`
	TenantID    string          `json:"tenant_id"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Action      string          `json:"action"`
	ActorUserID string          `json:"actor_user_id,omitempty"`
	ActorRole   string          `json:"actor_role,omitempty"`
	CreatedAt   string          `json:"created_at"`
	Metadata    json.RawMessage `json:"metadata"`
}

func (d *WebhookDispatcher) postEvent(ctx context.Context, hook config.WebhookConfig, evt domain.TimelineEvent) error {
	metadata := json.RawMessage("{}")
	if evt.Metadata != "" && json.Valid([]byte(evt.Metadata)) {
		metadata = json.RawMessage(evt.Metadata)
	}
	data, err := json.Marshal(WebhookEvent{
		ID:          evt.ID,
		TenantID:    evt.TenantID,
		EntityType:  evt.EntityType,
		EntityID:    evt.EntityID,
		Action:      evt.Action,
		ActorUserID: stringOrEmpty(evt.ActorUserID),
		ActorRole:   stringOrEmpty(evt.ActorRole),
		CreatedAt:   evt.CreatedAt.UTC().Format(time.RFC3339Nano),
		Metadata:    metadata,
	})
	if err != nil {
		return err
	}
	client := d.client
	if hook.TimeoutMS > 0 {
		client = &http.Client{Timeout: time.Duration(hook.TimeoutMS) * time.Millisecond}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, evt.Action)
	req.Header.Set(HeaderDelivery, fmt.Sprintf("%d", evt.ID))
	req.Header.Set(HeaderTenant, evt.TenantID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set(HeaderSignature, Sign(hook.Secret, data))
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

// Sign returns the signature header value for body: "sha256=" followed by
// the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(actions []string) eventFilter {
	set := make(map[string]struct{}, len(actions))
	for _, action := range actions {
		key := strings.ToUpper(strings.TrimSpace(action))
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(action string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[strings.ToUpper(action)]
	return ok
}
