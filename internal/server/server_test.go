package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stageline/internal/config"
	"stageline/internal/db"
	"stageline/internal/domain"
	"stageline/internal/engine"
	"stageline/internal/logger"
	"stageline/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
}

func newTestEngine(t *testing.T, cfg *config.Config) engine.Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = migrate.Migrate(context.Background(), conn)
	require.NoError(t, err)
	e := engine.New(conn, cfg)
	e.Logger = logger.Discard()
	return e
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	e := newTestEngine(t, cfg)
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth:     AuthConfig{JWTSecret: testSecret, StageAdminRoles: cfg.Server.StageAdminRoles},
		Logger:   logger.Discard(),
	})
	require.NoError(t, err)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ln.Close()
	})
	return &testServer{URL: "http://" + ln.Addr().String(), Engine: e, client: &http.Client{}}
}

func token(t *testing.T, tenantID, userID, role string) string {
	t.Helper()
	tok, err := IssueToken(testSecret, Principal{UserID: userID, TenantID: tenantID, Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, tok string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "stageline-test")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	res, err := s.client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func TestHealthIsPublic(t *testing.T) {
	srv := newTestServer(t)
	res, data := srv.do(t, http.MethodGet, "/v1/health", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.JSONEq(t, `{"status":"ok"}`, string(data))
}

func TestRequiresBearerToken(t *testing.T) {
	srv := newTestServer(t)

	res, data := srv.do(t, http.MethodGet, "/v1/kanban", "", nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "unauthorized", decode[errorEnvelope](t, data).Error.Code)

	res, data = srv.do(t, http.MethodGet, "/v1/kanban", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "invalid_credentials", decode[errorEnvelope](t, data).Error.Code)

	forged, err := IssueToken("other-secret", Principal{UserID: "u1", TenantID: "t1"}, time.Hour)
	require.NoError(t, err)
	res, _ = srv.do(t, http.MethodGet, "/v1/kanban", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestStageMutationsRequireAdminRole(t *testing.T) {
	srv := newTestServer(t)
	tech := token(t, "t1", "u-tech", "TECHNICIAN")
	manager := token(t, "t1", "u-mgr", "manager")

	res, data := srv.do(t, http.MethodPost, "/v1/stages", tech, map[string]any{"name": "Lead"})
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))
	assert.Equal(t, "forbidden", decode[errorEnvelope](t, data).Error.Code)

	res, data = srv.do(t, http.MethodPost, "/v1/stages", manager, map[string]any{"name": "Lead", "sla_hours": 24})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	stage := decode[domain.Stage](t, data)
	assert.Equal(t, 1, stage.Position)
	assert.Equal(t, "#6B7280", stage.Color)

	res, data = srv.do(t, http.MethodGet, "/v1/stages", tech, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Len(t, decode[[]domain.Stage](t, data), 1)
}

func TestCardLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	tok := token(t, "t1", "u-mgr", "MANAGER")

	res, data := srv.do(t, http.MethodPost, "/v1/stages/seed", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	seeded := decode[SeedStagesResponse](t, data)
	require.True(t, seeded.Seeded)
	require.GreaterOrEqual(t, len(seeded.Stages), 2)
	first, second := seeded.Stages[0], seeded.Stages[1]

	var ids []string
	for _, title := range []string{"A", "B", "C"} {
		res, data := srv.do(t, http.MethodPost, "/v1/cards", tok, map[string]any{"stage_id": first.ID, "title": title})
		require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
		ids = append(ids, decode[domain.CardView](t, data).ID)
	}

	res, data = srv.do(t, http.MethodPut, "/v1/cards/"+ids[2]+"/move", tok, map[string]any{"stage_id": first.ID, "position": 1})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, 1, decode[domain.CardView](t, data).Position)

	res, data = srv.do(t, http.MethodPut, "/v1/cards/"+ids[0]+"/move", tok, map[string]any{"stage_id": second.ID, "position": 1})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodGet, "/v1/kanban", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	board := decode[[]domain.KanbanColumn](t, data)
	require.Len(t, board, len(seeded.Stages))
	require.Len(t, board[0].Cards, 2)
	assert.Equal(t, ids[2], board[0].Cards[0].ID)
	assert.Equal(t, ids[1], board[0].Cards[1].ID)
	require.Len(t, board[1].Cards, 1)
	assert.Equal(t, ids[0], board[1].Cards[0].ID)

	res, data = srv.do(t, http.MethodPut, "/v1/cards/"+ids[1], tok, map[string]any{"title": "B2", "tags": []string{"vip"}})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, "B2", decode[domain.CardView](t, data).Title)

	res, data = srv.do(t, http.MethodGet, "/v1/cards?tags=vip", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	page := decode[CardPage](t, data)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, ids[1], page.Items[0].ID)

	res, data = srv.do(t, http.MethodGet, "/v1/cards/"+ids[0]+"/timeline", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	history := decode[EventPage](t, data)
	require.Equal(t, 2, history.Total)
	assert.Equal(t, "MOVED", history.Items[0].Action)
	assert.Equal(t, "CREATED", history.Items[1].Action)
	assert.Equal(t, "u-mgr", history.Items[0].ActorUserID)
	assert.Equal(t, "127.0.0.1", history.Items[0].IPAddress)
	assert.Equal(t, "stageline-test", history.Items[0].UserAgent)
	to, ok := history.Items[0].Metadata["to"].(map[string]any)
	require.True(t, ok, history.Items[0].Metadata)
	assert.Equal(t, second.ID, to["stageId"])

	res, _ = srv.do(t, http.MethodDelete, "/v1/cards/"+ids[1], tok, nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	res, data = srv.do(t, http.MethodGet, "/v1/cards/"+ids[1], tok, nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "not_found", decode[errorEnvelope](t, data).Error.Code)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	tok := token(t, "t1", "u-mgr", "OWNER")

	res, data := srv.do(t, http.MethodPost, "/v1/stages", tok, map[string]any{"name": "Lead"})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	stage := decode[domain.Stage](t, data)
	res, data = srv.do(t, http.MethodPost, "/v1/cards", tok, map[string]any{"stage_id": stage.ID, "title": "Job"})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	card := decode[domain.CardView](t, data)

	res, data = srv.do(t, http.MethodDelete, "/v1/stages/"+stage.ID, tok, nil)
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	assert.Equal(t, "conflict", decode[errorEnvelope](t, data).Error.Code)

	res, data = srv.do(t, http.MethodPut, "/v1/cards/"+card.ID+"/move", tok, map[string]any{"stage_id": stage.ID, "position": -1})
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Equal(t, "validation_error", decode[errorEnvelope](t, data).Error.Code)

	res, data = srv.do(t, http.MethodPut, "/v1/cards/"+card.ID+"/move", tok, map[string]any{"stage_id": "missing", "position": 1})
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, "/v1/cards", tok, map[string]any{"stage_id": stage.ID})
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
}

func TestTenantsAreIsolated(t *testing.T) {
	srv := newTestServer(t)
	owner := token(t, "t1", "u1", "OWNER")
	other := token(t, "t2", "u2", "OWNER")

	res, data := srv.do(t, http.MethodPost, "/v1/stages", owner, map[string]any{"name": "Lead"})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	stage := decode[domain.Stage](t, data)
	res, data = srv.do(t, http.MethodPost, "/v1/cards", owner, map[string]any{"stage_id": stage.ID, "title": "Job"})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	card := decode[domain.CardView](t, data)

	res, _ = srv.do(t, http.MethodGet, "/v1/cards/"+card.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res, _ = srv.do(t, http.MethodPost, "/v1/cards", other, map[string]any{"stage_id": stage.ID, "title": "Steal"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res, data = srv.do(t, http.MethodGet, "/v1/kanban", other, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, decode[[]domain.KanbanColumn](t, data))
}

func TestRecordEventAndRecentFeed(t *testing.T) {
	srv := newTestServer(t)
	tok := token(t, "t1", "u1", "SALES")

	res, data := srv.do(t, http.MethodPost, "/v1/timeline/events", tok, map[string]any{
		"entity_type": "proposal",
		"entity_id":   "p-1",
		"action":      "SENT",
		"metadata":    map[string]any{"total": 1200},
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	assert.Positive(t, decode[RecordEventResponse](t, data).ID)

	res, data = srv.do(t, http.MethodGet, "/v1/timeline/recent?limit=5", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	feed := decode[EventList](t, data)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "SENT", feed.Items[0].Action)
	assert.EqualValues(t, 1200, feed.Items[0].Metadata["total"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	tok := token(t, "t1", "u1", "OWNER")
	res, _ := srv.do(t, http.MethodPost, "/v1/stages", tok, map[string]any{"name": "Lead"})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res, data := srv.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "stageline_engine_operations_total")
}

func TestOpenAPIDocument(t *testing.T) {
	srv := newTestServer(t)
	res, data := srv.do(t, http.MethodGet, "/v1/openapi.json", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	doc := decode[map[string]any](t, data)
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/v1/cards/{card_id}/move")
	assert.Contains(t, paths, "/v1/kanban")
}

type capturedDelivery struct {
	header http.Header
	body   []byte
}

func TestWebhookDeliversSignedEvents(t *testing.T) {
	var mu sync.Mutex
	var got []capturedDelivery
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, capturedDelivery{header: r.Header.Clone(), body: body})
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	cfg := config.Default()
	cfg.Webhooks = []config.WebhookConfig{{URL: hook.URL, Secret: "s3cret", Events: []string{"moved"}, Tenant: "t1"}}
	e := newTestEngine(t, cfg)
	ctx := context.Background()
	actor := domain.Actor{UserID: "u1", Role: "OWNER"}

	stage, err := e.CreateStage(ctx, "t1", actor, domain.StageInput{Name: "Lead"})
	require.NoError(t, err)
	d := NewWebhookDispatcher(e, logger.Discard())
	// The first pass only positions the cursor after existing events.
	d.DispatchAll(ctx)

	card, err := e.CreateCard(ctx, "t1", actor, domain.CardInput{StageID: stage.ID, Title: "Job"})
	require.NoError(t, err)
	_, err = e.MoveCard(ctx, "t1", actor, card.ID, stage.ID, 1)
	require.NoError(t, err)
	other, err := e.CreateStage(ctx, "t2", actor, domain.StageInput{Name: "Lead"})
	require.NoError(t, err)
	otherCard, err := e.CreateCard(ctx, "t2", actor, domain.CardInput{StageID: other.ID, Title: "Job"})
	require.NoError(t, err)
	_, err = e.MoveCard(ctx, "t2", actor, otherCard.ID, other.ID, 1)
	require.NoError(t, err)

	d.DispatchAll(ctx)
	d.DispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	delivery := got[0]
	assert.Equal(t, "MOVED", delivery.header.Get(HeaderEvent))
	assert.Equal(t, "t1", delivery.header.Get(HeaderTenant))
	assert.Equal(t, Sign("s3cret", delivery.body), delivery.header.Get(HeaderSignature))
	assert.True(t, strings.HasPrefix(delivery.header.Get(HeaderSignature), "sha256="))
	evt := decode[WebhookEvent](t, delivery.body)
	assert.Equal(t, card.ID, evt.EntityID)
	assert.Equal(t, "u1", evt.ActorUserID)
}

func TestWebhookRetriesFailedDelivery(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	cfg := config.Default()
	cfg.Webhooks = []config.WebhookConfig{{URL: hook.URL}}
	e := newTestEngine(t, cfg)
	ctx := context.Background()
	d := NewWebhookDispatcher(e, logger.Discard())
	d.DispatchAll(ctx)

	_, err := e.CreateStage(ctx, "t1", domain.Actor{UserID: "u1"}, domain.StageInput{Name: "Lead"})
	require.NoError(t, err)
	d.DispatchAll(ctx)
	d.DispatchAll(ctx)
	d.DispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}

func TestAuthOnlyGuardsBasePath(t *testing.T) {
	tests := []struct {
		path, base string
		want       bool
	}{
		{"/v1", "/v1", true},
		{"/v1/kanban", "/v1", true},
		{"/v1foo", "/v1", false},
		{"/v1foo/kanban", "/v1", false},
		{"/metrics", "/v1", false},
		{"/api/v1/cards", "/api/v1/", true},
		{"/anything", "/", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, underBasePath(tt.path, tt.base), "%s under %s", tt.path, tt.base)
	}

	srv := newTestServer(t)
	res, _ := srv.do(t, http.MethodGet, "/v1foo", "", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res, _ = srv.do(t, http.MethodGet, "/v1/kanban", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}
