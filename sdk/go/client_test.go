package stagelinesdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]any
}

func newFakeAPI(t *testing.T, status int, response string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.RawQuery
		rec.auth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			assert.NoError(t, json.Unmarshal(data, &rec.body))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, "tok"), rec
}

func TestMoveCard(t *testing.T) {
	c, rec := newFakeAPI(t, http.StatusOK, `{"id":"c1","stage_id":"s2","position":1,"title":"Job","tags":[],"status":"ACTIVE","overdue":false}`)

	card, err := c.MoveCard(context.Background(), "c1", "s2", 1)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/v1/cards/c1/move", rec.path)
	assert.Equal(t, "Bearer tok", rec.auth)
	assert.Equal(t, "s2", rec.body["stage_id"])
	assert.EqualValues(t, 1, rec.body["position"])
	assert.Equal(t, "s2", card.StageID)
}

func TestKanbanDecodesColumns(t *testing.T) {
	c, rec := newFakeAPI(t, http.StatusOK, `[{"id":"s1","name":"Lead","position":1,"color":"#6B7280","is_final":false,"is_lost":false,"active_cards":1,
		"cards":[{"id":"c1","stage_id":"s1","position":1,"title":"Job","tags":["vip"],"status":"ACTIVE","overdue":true,
		"customer":{"id":"cu1","name":"Ana"}}]}]`)

	board, err := c.Kanban(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/v1/kanban", rec.path)
	require.Len(t, board, 1)
	assert.Equal(t, "Lead", board[0].Name)
	require.Len(t, board[0].Cards, 1)
	assert.True(t, board[0].Cards[0].Overdue)
	assert.Equal(t, "Ana", board[0].Cards[0].Customer.Name)
}

func TestCardsEncodesFilter(t *testing.T) {
	c, rec := newFakeAPI(t, http.StatusOK, `{"items":[],"total":0,"page":2,"limit":5,"total_pages":0,"has_more":false}`)

	page, err := c.Cards(context.Background(), CardFilter{Search: "abc", Tags: []string{"a", "b"}, Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, "/v1/cards", rec.path)
	assert.Equal(t, "limit=5&page=2&search=abc&tags=a%2Cb", rec.query)
	assert.Equal(t, 2, page.Page)
}

func TestDeleteCardNoContent(t *testing.T) {
	c, rec := newFakeAPI(t, http.StatusNoContent, "")
	require.NoError(t, c.DeleteCard(context.Background(), "c1"))
	assert.Equal(t, http.MethodDelete, rec.method)
}

func TestErrorEnvelope(t *testing.T) {
	c, _ := newFakeAPI(t, http.StatusConflict, `{"error":{"code":"conflict","message":"stage has cards"}}`)

	err := c.DeleteStage(context.Background(), "s1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "conflict", apiErr.Code)
	assert.Equal(t, "stage has cards", apiErr.Message)
}

func TestSeedStages(t *testing.T) {
	c, rec := newFakeAPI(t, http.StatusOK, `{"seeded":true,"stages":[{"id":"s1","name":"Lead","position":1}]}`)

	stages, seeded, err := c.SeedStages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/v1/stages/seed", rec.path)
	assert.True(t, seeded)
	assert.Len(t, stages, 1)
}
