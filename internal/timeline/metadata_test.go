package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeShapes(t *testing.T) {
	tests := []struct {
		name string
		meta Metadata
		want string
	}{
		{"card created", Created{Card: &CardSummary{Title: "Revisão", StageID: "s1"}}, `{"card":{"title":"Revisão","stageId":"s1"}}`},
		{"stage created", Created{Stage: &StageSummary{Name: "Inbox", Position: 1}}, `{"stage":{"name":"Inbox","position":1}}`},
		{"updated", Updated{Changes: map[string]any{"title": "x"}}, `{"changes":{"title":"x"}}`},
		{"moved", Moved{
			From: Placement{StageID: "a", StageName: "A", Position: 2},
			To:   Placement{StageID: "b", StageName: "B", Position: 1},
		}, `{"from":{"stageId":"a","stageName":"A","position":2},"to":{"stageId":"b","stageName":"B","position":1}}`},
		{"deleted", Deleted{Card: &CardSummary{Title: "x"}}, `{"card":{"title":"x"}}`},
		{"reordered", Reordered{From: 3, To: 1}, `{"from":3,"to":1}`},
		{"note", Note{Tag: ActionSent, Data: map[string]any{"proposal": "p-1"}}, `{"proposal":"p-1"}`},
		{"empty note", Note{Tag: ActionApproved}, `{}`},
		{"nil", nil, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.meta)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestActionFollowsType(t *testing.T) {
	assert.Equal(t, ActionCreated, Created{}.Action())
	assert.Equal(t, ActionUpdated, Updated{}.Action())
	assert.Equal(t, ActionMoved, Moved{}.Action())
	assert.Equal(t, ActionDeleted, Deleted{}.Action())
	assert.Equal(t, ActionReordered, Reordered{}.Action())
	assert.Equal(t, "APPROVED", Note{Tag: "APPROVED"}.Action())
}

func TestDecodeRoundTrip(t *testing.T) {
	moved := Moved{
		From: Placement{StageID: "a", StageName: "A", Position: 2},
		To:   Placement{StageID: "b", StageName: "B", Position: 1},
	}
	raw, err := Encode(moved)
	require.NoError(t, err)
	got, err := Decode(ActionMoved, raw)
	require.NoError(t, err)
	assert.Equal(t, moved, got)

	note, err := Decode("SENT", `{"proposal":"p-1"}`)
	require.NoError(t, err)
	assert.Equal(t, Note{Tag: "SENT", Data: map[string]any{"proposal": "p-1"}}, note)

	empty, err := Decode(ActionReordered, "")
	require.NoError(t, err)
	assert.Equal(t, Reordered{}, empty)

	_, err = Decode(ActionMoved, `{"from":`)
	assert.Error(t, err)
}
