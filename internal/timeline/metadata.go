package timeline

import (
	"encoding/json"
	"fmt"
)

// Actions emitted by the pipeline engine. External producers may record any
// other action through Note.
const (
	ActionCreated   = "CREATED"
	ActionUpdated   = "UPDATED"
	ActionMoved     = "MOVED"
	ActionDeleted   = "DELETED"
	ActionReordered = "REORDERED"
	ActionSent      = "SENT"
	ActionApproved  = "APPROVED"
)

// Metadata is the structured payload of a timeline event. The concrete type
// determines the action recorded.
type Metadata interface {
	Action() string
	payload() any
}

type CardSummary struct {
	Title   string `json:"title"`
	StageID string `json:"stageId,omitempty"`
}

type StageSummary struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// Placement is a card location on the board.
type Placement struct {
	StageID   string `json:"stageId"`
	StageName string `json:"stageName"`
	Position  int    `json:"position"`
}

type Created struct {
	Card  *CardSummary  `json:"card,omitempty"`
	Stage *StageSummary `json:"stage,omitempty"`
}

type Updated struct {
	Changes map[string]any `json:"changes"`
}

type Moved struct {
	From Placement `json:"from"`
	To   Placement `json:"to"`
}

type Deleted struct {
	Card  *CardSummary  `json:"card,omitempty"`
	Stage *StageSummary `json:"stage,omitempty"`
}

type Reordered struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Note carries an arbitrary action with a free-form payload, used for
// transitions produced outside the pipeline (proposal sent, approved).
type Note struct {
	Tag  string
	Data map[string]any
}

func (Created) Action() string   { return ActionCreated }
func (Updated) Action() string   { return ActionUpdated }
func (Moved) Action() string     { return ActionMoved }
func (Deleted) Action() string   { return ActionDeleted }
func (Reordered) Action() string { return ActionReordered }
func (n Note) Action() string    { return n.Tag }

func (m Created) payload() any   { return m }
func (m Updated) payload() any   { return m }
func (m Moved) payload() any     { return m }
func (m Deleted) payload() any   { return m }
func (m Reordered) payload() any { return m }
func (n Note) payload() any {
	if n.Data == nil {
		return map[string]any{}
	}
	return n.Data
}

// Encode renders metadata as stored JSON. Nil metadata encodes as {}.
func Encode(m Metadata) (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m.payload())
	if err != nil {
		return "", fmt.Errorf("marshal %s metadata: %w", m.Action(), err)
	}
	return string(data), nil
}

// Decode parses stored metadata back into the type matching action. Unknown
// actions decode into a Note.
func Decode(action, raw string) (Metadata, error) {
	if raw == "" {
		raw = "{}"
	}
	var (
		m   Metadata
		err error
	)
	switch action {
	case ActionCreated:
		var v Created
		err = json.Unmarshal([]byte(raw), &v)
		m = v
	case ActionUpdated:
		var v Updated
		err = json.Unmarshal([]byte(raw), &v)
		m = v
	case ActionMoved:
		var v Moved
		err = json.Unmarshal([]byte(raw), &v)
		m = v
	case ActionDeleted:
		var v Deleted
		err = json.Unmarshal([]byte(raw), &v)
		m = v
	case ActionReordered:
		var v Reordered
		err = json.Unmarshal([]byte(raw), &v)
		m = v
	default:
		data := map[string]any{}
		err = json.Unmarshal([]byte(raw), &data)
		m = Note{Tag: action, Data: data}
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", action, err)
	}
	return m, nil
}
