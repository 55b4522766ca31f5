package domain

import "time"

// TimestampLayout is the stored timestamp format. Fixed-width fractions keep
// lexical and chronological order identical.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type CardStatus string

const (
	CardActive    CardStatus = "ACTIVE"
	CardCompleted CardStatus = "COMPLETED"
	CardLost      CardStatus = "LOST"
	CardAbandoned CardStatus = "ABANDONED"
)

// Valid reports whether s is one of the known card statuses.
func (s CardStatus) Valid() bool {
	switch s {
	case CardActive, CardCompleted, CardLost, CardAbandoned:
		return true
	}
	return false
}

// Entity types recorded on timeline events.
const (
	EntityCard  = "card"
	EntityStage = "stage"
)

// Actor is the already-authenticated caller of a mutating operation, with
// optional request provenance.
type Actor struct {
	UserID    string `json:"user_id,omitempty"`
	Role      string `json:"role,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

type Stage struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Position    int       `json:"position"`
	Color       string    `json:"color"`
	SLAHours    *int      `json:"sla_hours,omitempty"`
	IsFinal     bool      `json:"is_final"`
	IsLost      bool      `json:"is_lost"`
	ActiveCards int       `json:"active_cards"`
	CreatedAt   time.Time `json:"created_at" format:"date-time"`
	UpdatedAt   time.Time `json:"updated_at" format:"date-time"`
}

type Card struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
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
	Status         CardStatus `json:"status" enum:"ACTIVE,COMPLETED,LOST,ABANDONED"`
	SLADeadline    *time.Time `json:"sla_deadline,omitempty" format:"date-time"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty" format:"date-time"`
	CreatedAt      time.Time  `json:"created_at" format:"date-time"`
	UpdatedAt      time.Time  `json:"updated_at" format:"date-time"`
}

// Overdue reports whether an active card has passed its SLA deadline at now.
func (c Card) Overdue(now time.Time) bool {
	return c.Status == CardActive && c.DeletedAt == nil && c.SLADeadline != nil && c.SLADeadline.Before(now)
}

type CustomerRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type VehicleRef struct {
	ID    string `json:"id"`
	Plate string `json:"plate"`
	Brand string `json:"brand,omitempty"`
	Model string `json:"model,omitempty"`
}

type ActorRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type StageRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CardView is a card with shallow projections of its linked records.
type CardView struct {
	Card
	Customer   *CustomerRef `json:"customer,omitempty"`
	Vehicle    *VehicleRef  `json:"vehicle,omitempty"`
	AssignedTo *ActorRef    `json:"assigned_to,omitempty"`
	Stage      *StageRef    `json:"stage,omitempty"`
	IsOverdue  bool         `json:"overdue"`
}

type KanbanColumn struct {
	Stage
	Cards []CardView `json:"cards"`
}

type TimelineEvent struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	Action      string    `json:"action"`
	ActorUserID *string   `json:"actor_user_id,omitempty"`
	ActorRole   *string   `json:"actor_role,omitempty"`
	Actor       *ActorRef `json:"actor,omitempty"`
	Metadata    string    `json:"metadata"`
	IPAddress   *string   `json:"ip_address,omitempty"`
	UserAgent   *string   `json:"user_agent,omitempty"`
	CreatedAt   time.Time `json:"created_at" format:"date-time"`
}

// Page is a page of list results.
type Page[T any] struct {
	Items      []T  `json:"items"`
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// NewPage builds a page, computing TotalPages and HasMore.
func NewPage[T any](items []T, total, page, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Page[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasMore:    page*limit < total,
	}
}

// Directory records owned by the external CRUD layer; the engine only reads them.

type DirectoryActor struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type Customer struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
}

type Vehicle struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id"`
	CustomerID string `json:"customer_id,omitempty"`
	Plate      string `json:"plate"`
	Brand      string `json:"brand,omitempty"`
	Model      string `json:"model,omitempty"`
}
