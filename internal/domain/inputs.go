package domain

// StageInput describes a stage to create. A zero Position appends the stage.
type StageInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Position int    `json:"position,omitempty" validate:"gte=0"`
	Color    string `json:"color,omitempty" validate:"omitempty,hexcolor"`
	SLAHours *int   `json:"sla_hours,omitempty" validate:"omitempty,gte=1"`
	IsFinal  bool   `json:"is_final,omitempty"`
	IsLost   bool   `json:"is_lost,omitempty"`
}

// StagePatch holds the stage fields to change; nil fields are left as is.
// A zero SLAHours clears the stage SLA.
type StagePatch struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Position *int    `json:"position,omitempty" validate:"omitempty,gte=1"`
	Color    *string `json:"color,omitempty" validate:"omitempty,hexcolor"`
	SLAHours *int    `json:"sla_hours,omitempty" validate:"omitempty,gte=0"`
	IsFinal  *bool   `json:"is_final,omitempty"`
	IsLost   *bool   `json:"is_lost,omitempty"`
}

// Changes returns the supplied fields keyed by their JSON names.
func (p StagePatch) Changes() map[string]any {
	changes := map[string]any{}
	if p.Name != nil {
		changes["name"] = *p.Name
	}
	if p.Position != nil {
		changes["position"] = *p.Position
	}
	if p.Color != nil {
		changes["color"] = *p.Color
	}
	if p.SLAHours != nil {
		changes["sla_hours"] = *p.SLAHours
	}
	if p.IsFinal != nil {
		changes["is_final"] = *p.IsFinal
	}
	if p.IsLost != nil {
		changes["is_lost"] = *p.IsLost
	}
	return changes
}

// StagePosition assigns a position to a stage in a reorder.
type StagePosition struct {
	StageID  string `json:"stage_id" validate:"required"`
	Position int    `json:"position" validate:"gte=1"`
}

// CardInput describes a card to create.
type CardInput struct {
	StageID        string   `json:"stage_id" validate:"required"`
	Title          string   `json:"title" validate:"required,max=200"`
	CustomerID     *string  `json:"customer_id,omitempty"`
	VehicleID      *string  `json:"vehicle_id,omitempty"`
	AssignedToID   *string  `json:"assigned_to_id,omitempty"`
	Channel        *string  `json:"channel,omitempty" validate:"omitempty,max=40"`
	EstimatedValue *float64 `json:"estimated_value,omitempty" validate:"omitempty,gte=0"`
	Complaint      *string  `json:"complaint,omitempty"`
	Diagnosis      *string  `json:"diagnosis,omitempty"`
	Tags           []string `json:"tags,omitempty" validate:"omitempty,dive,required,max=40"`
}

// CardPatch holds card fields to change. Stage and position are only
// changed by a move.
type CardPatch struct {
	Title          *string     `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	CustomerID     *string     `json:"customer_id,omitempty"`
	VehicleID      *string     `json:"vehicle_id,omitempty"`
	AssignedToID   *string     `json:"assigned_to_id,omitempty"`
	Channel        *string     `json:"channel,omitempty" validate:"omitempty,max=40"`
	EstimatedValue *float64    `json:"estimated_value,omitempty" validate:"omitempty,gte=0"`
	Complaint      *string     `json:"complaint,omitempty"`
	Diagnosis      *string     `json:"diagnosis,omitempty"`
	Tags           *[]string   `json:"tags,omitempty" validate:"omitempty,dive,required,max=40"`
	Status         *CardStatus `json:"status,omitempty" validate:"omitempty,card_status"`
}

// Changes returns the supplied fields keyed by their JSON names.
func (p CardPatch) Changes() map[string]any {
	changes := map[string]any{}
	if p.Title != nil {
		changes["title"] = *p.Title
	}
	if p.CustomerID != nil {
		changes["customer_id"] = *p.CustomerID
	}
	if p.VehicleID != nil {
		changes["vehicle_id"] = *p.VehicleID
	}
	if p.AssignedToID != nil {
		changes["assigned_to_id"] = *p.AssignedToID
	}
	if p.Channel != nil {
		changes["channel"] = *p.Channel
	}
	if p.EstimatedValue != nil {
		changes["estimated_value"] = *p.EstimatedValue
	}
	if p.Complaint != nil {
		changes["complaint"] = *p.Complaint
	}
	if p.Diagnosis != nil {
		changes["diagnosis"] = *p.Diagnosis
	}
	if p.Tags != nil {
		changes["tags"] = *p.Tags
	}
	if p.Status != nil {
		changes["status"] = string(*p.Status)
	}
	return changes
}

// CardFilter selects cards for listing. Zero values are ignored.
type CardFilter struct {
	StageID      string     `json:"stage_id,omitempty"`
	Status       CardStatus `json:"status,omitempty" validate:"omitempty,card_status"`
	AssignedToID string     `json:"assigned_to_id,omitempty"`
	CustomerID   string     `json:"customer_id,omitempty"`
	Search       string     `json:"search,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Page         int        `json:"page,omitempty" validate:"gte=0"`
	Limit        int        `json:"limit,omitempty" validate:"gte=0"`
}
