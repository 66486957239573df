package aimodel

import (
	"time"

	"github.com/google/uuid"
)

// Registry statuses.
const (
	StatusActive     = "Active"
	StatusInactive   = "Inactive"
	StatusTraining   = "Training"
	StatusDeprecated = "Deprecated"
)

// Model is a descriptive registry record for a deployed triage model.
type Model struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Version          string    `json:"version"`
	Status           string    `json:"status"`
	Accuracy         *float64  `json:"accuracy"`
	AvgResponseTime  *float64  `json:"avgResponseTime"`
	TotalPredictions int       `json:"totalPredictions"`
	LastUpdated      time.Time `json:"lastUpdated"`
	CreatedAt        time.Time `json:"createdAt"`
}

type CreateRequest struct {
	Name     string   `json:"name" validate:"required,max=255"`
	Version  string   `json:"version" validate:"required,max=64"`
	Status   string   `json:"status" validate:"omitempty,oneof=Active Inactive Training Deprecated"`
	Accuracy *float64 `json:"accuracy" validate:"omitempty,gte=0,lte=1"`
}

type UpdateRequest struct {
	Status   *string  `json:"status" validate:"omitempty,oneof=Active Inactive Training Deprecated"`
	Accuracy *float64 `json:"accuracy" validate:"omitempty,gte=0,lte=1"`
}
