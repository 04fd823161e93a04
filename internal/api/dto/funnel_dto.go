package dto

import (
	"time"

	"github.com/spec-kit/crm-backend/internal/domain"
)

// CreateFunnelRequest payload.
type CreateFunnelRequest struct {
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
	IsActive  bool   `json:"is_active"`
}

// CreateStageRequest payload.
type CreateStageRequest struct {
	Name         string               `json:"name"`
	SortOrder    int                  `json:"sort_order"`
	TicketStatus *domain.TicketStatus `json:"ticket_status,omitempty"`
	IsFinal      bool                 `json:"is_final"`
	IsActive     bool                 `json:"is_active"`
}

// FunnelResponse response.
type FunnelResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	SortOrder int             `json:"sort_order"`
	IsActive  bool            `json:"is_active"`
	Stages    []StageResponse `json:"stages,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// StageResponse response.
type StageResponse struct {
	ID           string               `json:"id"`
	FunnelID     string               `json:"funnel_id"`
	Name         string               `json:"name"`
	SortOrder    int                  `json:"sort_order"`
	TicketStatus *domain.TicketStatus `json:"ticket_status"`
	IsFinal      bool                 `json:"is_final"`
	IsActive     bool                 `json:"is_active"`
}

// FunnelStatsResponse response.
type FunnelStatsResponse struct {
	FunnelID       string           `json:"funnel_id"`
	Total          int              `json:"total"`
	ConversionRate float64          `json:"conversion_rate"`
	Stages         []StageStatEntry `json:"stages"`
}

// StageStatEntry is one row of funnel statistics.
type StageStatEntry struct {
	Stage   StageResponse `json:"stage"`
	Count   int           `json:"count"`
	Percent float64       `json:"percent"`
}

// StageFromDomain maps the domain entity.
func StageFromDomain(stage *domain.FunnelStage) StageResponse {
	return StageResponse{
		ID:           stage.ID,
		FunnelID:     stage.FunnelID,
		Name:         stage.Name,
		SortOrder:    stage.SortOrder,
		TicketStatus: stage.TicketStatus,
		IsFinal:      stage.IsFinal,
		IsActive:     stage.IsActive,
	}
}

// FunnelFromDomain maps the domain entity with optional stages.
func FunnelFromDomain(funnel *domain.Funnel, stages []domain.FunnelStage) FunnelResponse {
	resp := FunnelResponse{
		ID:        funnel.ID,
		Name:      funnel.Name,
		SortOrder: funnel.SortOrder,
		IsActive:  funnel.IsActive,
		CreatedAt: funnel.CreatedAt,
	}
	for i := range stages {
		resp.Stages = append(resp.Stages, StageFromDomain(&stages[i]))
	}
	return resp
}
