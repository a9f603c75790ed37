package database

import (
	"context"

	"github.com/voicegate/voicegate/internal/database/models"
)

// CallListFilter narrows and pages List results.
type CallListFilter struct {
	ExitReason string
	Search     string
	StartDate  string
	EndDate    string
	Limit      int
	Offset     int
}

// CallRepository persists and queries the call log.
type CallRepository interface {
	Create(ctx context.Context, call *models.Call) error
	GetByID(ctx context.Context, id int64) (*models.Call, error)
	List(ctx context.Context, filter CallListFilter) ([]models.Call, int, error)
	CountByExitReason(ctx context.Context) (map[string]int, error)
}
