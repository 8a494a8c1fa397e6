package store

import (
	"context"
	"errors"

	"github.com/seantiz/groundstate/internal/model"
)

// ErrInvalidTransition is returned when a run status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// RunStats holds aggregate run statistics.
type RunStats struct {
	Total            int            `json:"total"`
	CountByStatus    map[string]int `json:"count_by_status"`
	CountByAlgorithm map[string]int `json:"count_by_algorithm"`
	AvgDurationMS    float64        `json:"avg_duration_ms"`
}

// ProgressLine is one persisted progress message of a run.
type ProgressLine struct {
	Seq  int    `json:"seq"`
	Line string `json:"line"`
}

// Store defines the persistence operations for runs.
type Store interface {
	CreateRun(ctx context.Context, r *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*model.Run, int, error)
	UpdateRunStatus(ctx context.Context, id, status string) error
	UpdateRun(ctx context.Context, r *model.Run) error
	GetRunStats(ctx context.Context) (*RunStats, error)
	InsertProgressLine(ctx context.Context, runID string, seq int, line string) error
	GetProgressLines(ctx context.Context, runID string) ([]ProgressLine, error)
	Close() error
}
