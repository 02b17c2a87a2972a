package storage

import (
	"context"

	"bemekit/internal/model"
)

// Store persists the catalog of indexed experiments, keyed by experiment name.
type Store interface {
	Init(ctx context.Context) error
	// SaveExperiment inserts or replaces the summary with the same name.
	SaveExperiment(ctx context.Context, summary model.ExperimentSummary) error
	GetExperiment(ctx context.Context, name string) (model.ExperimentSummary, bool, error)
	// ListExperiments returns every summary ordered by name.
	ListExperiments(ctx context.Context) ([]model.ExperimentSummary, error)
	// DeleteExperiment removes a summary; deleting an unknown name is not an error.
	DeleteExperiment(ctx context.Context, name string) error
}
