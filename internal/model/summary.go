package model

import "time"

// ExperimentSummary is the catalog record of a loaded experiment.
type ExperimentSummary struct {
	Name            string          `json:"name"`
	Path            string          `json:"path"`
	Folder          string          `json:"folder"`
	SoftwareVersion string          `json:"software_version"`
	TimeStart       string          `json:"time_start,omitempty"`
	TimeEnd         string          `json:"time_end,omitempty"`
	Islands         []IslandSummary `json:"islands"`
	IndexedAt       time.Time       `json:"indexed_at"`
}

type IslandSummary struct {
	Name               string    `json:"name"`
	Problem            string    `json:"problem"`
	Algorithm          string    `json:"algorithm"`
	Reports            int       `json:"reports"`
	Individuals        int       `json:"individuals"`
	Population         int       `json:"population"`
	Objectives         int       `json:"objectives"`
	LastGeneration     int       `json:"last_generation"`
	FitnessEvaluations int64     `json:"fitness_evaluations"`
	Nadir              []float64 `json:"nadir,omitempty"`
}
