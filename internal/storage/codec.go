package storage

import (
	"encoding/json"
	"errors"

	"bemekit/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// summaryRecord is the persisted envelope of an experiment summary.
type summaryRecord struct {
	SchemaVersion int                     `json:"schema_version"`
	CodecVersion  int                     `json:"codec_version"`
	Summary       model.ExperimentSummary `json:"summary"`
}

func EncodeSummary(s model.ExperimentSummary) ([]byte, error) {
	return json.Marshal(summaryRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
		Summary:       s,
	})
}

func DecodeSummary(data []byte) (model.ExperimentSummary, error) {
	var rec summaryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.ExperimentSummary{}, err
	}
	if rec.SchemaVersion != CurrentSchemaVersion || rec.CodecVersion != CurrentCodecVersion {
		return model.ExperimentSummary{}, ErrVersionMismatch
	}
	return rec.Summary, nil
}

func cloneSummary(s model.ExperimentSummary) model.ExperimentSummary {
	out := s
	out.Islands = make([]model.IslandSummary, len(s.Islands))
	for i, isl := range s.Islands {
		isl.Nadir = append([]float64(nil), isl.Nadir...)
		out.Islands[i] = isl
	}
	return out
}
