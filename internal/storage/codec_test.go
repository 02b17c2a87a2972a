package storage

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"bemekit/internal/model"
)

func sampleSummary(name string) model.ExperimentSummary {
	return model.ExperimentSummary{
		Name:            name,
		Path:            "/runs/" + name + "/output/bemeexp__" + name + ".json",
		Folder:          "/runs/" + name,
		SoftwareVersion: "v24.07.15",
		Islands: []model.IslandSummary{{
			Name:               "0",
			Problem:            "bevarmejo::anytown::mixed::f1",
			Algorithm:          "pagmo::nsga2",
			Reports:            3,
			Individuals:        6,
			Population:         2,
			Objectives:         2,
			LastGeneration:     20,
			FitnessEvaluations: 60,
			Nadir:              []float64{5, 4},
		}},
		IndexedAt: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestSummaryCodecRoundTrip(t *testing.T) {
	in := sampleSummary("alpha")
	data, err := EncodeSummary(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeSummary(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Name != in.Name || !out.IndexedAt.Equal(in.IndexedAt) {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if len(out.Islands) != 1 || out.Islands[0].Nadir[1] != 4 || out.Islands[0].LastGeneration != 20 {
		t.Fatalf("unexpected islands: %+v", out.Islands)
	}
}

func TestSummaryCodecRejectsVersionMismatch(t *testing.T) {
	data, err := json.Marshal(summaryRecord{SchemaVersion: CurrentSchemaVersion + 1, CodecVersion: CurrentCodecVersion})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := DecodeSummary(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestSummaryCodecRejectsMalformedPayload(t *testing.T) {
	if _, err := DecodeSummary([]byte("{")); err == nil {
		t.Fatal("expected decode error")
	}
}
