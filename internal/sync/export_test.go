package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/store/memory"
)

// seed inserts an edge directly into the store.
func seed(t *testing.T, ms *memory.Store, id string, from, to model.EntityRef, kind model.DependencyKind) {
	t.Helper()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	dep := &model.Dependency{ID: id, From: from, To: to, Kind: kind, CreatedAt: now, UpdatedAt: now}
	if err := ms.CreateDependency(context.Background(), dep); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestExportJSONL_Empty(t *testing.T) {
	ms := memory.New()
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), ms, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines (header, stats), got %d", len(lines))
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != "1" || h.Type != "header" || h.DependencyCount != 0 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestExportJSONL_SortedWithStats(t *testing.T) {
	ms := memory.New()
	// Out of ID order to verify sorting.
	seed(t, ms, "dep-zzz", model.Task("B"), model.Task("C"), model.StartToStart)
	seed(t, ms, "dep-aaa", model.Project("P"), model.Task("A"), model.FinishToStart)

	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), ms, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	// 1 header + 2 dependencies + 1 stats
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.DependencyCount != 2 {
		t.Fatalf("dependency_count = %d", h.DependencyCount)
	}

	var ids []string
	for _, line := range lines[1:3] {
		var rec struct {
			Type string           `json:"type"`
			Data model.Dependency `json:"data"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("unmarshal %q: %v", line, err)
		}
		if rec.Type != "dependency" {
			t.Fatalf("type = %q", rec.Type)
		}
		ids = append(ids, rec.Data.ID)
	}
	if ids[0] != "dep-aaa" || ids[1] != "dep-zzz" {
		t.Fatalf("dependencies not sorted: %v", ids)
	}

	var stats struct {
		Type string                `json:"type"`
		Data model.DependencyStats `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[3]), &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.Type != "stats" || stats.Data.Total != 2 || stats.Data.ByEndpoints["project->task"] != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestFingerprintIgnoresHeader(t *testing.T) {
	a := []byte(`{"type":"header","timestamp":"1"}` + "\n" + `{"type":"stats"}` + "\n")
	b := []byte(`{"type":"header","timestamp":"2"}` + "\n" + `{"type":"stats"}` + "\n")
	c := []byte(`{"type":"header","timestamp":"2"}` + "\n" + `{"type":"dependency"}` + "\n")
	if fingerprint(a) != fingerprint(b) {
		t.Error("header change altered the fingerprint")
	}
	if fingerprint(b) == fingerprint(c) {
		t.Error("body change did not alter the fingerprint")
	}
}

func TestCountRecords(t *testing.T) {
	data := []byte(`{"version":"1","type":"header"}
{"type":"dependency","data":{}}
{"type":"dependency","data":{}}
{"type":"stats","data":{}}
`)
	if n := countRecords(data, "dependency"); n != 2 {
		t.Errorf("countRecords = %d, want 2", n)
	}
}

func nonEmptyLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result
}
