package catalog

import (
	"context"
	"path/filepath"
	"testing"
)

func TestCatalog_SessionRoundTrip(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	c.RecordSession(SessionRow{
		Path:        "/replays/a.rec",
		Seed:        42,
		PlayerCount: 2,
		InputSize:   8,
		Frames:      300,
	})
	c.RecordSession(SessionRow{
		Path:        "/replays/b.rec",
		Seed:        42,
		PlayerCount: 2,
		InputSize:   8,
		Frames:      300,
		Archived:    true,
	})
	c.RecordSession(SessionRow{Path: "/replays/other.rec", Seed: 7, PlayerCount: 2, InputSize: 8})
	c.Flush()

	got, err := c.SessionsForSeed(context.Background(), 42)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("sessions = %d, want 2", len(got))
	}
	for _, r := range got {
		if r.Seed != 42 || r.PlayerCount != 2 || r.RecordedAt == "" {
			t.Fatalf("row = %+v", r)
		}
	}
}

func TestCatalog_SessionUpsertByPath(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	c.RecordSession(SessionRow{Path: "/replays/a.rec", Seed: 1, PlayerCount: 2, InputSize: 8, Frames: 10})
	c.RecordSession(SessionRow{Path: "/replays/a.rec", Seed: 1, PlayerCount: 2, InputSize: 8, Frames: 500, Archived: true})
	c.Flush()

	got, err := c.SessionsForSeed(context.Background(), 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("sessions = %d, want 1 after upsert", len(got))
	}
	if got[0].Frames != 500 || !got[0].Archived {
		t.Fatalf("row = %+v, want updated frames and archive flag", got[0])
	}
}

func TestCatalog_LatestValidation(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	if _, ok, err := c.LatestValidation(context.Background(), 9); err != nil || ok {
		t.Fatalf("empty catalog: ok=%v err=%v", ok, err)
	}

	c.RecordValidation(ValidationRow{
		Seed:          9,
		Files:         []string{"/replays/a.rec", "/replays/b.rec"},
		IsValid:       false,
		MismatchCount: 3,
		ReportJSON:    `{"is_valid":false}`,
	})
	c.RecordValidation(ValidationRow{
		Seed:       9,
		Files:      []string{"/replays/a.rec", "/replays/b.rec"},
		IsValid:    true,
		ReportJSON: `{"is_valid":true}`,
	})
	c.Flush()

	got, ok, err := c.LatestValidation(context.Background(), 9)
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if !got.IsValid || got.MismatchCount != 0 || len(got.Files) != 2 {
		t.Fatalf("row = %+v, want the most recent run", got)
	}
}
