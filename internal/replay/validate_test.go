package replay

import (
	"path/filepath"
	"testing"

	"quickstep.gg/internal/sim/simtest"
)

func TestValidate_AgreementAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	frames := map[int32][]simtest.StickInput{
		2: {stick(1, 2, 0), stick(3, 4, 0)},
		5: {{}, stick(7, 8, 1)},
	}

	paths := []string{
		filepath.Join(dir, "p0.rec"),
		filepath.Join(dir, "p1.rec"),
		filepath.Join(dir, "p2.rec"),
	}
	for _, p := range paths {
		recordSession(t, p, 77, frames, 6)
	}

	rep, err := Validate(paths)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !rep.IsValid || rep.MismatchCount != 0 {
		t.Fatalf("report = %+v, want valid with zero mismatches", rep)
	}
	if rep.Seed != 77 || rep.PlayerCount != 2 {
		t.Fatalf("header echo = seed %d players %d", rep.Seed, rep.PlayerCount)
	}
}

func TestValidate_SingleByteDisagreement(t *testing.T) {
	dir := t.TempDir()

	base := map[int32][]simtest.StickInput{
		5: {stick(1, 2, 0), stick(3, 4, 0)},
	}
	// Same session, but player 1's Y differs at frame 5. Y occupies bytes
	// 2..3 of the encoded input, so the first differing offset is 2.
	diverged := map[int32][]simtest.StickInput{
		5: {stick(1, 2, 0), stick(3, 5, 0)},
	}

	pa := filepath.Join(dir, "a.rec")
	pb := filepath.Join(dir, "b.rec")
	recordSession(t, pa, 1, base, 6)
	recordSession(t, pb, 1, diverged, 6)

	rep, err := Validate([]string{pa, pb})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if rep.IsValid || rep.MismatchCount != 1 {
		t.Fatalf("report = %+v, want exactly one mismatch", rep)
	}
	m := rep.Mismatches[0]
	if m.Frame != 5 || m.Player != 1 || m.Offset != 2 {
		t.Fatalf("mismatch = %+v, want frame 5 player 1 offset 2", m)
	}
	if m.BaseFile != pa || m.File != pb {
		t.Fatalf("mismatch attribution = %+v", m)
	}
}

func TestValidate_SparseFilesOnlyCompareRecordedEntries(t *testing.T) {
	dir := t.TempDir()

	// File A recorded frame 3; file B's frame 3 was entirely empty and is
	// absent from its stream. Only files that recorded a frame/player are
	// compared, so this is agreement, not a mismatch.
	pa := filepath.Join(dir, "a.rec")
	pb := filepath.Join(dir, "b.rec")
	recordSession(t, pa, 9, map[int32][]simtest.StickInput{
		3: {stick(1, 0, 0), {}},
		6: {stick(2, 0, 0), {}},
	}, 6)
	recordSession(t, pb, 9, map[int32][]simtest.StickInput{
		6: {stick(2, 0, 0), {}},
	}, 6)

	rep, err := Validate([]string{pa, pb})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !rep.IsValid {
		t.Fatalf("report = %+v, want valid", rep)
	}
}

func TestValidate_HeaderDisagreementIsFatal(t *testing.T) {
	dir := t.TempDir()
	pa := filepath.Join(dir, "a.rec")
	pb := filepath.Join(dir, "b.rec")
	recordSession(t, pa, 1, nil, 2)
	recordSession(t, pb, 2, nil, 2) // different seed: different session

	if _, err := Validate([]string{pa, pb}); err == nil {
		t.Fatalf("differing seeds accepted")
	}
}

func TestValidate_SingleFileIsTriviallyValid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "solo.rec")
	recordSession(t, p, 4, map[int32][]simtest.StickInput{1: {stick(1, 0, 0), {}}}, 2)

	rep, err := Validate([]string{p})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !rep.IsValid || rep.FramesCompared != 1 {
		t.Fatalf("report = %+v", rep)
	}
}
