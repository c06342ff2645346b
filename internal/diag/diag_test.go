package diag

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestDesyncLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewDesyncLogger(dir)

	recs := []DesyncRecord{
		{Frame: 42, Peer: 1, LocalHash: 0xAAAA, RemoteHash: 0xBBBB,
			SystemHash: map[string]uint64{"physics": 1, "combat": 2}},
		{Frame: 43, Peer: 1, LocalHash: 0xCCCC, RemoteHash: 0xDDDD, ReplayPath: "/replays/a.rec"},
	}
	for _, r := range recs {
		if err := l.WriteDesync(r); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "desyncs", "desync-*.jsonl.zst"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("log files = %v (err %v), want exactly one", matches, err)
	}

	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var got []DesyncRecord
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var r DesyncRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("unmarshal %q: %v", sc.Text(), err)
		}
		got = append(got, r)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
	if got[0].Frame != 42 || got[0].SystemHash["combat"] != 2 {
		t.Fatalf("first record = %+v", got[0])
	}
	if got[1].ReplayPath != "/replays/a.rec" || got[1].At == "" {
		t.Fatalf("second record = %+v", got[1])
	}
}
