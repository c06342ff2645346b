package replay

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"quickstep.gg/internal/sim/simtest"
)

// A real validator report, serialized with encoding/json, must satisfy the
// published schema.
func TestReportMatchesSchema(t *testing.T) {
	schema, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "replay_report.schema.json"))
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}

	dir := t.TempDir()
	pa := filepath.Join(dir, "a.rec")
	pb := filepath.Join(dir, "b.rec")
	recordSession(t, pa, 3, map[int32][]simtest.StickInput{
		2: {stick(1, 2, 0), stick(3, 4, 0)},
	}, 4)
	recordSession(t, pb, 3, map[int32][]simtest.StickInput{
		2: {stick(1, 2, 0), stick(3, 9, 0)},
	}, 4)

	for _, paths := range [][]string{{pa}, {pa, pb}} {
		rep, err := Validate(paths)
		if err != nil {
			t.Fatalf("validate %v: %v", paths, err)
		}
		raw, err := json.Marshal(rep)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := schema.Validate(v); err != nil {
			t.Fatalf("schema reject for %v: %v\n%s", paths, err, raw)
		}
	}
}
