package ledger

import "testing"

func TestFailChunkWrites(t *testing.T) {
	got := failChunkWrites(UploadSummary{Inserted: 7, Skipped: 2, Failed: 1})
	if got.Inserted != 0 {
		t.Fatalf("rolled-back writes must not stay counted as inserted: %+v", got)
	}
	if got.Failed != 8 {
		t.Fatalf("expected 8 failed (7 rolled back + 1), got %d", got.Failed)
	}
	if got.Skipped != 2 {
		t.Fatalf("skips are read-only determinations and must stand, got %d", got.Skipped)
	}
}

func TestLooseResult(t *testing.T) {
	errs := []RowError{{Row: "Asha Stores", Reason: "boom"}}
	res := looseResult(UploadSummary{Total: 5, Inserted: 3, Skipped: 1, Failed: 1}, errs)
	if res.Processed != 3 || res.Duplicates != 1 {
		t.Fatalf("unexpected result mapping: %+v", res)
	}
	if len(res.Errors) != 1 || res.Errors[0].Row != "Asha Stores" {
		t.Fatalf("errors must pass through unchanged: %+v", res.Errors)
	}
}

func TestChunkLabel(t *testing.T) {
	if got := chunkLabel(0, 500); got != "rows 1-500" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := chunkLabel(500, 512); got != "rows 501-512" {
		t.Fatalf("unexpected label %q", got)
	}
}
