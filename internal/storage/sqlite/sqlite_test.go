package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/michaelbrown/gauntlet/internal/harness"
	"github.com/michaelbrown/gauntlet/internal/storage"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening memory db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string) *storage.Run {
	stderr := "warning: unused variable"
	return &storage.Run{
		ID:          id,
		Language:    "ruby",
		Version:     "3.0.1",
		Status:      storage.StatusCompleted,
		TestsTotal:  2,
		TestsPassed: 1,
		Request: harness.Request{
			Code:     "p $stdin.read.split.sum(&:to_i)",
			Language: "ruby",
			Tests: []harness.Test{
				{Input: "1\n2", ExpectedOutput: "3"},
				{Input: "2\n4", ExpectedOutput: "7"},
			},
		},
		Result: &harness.Result{
			Executions: []harness.ExecutionWithTest{
				{Input: "1\n2", ExpectedOutput: "3", ActualOutput: "3", DidNotCrash: true, Time: 40},
				{Input: "2\n4", ExpectedOutput: "7", ActualOutput: "6", Stderr: &stderr, DidNotCrash: true, Time: 38},
			},
			TestsPassed: 1,
		},
	}
}

func TestCreateAndGetRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := sampleRun("abc12345-0000-0000-0000-000000000000")
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}

	if got.Language != "ruby" {
		t.Errorf("language = %q, want %q", got.Language, "ruby")
	}
	if got.Status != storage.StatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, storage.StatusCompleted)
	}
	if got.TestsPassed != 1 || got.TestsTotal != 2 {
		t.Errorf("passed/total = %d/%d, want 1/2", got.TestsPassed, got.TestsTotal)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at should not be zero")
	}
	if len(got.Request.Tests) != 2 {
		t.Fatalf("got %d request tests, want 2", len(got.Request.Tests))
	}
	if got.Result == nil || len(got.Result.Executions) != 2 {
		t.Fatalf("result not round-tripped: %+v", got.Result)
	}
	if e := got.Result.Executions[1]; e.Stderr == nil || *e.Stderr != "warning: unused variable" {
		t.Errorf("execution stderr = %v, want warning", e.Stderr)
	}
}

func TestFailedRunHasNoResult(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := &storage.Run{
		ID:       "failed-1",
		Language: "ruby",
		Status:   storage.StatusFailed,
		Error:    "engine unreachable: connection refused",
		Request:  harness.Request{Code: "c", Language: "ruby"},
	}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := s.GetRun(ctx, "failed-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Result != nil {
		t.Errorf("expected nil result, got %+v", got.Result)
	}
	if got.Error != run.Error {
		t.Errorf("error = %q, want %q", got.Error, run.Error)
	}
}

func TestGetRunByPrefix(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := sampleRun("abc12345-0000-0000-0000-000000000000")
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := s.GetRun(ctx, "abc12345")
	if err != nil {
		t.Fatalf("GetRun by prefix: %v", err)
	}
	if got.ID != run.ID {
		t.Errorf("got ID %q, want %q", got.ID, run.ID)
	}
}

func TestGetRunAmbiguousPrefix(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, id := range []string{
		"abc00000-0000-0000-0000-000000000000",
		"abc11111-0000-0000-0000-000000000000",
	} {
		if err := s.CreateRun(ctx, sampleRun(id)); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	_, err := s.GetRun(ctx, "abc")
	if err == nil {
		t.Fatal("expected error for ambiguous prefix")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"aaa", "bbb", "ccc"} {
		run := sampleRun(id)
		run.CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
		if err := s.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, storage.RunListOptions{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	if runs[0].ID != "ccc" || runs[2].ID != "aaa" {
		t.Errorf("order = %s,%s,%s, want ccc,bbb,aaa", runs[0].ID, runs[1].ID, runs[2].ID)
	}
	if !runs[0].CreatedAt.Equal(base.Add(2 * time.Millisecond)) {
		t.Errorf("created_at = %v, want %v", runs[0].CreatedAt, base.Add(2*time.Millisecond))
	}
}

func TestListRunsFilters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a := sampleRun("a1")
	b := sampleRun("a2")
	b.Status = storage.StatusFailed
	b.Result = nil
	c := sampleRun("a3")
	c.Language = "python"
	for _, r := range []*storage.Run{a, b, c} {
		if err := s.CreateRun(ctx, r); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, storage.RunListOptions{Status: storage.StatusCompleted})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("got %d completed runs, want 2", len(runs))
	}

	runs, err = s.ListRuns(ctx, storage.RunListOptions{Language: "python"})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "a3" {
		t.Errorf("language filter returned %+v", runs)
	}
}

func TestListRunsLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.CreateRun(ctx, sampleRun(string(rune('a'+i))))
	}

	runs, err := s.ListRuns(ctx, storage.RunListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("got %d runs, want 2", len(runs))
	}
}

func TestDeleteRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.CreateRun(ctx, sampleRun("del1"))

	if err := s.DeleteRun(ctx, "del1"); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}

	if _, err := s.GetRun(ctx, "del1"); err == nil {
		t.Fatal("expected error after delete")
	}

	if err := s.DeleteRun(ctx, "del1"); err == nil {
		t.Fatal("expected error deleting a missing run")
	}
}
