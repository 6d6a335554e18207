package workerpool

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestRunAllSucceed(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	var processed int64

	errs := Run(items, 2, func(n int) error {
		atomic.AddInt64(&processed, int64(n))
		return nil
	})

	for i, err := range errs {
		if err != nil {
			t.Errorf("item %d: unexpected error %v", i, err)
		}
	}
	if processed != 15 {
		t.Errorf("processed sum = %d, want 15", processed)
	}
}

func TestRunPreservesPerItemErrors(t *testing.T) {
	items := []int{1, 2, 3}
	errs := Run(items, 2, func(n int) error {
		if n == 2 {
			return errors.New("boom")
		}
		return nil
	})

	if errs[0] != nil || errs[2] != nil {
		t.Errorf("expected items 0 and 2 to succeed, got %v / %v", errs[0], errs[2])
	}
	if errs[1] == nil {
		t.Error("expected item 1 to fail")
	}
}

func TestRunEmptyInput(t *testing.T) {
	errs := Run[int](nil, 4, func(int) error { return nil })
	if errs != nil {
		t.Errorf("expected nil result for empty input, got %v", errs)
	}
}

func TestRunClampsWorkersToItemCount(t *testing.T) {
	items := []int{1}
	errs := Run(items, 100, func(int) error { return nil })
	if len(errs) != 1 {
		t.Fatalf("len(errs) = %d, want 1", len(errs))
	}
}
