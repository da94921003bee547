package engine

import (
	"errors"
	"testing"
)

func TestLostRaceCarriesCurrentStatus(t *testing.T) {
	err := lostRace("withdrawal", "w1", "withdrawal.finalize", "approved", nil)
	var ce ConflictError
	if !errors.As(err, &ce) || ce.Status != "approved" || ce.ID != "w1" {
		t.Fatalf("expected conflict with current status, got %v", err)
	}
}

func TestLostRaceReportsFailedReread(t *testing.T) {
	boom := errors.New("disk gone")
	err := lostRace("submission", "s1", "submission.approve", "", boom)
	var se StoreError
	if !errors.As(err, &se) || se.Op != "submission.approve" || !errors.Is(err, boom) {
		t.Fatalf("expected store error wrapping the re-read failure, got %v", err)
	}
	var ce ConflictError
	if errors.As(err, &ce) {
		t.Fatalf("failed re-read must not surface as a conflict")
	}
}
