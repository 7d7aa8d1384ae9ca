package services

import (
	"sync"
	"testing"

	"penpal-exchange-system/models"
)

func TestGetScore_DefaultsToMax(t *testing.T) {
	rep := NewReputationService(newTestDB(t))

	score, err := rep.GetScore("user-unknown")
	if err != nil {
		t.Fatalf("GetScore: %v", err)
	}
	if score != MaxScore {
		t.Errorf("score = %d, want %d for a user with no penalties", score, MaxScore)
	}
}

func TestEnsureRecord_Idempotent(t *testing.T) {
	rep := NewReputationService(newTestDB(t))

	first, err := rep.EnsureRecord(alice)
	if err != nil {
		t.Fatalf("EnsureRecord: %v", err)
	}
	second, err := rep.EnsureRecord(alice)
	if err != nil {
		t.Fatalf("EnsureRecord: %v", err)
	}
	if first.ID != second.ID {
		t.Error("EnsureRecord created a duplicate record")
	}
}

func TestEnsureRecord_ConcurrentFirstEvent(t *testing.T) {
	db := newTestDB(t)
	rep := NewReputationService(db)

	// Two first-ever events for the same user race the not-found check; the
	// loser's insert must fall back to the existing row, not error out.
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rep.EnsureRecord(alice)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("EnsureRecord: %v", err)
		}
	}

	var n int64
	if err := db.Model(&models.ReputationRecord{}).Where("external_user_id = ?", alice).Count(&n).Error; err != nil {
		t.Fatalf("count records: %v", err)
	}
	if n != 1 {
		t.Errorf("records = %d, want 1", n)
	}
}

func TestCompletionCountersCommute(t *testing.T) {
	db := newTestDB(t)
	rep := NewReputationService(db)
	if _, err := rep.EnsureRecord(alice); err != nil {
		t.Fatalf("EnsureRecord: %v", err)
	}
	if _, err := rep.EnsureRecord(bob); err != nil {
		t.Fatalf("EnsureRecord: %v", err)
	}

	// Two missions ending at once for the same pair: both increments must
	// land regardless of interleaving.
	matches := []*models.Match{
		{ID: "match-1", PartyAID: alice, PartyBID: bob},
		{ID: "match-2", PartyAID: alice, PartyBID: bob},
	}
	var wg sync.WaitGroup
	errs := make(chan error, len(matches))
	for _, m := range matches {
		wg.Add(1)
		go func(m *models.Match) {
			defer wg.Done()
			errs <- rep.OnMissionCompleted(m)
		}(m)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("OnMissionCompleted: %v", err)
		}
	}

	for _, userID := range []string{alice, bob} {
		rec, _, _, err := rep.GetReputation(userID)
		if err != nil {
			t.Fatalf("GetReputation(%s): %v", userID, err)
		}
		if rec.TotalMatches != 2 || rec.CompletedMatches != 2 {
			t.Errorf("%s: total/completed = %d/%d, want 2/2", userID, rec.TotalMatches, rec.CompletedMatches)
		}
	}
}

func TestOnCancellation(t *testing.T) {
	db := newTestDB(t)
	rep := NewReputationService(db)

	if err := rep.OnCancellation("match-1", alice, bob); err != nil {
		t.Fatalf("OnCancellation: %v", err)
	}

	aliceRec, aliceScore, _, err := rep.GetReputation(alice)
	if err != nil {
		t.Fatalf("GetReputation: %v", err)
	}
	if aliceRec.SelfCancelledCount != 1 {
		t.Errorf("requester self-cancelled = %d, want 1", aliceRec.SelfCancelledCount)
	}
	if aliceScore != MaxScore-CancelPenaltyPoints {
		t.Errorf("requester score = %d, want %d", aliceScore, MaxScore-CancelPenaltyPoints)
	}

	bobRec, bobScore, _, err := rep.GetReputation(bob)
	if err != nil {
		t.Fatalf("GetReputation: %v", err)
	}
	if bobRec.PartnerCancelledCount != 1 {
		t.Errorf("counterpart partner-cancelled = %d, want 1", bobRec.PartnerCancelledCount)
	}
	if bobScore != MaxScore {
		t.Errorf("counterpart score = %d, want unchanged %d", bobScore, MaxScore)
	}
}

func TestScoreBoundedness(t *testing.T) {
	rep := NewReputationService(newTestDB(t))

	// Pile on penalties until the deduction far exceeds the scale.
	for i := 0; i < 11; i++ {
		if err := rep.OnCancellation("match-n", alice, bob); err != nil {
			t.Fatalf("OnCancellation #%d: %v", i, err)
		}
	}

	score, err := rep.GetScore(alice)
	if err != nil {
		t.Fatalf("GetScore: %v", err)
	}
	if score != 0 {
		t.Errorf("score = %d, want floor-clamped 0", score)
	}
}

func TestScoreDerivedFromPenaltyLog(t *testing.T) {
	db := newTestDB(t)
	rep := NewReputationService(db)

	// Penalties from unrelated missions are plain appends — order cannot
	// matter, and the score is always reconstructable from the log.
	if err := rep.OnDisputeRejected("match-1", alice); err != nil {
		t.Fatalf("OnDisputeRejected: %v", err)
	}
	if err := rep.OnCancellation("match-2", alice, bob); err != nil {
		t.Fatalf("OnCancellation: %v", err)
	}

	var penalties []models.PenaltyEntry
	if err := db.Where("external_user_id = ?", alice).Find(&penalties).Error; err != nil {
		t.Fatalf("load penalties: %v", err)
	}
	total := 0
	for _, p := range penalties {
		total += p.PointsDeducted
	}

	score, err := rep.GetScore(alice)
	if err != nil {
		t.Fatalf("GetScore: %v", err)
	}
	if score != MaxScore-total {
		t.Errorf("score = %d, want %d (100 - sum of log)", score, MaxScore-total)
	}
	if total != UnverifiedSendPenaltyPoints+CancelPenaltyPoints {
		t.Errorf("deducted = %d, want %d", total, UnverifiedSendPenaltyPoints+CancelPenaltyPoints)
	}
}
