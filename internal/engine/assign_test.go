package engine

import (
	"math/rand"
	"testing"

	"mottoparty/internal/domain"
)

// identity keeps the pool order, making Assign deterministic.
func identity(pool []domain.Submission) []domain.Submission {
	out := make([]domain.Submission, len(pool))
	copy(out, pool)
	return out
}

func mottosBy(submitters ...string) []domain.Submission {
	out := make([]domain.Submission, len(submitters))
	for i, s := range submitters {
		out[i] = domain.Submission{Submitter: s, Text: "motto of " + s}
	}
	return out
}

func TestAssignEveryParticipantGetsAMotto(t *testing.T) {
	participants := []string{"anna", "ben", "carla"}
	got := Assign(participants, mottosBy("anna", "ben", "carla"), identity)
	if len(got) != len(participants) {
		t.Fatalf("got %d assignments, want %d", len(got), len(participants))
	}
	for _, p := range participants {
		if got[p] == "" {
			t.Errorf("participant %q got no motto", p)
		}
	}
}

func TestAssignExcludesOwnMotto(t *testing.T) {
	participants := []string{"anna", "ben", "carla", "dan"}
	mottos := mottosBy("anna", "ben", "carla", "dan")
	shuffle := NewShuffle(rand.New(rand.NewSource(7)))
	for i := 0; i < 200; i++ {
		got := Assign(participants, mottos, shuffle)
		for _, p := range participants {
			if got[p] == "motto of "+p {
				t.Fatalf("run %d: %q was assigned their own motto", i, p)
			}
		}
	}
}

func TestAssignSingleParticipantGetsOwnMotto(t *testing.T) {
	got := Assign([]string{"anna"}, mottosBy("anna"), identity)
	if got["anna"] != "motto of anna" {
		t.Fatalf("got %q, want own motto as the only option", got["anna"])
	}
}

func TestAssignPrefersUnusedTexts(t *testing.T) {
	participants := []string{"anna", "ben", "carla"}
	got := Assign(participants, mottosBy("anna", "ben", "carla"), identity)
	seen := map[string]string{}
	for p, text := range got {
		if prev, ok := seen[text]; ok {
			t.Fatalf("%q and %q share %q with enough mottos for everyone", prev, p, text)
		}
		seen[text] = p
	}
}

func TestAssignDuplicatesUnderScarcity(t *testing.T) {
	// Three participants, one motto: everyone gets it, including its
	// author once the exclusion pool runs dry.
	participants := []string{"anna", "ben", "carla"}
	got := Assign(participants, mottosBy("anna"), identity)
	for _, p := range participants {
		if got[p] != "motto of anna" {
			t.Fatalf("participant %q got %q, want the only motto", p, got[p])
		}
	}
}

func TestAssignNonSubmittersStillDraw(t *testing.T) {
	participants := []string{"anna", "ben", "carla"}
	got := Assign(participants, mottosBy("anna"), identity)
	if got["ben"] != "motto of anna" || got["carla"] != "motto of anna" {
		t.Fatalf("non-submitters missed the pool: %v", got)
	}
}
