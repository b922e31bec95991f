package models

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestHistoryAddRound(t *testing.T) {
	h := &History{SessionID: "s-1"}
	h.AddRound(Round{Loop: 1, Base: []int{1, 1}, Measured: []Measurement{{Coordinate: []int{1, 1}, Value: 3}}})
	h.AddRound(Round{Loop: 2, Base: []int{1, 1}, Measured: []Measurement{{Coordinate: []int{0, 1}}, {Coordinate: []int{2, 1}}}})

	rounds := h.GetRounds()
	if len(rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(rounds))
	}
	if rounds[1].Loop != 2 {
		t.Errorf("expected second round loop 2, got %d", rounds[1].Loop)
	}
	if h.MeasurementCount() != 3 {
		t.Errorf("expected 3 measurements, got %d", h.MeasurementCount())
	}
}

func TestHistoryConcurrency(t *testing.T) {
	h := &History{SessionID: "s-concurrent"}
	var wg sync.WaitGroup
	n := 100
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(loop int) {
			defer wg.Done()
			h.AddRound(Round{Loop: loop})
		}(i)
	}
	wg.Wait()
	if got := len(h.GetRounds()); got != n {
		t.Errorf("expected %d rounds, got %d", n, got)
	}
}

func TestResultJSONOmitsMissingValue(t *testing.T) {
	r := Result{Algorithm: "S_2018", Phase: "Direction Search"}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["value"]; ok {
		t.Errorf("value should be omitted when unknown: %s", b)
	}
	if m["algorithm"] != "S_2018" {
		t.Errorf("unexpected algorithm %v", m["algorithm"])
	}
}

func TestSessionStatusValues(t *testing.T) {
	statuses := []SessionStatus{SessionStatusRunning, SessionStatusFinished, SessionStatusClosed, SessionStatusFailed}
	seen := map[SessionStatus]bool{}
	for _, s := range statuses {
		if s == "" || seen[s] {
			t.Fatalf("status %q empty or duplicated", s)
		}
		seen[s] = true
	}
}
