package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestInstrumentsHandler(t *testing.T) {
	in := NewInstruments()
	in.SessionCreated("S_2018")
	in.SessionCreated("P_2024B")
	in.SessionEnded("finished")
	in.Measured("S_2018", 250*time.Millisecond)
	in.Measured("S_2018", 0)
	in.RoundCompleted("S_2018")
	in.Request("http", "suggest", "ok")

	srv := httptest.NewServer(in.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	text := string(body)

	for _, want := range []string{
		`dsice_sessions_created_total{algorithm="S_2018"} 1`,
		`dsice_sessions_active 1`,
		`dsice_sessions_ended_total{status="finished"} 1`,
		`dsice_measurements_total{algorithm="S_2018"} 2`,
		`dsice_measure_duration_seconds_count{algorithm="S_2018"} 1`,
		`dsice_rounds_total{algorithm="S_2018"} 1`,
		`dsice_api_requests_total{operation="suggest",result="ok",transport="http"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestInstrumentsIndependentRegistries(t *testing.T) {
	a, b := NewInstruments(), NewInstruments()
	a.RoundCompleted("S_IPPE")
	families, err := b.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "dsice_rounds_total" && len(f.GetMetric()) > 0 {
			t.Fatalf("instruments share state across registries")
		}
	}
}
