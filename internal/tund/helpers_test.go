package tund

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/GoSim-25-26J-441/tuning-core/pkg/config"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/models"
)

const bowlConfig = `
algorithm: s_2018
objective: minimize
record_log: true
parameters:
  - name: x
    values: [0, 1, 2, 3, 4]
  - name: y
    values: [0, 1, 2, 3, 4]
`

// bowlValue has its minimum 0 at x=2, y=3
func bowlValue(v []float64) float64 {
	dx, dy := v[0]-2, v[1]-3
	return dx*dx + dy*dy
}

func mustConfig(t *testing.T, text string) *config.Session {
	t.Helper()
	cfg, err := config.ParseSessionYAMLString(text)
	if err != nil {
		t.Fatalf("ParseSessionYAMLString: %v", err)
	}
	return cfg
}

func newTestStore(opts ...StoreOption) *SessionStore {
	return NewSessionStore(time.Minute, opts...)
}

// driveToFinish answers every suggestion with bowlValue until the search
// reports that it finished.
func driveToFinish(t *testing.T, store *SessionStore, id string) models.Result {
	t.Helper()
	for i := 0; i < 500; i++ {
		resp, err := store.Suggest(id)
		if err != nil {
			t.Fatalf("Suggest: %v", err)
		}
		values := make([]float64, len(resp.Suggestions))
		for j, s := range resp.Suggestions {
			values[j] = bowlValue(s.Values)
		}
		res, err := store.TellValues(t.Context(), id, values)
		if err != nil {
			t.Fatalf("TellValues: %v", err)
		}
		if res.Finished {
			return res
		}
	}
	t.Fatalf("search did not finish")
	return models.Result{}
}

// counterValue reads one labelled sample from a registry
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	next:
		for _, m := range f.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue next
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}
