package config

import (
	"strings"
	"testing"
)

func TestParseSessionYAMLDefaults(t *testing.T) {
	s, err := ParseSessionYAMLString(`
parameters:
  - name: x
    values: [1, "2", 3.5]
`)
	if err != nil {
		t.Fatalf("ParseSessionYAMLString: %v", err)
	}
	if s.Algorithm != "recommended" || s.Objective != "minimize" || s.Metric != "average" || s.Alpha != 0.1 {
		t.Errorf("Defaults not applied: %+v", s)
	}
	if s.InitialMode() != "center" {
		t.Errorf("Expected center initial mode, got %s", s.InitialMode())
	}
	values, err := s.Parameters[0].Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(values) != 3 || values[1] != 2 || values[2] != 3.5 {
		t.Errorf("Unexpected values %v", values)
	}
}

func TestParseSessionJSON(t *testing.T) {
	s, err := ParseSessionYAMLString(`{"algorithm": "S_2018", "objective": "maximize", "parameters": [{"name": "a", "values": [1, 2]}, {"name": "b", "linspace": {"min": 0, "max": 1, "step": 0.5}}]}`)
	if err != nil {
		t.Fatalf("JSON session: %v", err)
	}
	if s.Algorithm != "s_2018" || s.LowerIsBetter() {
		t.Errorf("Unexpected session %+v", s)
	}
}

func TestParseSessionYAMLInvalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"no parameters", `algorithm: s_2018`, "at least one parameter"},
		{"bad algorithm", "algorithm: s_2030\nparameters: [{name: x, values: [1]}]", "invalid algorithm"},
		{"bad objective", "objective: fastest\nparameters: [{name: x, values: [1]}]", "objective"},
		{"negative alpha", "alpha: -1\nparameters: [{name: x, values: [1]}]", "alpha"},
		{"bad metric", "metric: median\nparameters: [{name: x, values: [1]}]", "invalid metric"},
		{"empty values", "parameters: [{name: x, values: []}]", "at least one value"},
		{"duplicate names", "parameters: [{name: x, values: [1]}, {name: x, values: [2]}]", "duplicate parameter"},
		{"bad value", "parameters: [{name: x, values: [fast]}]", "parameter x"},
		{"values and linspace", "parameters: [{name: x, values: [1], linspace: {min: 0, max: 1, step: 1}}]", "exclusive"},
		{"inverted linspace", "parameters: [{name: x, linspace: {min: 5, max: 1, step: 1}}]", "invalid range"},
		{"ippe with two", "algorithm: s_ippe\nparameters: [{name: x, values: [1]}, {name: y, values: [1]}]", "exactly one"},
		{"initial count", "initial: {mode: specified, values: [1]}\nparameters: [{name: x, values: [1]}, {name: y, values: [1]}]", "initial values"},
		{"initial mode", "initial: {mode: random}\nparameters: [{name: x, values: [1]}]", "initial mode"},
		{"values without specified", "initial: {mode: center, values: [1]}\nparameters: [{name: x, values: [1]}]", "only allowed"},
		{"malformed", "parameters: [", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSessionYAMLString(tt.yaml)
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseDaemonYAMLInvalid(t *testing.T) {
	tests := []string{
		"log_level: loud",
		"log_format: xml",
		"session_ttl: soon",
		"session_ttl: 10ms",
		"grpc_addr: \"\"\nhttp_addr: \"\"",
	}
	for _, y := range tests {
		if _, err := ParseDaemonYAML([]byte(y)); err == nil {
			t.Errorf("Expected error for %q", y)
		}
	}
}

func TestMarshalSessionRoundTrip(t *testing.T) {
	s, err := ParseSessionYAMLString("parameters: [{name: x, values: [1, 2]}]")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out, err := MarshalSession(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	again, err := ParseSessionYAML(out)
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, out)
	}
	if again.Parameters[0].Name != "x" || len(again.Parameters[0].Values) != 2 {
		t.Errorf("Round trip lost parameters: %+v", again.Parameters)
	}
}
