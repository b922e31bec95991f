package tuner

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/GoSim-25-26J-441/tuning-core/internal/operator"
	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/models"
)

// Replay is the YAML document written by ExportYAML
type Replay struct {
	Algorithm     string             `json:"algorithm" yaml:"algorithm"`
	LowerIsBetter bool               `json:"lower_is_better" yaml:"lower_is_better"`
	Parameters    []models.Parameter `json:"parameters" yaml:"parameters"`
	State         operator.State     `json:"state" yaml:"state"`
	Result        models.Result      `json:"result" yaml:"result"`
	Rounds        []models.Round     `json:"rounds,omitempty" yaml:"rounds,omitempty"`
}

func toInts(c space.Coordinate) []int {
	if c == nil {
		return nil
	}
	return append([]int(nil), c...)
}

// History returns the recorded rounds that carry at least one measurement,
// numbered from 1. It is nil when the record log is off.
func (t *Tuner) History() []models.Round {
	if t.op == nil || t.op.Recorder() == nil {
		return nil
	}
	var rounds []models.Round
	for _, base := range t.op.Recorder().Log() {
		for _, g := range base.Groups {
			if len(g.Measured) == 0 {
				continue
			}
			r := models.Round{
				Loop:       len(rounds) + 1,
				Base:       toInts(base.Base),
				Candidates: make([][]int, 0, len(g.Candidates)),
				Measured:   make([]models.Measurement, 0, len(g.Measured)),
			}
			for _, c := range g.Candidates {
				r.Candidates = append(r.Candidates, toInts(c))
			}
			for _, s := range g.Measured {
				r.Measured = append(r.Measured, models.Measurement{
					Coordinate: toInts(s.Coordinate),
					Values:     t.mustValues(s.Coordinate),
					Value:      s.Value,
					Start:      s.Start,
					End:        s.End,
				})
			}
			rounds = append(rounds, r)
		}
	}
	return rounds
}

// Snapshot builds the replay document without writing it
func (t *Tuner) Snapshot() (*Replay, error) {
	res, err := t.Result()
	if err != nil {
		return nil, err
	}
	return &Replay{
		Algorithm:     res.Algorithm,
		LowerIsBetter: t.opts.LowerIsBetter,
		Parameters:    t.ModelParameters(),
		State:         t.op.Snapshot(),
		Result:        res,
		Rounds:        t.History(),
	}, nil
}

// ExportYAML writes the parameters, operator state, result and round
// history as one YAML document.
func (t *Tuner) ExportYAML(w io.Writer) error {
	doc, err := t.Snapshot()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode replay: %w", err)
	}
	return enc.Close()
}

// ReadReplay decodes a document written by ExportYAML
func ReadReplay(r io.Reader) (*Replay, error) {
	var doc Replay
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode replay: %w", err)
	}
	return &doc, nil
}
