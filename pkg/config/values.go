package config

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/GoSim-25-26J-441/tuning-core/pkg/utils"
)

// ToFloats coerces loosely typed values (YAML or JSON numbers, numeric
// strings, booleans) into float64.
func ToFloats(raw []interface{}) ([]float64, error) {
	out := make([]float64, 0, len(raw))
	for i, v := range raw {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("value %d (%v): %w", i, v, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// Resolve returns the axis values, expanding a linear space when given.
func (p ParameterSpec) Resolve() ([]float64, error) {
	if p.LinSpace != nil {
		if len(p.Values) > 0 {
			return nil, fmt.Errorf("parameter %s: values and linspace are exclusive", p.Name)
		}
		values, err := utils.LinearSpace(p.LinSpace.Min, p.LinSpace.Max, p.LinSpace.Step)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		return values, nil
	}
	values, err := ToFloats(p.Values)
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("parameter %s must have at least one value", p.Name)
	}
	return values, nil
}

// InitialValues returns the specified initial parameter values, nil unless
// the initial mode is "specified".
func (s *Session) InitialValues() ([]float64, error) {
	if s.Initial == nil || s.Initial.Mode != "specified" {
		return nil, nil
	}
	return ToFloats(s.Initial.Values)
}

// InitialMode returns the configured initial mode, center when unset
func (s *Session) InitialMode() string {
	if s.Initial == nil || s.Initial.Mode == "" {
		return "center"
	}
	return s.Initial.Mode
}
