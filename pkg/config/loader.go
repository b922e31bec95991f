package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// LoadSession loads and parses a session file
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file %s: %w", path, err)
	}
	s, err := ParseSessionYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", path, err)
	}
	return s, nil
}

// LoadDaemon loads and parses a daemon configuration file
func LoadDaemon(path string) (*Daemon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read daemon file %s: %w", path, err)
	}
	d, err := ParseDaemonYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse daemon file %s: %w", path, err)
	}
	return d, nil
}

// ApplyEnv overrides daemon settings from DSICE_* variables found through
// lookup (os.LookupEnv in production).
func (d *Daemon) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DSICE_GRPC_ADDR"); ok {
		d.GRPCAddr = v
	}
	if v, ok := lookup("DSICE_HTTP_ADDR"); ok {
		d.HTTPAddr = v
	}
	if v, ok := lookup("DSICE_LOG_LEVEL"); ok {
		d.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookup("DSICE_LOG_FORMAT"); ok {
		d.LogFormat = strings.ToLower(v)
	}
	if v, ok := lookup("DSICE_DB_PATH"); ok {
		d.DBPath = v
	}
	if v, ok := lookup("DSICE_SESSION_TTL"); ok {
		d.SessionTTL = v
	}
	if v, ok := lookup("DSICE_NOTIFY_URL"); ok {
		d.NotifyURL = v
	}
	if v, ok := lookup("DSICE_METRICS"); ok {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return fmt.Errorf("DSICE_METRICS: %w", err)
		}
		d.Metrics = b
	}
	return validateDaemon(d)
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validateSession performs validation on a session configuration
func validateSession(s *Session) error {
	if !validLogLevels[s.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", s.LogLevel)
	}

	validAlgorithms := map[string]bool{
		"recommended": true,
		"s_ippe":      true,
		"s_2017":      true,
		"s_2018":      true,
		"p_2024b":     true,
	}
	s.Algorithm = strings.ToLower(s.Algorithm)
	if !validAlgorithms[s.Algorithm] {
		return fmt.Errorf("invalid algorithm: %s (must be recommended, s_ippe, s_2017, s_2018, or p_2024b)", s.Algorithm)
	}

	if s.Objective != "minimize" && s.Objective != "maximize" {
		return fmt.Errorf("objective must be 'minimize' or 'maximize', got %s", s.Objective)
	}

	if s.Alpha < 0 {
		return fmt.Errorf("alpha cannot be negative, got %f", s.Alpha)
	}

	validMetrics := map[string]bool{
		"average":   true,
		"overwrite": true,
	}
	if !validMetrics[s.Metric] {
		return fmt.Errorf("invalid metric: %s (must be average or overwrite)", s.Metric)
	}

	if s.MaxParallel < 0 {
		return fmt.Errorf("max_parallel cannot be negative, got %d", s.MaxParallel)
	}

	if len(s.Parameters) == 0 {
		return fmt.Errorf("at least one parameter must be defined")
	}
	names := make(map[string]bool)
	for i, p := range s.Parameters {
		if p.Name == "" {
			return fmt.Errorf("parameter %d: name cannot be empty", i)
		}
		if names[p.Name] {
			return fmt.Errorf("duplicate parameter name: %s", p.Name)
		}
		names[p.Name] = true
		if _, err := p.Resolve(); err != nil {
			return err
		}
	}

	if s.Initial != nil {
		if err := validateInitial(s.Initial, len(s.Parameters)); err != nil {
			return fmt.Errorf("initial validation failed: %w", err)
		}
	}

	if s.Algorithm == "s_ippe" && len(s.Parameters) != 1 {
		return fmt.Errorf("s_ippe tunes exactly one parameter, got %d", len(s.Parameters))
	}

	return nil
}

// validateInitial validates the initial point selection
func validateInitial(in *Initial, dimension int) error {
	switch in.Mode {
	case "", "center", "search":
		if len(in.Values) > 0 {
			return fmt.Errorf("values are only allowed with mode 'specified'")
		}
	case "specified":
		if len(in.Values) != dimension {
			return fmt.Errorf("expected %d initial values, got %d", dimension, len(in.Values))
		}
		if _, err := ToFloats(in.Values); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid initial mode: %s (must be center, specified, or search)", in.Mode)
	}
	return nil
}

// validateDaemon performs validation on the daemon configuration
func validateDaemon(d *Daemon) error {
	if !validLogLevels[d.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", d.LogLevel)
	}
	if d.LogFormat != "json" && d.LogFormat != "text" {
		return fmt.Errorf("log_format must be 'json' or 'text', got %s", d.LogFormat)
	}
	if d.GRPCAddr == "" && d.HTTPAddr == "" {
		return fmt.Errorf("at least one of grpc_addr and http_addr must be set")
	}
	ttl, err := d.GetSessionTTL()
	if err != nil {
		return fmt.Errorf("invalid session_ttl %s: %w", d.SessionTTL, err)
	}
	if ttl < time.Second {
		return fmt.Errorf("session_ttl must be at least 1s, got %s", ttl)
	}
	return nil
}
