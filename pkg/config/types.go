package config

import "time"

// Session represents the configuration of one tuning session
type Session struct {
	LogLevel    string          `yaml:"log_level" json:"log_level,omitempty"`
	Algorithm   string          `yaml:"algorithm" json:"algorithm,omitempty"` // recommended, s_ippe, s_2017, s_2018, p_2024b
	Objective   string          `yaml:"objective" json:"objective,omitempty"` // minimize or maximize
	Alpha       float64         `yaml:"alpha" json:"alpha,omitempty"`
	Metric      string          `yaml:"metric" json:"metric,omitempty"` // average or overwrite
	Initial     *Initial        `yaml:"initial,omitempty" json:"initial,omitempty"`
	RecordLog   bool            `yaml:"record_log" json:"record_log,omitempty"`
	Parallel    bool            `yaml:"parallel" json:"parallel,omitempty"`
	MaxParallel int             `yaml:"max_parallel" json:"max_parallel,omitempty"`
	Seed        int64           `yaml:"seed,omitempty" json:"seed,omitempty"`
	Parameters  []ParameterSpec `yaml:"parameters" json:"parameters"`
}

// Initial selects the first base point
type Initial struct {
	Mode   string        `yaml:"mode" json:"mode"` // center, specified or search
	Values []interface{} `yaml:"values,omitempty" json:"values,omitempty"`
}

// ParameterSpec describes one axis either by explicit values or by a
// linear space
type ParameterSpec struct {
	Name     string        `yaml:"name" json:"name"`
	Values   []interface{} `yaml:"values,omitempty" json:"values,omitempty"`
	LinSpace *LinSpace     `yaml:"linspace,omitempty" json:"linspace,omitempty"`
}

// LinSpace generates min, min+step, ... up to max
type LinSpace struct {
	Min  float64 `yaml:"min" json:"min"`
	Max  float64 `yaml:"max" json:"max"`
	Step float64 `yaml:"step" json:"step"`
}

// Daemon represents the tuning daemon configuration
type Daemon struct {
	GRPCAddr   string `yaml:"grpc_addr"`
	HTTPAddr   string `yaml:"http_addr"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"` // json or text
	DBPath     string `yaml:"db_path"`    // empty disables persistence
	SessionTTL string `yaml:"session_ttl"`
	NotifyURL  string `yaml:"notify_url,omitempty"`
	Metrics    bool   `yaml:"metrics"`
}

// LowerIsBetter reports whether the objective minimizes the metric
func (s *Session) LowerIsBetter() bool {
	return s.Objective != "maximize"
}

// GetSessionTTL parses the session ttl string to time.Duration
func (d *Daemon) GetSessionTTL() (time.Duration, error) {
	return time.ParseDuration(d.SessionTTL)
}

// DefaultSession returns a session with every optional field filled in
func DefaultSession() *Session {
	return &Session{
		LogLevel:    "info",
		Algorithm:   "recommended",
		Objective:   "minimize",
		Alpha:       0.1,
		Metric:      "average",
		MaxParallel: 4,
	}
}

// DefaultDaemon returns the daemon defaults
func DefaultDaemon() *Daemon {
	return &Daemon{
		GRPCAddr:   ":50051",
		HTTPAddr:   ":8080",
		LogLevel:   "info",
		LogFormat:  "json",
		SessionTTL: "30m",
		Metrics:    true,
	}
}
