package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseSessionYAML parses a Session from YAML bytes, fills in defaults and
// validates it. JSON input is accepted as well.
func ParseSessionYAML(data []byte) (*Session, error) {
	s := DefaultSession()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse session yaml: %w", err)
	}

	if err := validateSession(s); err != nil {
		return nil, fmt.Errorf("invalid session: %w", err)
	}

	return s, nil
}

// ParseSessionYAMLString parses a Session from a YAML string and validates it.
func ParseSessionYAMLString(yamlText string) (*Session, error) {
	return ParseSessionYAML([]byte(yamlText))
}

// ParseDaemonYAML parses the daemon configuration on top of DefaultDaemon.
func ParseDaemonYAML(data []byte) (*Daemon, error) {
	d := DefaultDaemon()
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("failed to parse daemon yaml: %w", err)
	}

	if err := validateDaemon(d); err != nil {
		return nil, fmt.Errorf("invalid daemon config: %w", err)
	}

	return d, nil
}

// MarshalSession renders a session back to YAML
func MarshalSession(s *Session) ([]byte, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	return out, nil
}
