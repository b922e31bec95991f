package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateID generates a unique ID
func GenerateID() string {
	return uuid.NewString()
}

// GenerateSessionID generates a tuning session ID with a timestamp prefix
func GenerateSessionID() string {
	timestamp := time.Now().Format("20060102-150405")
	short := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("tune-%s-%s", timestamp, short)
}

// ValidateSessionID rejects IDs that cannot be used in URL paths
func ValidateSessionID(id string) error {
	if strings.ContainsAny(id, "/: ") {
		return fmt.Errorf("session id %q cannot contain '/', ':' or spaces", id)
	}
	return nil
}
