package instance

import (
	"os"
	"strings"
)

const fallbackID = "pos-0"

// ID names this process in log lines and lock ownership. POS_INSTANCE_ID wins over
// the hostname.
func ID() string {
	if id := strings.TrimSpace(os.Getenv("POS_INSTANCE_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
