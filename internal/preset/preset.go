// Package preset computes the static source identity attached to every
// envelope a relay instance emits.
package preset

import (
	"os"
	"runtime"
)

// Detect builds the source identity for the given service name: hostname,
// pid, OS and the deployment environment from RELAY_ENV or ENV.
func Detect(service string) map[string]any {
	src := map[string]any{
		"service": service,
		"pid":     os.Getpid(),
		"os":      runtime.GOOS,
	}

	if host, err := os.Hostname(); err == nil && host != "" {
		src["host"] = host
	}

	for _, key := range []string{"RELAY_ENV", "ENV"} {
		if env := os.Getenv(key); env != "" {
			src["env"] = env
			break
		}
	}

	return src
}
