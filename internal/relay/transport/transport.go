package transport

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/Chichichkin/LogRelay/internal/relay"
)

// ErrUnsupportedScheme is the only fatal transport error: it is returned
// synchronously from Connect and never during steady-state operation.
var ErrUnsupportedScheme = errors.New("unsupported endpoint scheme")

// Connect selects the lane for the configured endpoint scheme and opens the
// transport handle. tcp:// maps to the stream lane, http:// and https:// to
// the request lane.
func Connect(config relay.Config) (relay.Transport, error) {
	u, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", config.Endpoint, err)
	}

	switch u.Scheme {
	case "tcp":
		return newStream(u.Host), nil
	case "http", "https":
		return newRequest(config), nil
	default:
		return nil, fmt.Errorf("endpoint %q: %w", config.Endpoint, ErrUnsupportedScheme)
	}
}
