// ABOUTME: Reachability probes consulted before either workflow touches the ledger.
// ABOUTME: HTTPNetworkChecker HEADs the generation service health endpoint.
package workflow

import (
	"context"
	"log"
	"net/http"
	"time"
)

// DefaultProbeTimeout bounds a single reachability probe.
const DefaultProbeTimeout = 5 * time.Second

// NetworkChecker reports whether upstream services are reachable.
type NetworkChecker interface {
	Online(ctx context.Context) bool
}

// NetworkCheckerFunc adapts a function to NetworkChecker.
type NetworkCheckerFunc func(ctx context.Context) bool

func (f NetworkCheckerFunc) Online(ctx context.Context) bool { return f(ctx) }

// AlwaysOnline skips the probe.
var AlwaysOnline = NetworkCheckerFunc(func(context.Context) bool { return true })

// HTTPNetworkChecker probes URL with a HEAD request. Any response below 500
// counts as reachable.
type HTTPNetworkChecker struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// Online implements NetworkChecker.
func (c HTTPNetworkChecker) Online(ctx context.Context) bool {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.URL, nil)
	if err != nil {
		log.Printf("component=workflow action=probe_failed url=%s err=%v", c.URL, err)
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Printf("component=workflow action=probe_failed url=%s err=%v", c.URL, err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

func online(ctx context.Context, nc NetworkChecker) bool {
	if nc == nil {
		return true
	}
	return nc.Online(ctx)
}
