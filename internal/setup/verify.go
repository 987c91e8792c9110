package setup

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	livenessTimeout      = 90 * time.Second
	livenessPollInterval = 2 * time.Second
)

// livenessClient never follows redirects: the unauthenticated root URL
// redirecting to the login page is itself the success signal.
var livenessClient = &http.Client{
	Timeout: 5 * time.Second,
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// runVerification restarts the web container and confirms it serves HTTP
// traffic. Connection failures and server errors are reported, not swallowed.
func (b *bootstrapper) runVerification(ctx context.Context, _ *stageContext) error {
	if err := b.compose(ctx, "restart", webService); err != nil {
		return fmt.Errorf("restart %s: %w", webService, err)
	}
	if b.opts.dryRun {
		fmt.Printf("dry-run: GET %s\n", b.cfg.webURL)
		return nil
	}

	var lastDetail string
	err := waitFor(ctx, livenessTimeout, livenessPollInterval, func() bool {
		ok, detail := probeLiveness(ctx, livenessClient, b.cfg.webURL)
		if !ok {
			lastDetail = detail
		}
		return ok
	})
	if err != nil {
		return fmt.Errorf("web container is not answering at %s: %s", b.cfg.webURL, lastDetail)
	}

	fmt.Printf("Web container is answering at %s\n", b.cfg.webURL)
	return nil
}

// probeLiveness issues one GET and classifies the result: any 2xx or 3xx
// response counts as alive, everything else reports why it failed.
func probeLiveness(ctx context.Context, client *http.Client, url string) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Sprintf("build request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Sprintf("connection failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return true, ""
	}
	return false, fmt.Sprintf("unexpected status %s", resp.Status)
}
