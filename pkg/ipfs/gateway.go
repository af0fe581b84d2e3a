package ipfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrGatewayFailed is returned when a gateway download fails.
var ErrGatewayFailed = errors.New("gateway request failed")

// Gateways is an ordered list of gateway URL prefixes. Callers move to the
// next gateway by incrementing the attempt number.
type Gateways struct {
	prefixes []string
	client   *http.Client
}

// NewGateways creates a gateway selector. At least two prefixes are required.
func NewGateways(prefixes []string) (*Gateways, error) {
	if len(prefixes) < 2 {
		return nil, fmt.Errorf("at least two gateways are required, got %d", len(prefixes))
	}

	for i, p := range prefixes {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("gateway %d is empty", i)
		}
	}

	return &Gateways{
		prefixes: append([]string(nil), prefixes...),
		client:   &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// Len returns the number of gateways.
func (g *Gateways) Len() int {
	return len(g.prefixes)
}

// URLFor returns the URL of cid on gateway attempt mod Len. Negative
// attempts are treated as 0.
func (g *Gateways) URLFor(cid string, attempt int) string {
	if attempt < 0 {
		attempt = 0
	}

	return g.prefixes[attempt%len(g.prefixes)] + cid
}

// Default returns the URL of cid on the first gateway.
func (g *Gateways) Default(cid string) string {
	return g.URLFor(cid, 0)
}

// Get downloads url into w. It performs a single request; retrying on the
// next gateway is left to the caller.
func (g *Gateways) Get(ctx context.Context, url string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrGatewayFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %s returned %s", ErrGatewayFailed, url, resp.Status)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: reading body: %w", ErrGatewayFailed, err)
	}

	return n, nil
}
