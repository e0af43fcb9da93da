package etf

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/etf-validator/etf-contract-tests/framework"
)

const heartbeatRetryDelay = time.Second

// AwaitHeartbeat repeats CheckHeartbeat until it succeeds or the timeout has elapsed, for
// instance while the web application is still starting. A timeout of zero checks once. A dot
// is written to output for each attempt.
func (c *Client) AwaitHeartbeat(ctx context.Context, timeout time.Duration, output io.Writer, logger framework.Logger) error {
	if output == nil {
		output = io.Discard
	}
	fmt.Fprintf(output, "Connecting to ETF at %s", c.baseURL)
	defer fmt.Fprintln(output)

	deadline := time.Now().Add(timeout)
	for {
		fmt.Fprint(output, ".")
		err := c.CheckHeartbeat(ctx, logger)
		if err == nil {
			return nil
		}
		if !time.Now().Before(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(heartbeatRetryDelay):
		}
	}
}
