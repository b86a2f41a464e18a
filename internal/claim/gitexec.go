//go:build unix

package claim

import (
	"context"
	"time"

	"github.com/eluent/eluent/internal/gitutil"
)

// runGit delegates to gitutil.Run, the process-group-isolated,
// context-bounded, otel-traced git subprocess runner shared with
// internal/syncer.
func runGit(ctx context.Context, dir string, timeout time.Duration, args ...string) (string, error) {
	return gitutil.Run(ctx, dir, timeout, args...)
}
