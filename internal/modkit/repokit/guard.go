package repokit

import (
	"context"
	"time"

	perr "stockpipe/internal/platform/errors"
)

type guarder interface {
	Guard(context.Context) error
}

// Guard runs g.Guard under timeout and reports failures as Unavailable
// a nil guard means no backend is configured and always passes
func Guard(ctx context.Context, timeout time.Duration, g guarder) error {
	if g == nil {
		return nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := g.Guard(ctx); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "dependency guard failed")
	}
	return nil
}
