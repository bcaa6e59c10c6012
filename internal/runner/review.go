package runner

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jorge-barreto/tome/internal/stage"
	"github.com/jorge-barreto/tome/internal/state"
)

// reviewAndImprove runs at most maxIterations review/improve rounds and
// returns the last block produced. A failing review is never fatal: when
// the budget is spent the latest version is accepted as is.
//
// A review call that errors accepts the current block. An improve call that
// errors keeps the block it was given and ends the loop.
func (r *Runner) reviewAndImprove(ctx context.Context, block string, task state.Task, maxIterations int, log *slog.Logger) (string, stage.ReviewResult) {
	var last stage.ReviewResult
	for it := 1; it <= maxIterations; it++ {
		if ctx.Err() != nil {
			return block, last
		}
		res, err := r.Reviewer.Review(ctx, block, task)
		if err != nil {
			log.Warn("review failed, accepting block", "iteration", it, "err", err)
			return block, last
		}
		last = res
		r.Out.Review(it, maxIterations, res.Passed, res.Issues)
		if res.Passed {
			return block, res
		}

		improved, err := r.Improver.Improve(ctx, block, task, res)
		if err != nil {
			log.Warn("improve failed, keeping current block", "iteration", it, "err", err)
			return block, last
		}
		if strings.TrimSpace(improved) == "" {
			log.Warn("improver returned an empty block, keeping current block", "iteration", it)
			return block, last
		}
		if improved == block {
			log.Debug("improver returned the block unchanged", "iteration", it)
		}
		block = improved
	}
	if maxIterations > 0 && !last.Passed {
		r.Out.ReviewExhausted(maxIterations)
	}
	return block, last
}
