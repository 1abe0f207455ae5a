package validator

import (
	"context"
	"fmt"

	"github.com/moffa90/go-daplink/report"
	"golang.org/x/sync/errgroup"
)

// Job is the work done on one board.
type Job func(ctx context.Context, v *Validator, t *report.Test) error

// Scenarios returns a Job running scenarios in order. It stops at the first
// error.
func Scenarios(scenarios ...Scenario) Job {
	return func(ctx context.Context, v *Validator, t *report.Test) error {
		for _, sc := range scenarios {
			if _, err := v.Run(ctx, sc, t); err != nil {
				return fmt.Errorf("%s: %w", sc.Name, err)
			}
		}
		return nil
	}
}

// RunBoards runs job on every board concurrently, one goroutine per board.
// Each board gets its own subtest of parent, named after its unique id.
// The first error cancels the other boards and is returned.
func RunBoards(ctx context.Context, parent *report.Test, validators []*Validator, job Job) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, v := range validators {
		v := v
		t := parent.Subtest("board " + v.ch.UniqueID())
		g.Go(func() error {
			v.logInfo("board started", "unique_id", v.ch.UniqueID())
			if err := job(ctx, v, t); err != nil {
				v.logError("board failed", "unique_id", v.ch.UniqueID(), "error", err)
				return fmt.Errorf("board %s: %w", v.ch.UniqueID(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
