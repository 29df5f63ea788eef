package deploy

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/setupforge/setupforge/internal/plan"
)

// runParallel fans copy operations out across workers while keeping every
// other kind sequential. Copies into the same destination directory share a
// group and run in order, so partial results stay readable per directory.
// Only best-effort runs take this path; atomic runs need the single-order
// journal and stay sequential.
func (e *executor) runParallel(ctx context.Context, ops []plan.Operation, workers int) (Result, error) {
	outcomes := make([]OpResult, len(ops))
	var copyIdx []int
	cancelled := false

	for i, op := range ops {
		if op.Kind == plan.KindCopyFile {
			copyIdx = append(copyIdx, i)
			continue
		}
		if err := ctx.Err(); err != nil {
			cancelled = true
		}
		if cancelled {
			outcomes[i] = OpResult{Op: op, Err: ctx.Err()}
			continue
		}
		outcomes[i] = e.apply(op)
	}

	if !cancelled {
		groups := groupByDestDir(ops, copyIdx)
		var mu sync.Mutex
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(workers)
		for _, group := range groups {
			indices := group
			eg.Go(func() error {
				for _, i := range indices {
					if err := egCtx.Err(); err != nil {
						mu.Lock()
						outcomes[i] = OpResult{Op: ops[i], Err: err}
						cancelled = true
						mu.Unlock()
						continue
					}
					res := e.apply(ops[i])
					mu.Lock()
					outcomes[i] = res
					mu.Unlock()
				}
				return nil
			})
		}
		// Workers never return errors; failures land in outcomes.
		_ = eg.Wait()
	} else {
		for _, i := range copyIdx {
			outcomes[i] = OpResult{Op: ops[i], Err: ctx.Err()}
		}
	}

	result := Result{Outcomes: outcomes, Cancelled: cancelled || ctx.Err() != nil}
	if result.Cancelled {
		return result, ctx.Err()
	}
	if failed := result.Failed(); len(failed) > 0 {
		return result, partialError(result)
	}
	return result, nil
}

// groupByDestDir buckets copy operation indices by destination directory and
// returns the buckets in deterministic directory order.
func groupByDestDir(ops []plan.Operation, copyIdx []int) [][]int {
	byDir := make(map[string][]int)
	for _, i := range copyIdx {
		dir := filepath.Dir(ops[i].Path)
		byDir[dir] = append(byDir[dir], i)
	}
	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	groups := make([][]int, 0, len(dirs))
	for _, dir := range dirs {
		groups = append(groups, byDir[dir])
	}
	return groups
}
