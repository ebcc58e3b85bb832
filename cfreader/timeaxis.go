package cfreader

import (
	"fmt"

	"github.com/batchatco/go-cf-reader/cfreader/pool"
	"github.com/batchatco/go-cf-reader/cfreader/varray"
)

// timeResult carries one file's time coordinate back from the worker pool.
// arr is nil when the read failed.
type timeResult struct {
	index int
	arr   *varray.Array
}

// readTimeAxis reads every file's time coordinate in parallel and
// concatenates them in file order.  Returns the global axis and the
// per-file step counts.
//
// Per-file opens dominate the metadata phase on networked filesystems, so
// one task per file is scheduled on the worker pool.  Each task releases
// its handle when done; the file is reopened in the execute phase when its
// data is actually needed.
func (r *Reader) readTimeAxis(root string, files []string) (*varray.Array, []int64, error) {
	if r.tAxisVariable == "" {
		// No time axis: synthesize a single default step.
		t, err := varray.New(varray.Float64, 1)
		if err != nil {
			return nil, nil, err
		}
		return t, []int64{1}, nil
	}

	p := pool.New[timeResult](r.threadPoolSize)
	for i, f := range files {
		i, f := i, f
		p.Submit(func() timeResult {
			return timeResult{index: i, arr: r.readFileTime(root, f)}
		})
	}
	results := p.Wait()

	// Assembly follows file-index order regardless of completion order.
	ordered := make([]*varray.Array, len(files))
	for _, res := range results {
		ordered[res.index] = res.arr
	}
	if ordered[0] == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrTimeAxisRead, files[0])
	}

	t := ordered[0]
	stepCount := make([]int64, len(files))
	stepCount[0] = int64(t.Len())
	for i := 1; i < len(ordered); i++ {
		if ordered[i] == nil {
			logger.Warnf("no time steps read from %q", files[i])
			continue
		}
		if err := t.Append(ordered[i]); err != nil {
			logger.Errorf("time axis of %q has a different element kind: %v",
				files[i], err)
			continue
		}
		stepCount[i] = int64(ordered[i].Len())
	}
	return t, stepCount, nil
}

// readFileTime reads one file's full time coordinate, or nil on failure.
func (r *Reader) readFileTime(root, file string) *varray.Array {
	g, mu, err := r.cache.Acquire(root, file)
	if err != nil {
		logger.Errorf("acquiring %q: %v", file, err)
		return nil
	}
	defer r.cache.Release(file)

	mu.Lock()
	defer mu.Unlock()
	vg, err := g.GetVarGetter(r.tAxisVariable)
	if err != nil {
		logger.Errorf("time variable %q in %q: %v", r.tAxisVariable, file, err)
		return nil
	}
	values, err := vg.Values()
	if err != nil {
		logger.Errorf("reading time coordinate of %q: %v", file, err)
		return nil
	}
	arr, err := varray.FromSlice(values)
	if err != nil {
		logger.Errorf("time coordinate of %q: %v", file, err)
		return nil
	}
	return arr
}
