package cfreader

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/batchatco/go-cf-reader/cfreader/bag"
	"github.com/batchatco/go-cf-reader/cfreader/mesh"
	"github.com/batchatco/go-cf-reader/cfreader/varray"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// Execute reads one time step.  The request bag may carry "time_step" (an
// integer, default 0), "extent" (six integers, default the whole extent)
// and "arrays" (the field variables to read).  Per-array failures are
// logged and the array skipped; the mesh is returned with whatever
// succeeded.  Metadata must have been assembled first.
func (r *Reader) Execute(req *bag.Bag) (*mesh.Mesh, error) {
	if r.md == nil {
		return nil, fmt.Errorf("%w: run the metadata phase first", ErrMetadataMissing)
	}
	md := r.md

	coords, err := md.Nested(KeyCoordinates)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMetadataMissing, KeyCoordinates)
	}
	whole, err := md.Int64s(KeyWholeExtent)
	if err != nil || len(whole) != 6 {
		return nil, fmt.Errorf("%w: %q", ErrMetadataMissing, KeyWholeExtent)
	}
	stepCount, err := md.Int64s(KeyStepCount)
	if err != nil || len(stepCount) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrMetadataMissing, KeyStepCount)
	}
	root, err := md.String(KeyRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMetadataMissing, KeyRoot)
	}
	files, err := md.Strings(KeyFiles)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMetadataMissing, KeyFiles)
	}

	timeStep := int64(0)
	extent := mesh.Extent{whole[0], whole[1], whole[2], whole[3], whole[4], whole[5]}
	var arrays []string
	if req != nil {
		if v, err := req.Int64(KeyTimeStep); err == nil {
			timeStep = v
		}
		if e, err := req.Int64s(KeyExtent); err == nil && len(e) == 6 {
			copy(extent[:], e)
		}
		if a, err := req.Strings(KeyArrays); err == nil {
			arrays = a
		}
	}

	idx, offs := resolveStep(stepCount, timeStep)

	m := mesh.New()
	copy(m.WholeExtent[:], whole)
	m.Extent = extent
	m.TimeStep = timeStep

	// Coordinates on the output mesh are sliced copies of the global axes.
	for _, c := range []struct {
		key  string
		dst  **varray.Array
		lo   int64
		hi   int64
	}{
		{"x", &m.XCoords, extent[0], extent[1]},
		{"y", &m.YCoords, extent[2], extent[3]},
		{"z", &m.ZCoords, extent[4], extent[5]},
	} {
		axis, err := coords.Array(c.key)
		if err != nil {
			return nil, fmt.Errorf("%w: coordinates/%s", ErrMetadataMissing, c.key)
		}
		sliced, err := axis.Slice(int(c.lo), int(c.hi))
		if err != nil {
			return nil, fmt.Errorf("cfreader: extent %v outside the %s axis: %w",
				extent, c.key, err)
		}
		*c.dst = sliced
	}
	t, err := coords.Array("t")
	if err != nil {
		return nil, fmt.Errorf("%w: coordinates/t", ErrMetadataMissing)
	}
	switch {
	case timeStep >= 0 && timeStep < int64(t.Len()):
		m.Time = t.Float64(int(timeStep))
	case t.Len() > 0:
		cs := clampStep(timeStep, int64(t.Len()))
		logger.Warnf("time step %d out of range, clamping to %d", timeStep, cs)
		m.Time = t.Float64(int(cs))
	}
	cs := int(clampStep(timeStep, int64(t.Len())))
	m.TCoords, _ = t.Slice(cs, cs)
	if tAtts, err := coords.Nested("t_attributes"); err == nil {
		m.Calendar, _ = tAtts.String("calendar")
		m.TimeUnits, _ = tAtts.String("units")
	}

	// The target dimension list, outermost first: (t?, z?, y?, x?),
	// omitting unset axes.
	tSet := false
	var target []string
	for _, key := range []string{"t_dimension", "z_dimension", "y_dimension", "x_dimension"} {
		name, err := coords.String(key)
		if err != nil || name == "" {
			continue
		}
		if key == "t_dimension" {
			tSet = true
		}
		target = append(target, name)
	}

	timeVars, _ := md.Strings(KeyTimeVariables)
	if len(arrays) == 0 && len(timeVars) == 0 {
		return m, nil
	}

	g, mu, err := r.cache.Acquire(root, files[idx])
	if err != nil {
		return nil, err
	}

	atts, attsErr := md.Nested(KeyAttributes)
	for _, name := range arrays {
		if attsErr != nil {
			logger.Errorf("no attributes recorded for %q", name)
			continue
		}
		r.readPointArray(m, g, mu, atts, name, target, extent, offs, tSet)
	}
	for _, name := range timeVars {
		r.readTimeVariable(m, g, mu, name, offs)
	}
	return m, nil
}

// resolveStep walks the per-file step counts to the file holding step and
// the intra-file offset.  Steps past the end clamp to the last one.
func resolveStep(stepCount []int64, step int64) (idx, offs int64) {
	if step < 0 {
		step = 0
	}
	base := int64(0)
	for i, n := range stepCount {
		if step < base+n {
			return int64(i), step - base
		}
		base += n
	}
	logger.Warnf("time step %d beyond the dataset's %d steps", step, base)
	for i := len(stepCount) - 1; i >= 0; i-- {
		if stepCount[i] > 0 {
			return int64(i), stepCount[i] - 1
		}
	}
	return 0, 0
}

func clampStep(step, n int64) int64 {
	if step < 0 {
		return 0
	}
	if step >= n {
		return n - 1
	}
	return step
}

// readPointArray reads one mesh variable's spatial sub-extent at the
// resolved time offset and attaches it to the mesh.  Failures are logged
// and the array skipped.
func (r *Reader) readPointArray(m *mesh.Mesh, g api.Group, mu *sync.Mutex,
	atts *bag.Bag, name string, target []string, extent mesh.Extent,
	offs int64, tSet bool) {

	att, err := atts.Nested(name)
	if err != nil {
		logger.Errorf("no attributes recorded for %q", name)
		return
	}
	dimNames, err := att.Strings("dim_names")
	if err != nil {
		logger.Errorf("no dimension names recorded for %q", name)
		return
	}
	if !equalStrings(dimNames, target) {
		logger.Errorf("%v: %q has dimensions %v, the target mesh wants %v",
			ErrDimensionMismatch, name, dimNames, target)
		return
	}

	mu.Lock()
	block, err := readBlock(g, name, offs, tSet)
	mu.Unlock()
	if err != nil {
		logger.Errorf("%v: %q: %v", ErrHyperslabRead, name, err)
		return
	}

	// Cut the spatial sub-extent out of the one-step block.  Ranges are
	// outermost first, matching the target order after time.
	var ranges [][2]int64
	if tSet {
		block = block.Index(0)
	}
	spatial := [][2]int64{{extent[4], extent[5]}, {extent[2], extent[3]}, {extent[0], extent[1]}}
	nSpatial := len(target)
	if tSet {
		nSpatial--
	}
	ranges = spatial[len(spatial)-nSpatial:]

	flat, err := extractSub(block, ranges)
	if err != nil {
		logger.Errorf("%v: %q: %v", ErrHyperslabRead, name, err)
		return
	}
	arr, err := varray.FromSlice(flat.Interface())
	if err != nil {
		logger.Errorf("%v: %q: %v", ErrHyperslabRead, name, err)
		return
	}
	if err := m.AddPointArray(name, arr); err != nil {
		logger.Errorf("%v", err)
	}
}

// readTimeVariable reads a single element of a time variable at the
// resolved offset and attaches it as an information array.
func (r *Reader) readTimeVariable(m *mesh.Mesh, g api.Group, mu *sync.Mutex,
	name string, offs int64) {

	mu.Lock()
	vg, err := g.GetVarGetter(name)
	var values any
	if err == nil {
		values, err = vg.GetSlice(offs, offs+1)
	}
	mu.Unlock()
	if err != nil {
		logger.Errorf("%v: time variable %q: %v", ErrHyperslabRead, name, err)
		return
	}
	arr, err := varray.FromSlice(values)
	if err != nil {
		logger.Errorf("time variable %q: %v", name, err)
		return
	}
	m.AddInfoArray(name, arr)
}

// readBlock reads the variable's data for one time step (or whole, when no
// time axis exists) as the container library's nested-slice representation.
func readBlock(g api.Group, name string, offs int64, tSet bool) (reflect.Value, error) {
	vg, err := g.GetVarGetter(name)
	if err != nil {
		return reflect.Value{}, err
	}
	var values any
	if tSet {
		values, err = vg.GetSlice(offs, offs+1)
	} else {
		values, err = vg.Values()
	}
	if err != nil {
		return reflect.Value{}, err
	}
	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice {
		return reflect.Value{}, fmt.Errorf("unexpected scalar read for %q", name)
	}
	if tSet && rv.Len() < 1 {
		return reflect.Value{}, fmt.Errorf("empty record read for %q", name)
	}
	return rv, nil
}

// extractSub copies the inclusive ranges out of a nested-slice block into
// one flat slice, outermost range first.
func extractSub(block reflect.Value, ranges [][2]int64) (reflect.Value, error) {
	if len(ranges) == 0 {
		return reflect.Value{}, fmt.Errorf("no spatial dimensions to extract")
	}
	elem := block.Type()
	for i := 0; i < len(ranges); i++ {
		if elem.Kind() != reflect.Slice {
			return reflect.Value{}, fmt.Errorf("block has fewer dimensions than the extent")
		}
		elem = elem.Elem()
	}
	if elem.Kind() == reflect.Slice {
		return reflect.Value{}, fmt.Errorf("block has more dimensions than the extent")
	}
	total := int64(1)
	for _, rg := range ranges {
		total *= rg[1] - rg[0] + 1
	}
	out := reflect.MakeSlice(reflect.SliceOf(elem), 0, int(total))
	return appendSub(out, block, ranges)
}

func appendSub(out, block reflect.Value, ranges [][2]int64) (reflect.Value, error) {
	lo, hi := ranges[0][0], ranges[0][1]
	if lo < 0 || hi >= int64(block.Len()) || lo > hi {
		return reflect.Value{}, fmt.Errorf("range [%d,%d] outside dimension of %d",
			lo, hi, block.Len())
	}
	if len(ranges) == 1 {
		return reflect.AppendSlice(out, block.Slice(int(lo), int(hi+1))), nil
	}
	var err error
	for i := lo; i <= hi; i++ {
		out, err = appendSub(out, block.Index(int(i)), ranges[1:])
		if err != nil {
			return reflect.Value{}, err
		}
	}
	return out, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
