// Package cfreader reads a time-ordered collection of NetCDF files laid out
// by the climate and forecast conventions as one logical dataset, and
// serves per-time-step cartesian meshes from it.
//
// The reader runs in two phases.  The metadata phase consolidates the file
// set into a single global metadata record: the coordinator process
// enumerates the files, learns the mesh geometry and variable schema from
// the first file, reads every file's time coordinate on a worker pool, and
// broadcasts the assembled record to its peers.  The execute phase resolves
// a time-step request to one file and intra-file offset and reads the
// requested field arrays on the requested spatial sub-extent.
package cfreader

import (
	"fmt"

	"github.com/batchatco/go-cf-reader/cfreader/bag"
	"github.com/batchatco/go-cf-reader/cfreader/comm"
	"github.com/batchatco/go-cf-reader/cfreader/handlecache"
)

// Metadata record keys.  The record is the upstream contract: downstream
// stages read these to plan requests.
const (
	KeyVariables         = "variables"
	KeyAttributes        = "attributes"
	KeyTimeVariables     = "time variables"
	KeyCoordinates       = "coordinates"
	KeyWholeExtent       = "whole_extent"
	KeyFiles             = "files"
	KeyRoot              = "root"
	KeyStepCount         = "step_count"
	KeyNumberOfTimeSteps = "number_of_time_steps"
	KeyGlobalAttributes  = "global_attributes"
)

// Request keys accepted by Execute.
const (
	KeyTimeStep = "time_step"
	KeyExtent   = "extent"
	KeyArrays   = "arrays"
)

// Reader is a two-phase multi-file dataset reader.  Configuration setters
// invalidate the cached metadata record and the handle cache; the zero
// configuration reads "lon"/"lat" spatial axes and a "time" time axis.
type Reader struct {
	group comm.Group
	cache *handlecache.Cache

	fileName       string
	filesRegex     string
	xAxisVariable  string
	yAxisVariable  string
	zAxisVariable  string
	tAxisVariable  string
	threadPoolSize int

	md *bag.Bag
}

// New returns a reader participating in the given process group.  A nil
// group means single-process operation.
func New(group comm.Group) *Reader {
	if group == nil {
		group = comm.Single{}
	}
	return &Reader{
		group:          group,
		cache:          handlecache.New(),
		xAxisVariable:  "lon",
		yAxisVariable:  "lat",
		tAxisVariable:  "time",
		threadPoolSize: -1,
	}
}

// invalidate drops all state derived from the configuration.
func (r *Reader) invalidate() {
	r.md = nil
	r.cache.Clear()
}

// SetFileName selects a single file as the dataset.
func (r *Reader) SetFileName(name string) {
	r.fileName = name
	r.invalidate()
}

// SetFilesRegex selects the dataset by directory and basename regex: the
// last path component is the regex, the rest the directory.
func (r *Reader) SetFilesRegex(regex string) {
	r.filesRegex = regex
	r.invalidate()
}

// SetXAxisVariable names the x coordinate variable.
func (r *Reader) SetXAxisVariable(name string) {
	r.xAxisVariable = name
	r.invalidate()
}

// SetYAxisVariable names the y coordinate variable; "" collapses the axis.
func (r *Reader) SetYAxisVariable(name string) {
	r.yAxisVariable = name
	r.invalidate()
}

// SetZAxisVariable names the z coordinate variable; "" collapses the axis.
func (r *Reader) SetZAxisVariable(name string) {
	r.zAxisVariable = name
	r.invalidate()
}

// SetTAxisVariable names the time coordinate variable; "" synthesizes a
// single-step time axis.
func (r *Reader) SetTAxisVariable(name string) {
	r.tAxisVariable = name
	r.invalidate()
}

// SetThreadPoolSize bounds the metadata-phase worker pool; -1 selects one
// worker per hardware thread.
func (r *Reader) SetThreadPoolSize(n int) {
	r.threadPoolSize = n
	r.invalidate()
}

// Metadata runs the metadata phase and returns the consolidated record.
// Subsequent calls return the cached record until the configuration
// changes.  In a process group, Metadata is collective: only the
// coordinator touches the filesystem, and every member returns an
// identical record.
func (r *Reader) Metadata() (*bag.Bag, error) {
	if r.md != nil {
		return r.md, nil
	}
	if comm.Coordinator(r.group) {
		md, err := r.assembleMetadata()
		if err != nil {
			r.invalidate()
			// Peers block on the broadcast; send them the empty
			// record so the collective completes everywhere.
			if r.group.Size() > 1 {
				r.distribute(bag.New())
			}
			return bag.New(), err
		}
		if r.group.Size() > 1 {
			if err := r.distribute(md); err != nil {
				r.invalidate()
				return bag.New(), err
			}
		}
		r.md = md
		return r.md, nil
	}
	md, err := r.receive()
	if err != nil {
		r.invalidate()
		return bag.New(), err
	}
	if md.Empty() {
		return bag.New(), fmt.Errorf("%w: coordinator sent an empty record",
			ErrBroadcastFailed)
	}
	// Prime the local handle cache so execute can acquire handles
	// without re-enumeration.
	files, err := md.Strings(KeyFiles)
	if err != nil {
		return bag.New(), fmt.Errorf("%w: %q", ErrMetadataMissing, KeyFiles)
	}
	r.cache.Initialize(files)
	r.md = md
	return r.md, nil
}

// assembleMetadata is the coordinator's side of the metadata phase.
func (r *Reader) assembleMetadata() (*bag.Bag, error) {
	root, files, err := enumerateFiles(r.fileName, r.filesRegex)
	if err != nil {
		return nil, err
	}
	r.cache.Initialize(files)

	g, mu, err := r.cache.Acquire(root, files[0])
	if err != nil {
		return nil, err
	}
	mu.Lock()
	schema, err := r.introspectSchema(g)
	mu.Unlock()
	r.cache.Release(files[0])
	if err != nil {
		return nil, err
	}

	t, stepCount, err := r.readTimeAxis(root, files)
	if err != nil {
		return nil, err
	}
	steps := int64(0)
	for _, n := range stepCount {
		steps += n
	}

	coords := bag.New()
	coords.SetString("x_variable", axisName(schema.x.varName, "x"))
	coords.SetString("y_variable", axisName(schema.y.varName, "y"))
	coords.SetString("z_variable", axisName(schema.z.varName, "z"))
	coords.SetString("t_variable", axisName(r.tAxisVariable, "t"))
	coords.Set("x", schema.x.coords)
	coords.Set("y", schema.y.coords)
	coords.Set("z", schema.z.coords)
	coords.Set("t", t)
	coords.SetString("x_dimension", schema.x.dimName)
	coords.SetString("y_dimension", schema.y.dimName)
	coords.SetString("z_dimension", schema.z.dimName)
	coords.SetString("t_dimension", schema.tDimName)
	tAtts := bag.New()
	if schema.tCalendar != "" {
		tAtts.SetString("calendar", schema.tCalendar)
	}
	if schema.tUnits != "" {
		tAtts.SetString("units", schema.tUnits)
	}
	coords.Set("t_attributes", tAtts)

	md := bag.New()
	md.Set(KeyVariables, schema.variables)
	md.Set(KeyAttributes, schema.attributes)
	md.Set(KeyTimeVariables, schema.timeVariables)
	md.Set(KeyCoordinates, coords)
	md.SetInt64s(KeyWholeExtent, []int64{
		0, int64(schema.x.coords.Len()) - 1,
		0, int64(schema.y.coords.Len()) - 1,
		0, int64(schema.z.coords.Len()) - 1,
	})
	md.Set(KeyFiles, files)
	md.SetString(KeyRoot, root)
	md.SetInt64s(KeyStepCount, stepCount)
	md.SetInt64(KeyNumberOfTimeSteps, steps)
	md.Set(KeyGlobalAttributes, schema.globalAttrs)
	return md, nil
}

// axisName substitutes an independent placeholder for an unset axis.
func axisName(configured, placeholder string) string {
	if configured == "" {
		return placeholder
	}
	return configured
}

// distribute serializes the record and broadcasts its length, then its
// bytes, to the group.
func (r *Reader) distribute(md *bag.Bag) error {
	data, err := md.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}
	root := r.group.Size() - 1
	if _, err := r.group.BcastInt64(int64(len(data)), root); err != nil {
		return fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}
	if _, err := r.group.BcastBytes(data, root); err != nil {
		return fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}
	return nil
}

// receive is the non-coordinator side of distribute.
func (r *Reader) receive() (*bag.Bag, error) {
	root := r.group.Size() - 1
	length, err := r.group.BcastInt64(0, root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}
	data, err := r.group.BcastBytes(nil, root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}
	if int64(len(data)) != length {
		return nil, fmt.Errorf("%w: expected %d bytes, received %d",
			ErrBroadcastFailed, length, len(data))
	}
	md := bag.New()
	if err := md.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}
	return md, nil
}
