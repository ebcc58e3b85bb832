// Package mesh implements the cartesian mesh handed to downstream pipeline
// stages: four coordinate arrays, an index extent, and named field arrays.
package mesh

import (
	"errors"
	"fmt"

	"github.com/batchatco/go-cf-reader/cfreader/varray"
)

// Extent is an inclusive index range (i0,i1,j0,j1,k0,k1).
type Extent [6]int64

// Counts returns the number of indices along each spatial axis.
func (e Extent) Counts() (nx, ny, nz int64) {
	return e[1] - e[0] + 1, e[3] - e[2] + 1, e[5] - e[4] + 1
}

// Size returns the number of mesh points in the extent.
func (e Extent) Size() int64 {
	nx, ny, nz := e.Counts()
	return nx * ny * nz
}

// Mesh is a structured grid at one time step.  Point arrays are shaped by
// the current extent; information arrays are not.
type Mesh struct {
	XCoords *varray.Array
	YCoords *varray.Array
	ZCoords *varray.Array
	TCoords *varray.Array

	WholeExtent Extent
	Extent      Extent

	Time      float64
	TimeStep  int64
	Calendar  string
	TimeUnits string

	pointNames []string
	points     map[string]*varray.Array
	infoNames  []string
	info       map[string]*varray.Array
}

var ErrBadPointArray = errors.New("mesh: point array length does not match extent")

func New() *Mesh {
	return &Mesh{
		points: map[string]*varray.Array{},
		info:   map[string]*varray.Array{},
	}
}

// AddPointArray attaches a named field array valued at mesh points.  The
// array length must equal the extent's point count.
func (m *Mesh) AddPointArray(name string, a *varray.Array) error {
	if int64(a.Len()) != m.Extent.Size() {
		return fmt.Errorf("%w: %s has %d elements, extent wants %d",
			ErrBadPointArray, name, a.Len(), m.Extent.Size())
	}
	if _, has := m.points[name]; !has {
		m.pointNames = append(m.pointNames, name)
	}
	m.points[name] = a
	return nil
}

// AddInfoArray attaches a named array unrelated to the mesh shape.
func (m *Mesh) AddInfoArray(name string, a *varray.Array) {
	if _, has := m.info[name]; !has {
		m.infoNames = append(m.infoNames, name)
	}
	m.info[name] = a
}

// PointArray returns the named point array, or nil.
func (m *Mesh) PointArray(name string) *varray.Array {
	return m.points[name]
}

// InfoArray returns the named information array, or nil.
func (m *Mesh) InfoArray(name string) *varray.Array {
	return m.info[name]
}

// PointArrayNames returns point-array names in attachment order.
func (m *Mesh) PointArrayNames() []string {
	return m.pointNames
}

// InfoArrayNames returns information-array names in attachment order.
func (m *Mesh) InfoArrayNames() []string {
	return m.infoNames
}

// Validate checks the mesh invariants: every point array's length equals
// the extent's point count, and each coordinate array covers its axis.
func (m *Mesh) Validate() error {
	for _, name := range m.pointNames {
		if int64(m.points[name].Len()) != m.Extent.Size() {
			return fmt.Errorf("%w: %s", ErrBadPointArray, name)
		}
	}
	nx, ny, nz := m.Extent.Counts()
	for _, c := range []struct {
		name  string
		arr   *varray.Array
		count int64
	}{
		{"x", m.XCoords, nx},
		{"y", m.YCoords, ny},
		{"z", m.ZCoords, nz},
	} {
		if c.arr != nil && int64(c.arr.Len()) != c.count {
			return fmt.Errorf("mesh: %s coordinates have %d elements, extent wants %d",
				c.name, c.arr.Len(), c.count)
		}
	}
	return nil
}
