package cfreader

import (
	"fmt"
	"strings"

	"github.com/batchatco/go-cf-reader/cfreader/bag"
	"github.com/batchatco/go-cf-reader/cfreader/varray"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// axisInfo describes one spatial axis of the dataset.
type axisInfo struct {
	varName string // configured coordinate variable, "" if unset
	dimName string // the axis dimension, "" if unset
	coords  *varray.Array
}

// fileSchema is everything learned from the first file: the mesh geometry,
// the per-variable attribute bags, and the time axis identity (the time
// coordinate values themselves are read later, across all files).
type fileSchema struct {
	x, y, z axisInfo

	tVarName  string
	tDimName  string
	tCalendar string
	tUnits    string

	variables     []string
	attributes    *bag.Bag
	timeVariables []string
	globalAttrs   *bag.Bag
}

// introspectSchema queries the mesh geometry and variable schema from an
// open handle to the first file.  The caller holds the file's mutex.
func (r *Reader) introspectSchema(g api.Group) (*fileSchema, error) {
	if r.xAxisVariable == "" {
		return nil, fmt.Errorf("%w: an x axis variable must be configured", ErrSchemaQuery)
	}
	s := &fileSchema{
		tVarName:   r.tAxisVariable,
		attributes: bag.New(),
	}

	var err error
	if s.x, err = readAxis(g, r.xAxisVariable); err != nil {
		return nil, err
	}
	if s.y, err = readAxis(g, r.yAxisVariable); err != nil {
		return nil, err
	}
	if s.z, err = readAxis(g, r.zAxisVariable); err != nil {
		return nil, err
	}
	// An unset axis collapses to one default-valued element of the x
	// axis's kind.
	for _, a := range []*axisInfo{&s.y, &s.z} {
		if a.varName == "" {
			a.coords, err = varray.New(s.x.coords.Kind(), 1)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrSchemaQuery, err)
			}
		}
	}

	if s.tVarName != "" {
		vg, err := g.GetVarGetter(s.tVarName)
		if err != nil {
			return nil, fmt.Errorf("%w: time variable %q: %v",
				ErrSchemaQuery, s.tVarName, err)
		}
		dims := vg.Dimensions()
		if len(dims) != 1 {
			return nil, fmt.Errorf("%w: time variable %q is not one-dimensional",
				ErrSchemaQuery, s.tVarName)
		}
		s.tDimName = dims[0]
		s.tCalendar = textAttribute(vg.Attributes(), "calendar")
		s.tUnits = textAttribute(vg.Attributes(), "units")
	}

	axisNames := map[string]bool{}
	for _, name := range []string{r.xAxisVariable, r.yAxisVariable,
		r.zAxisVariable, r.tAxisVariable} {
		if name != "" {
			axisNames[name] = true
		}
	}

	// Enumerate the field variables: everything except the coordinate
	// axes themselves, skipping scalars and element kinds outside the
	// closed set.
	id := int64(0)
	for _, name := range g.ListVariables() {
		if axisNames[name] {
			continue
		}
		vg, err := g.GetVarGetter(name)
		if err != nil {
			return nil, fmt.Errorf("%w: variable %q: %v", ErrSchemaQuery, name, err)
		}
		dims := vg.Dimensions()
		if len(dims) == 0 {
			continue
		}
		kind, ok := varray.KindForGoType(vg.GoType())
		if !ok {
			logger.Infof("skipping %q: unsupported element type %s", name, vg.GoType())
			continue
		}

		att := bag.New()
		att.SetInt64("kind", int64(kind))
		att.SetInt64("id", id)
		att.SetString("centering", "point")
		sizes := make([]int64, len(dims))
		for i, d := range dims {
			n, has := g.GetDimension(d)
			if !has {
				return nil, fmt.Errorf("%w: variable %q: dimension %q not found",
					ErrSchemaQuery, name, d)
			}
			sizes[i] = int64(n)
		}
		att.SetInt64s("dims", sizes)
		att.Set("dim_names", append([]string(nil), dims...))
		copyTextAttributes(att, vg.Attributes())

		s.variables = append(s.variables, name)
		s.attributes.Set(name, att)
		if len(dims) == 1 && s.tDimName != "" && dims[0] == s.tDimName {
			s.timeVariables = append(s.timeVariables, name)
		}
		id++
	}

	s.globalAttrs = bag.New()
	copyTextAttributes(s.globalAttrs, g.Attributes())
	return s, nil
}

// readAxis reads a full spatial coordinate axis.  An empty variable name
// yields a placeholder axis filled in by the caller.
func readAxis(g api.Group, varName string) (axisInfo, error) {
	if varName == "" {
		return axisInfo{}, nil
	}
	vg, err := g.GetVarGetter(varName)
	if err != nil {
		return axisInfo{}, fmt.Errorf("%w: axis variable %q: %v",
			ErrSchemaQuery, varName, err)
	}
	dims := vg.Dimensions()
	if len(dims) != 1 {
		return axisInfo{}, fmt.Errorf("%w: axis variable %q is not one-dimensional",
			ErrSchemaQuery, varName)
	}
	values, err := vg.Values()
	if err != nil {
		return axisInfo{}, fmt.Errorf("%w: axis %q: %v", ErrAxisRead, varName, err)
	}
	coords, err := varray.FromSlice(values)
	if err != nil {
		return axisInfo{}, fmt.Errorf("%w: axis %q: %v", ErrAxisRead, varName, err)
	}
	return axisInfo{varName: varName, dimName: dims[0], coords: coords}, nil
}

// textAttribute returns the named character attribute, right-trimmed, or "".
func textAttribute(am api.AttributeMap, key string) string {
	if am == nil {
		return ""
	}
	v, has := am.Get(key)
	if !has {
		return ""
	}
	if s, ok := v.(string); ok {
		return trimText(s)
	}
	return ""
}

// copyTextAttributes copies every character-valued attribute into dst,
// right-trimmed of the padding fixed-length storage leaves behind.
func copyTextAttributes(dst *bag.Bag, am api.AttributeMap) {
	if am == nil {
		return
	}
	for _, key := range am.Keys() {
		if dst.Has(key) {
			continue
		}
		v, has := am.Get(key)
		if !has {
			continue
		}
		switch t := v.(type) {
		case string:
			dst.SetString(key, trimText(t))
		case []string:
			trimmed := make([]string, len(t))
			for i, s := range t {
				trimmed[i] = trimText(s)
			}
			dst.Set(key, trimmed)
		}
	}
}

func trimText(s string) string {
	return strings.TrimRight(s, " \t\r\n\x00")
}
