package cfreader

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/batchatco/go-cf-reader/cfreader/bag"
	"github.com/batchatco/go-cf-reader/cfreader/comm"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/stretchr/testify/require"
)

// tasValue is the synthetic field used across the tests: it encodes the
// time value and the grid position, so any sub-extent read can be checked
// element by element.
func tasValue(time float64, yi, xi int) float32 {
	return float32(100*time + 10*float64(yi) + float64(xi))
}

func attrs(t *testing.T, keys []string, values map[string]any) api.AttributeMap {
	t.Helper()
	am, err := util.NewOrderedMap(keys, values)
	require.NoError(t, err)
	return am
}

// writeTasFile writes a lon=4, lat=3 file with the given time values and a
// tas(time,lat,lon) float32 field.
func writeTasFile(t *testing.T, path string, times []float64) {
	t.Helper()
	cw, err := cdf.NewCDFWriter(path)
	require.NoError(t, err)

	require.NoError(t, cw.AddVar("lon", api.Variable{
		Values:     []float64{0, 90, 180, 270},
		Dimensions: []string{"lon"},
	}))
	require.NoError(t, cw.AddVar("lat", api.Variable{
		Values:     []float64{-45, 0, 45},
		Dimensions: []string{"lat"},
	}))
	require.NoError(t, cw.AddVar("time", api.Variable{
		Values:     times,
		Dimensions: []string{"time"},
		Attributes: attrs(t, []string{"units", "calendar"}, map[string]any{
			"units":    "days since 2000-01-01 00:00:00",
			"calendar": "noleap  ",
		}),
	}))
	tas := make([][][]float32, len(times))
	for ti := range times {
		tas[ti] = make([][]float32, 3)
		for yi := 0; yi < 3; yi++ {
			tas[ti][yi] = make([]float32, 4)
			for xi := 0; xi < 4; xi++ {
				tas[ti][yi][xi] = tasValue(times[ti], yi, xi)
			}
		}
	}
	require.NoError(t, cw.AddVar("tas", api.Variable{
		Values:     tas,
		Dimensions: []string{"time", "lat", "lon"},
		Attributes: attrs(t, []string{"units"}, map[string]any{
			"units": "K",
		}),
	}))
	require.NoError(t, cw.Close())
}

func TestMetadataSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeTasFile(t, filepath.Join(dir, "tas_2000.nc"), []float64{0, 1})

	r := New(nil)
	r.SetFileName(filepath.Join(dir, "tas_2000.nc"))
	md, err := r.Metadata()
	require.NoError(t, err)

	vars, err := md.Strings(KeyVariables)
	require.NoError(t, err)
	require.Equal(t, []string{"tas"}, vars)

	whole, err := md.Int64s(KeyWholeExtent)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 3, 0, 2, 0, 0}, whole)

	files, err := md.Strings(KeyFiles)
	require.NoError(t, err)
	require.Equal(t, []string{"tas_2000.nc"}, files)

	root, err := md.String(KeyRoot)
	require.NoError(t, err)
	require.Equal(t, dir, root)

	steps, err := md.Int64(KeyNumberOfTimeSteps)
	require.NoError(t, err)
	require.EqualValues(t, 2, steps)

	stepCount, err := md.Int64s(KeyStepCount)
	require.NoError(t, err)
	require.Equal(t, []int64{2}, stepCount)

	coords, err := md.Nested(KeyCoordinates)
	require.NoError(t, err)
	x, err := coords.Array("x")
	require.NoError(t, err)
	require.Equal(t, 4, x.Len())
	tc, err := coords.Array("t")
	require.NoError(t, err)
	require.Equal(t, 2, tc.Len())
	xv, err := coords.String("x_variable")
	require.NoError(t, err)
	require.Equal(t, "lon", xv)

	// Attribute padding is right-trimmed.
	tAtts, err := coords.Nested("t_attributes")
	require.NoError(t, err)
	cal, err := tAtts.String("calendar")
	require.NoError(t, err)
	require.Equal(t, "noleap", cal)

	atts, err := md.Nested(KeyAttributes)
	require.NoError(t, err)
	tasAtt, err := atts.Nested("tas")
	require.NoError(t, err)
	dims, err := tasAtt.Int64s("dims")
	require.NoError(t, err)
	require.Equal(t, []int64{2, 3, 4}, dims)
	dimNames, err := tasAtt.Strings("dim_names")
	require.NoError(t, err)
	require.Equal(t, []string{"time", "lat", "lon"}, dimNames)
	centering, err := tasAtt.String("centering")
	require.NoError(t, err)
	require.Equal(t, "point", centering)
	units, err := tasAtt.String("units")
	require.NoError(t, err)
	require.Equal(t, "K", units)

	// No field variable has time as its sole dimension here.
	tv, err := md.Strings(KeyTimeVariables)
	require.NoError(t, err)
	require.Empty(t, tv)
}

func TestMetadataTwoFilesConcatenated(t *testing.T) {
	dir := t.TempDir()
	writeTasFile(t, filepath.Join(dir, "tas_a.nc"), []float64{0, 1, 2})
	writeTasFile(t, filepath.Join(dir, "tas_b.nc"), []float64{3, 4})

	r := New(nil)
	r.SetFilesRegex(filepath.Join(dir, `tas_.*\.nc`))
	md, err := r.Metadata()
	require.NoError(t, err)

	files, err := md.Strings(KeyFiles)
	require.NoError(t, err)
	require.Equal(t, []string{"tas_a.nc", "tas_b.nc"}, files)

	stepCount, err := md.Int64s(KeyStepCount)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 2}, stepCount)

	steps, err := md.Int64(KeyNumberOfTimeSteps)
	require.NoError(t, err)
	require.EqualValues(t, 5, steps)

	coords, err := md.Nested(KeyCoordinates)
	require.NoError(t, err)
	tc, err := coords.Array("t")
	require.NoError(t, err)
	require.Equal(t, 5, tc.Len())
	// Concatenation follows file order.
	for i, want := range []float64{0, 1, 2, 3, 4} {
		require.Equal(t, want, tc.Float64(i))
	}
}

func TestMetadataCachedAndInvalidated(t *testing.T) {
	dir := t.TempDir()
	writeTasFile(t, filepath.Join(dir, "tas.nc"), []float64{0})

	r := New(nil)
	r.SetFileName(filepath.Join(dir, "tas.nc"))
	md1, err := r.Metadata()
	require.NoError(t, err)
	md2, err := r.Metadata()
	require.NoError(t, err)
	require.Same(t, md1, md2)

	// Byte-identical serialization on repeated calls.
	b1, err := md1.MarshalBinary()
	require.NoError(t, err)
	b2, err := md2.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, b1, b2)

	// Any configuration mutation drops the record and the handle cache.
	r.SetXAxisVariable("lon")
	require.Equal(t, 0, r.cache.Len())
	md3, err := r.Metadata()
	require.NoError(t, err)
	require.NotSame(t, md1, md3)
	require.True(t, md1.Equal(md3))
}

func TestMetadataEnumerationFailures(t *testing.T) {
	r := New(nil)
	_, err := r.Metadata()
	require.ErrorIs(t, err, ErrEnumerationFailed)

	r.SetFilesRegex(filepath.Join(t.TempDir(), `nothing.*\.nc`))
	_, err = r.Metadata()
	require.ErrorIs(t, err, ErrEnumerationFailed)

	r.SetFileName("/also/set.nc")
	_, err = r.Metadata()
	require.ErrorIs(t, err, ErrEnumerationFailed)
}

func TestMetadataNoTimeAxis(t *testing.T) {
	dir := t.TempDir()
	writeTasFile(t, filepath.Join(dir, "tas.nc"), []float64{0, 1})

	r := New(nil)
	r.SetFileName(filepath.Join(dir, "tas.nc"))
	r.SetTAxisVariable("")
	md, err := r.Metadata()
	require.NoError(t, err)

	stepCount, err := md.Int64s(KeyStepCount)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, stepCount)
	coords, err := md.Nested(KeyCoordinates)
	require.NoError(t, err)
	tc, err := coords.Array("t")
	require.NoError(t, err)
	require.Equal(t, 1, tc.Len())
	tv, err := coords.String("t_variable")
	require.NoError(t, err)
	require.Equal(t, "t", tv)
}

func TestMetadataParallelGroup(t *testing.T) {
	dir := t.TempDir()
	writeTasFile(t, filepath.Join(dir, "tas_a.nc"), []float64{0, 1, 2})
	writeTasFile(t, filepath.Join(dir, "tas_b.nc"), []float64{3, 4})

	const ranks = 3
	members := comm.NewLocal(ranks)
	records := make([]*bag.Bag, ranks)
	readers := make([]*Reader, ranks)
	var wg sync.WaitGroup
	for rank := 0; rank < ranks; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			r := New(members[rank])
			r.SetFilesRegex(filepath.Join(dir, `tas_.*\.nc`))
			md, err := r.Metadata()
			if err != nil {
				t.Error(err)
				return
			}
			records[rank] = md
			readers[rank] = r
		}(rank)
	}
	wg.Wait()

	for rank := 0; rank < ranks; rank++ {
		require.NotNil(t, records[rank], "rank %d", rank)
		require.True(t, records[ranks-1].Equal(records[rank]),
			"rank %d record differs from coordinator", rank)
	}

	// Non-coordinators ended the phase with a primed handle cache and can
	// execute without re-enumeration.
	req := bag.New()
	req.SetInt64(KeyTimeStep, 3)
	req.Set(KeyArrays, []string{"tas"})
	m, err := readers[0].Execute(req)
	require.NoError(t, err)
	require.Equal(t, float64(3), m.Time)
	require.NotNil(t, m.PointArray("tas"))
}

func TestEnumerateOrderIsSorted(t *testing.T) {
	dir := t.TempDir()
	// Created out of order; enumeration sorts by basename.
	writeTasFile(t, filepath.Join(dir, "tas_b.nc"), []float64{3, 4})
	writeTasFile(t, filepath.Join(dir, "tas_a.nc"), []float64{0, 1, 2})

	_, files, err := enumerateFiles("", filepath.Join(dir, `tas_.*\.nc`))
	require.NoError(t, err)
	require.Equal(t, []string{"tas_a.nc", "tas_b.nc"}, files)
}
