package results

import (
	"path/filepath"
	"testing"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeRankFile writes a per-processor file covering the global grid
// columns [firstI, lastI] (1-based) of a ny-row domain, filled with
// the rank number.
func writeRankFile(t *testing.T, path string, globalNX, globalNY, firstI, lastI int, fill float64) {
	t.Helper()
	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	require.NoError(t, err)
	defer ds.Close()

	nx := lastI - firstI + 1
	yDim, err := ds.AddDim("y", uint64(globalNY))
	require.NoError(t, err)
	xDim, err := ds.AddDim("x", uint64(nx))
	require.NoError(t, err)

	require.NoError(t, ds.Attr("DOMAIN_size_global").WriteInt32s([]int32{int32(globalNX), int32(globalNY)}))
	require.NoError(t, ds.Attr("DOMAIN_position_first").WriteInt32s([]int32{int32(firstI), 1}))
	require.NoError(t, ds.Attr("DOMAIN_position_last").WriteInt32s([]int32{int32(lastI), int32(globalNY)}))

	v, err := ds.AddVar("sossheig", netcdf.DOUBLE, []netcdf.Dim{yDim, xDim})
	require.NoError(t, err)
	require.NoError(t, v.Attr("units").WriteBytes([]byte("m")))

	data := make([]float64, globalNY*nx)
	for i := range data {
		data[i] = fill
	}
	require.NoError(t, v.WriteFloat64s(data))
}

func TestReadDecomposition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rank0.nc")
	writeRankFile(t, path, 8, 3, 1, 4, 0)

	sub, err := ReadDecomposition(path)
	require.NoError(t, err)
	assert.Equal(t, 8, sub.GlobalNX)
	assert.Equal(t, 3, sub.GlobalNY)
	assert.Equal(t, 1, sub.FirstI)
	assert.Equal(t, 4, sub.LastI)
}

func TestGatherTwoRanks(t *testing.T) {
	dir := t.TempDir()
	left := filepath.Join(dir, "rank0.nc")
	right := filepath.Join(dir, "rank1.nc")
	writeRankFile(t, left, 8, 3, 1, 4, 1.0)
	writeRankFile(t, right, 8, 3, 5, 8, 2.0)

	out := filepath.Join(dir, "combined.nc")
	require.NoError(t, Gather(out, []string{"sossheig"}, []string{left, right}))

	ds, err := netcdf.OpenFile(out, netcdf.NOWRITE)
	require.NoError(t, err)
	defer ds.Close()

	v, err := ds.Var("sossheig")
	require.NoError(t, err)
	data := make([]float64, 3*8)
	require.NoError(t, v.ReadFloat64s(data))

	// Row 0: four cells from the left rank, four from the right.
	assert.Equal(t, 1.0, data[0])
	assert.Equal(t, 1.0, data[3])
	assert.Equal(t, 2.0, data[4])
	assert.Equal(t, 2.0, data[7])

	assert.Equal(t, "m", readStringAttrByName(t, ds, "sossheig", "units"))
}

func readStringAttrByName(t *testing.T, ds netcdf.Dataset, varName, attrName string) string {
	t.Helper()
	v, err := ds.Var(varName)
	require.NoError(t, err)
	return readStringAttr(v, attrName)
}

func TestGatherRejectsInconsistentGlobalSize(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "rank0.nc")
	b := filepath.Join(dir, "rank1.nc")
	writeRankFile(t, a, 8, 3, 1, 4, 1.0)
	writeRankFile(t, b, 10, 3, 5, 8, 2.0)

	err := Gather(filepath.Join(dir, "combined.nc"), []string{"sossheig"}, []string{a, b})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInconsistentDomain)
	assert.Contains(t, err.Error(), "rank0.nc")
	assert.Contains(t, err.Error(), "rank1.nc")
}

func TestGatherNoFiles(t *testing.T) {
	err := Gather("out.nc", []string{"sossheig"}, nil)
	assert.ErrorIs(t, err, ErrNoRankFiles)
}
