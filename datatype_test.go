package openisl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataTypeSizeOf(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindReal, 8},
		{KindInteger, 4},
		{KindBoolean, 1},
		{KindString, 1},
	}
	for _, c := range cases {
		dt := New(c.kind, 1)
		assert.Equal(t, c.want, dt.SizeOf(), "%s SizeOf()", c.kind)
	}
}

func TestDataTypeCardinalityAndSizeInBytes(t *testing.T) {
	dt := New(KindReal, 4)
	require.Equal(t, 4, dt.Cardinality())
	assert.Equal(t, 32, dt.SizeInBytes())
}

func TestDataTypeStructureCoercesCardinalityToOne(t *testing.T) {
	dt := New(KindStructure, 10)
	assert.Equal(t, 1, dt.Cardinality(), "array-of-structure rejected")
}

func TestDataTypeAllocateFreeInvariant(t *testing.T) {
	dt := New(KindReal, 2)
	assert.False(t, dt.IsAllocated(), "new DataType should not be allocated")
	assert.Error(t, dt.SetInitial(make([]byte, 16)), "SetInitial on unallocated type should fail")

	require.NoError(t, dt.Allocate())
	assert.True(t, dt.IsAllocated())
	assert.Len(t, dt.Initial(), 16)
	assert.Len(t, dt.Current(), 16)

	dt.Free()
	assert.False(t, dt.IsAllocated(), "expected unallocated after Free")
}

func TestDataTypeSetInitialRejectsWrongSize(t *testing.T) {
	dt := New(KindInteger, 1)
	require.NoError(t, dt.Allocate())
	err := dt.SetInitial([]byte{1, 2})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindShapeMismatch))
}

func TestDataTypeStructureFields(t *testing.T) {
	st := New(KindStructure, 1)
	require.NoError(t, st.AddField("x", New(KindReal, 1)))
	require.NoError(t, st.AddField("y", New(KindReal, 1)))
	assert.Equal(t, 16, st.SizeOf(), "two 8-byte reals")
	assert.Equal(t, []string{"x", "y"}, st.Fields())

	_, ok := st.Field("z")
	assert.False(t, ok, `Field("z") should not be found`)

	require.NoError(t, st.Allocate())
	x, _ := st.Field("x")
	assert.True(t, x.IsAllocated(), "expected child field to be allocated transitively")
}

func TestDataTypeAddFieldRejectsNonStructure(t *testing.T) {
	dt := New(KindReal, 1)
	assert.Error(t, dt.AddField("x", New(KindReal, 1)))
}

func TestDataTypeStructureForbidsStringInitialization(t *testing.T) {
	st := New(KindStructure, 1)
	require.NoError(t, st.AddField("x", New(KindReal, 1)))
	require.NoError(t, st.Allocate())
	assert.Error(t, st.SetInitialString("1.0"))
}

func TestDataTypeSetInitialStringLiterals(t *testing.T) {
	real := New(KindReal, 1)
	real.Allocate()
	require.NoError(t, real.SetInitialString("3.5"))
	assert.Equal(t, 3.5, bytesToFloat64(real.Initial()))

	integer := New(KindInteger, 1)
	integer.Allocate()
	require.NoError(t, integer.SetInitialString("42"))
	assert.Equal(t, int32(42), bytesToInt32(integer.Initial()))

	boolean := New(KindBoolean, 1)
	boolean.Allocate()
	require.NoError(t, boolean.SetInitialString("true"))
	assert.Equal(t, byte(1), boolean.Initial()[0])

	assert.Error(t, boolean.SetInitialString("not-a-bool"))
}
