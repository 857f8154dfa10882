package collective

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, KindInt32, KindOf[int32]())
	require.Equal(t, KindFloat32, KindOf[float32]())
	require.Equal(t, KindFloat64, KindOf[float64]())
	require.Equal(t, 4, KindInt32.Size())
	require.Equal(t, 8, KindFloat64.Size())
	require.Equal(t, 0, KindInvalid.Size())
}

func TestParseKind(t *testing.T) {
	for s, want := range map[string]Kind{
		"int32": KindInt32, "int": KindInt32,
		"float32": KindFloat32, "float": KindFloat32,
		"float64": KindFloat64, " Double ": KindFloat64,
	} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		require.Equal(t, want, k)
	}
	_, err := ParseKind("complex128")
	require.Error(t, err)
}

func TestMarshalKeepsBits(t *testing.T) {
	src := []float64{math.NaN(), math.Inf(-1), math.Copysign(0, -1), 0.75, math.SmallestNonzeroFloat64}
	b := make([]byte, len(src)*8)
	require.NoError(t, Marshal(b, src))
	dst := make([]float64, len(src))
	require.NoError(t, Unmarshal(dst, b))
	for i := range src {
		require.Equal(t, math.Float64bits(src[i]), math.Float64bits(dst[i]))
	}

	ints := []int32{math.MinInt32, -1, 0, math.MaxInt32}
	b = make([]byte, 16)
	require.NoError(t, Marshal(b, ints))
	gotInts := make([]int32, 4)
	require.NoError(t, Unmarshal(gotInts, b))
	require.Equal(t, ints, gotInts)
}

func TestMarshalLengthMismatch(t *testing.T) {
	require.Error(t, Marshal(make([]byte, 3), []float32{1}))
	require.Error(t, Unmarshal(make([]int32, 2), make([]byte, 4)))
}
