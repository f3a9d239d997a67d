package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntTypeForSize(t *testing.T) {
	cases := map[int]Type{1: TypeI8, 2: TypeI16, 4: TypeI32, 8: TypeI64, 16: TypeI128}
	for size, want := range cases {
		got, ok := IntTypeForSize(size)
		require.True(t, ok)
		require.Equal(t, want, got)
		require.Equal(t, size, got.Size())
	}
	_, ok := IntTypeForSize(3)
	require.False(t, ok)
}

func TestFloatTypeForSize(t *testing.T) {
	got, ok := FloatTypeForSize(4)
	require.True(t, ok)
	require.Equal(t, TypeF32, got)

	got, ok = FloatTypeForSize(8)
	require.True(t, ok)
	require.Equal(t, TypeF64, got)

	_, ok = FloatTypeForSize(16)
	require.False(t, ok)
}

func TestType_BitsAndIsInt(t *testing.T) {
	require.Equal(t, 1, TypeI1.Bits())
	require.Equal(t, 1, TypeI1.Size())
	require.True(t, TypeI64.IsInt())
	require.False(t, TypeF32.IsInt())
	require.True(t, TypeF64.IsFloat())
}
