package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 1024},
		{1, 1024},
		{1024, 1024},
		{1025, 2048},
		{2048, 2048},
		{935000, 935936},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sizeClass(tt.n), "sizeClass(%d)", tt.n)
		assert.Zero(t, sizeClass(tt.n)%1024)
	}
}

func TestGetFloat64Length(t *testing.T) {
	buf := GetFloat64(100)
	require.Len(t, buf, 100)
	assert.GreaterOrEqual(t, cap(buf), 1024)
	PutFloat64(buf)

	big := GetFloat64(850 * 1100)
	assert.Len(t, big, 850*1100)
	PutFloat64(big)
}

func TestGetBoolZeroedAfterReuse(t *testing.T) {
	buf := GetBool(64)
	for i := range buf {
		buf[i] = true
	}
	PutBool(buf)

	// Reacquired buffers must come back clean regardless of prior contents.
	buf = GetBool(64)
	for i, v := range buf {
		require.False(t, v, "index %d not zeroed", i)
	}
	PutBool(buf)
}

func TestPutNilIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		PutFloat64(nil)
		PutBool(nil)
	})
}
