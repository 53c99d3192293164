package erasure

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, shape := range []struct{ k, m int }{
		{1, 1}, {4, 2}, {8, 4}, {12, 4}, {16, 4}, {16, 16},
	} {
		shape := shape
		t.Run("", func(t *testing.T) {
			c, err := New(shape.k, shape.m)
			require.NoError(t, err)

			data := make([]byte, 10_000)
			_, _ = rand.Read(data)

			chunks, err := c.Encode(data)
			require.NoError(t, err)
			require.Len(t, chunks, shape.k+shape.m)

			present := map[int][]byte{}
			for i := 0; i < shape.k; i++ {
				present[i] = chunks[i]
			}
			got, err := c.Decode(present, len(data))
			require.NoError(t, err)
			assert.True(t, bytes.Equal(got, data))
		})
	}
}

func TestDecodeAnyKChunks(t *testing.T) {
	c, err := New(4, 2)
	require.NoError(t, err)

	data := []byte("the quick brown fox jumps over the lazy dog, repeated enough to span shards")
	chunks, err := c.Encode(data)
	require.NoError(t, err)

	// Use parity + a subset of data shards (simulate two data shards lost).
	present := map[int][]byte{
		2: chunks[2],
		3: chunks[3],
		4: chunks[4],
		5: chunks[5],
	}
	got, err := c.Decode(present, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDecodeInsufficientChunks(t *testing.T) {
	c, err := New(4, 2)
	require.NoError(t, err)

	data := make([]byte, 1000)
	chunks, err := c.Encode(data)
	require.NoError(t, err)

	present := map[int][]byte{0: chunks[0], 1: chunks[1], 2: chunks[2]}
	_, err = c.Decode(present, len(data))
	require.Error(t, err)
}

func TestReconstructMissing(t *testing.T) {
	c, err := New(4, 2)
	require.NoError(t, err)

	data := make([]byte, 4096)
	_, _ = rand.Read(data)
	chunks, err := c.Encode(data)
	require.NoError(t, err)

	present := map[int][]byte{}
	for i := 0; i < 6; i++ {
		if i == 1 || i == 4 {
			continue
		}
		present[i] = chunks[i]
	}

	rebuilt, err := c.Reconstruct(present, map[int]bool{1: true, 4: true})
	require.NoError(t, err)
	assert.Equal(t, chunks[1], rebuilt[1])
	assert.Equal(t, chunks[4], rebuilt[4])
}

func TestNewRejectsOutOfRangeShapes(t *testing.T) {
	_, err := New(0, 2)
	assert.Error(t, err)
	_, err = New(4, 17)
	assert.Error(t, err)
}
