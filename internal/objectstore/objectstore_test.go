package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkSize_SmallFileUsesFloor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(minChunkSize), chunkSize(1))
	assert.Equal(t, int64(minChunkSize), chunkSize(minChunkSize))
}

func TestChunkSize_StaysWithinMaxChunks(t *testing.T) {
	t.Parallel()

	// A file large enough that the 5MiB floor would exceed 10000 chunks
	// must double the chunk size until it fits.
	fileSize := int64(minChunkSize) * (maxChunks + 1)

	size := chunkSize(fileSize)

	assert.Greater(t, size, int64(minChunkSize))
	assert.LessOrEqual(t, fileSize/size, int64(maxChunks))
}

func TestChunkSize_DoublesFromFloor(t *testing.T) {
	t.Parallel()

	fileSize := int64(minChunkSize) * (maxChunks + 1)

	size := chunkSize(fileSize)

	assert.Equal(t, int64(minChunkSize)*2, size)
}
