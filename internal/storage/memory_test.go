package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractapi/internal/apperr"
)

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	s.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	info, err := s.Put(ctx, "contracts/a/c.pdf", strings.NewReader("%PDF-1.7"), PutObjectOptions{Size: 8, ContentType: "application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, int64(8), info.Size)
	assert.NotEmpty(t, info.ETag)
	assert.Equal(t, 1, s.Len())

	rc, got, err := s.Get(ctx, "contracts/a/c.pdf")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF-1.7", string(body))
	assert.Equal(t, "application/pdf", got.ContentType)

	u, err := s.PresignGet(ctx, "contracts/a/c.pdf", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "memory:///contracts/a/c.pdf?expires=2026-01-01T01%3A00%3A00Z", u)

	require.NoError(t, s.Delete(ctx, "contracts/a/c.pdf"))
	_, _, err = s.Get(ctx, "contracts/a/c.pdf")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.PresignGet(ctx, "contracts/a/c.pdf", time.Hour)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
