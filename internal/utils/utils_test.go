package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedClock(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewFixedClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(36 * time.Hour)
	assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), c.Now())
}

func TestParseDateAndDate(t *testing.T) {
	d, err := ParseDate("2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), d)
	assert.Equal(t, d, Date(d.Add(23*time.Hour)))

	_, err = ParseDate("06/01/2025")
	assert.Error(t, err)
}

func TestGenerators(t *testing.T) {
	assert.True(t, ValidUUID(NewUUID()))
	assert.False(t, ValidUUID("not-a-uuid"))

	a, err := GenerateToken(32)
	require.NoError(t, err)
	b, err := GenerateToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
}
