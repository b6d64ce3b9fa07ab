package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDaysBetween(t *testing.T) {
	today := time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC)
	require.Equal(t, 0, DaysBetween(today, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, 30, DaysBetween(today, time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, -1, DaysBetween(today, time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("")
	require.NoError(t, err)
	require.Nil(t, d)

	d, err = ParseDate("2025-12-31")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), *d)

	_, err = ParseDate("31/12/2025")
	require.ErrorIs(t, err, ErrValidation)
}
