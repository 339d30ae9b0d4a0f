package agentchat

import (
	"testing"
	"time"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageWindow(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	from, to, err := usageWindow("", "", now)
	require.NoError(t, err)
	assert.Equal(t, now, to)
	assert.Equal(t, now.Add(-defaultUsageWindow), from)

	from, _, err = usageWindow("2026-10-01", "", now)
	require.NoError(t, err)
	assert.Equal(t, 2026, from.Year())
	assert.Equal(t, time.October, from.Month())
	assert.Equal(t, 1, from.Day())

	_, _, err = usageWindow("not a date", "", now)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidParameter))

	_, _, err = usageWindow("2026-10-14T13:00:00Z", "", now)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidParameter))
}
