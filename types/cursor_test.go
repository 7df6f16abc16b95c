package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCursor_RoundTrip(t *testing.T) {
	cases := []string{
		"2024-03-15 10:20:30,42",
		"2024-03-15 10:20:30,42,2024-03-15 11:00:00",
		"2024-03-15 10:20:30,42,2024-03-15 11:00:00,9001",
		",0,2024-03-15 11:00:00,9001",
	}
	for _, checkpoint := range cases {
		cursor, err := ParseCursor(checkpoint)
		require.NoError(t, err, "checkpoint %q", checkpoint)
		assert.Equal(t, checkpoint, cursor.String(), "round trip of %q", checkpoint)
		assert.False(t, cursor.HasChanged(), "parsing must not mark the cursor dirty")
	}
}

func TestParseCursor_Empty(t *testing.T) {
	cursor, err := ParseCursor("")
	require.NoError(t, err)
	assert.False(t, cursor.HasInsert())
	assert.False(t, cursor.TracksDeletes())
	assert.Equal(t, NoDeleteEvent, cursor.DeleteEventID)
	assert.Equal(t, "", cursor.String())
}

func TestParseCursor_Invalid(t *testing.T) {
	cases := []string{
		"2024-03-15 10:20:30",
		"a,b,c,d,e",
		"not-a-date,42",
		"2024-03-15 10:20:30,not-an-id",
		"2024-03-15 10:20:30,42,not-a-date",
		"2024-03-15 10:20:30,42,2024-03-15 11:00:00,not-an-id",
	}
	for _, checkpoint := range cases {
		_, err := ParseCursor(checkpoint)
		require.Error(t, err, "checkpoint %q", checkpoint)
		var invalid *InvalidCursorError
		assert.ErrorAs(t, err, &invalid, "checkpoint %q", checkpoint)
	}
}

func TestCursor_SetInsertCheckpoint(t *testing.T) {
	cursor := NewCursor()
	stamp := time.Date(2024, 3, 15, 10, 20, 30, 999000000, time.UTC)
	cursor.SetInsertCheckpoint(stamp, 42)

	assert.True(t, cursor.HasInsert())
	assert.True(t, cursor.HasChanged())
	assert.Equal(t, time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC), cursor.InsertTime,
		"sub-second precision must be truncated")
	assert.Equal(t, "2024-03-15 10:20:30,42", cursor.String())
}

func TestCursor_SetDeleteCheckpoint(t *testing.T) {
	cursor := NewCursor()
	require.Error(t, cursor.SetDeleteCheckpoint(time.Time{}, 7), "zero timestamp must be rejected")

	stamp := time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC)
	require.NoError(t, cursor.SetDeleteCheckpoint(stamp, 9001))
	assert.True(t, cursor.TracksDeletes())
	assert.Equal(t, ",0,2024-03-15 11:00:00,9001", cursor.String())

	// Timestamp-only checkpoint drops the event id from the wire format.
	require.NoError(t, cursor.SetDeleteCheckpoint(stamp, NoDeleteEvent))
	assert.Equal(t, ",0,2024-03-15 11:00:00", cursor.String())
}

func TestCursor_Clone(t *testing.T) {
	cursor := NewCursor()
	cursor.SetInsertCheckpoint(time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC), 42)
	require.True(t, cursor.HasChanged())

	clone := cursor.Clone()
	assert.False(t, clone.HasChanged(), "clone must start clean")
	assert.Equal(t, cursor.String(), clone.String())

	clone.SetInsertCheckpoint(time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), 50)
	assert.Equal(t, "2024-03-15 10:20:30,42", cursor.String(), "clone mutation must not leak back")
}
