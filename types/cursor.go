package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nodefeed/nodefeed/constants"
)

// NoDeleteEvent marks a delete sub-cursor that carries only a timestamp,
// e.g. when the initial audit lookup failed and the checkpoint was seeded
// from the wall clock.
const NoDeleteEvent int64 = -1

// Cursor is the resumable traversal position. The insert sub-cursor
// (InsertTime, InsertID) and the delete sub-cursor (DeleteTime,
// DeleteEventID) advance independently; each is non-decreasing across
// returned batches under lexicographic order.
//
// The wire format is "insTS,insID[,delTS[,delEventID]]" with timestamps at
// seconds precision. The host stores and replays it verbatim.
type Cursor struct {
	InsertTime    time.Time
	InsertID      int64
	DeleteTime    time.Time
	DeleteEventID int64

	dirty bool
}

// NewCursor returns the zero cursor: traversal from the beginning, deletes
// not tracked.
func NewCursor() *Cursor {
	return &Cursor{DeleteEventID: NoDeleteEvent}
}

// ParseCursor rebuilds a cursor from its wire format. The empty string is
// the zero cursor.
func ParseCursor(text string) (*Cursor, error) {
	cursor := NewCursor()
	if text == "" {
		return cursor, nil
	}

	parts := strings.Split(text, ",")
	if len(parts) < 2 || len(parts) > 4 {
		return nil, &InvalidCursorError{Checkpoint: text, Reason: fmt.Sprintf("expected 2 to 4 comma-separated fields, got %d", len(parts))}
	}

	if parts[0] != "" {
		insertTime, err := time.Parse(constants.TimestampLayout, parts[0])
		if err != nil {
			return nil, &InvalidCursorError{Checkpoint: text, Reason: fmt.Sprintf("bad insert timestamp: %s", err)}
		}
		cursor.InsertTime = insertTime
	}
	insertID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, &InvalidCursorError{Checkpoint: text, Reason: fmt.Sprintf("bad insert id: %s", err)}
	}
	cursor.InsertID = insertID

	if len(parts) >= 3 {
		deleteTime, err := time.Parse(constants.TimestampLayout, parts[2])
		if err != nil {
			return nil, &InvalidCursorError{Checkpoint: text, Reason: fmt.Sprintf("bad delete timestamp: %s", err)}
		}
		cursor.DeleteTime = deleteTime
	}
	if len(parts) == 4 {
		deleteEventID, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil {
			return nil, &InvalidCursorError{Checkpoint: text, Reason: fmt.Sprintf("bad delete event id: %s", err)}
		}
		cursor.DeleteEventID = deleteEventID
	}
	return cursor, nil
}

// String renders the wire format. The zero cursor renders as "".
func (c *Cursor) String() string {
	if !c.HasInsert() && !c.TracksDeletes() {
		return ""
	}

	var builder strings.Builder
	if c.HasInsert() {
		builder.WriteString(c.InsertTime.Format(constants.TimestampLayout))
	}
	builder.WriteString(",")
	builder.WriteString(strconv.FormatInt(c.InsertID, 10))

	if c.TracksDeletes() {
		builder.WriteString(",")
		builder.WriteString(c.DeleteTime.Format(constants.TimestampLayout))
		if c.DeleteEventID != NoDeleteEvent {
			builder.WriteString(",")
			builder.WriteString(strconv.FormatInt(c.DeleteEventID, 10))
		}
	}
	return builder.String()
}

// HasInsert reports whether the insert sub-cursor has been established.
func (c *Cursor) HasInsert() bool {
	return !c.InsertTime.IsZero()
}

// TracksDeletes reports whether the delete sub-cursor has been established.
func (c *Cursor) TracksDeletes() bool {
	return !c.DeleteTime.IsZero()
}

// SetInsertCheckpoint replaces the insert sub-cursor. Timestamps are
// truncated to whole seconds to match the SQL literal precision.
func (c *Cursor) SetInsertCheckpoint(timestamp time.Time, id int64) {
	c.InsertTime = timestamp.Truncate(time.Second)
	c.InsertID = id
	c.dirty = true
}

// SetDeleteCheckpoint replaces the delete sub-cursor. Pass NoDeleteEvent as
// eventID when the audit source supplied no sequence number.
func (c *Cursor) SetDeleteCheckpoint(timestamp time.Time, eventID int64) error {
	if timestamp.IsZero() {
		return &InvalidArgumentError{Argument: "delete checkpoint timestamp", Value: timestamp}
	}
	c.DeleteTime = timestamp.Truncate(time.Second)
	c.DeleteEventID = eventID
	c.dirty = true
	return nil
}

// AdvanceToEnd moves the insert sub-cursor to the end of an examined
// candidate window that produced no matches, so the next query scans new
// territory instead of re-reading the same dead zone.
func (c *Cursor) AdvanceToEnd(timestamp time.Time, id int64) {
	c.SetInsertCheckpoint(timestamp, id)
}

// HasChanged reports whether any field was mutated since the cursor was
// parsed or forged. The orchestrator uses it to tell "truly caught up"
// apart from "caught up to an advanced window".
func (c *Cursor) HasChanged() bool {
	return c.dirty
}

// Clone returns an independent copy with a clean change flag.
func (c *Cursor) Clone() *Cursor {
	clone := *c
	clone.dirty = false
	return &clone
}
