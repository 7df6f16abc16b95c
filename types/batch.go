package types

// BatchOutcome tells the host what to do after a traversal call.
type BatchOutcome string

const (
	// BatchReady means Documents and/or DeletedIDs are populated and the
	// cursor advanced.
	BatchReady BatchOutcome = "ready"
	// BatchEmptyAdvance means nothing was produced but the cursor moved
	// past a dead zone; reschedule immediately with NextCursor.
	BatchEmptyAdvance BatchOutcome = "empty_advance"
	// BatchNothingNew means the source has nothing past the cursor; wait
	// before retrying.
	BatchNothingNew BatchOutcome = "nothing_new"
)

// Document is one projected insert/update record keyed by property name.
type Document map[string]any

// Batch is what one traversal call produces for the host.
type Batch struct {
	Outcome    BatchOutcome `json:"outcome"`
	Documents  []Document   `json:"documents,omitempty"`
	DeletedIDs []int64      `json:"deleted_ids,omitempty"`
	NextCursor string       `json:"next_cursor"`
}

// NothingNew is the "wait before retrying" result for the given cursor.
func NothingNew(cursor *Cursor) *Batch {
	return &Batch{Outcome: BatchNothingNew, NextCursor: cursor.String()}
}
