package traversal

import (
	"context"
	"fmt"
	"time"

	"github.com/nodefeed/nodefeed/client"
	"github.com/nodefeed/nodefeed/constants"
	"github.com/nodefeed/nodefeed/pkg/sqlgen"
	"github.com/nodefeed/nodefeed/types"
)

// Candidate is one row of the bounded "what changed" query, alive only for
// the selector→filter pass of a single loop iteration.
type Candidate struct {
	ID         int64
	ModifyDate time.Time
}

// DeleteEvent is one audit-trail delete row.
type DeleteEvent struct {
	EventID int64
	Time    time.Time
	NodeID  int64
}

// candidateFields is the narrow projection of the candidate query; the
// match query fetches the full field set later.
var candidateFields = []types.Field{
	{Column: "DataID", Type: types.FieldInt, Property: "ID"},
	{Column: "ModifyDate", Type: types.FieldDate, Property: "ModifyDate"},
}

// Selector issues the bounded, ordered candidate and delete queries.
// Candidate queries run under the administrative identity: a restricted
// identity could see zero rows inside a bounded window even though
// matches exist further along, which would stall the cursor for good.
type Selector struct {
	dialect        constants.DialectType
	admin          client.Client
	trackDeletes   bool
	indexedDeletes bool
	dedup          *DeleteDedup
}

func NewSelector(dialect constants.DialectType, admin client.Client, trackDeletes, indexedDeletes bool, dedup *DeleteDedup) *Selector {
	return &Selector{
		dialect:        dialect,
		admin:          admin,
		trackDeletes:   trackDeletes,
		indexedDeletes: indexedDeletes,
		dedup:          dedup,
	}
}

// Candidates fetches up to batchSize rows strictly after the cursor's
// insert checkpoint, ordered by (ModifyDate, DataID).
func (s *Selector) Candidates(ctx context.Context, cursor *types.Cursor, batchSize int) ([]Candidate, error) {
	query, view, columns := sqlgen.CandidateQuery(s.dialect, cursor, batchSize, candidateFields)
	rows, err := s.admin.Execute(ctx, query, view, columns)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	candidates := make([]Candidate, 0, rows.Size())
	for row := 0; row < rows.Size(); row++ {
		id, err := rows.ToInt(row, "DataID")
		if err != nil {
			return nil, fmt.Errorf("failed to read candidate id: %s", err)
		}
		modifyDate, err := rows.ToTime(row, "ModifyDate")
		if err != nil {
			return nil, fmt.Errorf("failed to read candidate modify date: %s", err)
		}
		candidates = append(candidates, Candidate{ID: id, ModifyDate: modifyDate})
	}
	return candidates, nil
}

// Deletes fetches up to batchSize delete events after the cursor's delete
// checkpoint, or nil when delete tracking is disabled. With an indexed
// audit sequence the continuation is exact and a fully-cached result set
// short-circuits to nil; without it the caller dedups at batch assembly.
func (s *Selector) Deletes(ctx context.Context, cursor *types.Cursor, batchSize int) ([]DeleteEvent, error) {
	if !s.trackDeletes || !cursor.TracksDeletes() {
		return nil, nil
	}

	query, view, columns := sqlgen.DeleteQuery(s.dialect, cursor, batchSize, s.indexedDeletes)
	rows, err := s.admin.Execute(ctx, query, view, columns)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch delete events: %w", err)
	}

	events := make([]DeleteEvent, 0, rows.Size())
	nodeIDs := make([]int64, 0, rows.Size())
	for row := 0; row < rows.Size(); row++ {
		event, err := scanDeleteEvent(rows, row)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
		nodeIDs = append(nodeIDs, event.NodeID)
	}

	if s.indexedDeletes && len(events) > 0 && s.dedup.ContainsAll(nodeIDs) {
		return nil, nil
	}
	return events, nil
}

func scanDeleteEvent(rows types.RecordSet, row int) (DeleteEvent, error) {
	eventID, err := rows.ToInt(row, "EventID")
	if err != nil {
		return DeleteEvent{}, fmt.Errorf("failed to read audit event id: %s", err)
	}
	auditDate, err := rows.ToTime(row, "AuditDate")
	if err != nil {
		return DeleteEvent{}, fmt.Errorf("failed to read audit date: %s", err)
	}
	nodeID, err := rows.ToInt(row, "DataID")
	if err != nil {
		return DeleteEvent{}, fmt.Errorf("failed to read audited node id: %s", err)
	}
	return DeleteEvent{EventID: eventID, Time: auditDate, NodeID: nodeID}, nil
}

// LatestDeleteCheckpoint returns the newest audit entry, for forging an
// initial cursor that does not replay historical deletes. An empty audit
// trail yields the current time with no event id.
func (s *Selector) LatestDeleteCheckpoint(ctx context.Context) (time.Time, int64, error) {
	query, view, columns := sqlgen.LatestDeleteQuery(s.dialect)
	rows, err := s.admin.Execute(ctx, query, view, columns)
	if err != nil {
		return time.Time{}, types.NoDeleteEvent, fmt.Errorf("failed to fetch latest audit entry: %w", err)
	}
	if rows.Size() == 0 {
		return time.Now(), types.NoDeleteEvent, nil
	}
	eventID, err := rows.ToInt(0, "EventID")
	if err != nil {
		return time.Time{}, types.NoDeleteEvent, fmt.Errorf("failed to read latest audit event id: %s", err)
	}
	auditDate, err := rows.ToTime(0, "AuditDate")
	if err != nil {
		return time.Time{}, types.NoDeleteEvent, fmt.Errorf("failed to read latest audit date: %s", err)
	}
	return auditDate, eventID, nil
}

// ValidateCandidateOrder is the time-warp check: candidates at or before
// the checkpoint mean the source regressed (clock skew or a query bug), and
// candidates more than fuzzDays ahead mean the server clock jumped. Both
// silently re-deliver or skip records if left undetected, so the check
// fails fast instead of self-healing. A negative fuzzDays disables it.
func ValidateCandidateOrder(cursor *types.Cursor, first Candidate, fuzzDays int) error {
	if fuzzDays < 0 || !cursor.HasInsert() {
		return nil
	}

	firstTime := first.ModifyDate.Truncate(time.Second)
	switch {
	case firstTime.Before(cursor.InsertTime):
		return &types.CandidateRegressionError{
			Detail: fmt.Sprintf("first candidate %d modified %s, before checkpoint %s",
				first.ID, firstTime.Format(constants.TimestampLayout), cursor.InsertTime.Format(constants.TimestampLayout)),
		}
	case firstTime.Equal(cursor.InsertTime) && first.ID <= cursor.InsertID:
		return &types.CandidateRegressionError{
			Detail: fmt.Sprintf("first candidate %d does not follow checkpoint id %d at %s",
				first.ID, cursor.InsertID, cursor.InsertTime.Format(constants.TimestampLayout)),
		}
	case fuzzDays > 0 && firstTime.After(cursor.InsertTime.Add(time.Duration(fuzzDays)*24*time.Hour)):
		return &types.CandidateRegressionError{
			Detail: fmt.Sprintf("first candidate %d modified %s, more than %d day(s) past checkpoint %s",
				first.ID, firstTime.Format(constants.TimestampLayout), fuzzDays, cursor.InsertTime.Format(constants.TimestampLayout)),
		}
	}
	return nil
}
