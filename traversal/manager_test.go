package traversal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodefeed/nodefeed/types"
)

// nodeServer scripts the administrative and end-user clients for one
// manager. Candidate and audit queries hit the admin side; match queries
// hit the user side.
type nodeServer struct {
	admin *fakeClient
	user  *fakeClient
}

func newNodeServer(t *testing.T, candidateBatches [][]Candidate, matches map[int64][]any, deletes []DeleteEvent) *nodeServer {
	t.Helper()
	server := &nodeServer{admin: &fakeClient{}, user: &fakeClient{}}
	candidateCalls := 0

	server.admin.handler = func(query, view string, _ []string) (types.RecordSet, error) {
		if view == "DAuditNew" {
			rows := types.NewMemoryRecordSet([]string{"EventID", "AuditDate", "DataID"})
			for _, event := range deletes {
				rows.Append(event.EventID, event.Time, event.NodeID)
			}
			deletes = nil
			return rows, nil
		}
		rows := types.NewMemoryRecordSet([]string{"DataID", "ModifyDate"})
		if candidateCalls < len(candidateBatches) {
			for _, candidate := range candidateBatches[candidateCalls] {
				rows.Append(candidate.ID, candidate.ModifyDate)
			}
		}
		candidateCalls++
		return rows, nil
	}

	server.user.handler = func(query, _ string, _ []string) (types.RecordSet, error) {
		rows := types.NewMemoryRecordSet([]string{"DataID", "ModifyDate", "Name"})
		for _, id := range parseIDList(t, query) {
			if values, found := matches[id]; found {
				rows.Append(values...)
			}
		}
		return rows, nil
	}
	return server
}

func newTestManager(t *testing.T, config *Config, server *nodeServer) *Manager {
	t.Helper()
	if config.Dialect == "" {
		config.Dialect = "mssql"
	}
	manager, err := NewManagerWithClients(context.Background(), config, server.admin, server.user)
	require.NoError(t, err)
	return manager
}

func TestManager_StartTraversalProducesBatch(t *testing.T) {
	t1 := at(t, "2024-03-15 10:00:00")
	t2 := at(t, "2024-03-15 10:00:05")
	server := newNodeServer(t,
		[][]Candidate{{{ID: 1, ModifyDate: t1}, {ID: 2, ModifyDate: t1}, {ID: 3, ModifyDate: t2}}},
		map[int64][]any{
			1: {int64(1), t1, "alpha"},
			2: {int64(2), t1, "beta"},
			3: {int64(3), t2, "gamma"},
		},
		nil,
	)
	manager := newTestManager(t, &Config{}, server)

	batch, err := manager.StartTraversal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.BatchReady, batch.Outcome)
	require.Len(t, batch.Documents, 3)
	assert.Equal(t, "alpha", batch.Documents[0]["Name"])
	assert.Equal(t, int64(3), batch.Documents[2]["ID"])
	assert.Empty(t, batch.DeletedIDs)
	assert.Equal(t, "2024-03-15 10:00:05,3", batch.NextCursor,
		"checkpoint is the highest candidate examined")
}

func TestManager_NothingNew(t *testing.T) {
	server := newNodeServer(t, nil, nil, nil)
	manager := newTestManager(t, &Config{}, server)

	batch, err := manager.ResumeTraversal(context.Background(), "2024-03-15 10:00:00,9")
	require.NoError(t, err)
	assert.Equal(t, types.BatchNothingNew, batch.Outcome)
	assert.Equal(t, "2024-03-15 10:00:00,9", batch.NextCursor, "an idle source keeps its checkpoint")
}

func TestManager_EmptyAdvancePastDeadZone(t *testing.T) {
	t1 := at(t, "2024-03-15 10:00:00")
	// Candidates exist but none survive the match filter; the follow-up
	// window is empty.
	server := newNodeServer(t,
		[][]Candidate{{{ID: 1, ModifyDate: t1}, {ID: 2, ModifyDate: t1}}},
		nil,
		nil,
	)
	manager := newTestManager(t, &Config{ExcludedNodeTypes: "154"}, server)

	batch, err := manager.StartTraversal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.BatchEmptyAdvance, batch.Outcome)
	assert.Equal(t, "2024-03-15 10:00:00,2", batch.NextCursor,
		"the cursor must move past the examined dead zone")
	assert.Empty(t, batch.Documents)

	// The second candidate window is widened by the growth factor.
	require.GreaterOrEqual(t, len(server.admin.columns), 2)
	assert.Equal(t, "top 1000 DataID", server.admin.columns[1][0])
}

func TestManager_DeliversDeletes(t *testing.T) {
	deleteTime := at(t, "2024-03-15 11:00:05")
	server := newNodeServer(t, nil, nil, []DeleteEvent{{EventID: 9002, Time: deleteTime, NodeID: 77}})
	manager := newTestManager(t, &Config{TrackDeletes: true, IndexedDeletes: true}, server)

	batch, err := manager.ResumeTraversal(context.Background(),
		"2024-03-15 10:20:30,42,2024-03-15 11:00:00,9001")
	require.NoError(t, err)
	assert.Equal(t, types.BatchReady, batch.Outcome)
	assert.Empty(t, batch.Documents)
	assert.Equal(t, []int64{77}, batch.DeletedIDs)
	assert.Equal(t, "2024-03-15 10:20:30,42,2024-03-15 11:00:05,9002", batch.NextCursor)
}

func TestManager_NonIndexedDeleteReplayIsSuppressed(t *testing.T) {
	deleteTime := at(t, "2024-03-15 11:00:05")
	event := DeleteEvent{EventID: 9002, Time: deleteTime, NodeID: 77}

	server := newNodeServer(t, nil, nil, []DeleteEvent{event})
	manager := newTestManager(t, &Config{TrackDeletes: true}, server)

	first, err := manager.ResumeTraversal(context.Background(),
		"2024-03-15 10:20:30,42,2024-03-15 11:00:00")
	require.NoError(t, err)
	require.Equal(t, types.BatchReady, first.Outcome)
	assert.Equal(t, []int64{77}, first.DeletedIDs)

	// The inclusive timestamp continuation re-returns the boundary row; the
	// dedup cache keeps it from being delivered twice and the unchanged
	// checkpoint reports an idle source.
	server.admin.handler = func(_, view string, _ []string) (types.RecordSet, error) {
		if view == "DAuditNew" {
			rows := types.NewMemoryRecordSet([]string{"EventID", "AuditDate", "DataID"})
			rows.Append(event.EventID, event.Time, event.NodeID)
			return rows, nil
		}
		return types.NewMemoryRecordSet([]string{"DataID", "ModifyDate"}), nil
	}
	second, err := manager.ResumeTraversal(context.Background(), first.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, types.BatchNothingNew, second.Outcome)
	assert.Equal(t, first.NextCursor, second.NextCursor)
}

func TestManager_CandidateRegressionFailsFast(t *testing.T) {
	server := newNodeServer(t,
		[][]Candidate{{{ID: 1, ModifyDate: at(t, "2024-03-15 09:00:00")}}},
		nil,
		nil,
	)
	manager := newTestManager(t, &Config{}, server)

	_, err := manager.ResumeTraversal(context.Background(), "2024-03-15 10:00:00,5")
	var regression *types.CandidateRegressionError
	assert.ErrorAs(t, err, &regression)
}

func TestManager_ResumeRejectsBadCheckpoint(t *testing.T) {
	manager := newTestManager(t, &Config{}, newNodeServer(t, nil, nil, nil))

	_, err := manager.ResumeTraversal(context.Background(), "garbage")
	var invalid *types.InvalidCursorError
	assert.ErrorAs(t, err, &invalid)
}

func TestManager_SetBatchHint(t *testing.T) {
	server := newNodeServer(t, nil, nil, nil)
	manager := newTestManager(t, &Config{}, server)

	var invalid *types.InvalidArgumentError
	assert.ErrorAs(t, manager.SetBatchHint(-1), &invalid)
	require.NoError(t, manager.SetBatchHint(5000))

	// Oversized hints clamp to the ceiling.
	_, err := manager.ResumeTraversal(context.Background(), "2024-03-15 10:00:00,9")
	require.NoError(t, err)
	require.NotEmpty(t, server.admin.columns)
	assert.Equal(t, "top 1000 DataID", server.admin.columns[0][0])

	// A zero hint restores the default.
	require.NoError(t, manager.SetBatchHint(0))
	_, err = manager.ResumeTraversal(context.Background(), "2024-03-15 10:00:00,9")
	require.NoError(t, err)
	assert.Equal(t, "top 100 DataID", server.admin.columns[len(server.admin.columns)-1][0])
}

func TestManager_ResumeIsDeterministic(t *testing.T) {
	t1 := at(t, "2024-03-15 10:00:00")
	matches := map[int64][]any{
		1: {int64(1), t1, "alpha"},
		2: {int64(2), t1, "beta"},
	}

	// A stateless source: the same window query always returns the same
	// rows, so replaying a checkpoint must reproduce the batch exactly.
	server := &nodeServer{admin: &fakeClient{}, user: &fakeClient{}}
	server.admin.handler = func(_, _ string, _ []string) (types.RecordSet, error) {
		rows := types.NewMemoryRecordSet([]string{"DataID", "ModifyDate"})
		rows.Append(int64(1), t1)
		rows.Append(int64(2), t1)
		return rows, nil
	}
	server.user.handler = func(query, _ string, _ []string) (types.RecordSet, error) {
		rows := types.NewMemoryRecordSet([]string{"DataID", "ModifyDate", "Name"})
		for _, id := range parseIDList(t, query) {
			if values, found := matches[id]; found {
				rows.Append(values...)
			}
		}
		return rows, nil
	}
	manager := newTestManager(t, &Config{}, server)

	first, err := manager.ResumeTraversal(context.Background(), "2024-03-15 09:00:00,0")
	require.NoError(t, err)
	require.Equal(t, types.BatchReady, first.Outcome)

	second, err := manager.ResumeTraversal(context.Background(), "2024-03-15 09:00:00,0")
	require.NoError(t, err)
	assert.Equal(t, first, second, "replaying a checkpoint over unchanged data reproduces the batch")
	assert.Equal(t, server.admin.queries[0], server.admin.queries[1],
		"identical checkpoints issue identical window queries")
}

func TestManager_ExhaustedBudgetReturnsEmptyAdvance(t *testing.T) {
	t1 := at(t, "2024-03-15 10:00:00")
	// Every window yields candidates that the type filter drops, so the scan
	// would keep widening; the expired deadline must stop it after the first
	// window instead.
	server := newNodeServer(t,
		[][]Candidate{{{ID: 1, ModifyDate: t1}}, {{ID: 2, ModifyDate: t1.Add(time.Second)}}},
		nil,
		nil,
	)
	manager := newTestManager(t, &Config{ExcludedNodeTypes: "154"}, server)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	batch, err := manager.StartTraversal(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.BatchEmptyAdvance, batch.Outcome)
	assert.Equal(t, "2024-03-15 10:00:00,1", batch.NextCursor,
		"the cursor keeps the progress made before the budget ran out")
	assert.Len(t, server.admin.queries, 1, "no second window once the budget is spent")
}

func TestNewManagerWithClients_RejectsBadIDList(t *testing.T) {
	server := newNodeServer(t, nil, nil, nil)
	_, err := NewManagerWithClients(context.Background(),
		&Config{Dialect: "mssql", IncludedLocationNodes: "2000,lobby"},
		server.admin, server.user)
	assert.ErrorContains(t, err, "lobby")
}

func TestManager_StartDateSeedsCheckpoint(t *testing.T) {
	server := newNodeServer(t, nil, nil, nil)
	manager := newTestManager(t, &Config{StartDate: "2024-01-01 00:00:00"}, server)

	batch, err := manager.StartTraversal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.BatchNothingNew, batch.Outcome)
	assert.Equal(t, "2024-01-01 00:00:00,0", batch.NextCursor)
	assert.Contains(t, server.admin.queries[0], "ModifyDate > '2024-01-01 00:00:00'")
}
