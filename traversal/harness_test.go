package traversal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nodefeed/nodefeed/types"
	"github.com/nodefeed/nodefeed/utils"
)

// fakeClient scripts query responses and records every executed query for
// assertions on the generated SQL.
type fakeClient struct {
	handler func(query, view string, columns []string) (types.RecordSet, error)
	queries []string
	views   []string
	columns [][]string
}

func (f *fakeClient) Execute(_ context.Context, query, view string, columns []string) (types.RecordSet, error) {
	f.queries = append(f.queries, query)
	f.views = append(f.views, view)
	f.columns = append(f.columns, columns)
	if f.handler == nil {
		return types.NewMemoryRecordSet(columns), nil
	}
	return f.handler(query, view, columns)
}

func (f *fakeClient) Close() error {
	return nil
}

// parseIDList extracts the ids from a "DataID in (1,2,3)" restriction.
func parseIDList(t *testing.T, query string) []int64 {
	t.Helper()
	open := strings.Index(query, "(")
	closing := strings.Index(query, ")")
	require.True(t, open >= 0 && closing > open, "no id list in query %q", query)
	ids, err := utils.SplitIDList(query[open+1 : closing])
	require.NoError(t, err)
	return ids
}

func at(t *testing.T, literal string) time.Time {
	t.Helper()
	stamp, err := time.Parse("2006-01-02 15:04:05", literal)
	require.NoError(t, err)
	return stamp
}
