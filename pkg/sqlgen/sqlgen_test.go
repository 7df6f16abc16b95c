package sqlgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodefeed/nodefeed/constants"
	"github.com/nodefeed/nodefeed/types"
)

var testFields = []types.Field{
	{Column: "DataID", Type: types.FieldInt, Property: "ID"},
	{Column: "ModifyDate", Type: types.FieldDate, Property: "ModifyDate"},
}

func checkpointCursor(t *testing.T) *types.Cursor {
	t.Helper()
	cursor, err := types.ParseCursor("2024-03-15 10:20:30,42")
	require.NoError(t, err)
	return cursor
}

func TestFormatTimestamp(t *testing.T) {
	stamp := time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC)
	assert.Equal(t, "'2024-03-15 10:20:30'", FormatTimestamp(constants.MSSQL, stamp))
	assert.Equal(t, "TO_DATE('2024-03-15 10:20:30', 'YYYY-MM-DD HH24:MI:SS')",
		FormatTimestamp(constants.Oracle, stamp))
}

func TestInsertRestriction(t *testing.T) {
	assert.Empty(t, InsertRestriction(constants.MSSQL, types.NewCursor()),
		"zero cursor must impose no restriction")

	restriction := InsertRestriction(constants.MSSQL, checkpointCursor(t))
	assert.Equal(t,
		"(ModifyDate > '2024-03-15 10:20:30' or (ModifyDate = '2024-03-15 10:20:30' and DataID > 42))",
		restriction, "tie-break must use strict inequality on both halves")
}

func TestCandidateQuery_MSSQL(t *testing.T) {
	query, view, columns := CandidateQuery(constants.MSSQL, checkpointCursor(t), 100, testFields)

	assert.Equal(t, constants.NodeView, view)
	assert.Equal(t, "top 100 DataID", columns[0], "row limit is spliced into the first column")
	assert.Contains(t, query, "ModifyDate > '2024-03-15 10:20:30'")
	assert.Contains(t, query, "order by ModifyDate, DataID")
}

func TestCandidateQuery_MSSQLZeroCursor(t *testing.T) {
	query, view, columns := CandidateQuery(constants.MSSQL, types.NewCursor(), 100, testFields)

	assert.Equal(t, constants.NodeView, view)
	assert.Equal(t, "1=1 order by ModifyDate, DataID", query)
	assert.Equal(t, []string{"top 100 DataID", "ModifyDate"}, columns)
}

func TestCandidateQuery_Oracle(t *testing.T) {
	query, view, columns := CandidateQuery(constants.Oracle, checkpointCursor(t), 100, testFields)

	assert.Equal(t, "rownum <= 100", query, "Oracle limits outside the ordered subquery")
	assert.Equal(t, []string{"*"}, columns)
	assert.Contains(t, view, "(select DataID,ModifyDate from WebNodes where ")
	assert.Contains(t, view, "TO_DATE('2024-03-15 10:20:30', 'YYYY-MM-DD HH24:MI:SS')")
	assert.Contains(t, view, "order by ModifyDate, DataID)")
}

func TestMatchQuery(t *testing.T) {
	highWater := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	filters := []string{"SubType not in (154)"}

	query, view, columns := MatchQuery(constants.MSSQL, []int64{7, 8, 9}, highWater, filters, testFields)
	assert.Equal(t, constants.NodeView, view)
	assert.Equal(t, []string{"DataID", "ModifyDate"}, columns)
	assert.Contains(t, query, "DataID in (7,8,9)")
	assert.Contains(t, query, "ModifyDate <= '2024-03-15 12:00:00'",
		"window high-water bound keeps late rows out")
	assert.Contains(t, query, "SubType not in (154)")

	oracleQuery, oracleView, oracleColumns := MatchQuery(constants.Oracle, []int64{7}, highWater, nil, testFields)
	assert.Equal(t, "1=1", oracleQuery)
	assert.Equal(t, []string{"*"}, oracleColumns)
	assert.Contains(t, oracleView, "DataID in (7)")
}

func TestDeleteQuery_Indexed(t *testing.T) {
	cursor, err := types.ParseCursor("2024-03-15 10:20:30,42,2024-03-15 11:00:00,9001")
	require.NoError(t, err)

	query, view, columns := DeleteQuery(constants.MSSQL, cursor, 100, true)
	assert.Equal(t, constants.AuditView, view)
	assert.Equal(t, "top 100 EventID", columns[0])
	assert.Contains(t, query, "AuditID = 2")
	assert.Contains(t, query, "EventID > 9001", "indexed continuation is exact")
	assert.NotContains(t, query, "AuditDate >=")
}

func TestDeleteQuery_TimestampOnly(t *testing.T) {
	cursor, err := types.ParseCursor("2024-03-15 10:20:30,42,2024-03-15 11:00:00")
	require.NoError(t, err)

	query, _, _ := DeleteQuery(constants.MSSQL, cursor, 100, false)
	assert.Contains(t, query, "AuditDate >= '2024-03-15 11:00:00'",
		"timestamp continuation must be inclusive at second precision")
	assert.NotContains(t, query, "EventID >")
}

func TestLatestDeleteQuery(t *testing.T) {
	query, view, columns := LatestDeleteQuery(constants.MSSQL)
	assert.Equal(t, constants.AuditView, view)
	assert.Equal(t, "top 1 EventID", columns[0])
	assert.Contains(t, query, "order by AuditDate desc, EventID desc")

	oracleQuery, oracleView, _ := LatestDeleteQuery(constants.Oracle)
	assert.Equal(t, "rownum <= 1", oracleQuery)
	assert.Contains(t, oracleView, "order by AuditDate desc, EventID desc")
}

func TestHierarchyPredicates(t *testing.T) {
	assert.Equal(t,
		"(DataID in (2000,2001) or DataID in (select DataID from DTreeAncestors where AncestorID in (2000,2001)))",
		DescendantPredicate([]int64{2000, 2001}))
	assert.Equal(t,
		"DataID not in (select DataID from DTreeAncestors where AncestorID in (3000))",
		NotDescendantPredicate([]int64{3000}))
	assert.Equal(t, "SubType not in (154,161)", ExcludedTypesPredicate([]int64{154, 161}))
}

func TestAnd(t *testing.T) {
	assert.Equal(t, "a and b", And("a", "", "b"))
	assert.Equal(t, "", And("", ""))
}

func TestProbeQuery(t *testing.T) {
	_, view, _ := ProbeQuery(false)
	assert.Equal(t, constants.DualViewMSSQL, view)
	_, view, _ = ProbeQuery(true)
	assert.Equal(t, constants.DualViewOracle, view)
}
