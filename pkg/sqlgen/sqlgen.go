package sqlgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/nodefeed/nodefeed/constants"
	"github.com/nodefeed/nodefeed/types"
	"github.com/nodefeed/nodefeed/utils"
)

// The traversal order. A complete ordering over (ModifyDate, DataID) is
// what makes incremental crawling resumable without duplicates.
const OrderByModify = " order by ModifyDate, DataID"

// Delete events are ordered by the audit trail's own sequence.
const OrderByAudit = " order by AuditDate, EventID"

// FormatTimestamp renders a timestamp literal for the dialect. SQL Server
// accepts a bare quoted literal; Oracle needs TO_DATE to stay compatible
// with old server versions.
func FormatTimestamp(dialect constants.DialectType, timestamp time.Time) string {
	literal := timestamp.Format(constants.TimestampLayout)
	if dialect == constants.Oracle {
		return fmt.Sprintf("TO_DATE('%s', 'YYYY-MM-DD HH24:MI:SS')", literal)
	}
	return fmt.Sprintf("'%s'", literal)
}

// InsertRestriction is the tie-broken "strictly after the checkpoint"
// predicate: ModifyDate > X or (ModifyDate = X and DataID > Y).
// Empty when the cursor has no insert checkpoint yet.
func InsertRestriction(dialect constants.DialectType, cursor *types.Cursor) string {
	if !cursor.HasInsert() {
		return ""
	}
	literal := FormatTimestamp(dialect, cursor.InsertTime)
	return fmt.Sprintf("(ModifyDate > %s or (ModifyDate = %s and DataID > %d))",
		literal, literal, cursor.InsertID)
}

// DescendantPredicate restricts DataID to nodes that are one of the roots
// or descend from one, via the precomputed ancestor-closure table.
func DescendantPredicate(roots []int64) string {
	list := utils.JoinInt64(roots)
	return fmt.Sprintf("(DataID in (%s) or DataID in (select DataID from %s where AncestorID in (%s)))",
		list, constants.AncestorView, list)
}

// NotDescendantPredicate excludes nodes under any of the roots. Unlike
// DescendantPredicate the roots themselves stay eligible.
func NotDescendantPredicate(roots []int64) string {
	return fmt.Sprintf("DataID not in (select DataID from %s where AncestorID in (%s))",
		constants.AncestorView, utils.JoinInt64(roots))
}

// ExcludedTypesPredicate filters out configured node subtypes.
func ExcludedTypesPredicate(nodeTypes []int64) string {
	return fmt.Sprintf("SubType not in (%s)", utils.JoinInt64(nodeTypes))
}

// And joins non-empty predicates.
func And(predicates ...string) string {
	kept := make([]string, 0, len(predicates))
	for _, predicate := range predicates {
		if predicate != "" {
			kept = append(kept, predicate)
		}
	}
	return strings.Join(kept, " and ")
}

// CandidateQuery builds the bounded, ordered "what changed after the
// cursor" query. The three return values feed Client.Execute directly.
//
// Row limiting has no shared syntax: SQL Server splices "top N" into the
// first select column, while Oracle applies "rownum <= N" outside a
// subquery view so the limit runs after the ORDER BY. Both produce the
// same candidate set for the same inputs.
func CandidateQuery(dialect constants.DialectType, cursor *types.Cursor, batchSize int, fields []types.Field) (query, view string, columns []string) {
	restriction := InsertRestriction(dialect, cursor)
	selectColumns, selectList := types.SelectList(fields)

	if dialect == constants.Oracle {
		var builder strings.Builder
		builder.WriteString("(select ")
		builder.WriteString(selectList)
		builder.WriteString(" from ")
		builder.WriteString(constants.NodeView)
		if restriction != "" {
			builder.WriteString(" where ")
			builder.WriteString(restriction)
		}
		builder.WriteString(OrderByModify)
		builder.WriteString(")")
		return fmt.Sprintf("rownum <= %d", batchSize), builder.String(), []string{"*"}
	}

	query = utils.Ternary(restriction == "", "1=1", restriction).(string) + OrderByModify
	columns = append([]string{}, selectColumns...)
	columns[0] = fmt.Sprintf("top %d %s", batchSize, columns[0])
	return query, constants.NodeView, columns
}

// MatchQuery builds the full-projection query over a candidate id list with
// every non-hierarchical predicate applied, bounded by the candidate
// window's high-water ModifyDate so rows modified after the candidate fetch
// cannot leak in and then be skipped by the advanced cursor.
func MatchQuery(dialect constants.DialectType, candidateIDs []int64, highWater time.Time, filters []string, fields []types.Field) (query, view string, columns []string) {
	predicates := append([]string{
		fmt.Sprintf("DataID in (%s)", utils.JoinInt64(candidateIDs)),
		fmt.Sprintf("ModifyDate <= %s", FormatTimestamp(dialect, highWater)),
	}, filters...)
	restriction := And(predicates...)
	selectColumns, selectList := types.SelectList(fields)

	if dialect == constants.Oracle {
		view = fmt.Sprintf("(select %s from %s where %s%s)",
			selectList, constants.NodeView, restriction, OrderByModify)
		return "1=1", view, []string{"*"}
	}
	return restriction + OrderByModify, constants.NodeView, selectColumns
}

// DeleteQuery builds the bounded, ordered audit query for delete events.
// When the audit table carries an indexed event sequence the restriction is
// an exact "after event Y"; otherwise only the second-precision timestamp
// is usable and re-delivered rows are suppressed by the dedup cache.
func DeleteQuery(dialect constants.DialectType, cursor *types.Cursor, batchSize int, indexed bool) (query, view string, columns []string) {
	restriction := fmt.Sprintf("AuditID = %d", constants.DeleteAuditEvent)
	if indexed && cursor.DeleteEventID != types.NoDeleteEvent {
		restriction = And(restriction, fmt.Sprintf("EventID > %d", cursor.DeleteEventID))
	} else if cursor.TracksDeletes() {
		restriction = And(restriction,
			fmt.Sprintf("AuditDate >= %s", FormatTimestamp(dialect, cursor.DeleteTime)))
	}

	selectColumns := []string{"EventID", "AuditDate", "DataID"}
	if dialect == constants.Oracle {
		view = fmt.Sprintf("(select %s from %s where %s%s)",
			strings.Join(selectColumns, ","), constants.AuditView, restriction, OrderByAudit)
		return fmt.Sprintf("rownum <= %d", batchSize), view, []string{"*"}
	}
	columns = append([]string{}, selectColumns...)
	columns[0] = fmt.Sprintf("top %d %s", batchSize, columns[0])
	return restriction + OrderByAudit, constants.AuditView, columns
}

// LatestDeleteQuery fetches the newest audit entry, used to forge the
// initial delete checkpoint so historical deletes are not replayed.
func LatestDeleteQuery(dialect constants.DialectType) (query, view string, columns []string) {
	if dialect == constants.Oracle {
		view = fmt.Sprintf("(select EventID,AuditDate from %s where AuditID = %d order by AuditDate desc, EventID desc)",
			constants.AuditView, constants.DeleteAuditEvent)
		return "rownum <= 1", view, []string{"*"}
	}
	return fmt.Sprintf("AuditID = %d order by AuditDate desc, EventID desc", constants.DeleteAuditEvent),
		constants.AuditView, []string{"top 1 EventID", "AuditDate"}
}

// VolumeNodesQuery resolves configured volume subtypes to their node ids at
// startup; the ids then join the excluded location roots.
func VolumeNodesQuery(volumeTypes []int64) (query, view string, columns []string) {
	return fmt.Sprintf("SubType in (%s)", utils.JoinInt64(volumeTypes)),
		constants.TreeView, []string{"DataID", "PermID"}
}

// ParentLinksQuery fetches parent links for a batch of nodes; the
// genealogist walks these upward when no ancestor-closure table exists.
func ParentLinksQuery(ids []int64) (query, view string, columns []string) {
	return fmt.Sprintf("DataID in (%s)", utils.JoinInt64(ids)),
		constants.TreeView, []string{"DataID", "ParentID"}
}

// ProbeQuery is the dialect-autodetection probe: KDual exists on every
// server, dual only on Oracle.
func ProbeQuery(oracle bool) (query, view string, columns []string) {
	view = utils.Ternary(oracle, constants.DualViewOracle, constants.DualViewMSSQL).(string)
	return "1=1", view, []string{"42"}
}
