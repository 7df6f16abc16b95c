package traversal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nodefeed/nodefeed/client"
	"github.com/nodefeed/nodefeed/constants"
	"github.com/nodefeed/nodefeed/pkg/sqlgen"
	"github.com/nodefeed/nodefeed/types"
)

// MatchFilter narrows a candidate id list to the fully qualified record
// set: inclusion and exclusion predicates, hierarchy membership, and any
// externally configured raw predicate, bounded by the candidate window's
// high-water ModifyDate.
type MatchFilter struct {
	dialect constants.DialectType
	admin   client.Client
	user    client.Client
	fields  []types.Field

	// sqlFilters are the non-hierarchical predicates, plus the hierarchy
	// predicates when the ancestor-closure table is usable.
	sqlFilters     []string
	hierarchyInSQL bool
	needHierarchy  bool

	genealogist *Genealogist
	// The genealogist's cache is not internally synchronized; this mutex
	// is the single serialization point.
	genealogistMu sync.Mutex
}

func NewMatchFilter(dialect constants.DialectType, admin, user client.Client, fields []types.Field,
	sqlFilters []string, hierarchyInSQL, needHierarchy bool, genealogist *Genealogist) *MatchFilter {
	return &MatchFilter{
		dialect:        dialect,
		admin:          admin,
		user:           user,
		fields:         fields,
		sqlFilters:     sqlFilters,
		hierarchyInSQL: hierarchyInSQL,
		needHierarchy:  needHierarchy,
		genealogist:    genealogist,
	}
}

// Results returns the projected documents for the candidates that pass
// every filter, in traversal order, or nil when none match.
//
// When hierarchy filtering cannot run in SQL, the work splits in three:
// narrow by the non-hierarchical filters under the administrative identity,
// resolve the survivors' ancestry through the genealogist, then re-query
// the full projection for the confirmed ids under the end-user identity so
// permission-dependent behavior downstream still applies.
func (f *MatchFilter) Results(ctx context.Context, candidateIDs []int64, highWater time.Time) ([]types.Document, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	if f.hierarchyInSQL || !f.needHierarchy {
		query, view, columns := sqlgen.MatchQuery(f.dialect, candidateIDs, highWater, f.sqlFilters, f.fields)
		rows, err := f.user.Execute(ctx, query, view, columns)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch matching records: %w", err)
		}
		return f.project(rows)
	}

	// First stage selects bare ids under the admin identity.
	query, view, columns := sqlgen.MatchQuery(f.dialect, candidateIDs, highWater, f.sqlFilters, candidateFields)
	idRows, err := f.admin.Execute(ctx, query, view, columns)
	if err != nil {
		return nil, fmt.Errorf("failed to pre-filter candidates: %w", err)
	}
	surviving := make([]int64, 0, idRows.Size())
	for row := 0; row < idRows.Size(); row++ {
		id, err := idRows.ToInt(row, "DataID")
		if err != nil {
			return nil, fmt.Errorf("failed to read pre-filtered id: %s", err)
		}
		surviving = append(surviving, id)
	}
	if len(surviving) == 0 {
		return nil, nil
	}

	f.genealogistMu.Lock()
	confirmed, err := f.genealogist.ResolveMatchingDescendants(ctx, surviving)
	f.genealogistMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve candidate ancestry: %s", err)
	}
	if confirmed == nil {
		return nil, nil
	}

	query, view, columns = sqlgen.MatchQuery(f.dialect, confirmed, highWater, f.sqlFilters, f.fields)
	rows, err := f.user.Execute(ctx, query, view, columns)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch confirmed records: %w", err)
	}
	return f.project(rows)
}

// project maps result rows to documents keyed by property name. Fields
// without a property name stay internal.
func (f *MatchFilter) project(rows types.RecordSet) ([]types.Document, error) {
	if rows.Size() == 0 {
		return nil, nil
	}
	documents := make([]types.Document, 0, rows.Size())
	for row := 0; row < rows.Size(); row++ {
		document := types.Document{}
		for _, field := range f.fields {
			if field.Property == "" || !rows.IsDefined(row, field.ResultName()) {
				continue
			}
			value, err := fieldValue(rows, row, field)
			if err != nil {
				return nil, fmt.Errorf("failed to read field %s: %s", field.ResultName(), err)
			}
			document[field.Property] = value
		}
		documents = append(documents, document)
	}
	return documents, nil
}

func fieldValue(rows types.RecordSet, row int, field types.Field) (any, error) {
	switch field.Type {
	case types.FieldInt:
		return rows.ToInt(row, field.ResultName())
	case types.FieldDate:
		return rows.ToTime(row, field.ResultName())
	default:
		return rows.ToString(row, field.ResultName())
	}
}
