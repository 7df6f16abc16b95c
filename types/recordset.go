package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nodefeed/nodefeed/constants"
)

// RecordSet is the tabular result the relational client hands back:
// random access by row index and typed access by column name.
type RecordSet interface {
	Size() int
	// IsDefined reports whether the value at (row, column) is non-NULL.
	IsDefined(row int, column string) bool
	ToInt(row int, column string) (int64, error)
	ToTime(row int, column string) (time.Time, error)
	ToString(row int, column string) (string, error)
}

// MemoryRecordSet is a fully materialized RecordSet. The sqlx client scans
// query results into it; tests construct it directly.
type MemoryRecordSet struct {
	columns map[string]int
	rows    [][]any
}

// NewMemoryRecordSet builds a record set over the given column order. Column
// lookup is case-insensitive, matching both backends.
func NewMemoryRecordSet(columns []string, rows ...[]any) *MemoryRecordSet {
	index := make(map[string]int, len(columns))
	for position, column := range columns {
		index[strings.ToLower(column)] = position
	}
	return &MemoryRecordSet{columns: index, rows: rows}
}

// Append adds one row; values follow the construction column order.
func (m *MemoryRecordSet) Append(values ...any) {
	m.rows = append(m.rows, values)
}

func (m *MemoryRecordSet) Size() int {
	return len(m.rows)
}

func (m *MemoryRecordSet) value(row int, column string) (any, error) {
	if row < 0 || row >= len(m.rows) {
		return nil, fmt.Errorf("row %d out of range (%d rows)", row, len(m.rows))
	}
	position, found := m.columns[strings.ToLower(column)]
	if !found {
		return nil, fmt.Errorf("unknown column %q", column)
	}
	if position >= len(m.rows[row]) {
		return nil, nil
	}
	return m.rows[row][position], nil
}

func (m *MemoryRecordSet) IsDefined(row int, column string) bool {
	value, err := m.value(row, column)
	return err == nil && value != nil
}

func (m *MemoryRecordSet) ToInt(row int, column string) (int64, error) {
	value, err := m.value(row, column)
	if err != nil {
		return 0, err
	}
	switch typed := value.(type) {
	case int64:
		return typed, nil
	case int:
		return int64(typed), nil
	case int32:
		return int64(typed), nil
	case float64:
		return int64(typed), nil
	case []byte:
		return strconv.ParseInt(string(typed), 10, 64)
	case string:
		return strconv.ParseInt(typed, 10, 64)
	case nil:
		return 0, fmt.Errorf("NULL value in column %q row %d", column, row)
	default:
		return 0, fmt.Errorf("cannot convert %T in column %q to int", value, column)
	}
}

func (m *MemoryRecordSet) ToTime(row int, column string) (time.Time, error) {
	value, err := m.value(row, column)
	if err != nil {
		return time.Time{}, err
	}
	switch typed := value.(type) {
	case time.Time:
		return typed, nil
	case string:
		return time.Parse(constants.TimestampLayout, typed)
	case []byte:
		return time.Parse(constants.TimestampLayout, string(typed))
	case nil:
		return time.Time{}, fmt.Errorf("NULL value in column %q row %d", column, row)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T in column %q to time", value, column)
	}
}

func (m *MemoryRecordSet) ToString(row int, column string) (string, error) {
	value, err := m.value(row, column)
	if err != nil {
		return "", err
	}
	switch typed := value.(type) {
	case string:
		return typed, nil
	case []byte:
		return string(typed), nil
	case nil:
		return "", nil
	default:
		return fmt.Sprintf("%v", typed), nil
	}
}
