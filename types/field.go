package types

import (
	"fmt"
	"strings"
)

// FieldType is the column type a Field is read back as.
type FieldType string

const (
	FieldInt    FieldType = "int"
	FieldDate   FieldType = "date"
	FieldString FieldType = "string"
)

// computedAliasPrefix prefixes generated aliases for configured expressions
// so they can never collide with the default projection names.
const computedAliasPrefix = "nf_expr_"

// Field maps a source column, or a computed SQL expression, to an output
// property name. Fields without a property name ride along in the select
// list (the server requires some of them) but are not emitted as
// properties.
type Field struct {
	// Column is the source column name, or "" for a computed field.
	Column string
	// Expression is a raw SQL expression; Alias names it in the result set.
	Expression string
	Alias      string
	Type       FieldType
	// Property is the emitted property name; "" keeps the field internal.
	Property string
}

// DefaultFields is the projection every result query selects. DataID and
// PermID must always be present; the engine itself additionally depends on
// DataID, ModifyDate and SubType.
var DefaultFields = []Field{
	{Column: "DataID", Type: FieldInt, Property: "ID"},
	{Column: "ModifyDate", Type: FieldDate, Property: "ModifyDate"},
	{Column: "MimeType", Type: FieldString, Property: "MimeType"},
	{Column: "DComment", Type: FieldString, Property: "Comment"},
	{Column: "CreateDate", Type: FieldDate, Property: "CreateDate"},
	{Column: "OwnerName", Type: FieldString, Property: "CreatedBy"},
	{Column: "Name", Type: FieldString, Property: "Name"},
	{Column: "SubType", Type: FieldInt, Property: "SubType"},
	{Column: "OwnerID", Type: FieldInt, Property: "VolumeID"},
	{Column: "UserID", Type: FieldString, Property: "UserID"},
	{Column: "DataSize", Type: FieldInt},
	{Column: "PermID", Type: FieldInt},
}

// ComputedField builds a Field for a configured SQL expression. The alias
// is generated from the ordinal so configured expressions can never shadow
// a default column.
func ComputedField(ordinal int, expression, property string, fieldType FieldType) Field {
	return Field{
		Expression: expression,
		Alias:      fmt.Sprintf("%s%d", computedAliasPrefix, ordinal),
		Type:       fieldType,
		Property:   property,
	}
}

// SelectName returns the term to place in a select list: the bare column,
// or the aliased expression.
func (f Field) SelectName() string {
	if f.Expression != "" {
		return fmt.Sprintf("%s %s", f.Expression, f.Alias)
	}
	return f.Column
}

// ResultName returns the column name the field is read back under.
func (f Field) ResultName() string {
	if f.Expression != "" {
		return f.Alias
	}
	return f.Column
}

// SelectList renders the fields as a column slice (MSSQL passes an array
// to the executor) and as a comma-joined string (the Oracle path splices
// the list into a subquery view).
func SelectList(fields []Field) ([]string, string) {
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		names = append(names, field.SelectName())
	}
	return names, strings.Join(names, ",")
}
