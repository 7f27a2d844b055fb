package storage

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"strings"
)

// Column is one named value in a result row.
type Column struct {
	Name  string
	Value any
}

// Row is a result row with columns in projection order.
type Row []Column

// Get returns the value of the first column called name.
func (r Row) Get(name string) (any, bool) {
	for _, col := range r {
		if col.Name == name {
			return col.Value, true
		}
	}
	return nil, false
}

// Columns returns the column names in projection order.
func (r Row) Columns() []string {
	names := make([]string, len(r))
	for i, col := range r {
		names[i] = col.Name
	}
	return names
}

// Map returns the row keyed by column name. Duplicate names keep the last value.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r))
	for _, col := range r {
		m[col.Name] = col.Value
	}
	return m
}

// MarshalJSON encodes the row as a JSON object preserving column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(col.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// scanRows reads the whole result set into memory.
func scanRows(rows *sql.Rows) ([]Row, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	result := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(types))
		dest := make([]any, len(types))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		row := make(Row, len(types))
		for i, typ := range types {
			row[i] = Column{
				Name:  typ.Name(),
				Value: normalizeValue(values[i], typ.DatabaseTypeName()),
			}
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// normalizeValue turns driver byte slices into strings for every column
// type except binary ones.
func normalizeValue(value any, databaseType string) any {
	b, ok := value.([]byte)
	if !ok || isBinaryType(databaseType) {
		return value
	}
	return string(b)
}

func isBinaryType(databaseType string) bool {
	switch strings.ToUpper(databaseType) {
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY", "GEOMETRY", "BIT":
		return true
	}
	return false
}
