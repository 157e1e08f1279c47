package store

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// buildInsert generates an INSERT for a dynamic column set.
// Keys are sorted so the generated SQL is deterministic.
func buildInsert(tableName string, data map[string]any) (string, []any, error) {
	if len(data) == 0 {
		return "", nil, fmt.Errorf("no data provided for insert on table %s", tableName)
	}

	var columns []string
	var placeholders []string
	var args []any

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		columns = append(columns, k)
		placeholders = append(placeholders, "?")
		args = append(args, formatValue(data[k]))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		tableName,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	return query, args, nil
}

// buildUpdate generates an UPDATE keyed on a single column, skipping that
// column in the SET clause.
func buildUpdate(tableName string, keyColumn string, keyValue any, data map[string]any) (string, []any, error) {
	if len(data) == 0 {
		return "", nil, fmt.Errorf("no data provided for update on table %s", tableName)
	}

	var setClauses []string
	var args []any

	keys := make([]string, 0, len(data))
	for k := range data {
		if strings.EqualFold(k, keyColumn) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", k))
		args = append(args, formatValue(data[k]))
	}

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		tableName,
		strings.Join(setClauses, ", "),
		keyColumn,
	)
	args = append(args, formatValue(keyValue))

	return query, args, nil
}

// formatValue normalizes values for SQLite storage
func formatValue(v any) any {
	switch val := v.(type) {
	case bool:
		if val {
			return 1
		}
		return 0
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return val
	}
}
