package content

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// drivers maps the driver names content sources use to database/sql
// driver names.
var drivers = map[string]string{
	"sqlite":   "sqlite",
	"postgres": "postgres",
	"mysql":    "mysql",
}

// OpenDB opens a database for a content source. driver is one of sqlite,
// postgres or mysql.
func OpenDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	name, ok := drivers[driver]
	if !ok {
		return nil, fmt.Errorf("content: unknown driver %q (must be sqlite, postgres or mysql)", driver)
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("content: %s: %w", driver, err)
	}
	return db, nil
}

// LoadSQL runs query and loads its rows into target. Each row becomes a
// map from column name to value, with []byte values read as strings. A
// singleton target receives the first row.
func LoadSQL(ctx context.Context, db *sql.DB, query string, target any, args ...any) error {
	out, err := targetValue(target)
	if err != nil {
		return err
	}
	rows, err := queryRows(ctx, db, query, args...)
	if err != nil {
		return err
	}

	o := newOptions(nil)
	if out.Kind() == reflect.Slice {
		items := make([]any, len(rows))
		for i, r := range rows {
			items[i] = r
		}
		return o.convertList(items, out)
	}
	if len(rows) == 0 {
		return fmt.Errorf("content: %w for query", ErrNoData)
	}
	return convert(o.converters, rows[0], out)
}

func queryRows(ctx context.Context, db *sql.DB, query string, args ...any) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("content: query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("content: query: %w", err)
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("content: scan: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("content: query: %w", err)
	}
	return out, nil
}
