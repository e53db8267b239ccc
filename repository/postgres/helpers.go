package postgres

// scanner matches both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 10000 {
		return 10000
	}
	return limit
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
