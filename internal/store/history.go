package store

import (
	"context"

	"github.com/roach88/vacatrack/internal/ir"
)

// VacationRow is a stored vacation history entry.
type VacationRow struct {
	ID        int64  `json:"id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// AppendVacation stores a validated date pair in the local history.
func (s *Store) AppendVacation(ctx context.Context, startDate, endDate string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO vacations (start_date, end_date) VALUES (?, ?)`, startDate, endDate)
	if err != nil {
		return 0, ir.NewPersistenceError("append vacation", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, ir.NewPersistenceError("append vacation", err)
	}
	return id, nil
}

// ListVacations returns the history newest first. Dates are ISO YYYY-MM-DD,
// so lexical order on start_date is chronological order.
func (s *Store) ListVacations(ctx context.Context) ([]VacationRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_date, end_date FROM vacations
		ORDER BY start_date DESC, id DESC
	`)
	if err != nil {
		return nil, ir.NewPersistenceError("list vacations", err)
	}
	defer rows.Close()

	var out []VacationRow
	for rows.Next() {
		var row VacationRow
		if err := rows.Scan(&row.ID, &row.StartDate, &row.EndDate); err != nil {
			return nil, ir.NewPersistenceError("list vacations", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, ir.NewPersistenceError("list vacations", err)
	}
	return out, nil
}
