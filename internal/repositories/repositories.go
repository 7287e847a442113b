package repositories

import (
	"database/sql"
	"fmt"
)

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// The sequence table must hold a single row with id 1, seeded by the migration that creates it.
func NextSequence(db *sql.DB, table string) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var sequence int
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)
	if err := tx.QueryRow(query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to increment %s sequence: %w", table, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence transaction: %w", err)
	}

	return sequence, nil
}
