package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/prism/internal/models"
	"github.com/desertthunder/prism/internal/shared"
)

const userColumns = `id, sequence, email, role, status, auth_provider, rating_key, created_at, updated_at, last_seen_at`

// UserRepository implements [models.UserStore] for user [models.User] persistence.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with the next sequence number
func (r *UserRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if _, err := r.Get(user.ID()); err == nil {
		return fmt.Errorf("%w: user %s", shared.ErrAlreadyExists, user.ID())
	}

	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	user.SetSequence(sequence)

	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(query, user.ID(), sequence, user.Email(), user.Role(), user.Status(), user.AuthProvider(),
		user.RatingKey(), user.CreatedAt(), user.UpdatedAt(), nullTime(user.LastSeenAt()))
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID
func (r *UserRepository) Get(id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// Update modifies an existing user in the database. The rating key is never rewritten.
func (r *UserRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	user.SetUpdatedAt(now)

	query := `
		UPDATE users
		SET email = ?, role = ?, status = ?, auth_provider = ?, updated_at = ?, last_seen_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, user.Email(), user.Role(), user.Status(), user.AuthProvider(), now,
		nullTime(user.LastSeenAt()), user.ID())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: user %s", shared.ErrNotFound, user.ID())
	}

	return nil
}

// Delete disables a user by ID, keeping the record and its ratings.
func (r *UserRepository) Delete(id string) error {
	result, err := r.db.Exec("UPDATE users SET status = ?, updated_at = ? WHERE id = ?", models.StatusDisabled, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to disable user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: user %s", shared.ErrNotFound, id)
	}

	return nil
}

// Purge removes the user record permanently.
func (r *UserRepository) Purge(id string) error {
	result, err := r.db.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: user %s", shared.ErrNotFound, id)
	}

	return nil
}

// List retrieves all users matching the given criteria in sequence order
func (r *UserRepository) List(criteria map[string]any) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1 = 1`
	args := []any{}

	if role, ok := criteria["role"].(string); ok && role != "" {
		query += " AND role = ?"
		args = append(args, role)
	}
	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

func scanUser(row scanner) (*models.User, error) {
	var (
		id, email, role, status, provider, ratingKey string
		sequence                                     int
		createdAt, updatedAt                         time.Time
		lastSeenAt                                   sql.NullTime
	)

	err := row.Scan(&id, &sequence, &email, &role, &status, &provider, &ratingKey, &createdAt, &updatedAt, &lastSeenAt)
	if err != nil {
		return nil, err
	}

	user := models.NewUser(id, provider)
	user.SetSequence(sequence)
	user.SetEmail(email)
	user.SetRole(role)
	user.SetStatus(status)
	user.SetRatingKey(ratingKey)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	if lastSeenAt.Valid {
		user.SetLastSeenAt(&lastSeenAt.Time)
	}

	return user, nil
}
