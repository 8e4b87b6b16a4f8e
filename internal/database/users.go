package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/equitypulse/portfolio-service/internal/models"
)

// CreateUser inserts a new user
func (db *DB) CreateUser(u *models.User) error {
	query := `
		INSERT INTO users (username, email, hashed_password, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	now := time.Now()
	err := db.conn.QueryRow(query, u.Username, u.Email, u.HashedPassword, now).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	u.CreatedAt = now
	return nil
}

// GetUserByID retrieves a user by id
func (db *DB) GetUserByID(id int) (*models.User, error) {
	query := `
		SELECT id, username, email, hashed_password, created_at
		FROM users
		WHERE id = $1
	`
	var u models.User
	err := db.conn.QueryRow(query, id).Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetAllUsers retrieves every user, ordered by id.
// The portfolio history job iterates this set.
func (db *DB) GetAllUsers() ([]*models.User, error) {
	query := `
		SELECT id, username, email, hashed_password, created_at
		FROM users
		ORDER BY id ASC
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}

	return users, rows.Err()
}
