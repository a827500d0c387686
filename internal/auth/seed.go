package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"api-boilerplate/internal/config"
)

// Seed ensures the configured roles and the superuser exist. It runs inside a
// single transaction: role rows are written before the user row that
// references them, and `ON CONFLICT DO NOTHING` makes the whole step
// idempotent and safe against a concurrent-seeder uniqueness race. Any failure
// here must abort startup; the caller treats a non-nil error as fatal.
func Seed(ctx context.Context, db *sql.DB, cfg config.SeedConfig) error {
	if len(cfg.Roles) == 0 {
		return errors.New("seed: role list is empty")
	}
	admin := cfg.Admin
	if admin.Username == "" || admin.Email == "" || admin.Password == "" || admin.RoleName == "" {
		return errors.New("seed: superuser username, email, password and role are required")
	}

	passwordHash, err := HashPassword(admin.Password)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, role := range cfg.Roles {
		name := strings.ToLower(strings.TrimSpace(role.Name))
		if name == "" {
			return errors.New("seed: role with empty name")
		}

		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("seed: generate role id: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO roles (id, name, description, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (name) DO NOTHING
		`, id.String(), name, strings.TrimSpace(role.Description), now); err != nil {
			return fmt.Errorf("seed: insert role %s: %w", name, err)
		}
	}

	var adminRoleID string
	adminRoleName := strings.ToLower(strings.TrimSpace(admin.RoleName))
	if err := tx.QueryRowContext(ctx, `
		SELECT id FROM roles WHERE name = $1
	`, adminRoleName).Scan(&adminRoleID); err != nil {
		return fmt.Errorf("seed: resolve role %s: %w", adminRoleName, err)
	}

	userID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("seed: generate user id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, first_name, last_name, role_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $8)
		ON CONFLICT DO NOTHING
	`,
		userID.String(),
		strings.ToLower(strings.TrimSpace(admin.Username)),
		strings.ToLower(strings.TrimSpace(admin.Email)),
		passwordHash,
		strings.TrimSpace(admin.FirstName),
		strings.TrimSpace(admin.LastName),
		adminRoleID,
		now,
	); err != nil {
		return fmt.Errorf("seed: insert superuser: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit: %w", err)
	}

	return nil
}
