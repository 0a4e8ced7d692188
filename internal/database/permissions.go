package database

import (
	"context"
	"fmt"

	"didauday/internal/models"
)

// ApplyPermissionSeed upserts the grant set once per version. Re-running
// the same version is a no-op; a higher version re-applies every grant
// with INSERT OR IGNORE semantics, so partial earlier runs heal.
func (db *DB) ApplyPermissionSeed(ctx context.Context, version int64, grants []models.PermissionGrant) (bool, error) {
	var applied int
	err := db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seed_versions WHERE version >= ?`, version).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("failed to check seed version: %w", err)
	}
	if applied > 0 {
		return false, nil
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, g := range grants {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO permissions (role, resource, action, possession) VALUES (?, ?, ?, ?)`,
			g.Role, g.Resource, g.Action, g.Possession)
		if err != nil {
			return false, fmt.Errorf("failed to seed permission: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO seed_versions (version) VALUES (?)`, version); err != nil {
		return false, fmt.Errorf("failed to record seed version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit seed: %w", err)
	}
	return true, nil
}

func (db *DB) HasPermission(ctx context.Context, role, resource, action, possession string) (bool, error) {
	var count int
	err := db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM permissions
         WHERE role = ? AND resource = ? AND action = ? AND possession IN (?, 'any')`,
		role, resource, action, possession).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return count > 0, nil
}
