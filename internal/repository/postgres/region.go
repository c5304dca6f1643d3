package postgres

import (
	"context"
	"database/sql"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
)

// RegionRepository implements inventory.RegionRepository
type RegionRepository struct {
	db *sql.DB
}

// NewRegionRepository creates a new region repository
func NewRegionRepository(db *sql.DB) inventory.RegionRepository {
	return &RegionRepository{db: db}
}

// CountRegions returns how many regions have been discovered
func (r *RegionRepository) CountRegions(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM regions").Scan(&count); err != nil {
		return 0, errors.DatabaseError("Failed to count regions", err)
	}
	return count, nil
}

// ListRegions returns every discovered region name
func (r *RegionRepository) ListRegions(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM regions ORDER BY name")
	if err != nil {
		return nil, errors.DatabaseError("Failed to list regions", err)
	}
	defer rows.Close()

	var regions []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.DatabaseError("Failed to scan region", err)
		}
		regions = append(regions, name)
	}
	return regions, rows.Err()
}

// SaveRegion stores a region and its zones in one transaction
func (r *RegionRepository) SaveRegion(ctx context.Context, region string, zones []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("Failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO regions (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", region); err != nil {
		return errors.DatabaseError("Failed to save region", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO availability_zones (name, region) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING")
	if err != nil {
		return errors.DatabaseError("Failed to prepare statement", err)
	}
	defer stmt.Close()

	for _, zone := range zones {
		if _, err := stmt.ExecContext(ctx, zone, region); err != nil {
			return errors.DatabaseError("Failed to save availability zone", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("Failed to commit transaction", err)
	}
	return nil
}

// GetAvailabilityZone looks up a zone by name
func (r *RegionRepository) GetAvailabilityZone(ctx context.Context, name string) (*inventory.AvailabilityZone, error) {
	var az inventory.AvailabilityZone
	err := r.db.QueryRowContext(ctx,
		"SELECT name, region FROM availability_zones WHERE name = $1", name).Scan(&az.Name, &az.Region)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Availability zone")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get availability zone", err)
	}
	return &az, nil
}
