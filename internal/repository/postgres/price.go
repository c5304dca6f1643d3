package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/price"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
)

// PriceRepository implements price.Repository
type PriceRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *sql.DB) price.Repository {
	return &PriceRepository{db: db, now: time.Now}
}

// Upsert stores a quote; the row id is stable across updates
func (r *PriceRepository) Upsert(ctx context.Context, q price.Quote) (*price.Price, error) {
	p := &price.Price{
		InstanceType: q.InstanceType,
		Platform:     q.Platform,
		Region:       q.Region,
		HourlyPrice:  price.Round3(q.HourlyPrice),
		UpdatedAt:    r.now().UTC().Truncate(time.Second),
	}

	query := `
		INSERT INTO prices (id, instance_type, platform, region, hourly_price, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (instance_type, platform, region) DO UPDATE SET
			hourly_price = excluded.hourly_price,
			updated_at = excluded.updated_at
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		uuid.New().String(), p.InstanceType, p.Platform, p.Region, p.HourlyPrice, p.UpdatedAt.Unix(),
	).Scan(&p.ID)
	if err != nil {
		return nil, writeError("price", q.InstanceType, "Failed to upsert price", err)
	}
	return p, nil
}

// Find looks up the price of an instance type on a platform in a region
func (r *PriceRepository) Find(ctx context.Context, instanceType, platform, region string) (*price.Price, error) {
	query := `
		SELECT id, instance_type, platform, region, hourly_price, updated_at
		FROM prices WHERE instance_type = $1 AND platform = $2 AND region = $3
	`
	p, err := scanPrice(r.db.QueryRowContext(ctx, query, instanceType, platform, region))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Price")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get price", err)
	}
	return p, nil
}

// All returns every stored price indexed by Key
func (r *PriceRepository) All(ctx context.Context) (map[price.Key]*price.Price, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, instance_type, platform, region, hourly_price, updated_at FROM prices")
	if err != nil {
		return nil, errors.DatabaseError("Failed to list prices", err)
	}
	defer rows.Close()

	prices := make(map[price.Key]*price.Price)
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan price", err)
		}
		prices[price.Key{InstanceType: p.InstanceType, Platform: p.Platform, Region: p.Region}] = p
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list prices", err)
	}
	return prices, nil
}

// Max returns the highest stored hourly price, zero when there are none
func (r *PriceRepository) Max(ctx context.Context) (float64, error) {
	var max sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, "SELECT MAX(hourly_price) FROM prices").Scan(&max); err != nil {
		return 0, errors.DatabaseError("Failed to get max price", err)
	}
	return max.Float64, nil
}

func scanPrice(row rowScanner) (*price.Price, error) {
	var p price.Price
	var updatedAt int64
	if err := row.Scan(&p.ID, &p.InstanceType, &p.Platform, &p.Region, &p.HourlyPrice, &updatedAt); err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &p, nil
}
