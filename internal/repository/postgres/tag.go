package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
)

// TagRepository implements inventory.TagRepository
type TagRepository struct {
	db *sql.DB
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *sql.DB) inventory.TagRepository {
	return &TagRepository{db: db}
}

// GetOrCreate returns the tag identified by (key, value, account, region)
func (r *TagRepository) GetOrCreate(ctx context.Context, key, value, accountID, region string) (*inventory.Tag, error) {
	tag := &inventory.Tag{Key: key, Value: value, AccountID: accountID, Region: region}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tags (id, tag_key, tag_value, account_id, region)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tag_key, tag_value, account_id, region) DO NOTHING
	`, uuid.New().String(), key, value, accountID, region)
	if err != nil {
		return nil, writeError("tag", key, "Failed to create tag", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT id FROM tags
		WHERE tag_key = $1 AND tag_value = $2 AND account_id = $3 AND region = $4
	`, key, value, accountID, region).Scan(&tag.ID)
	if err != nil {
		return nil, errors.DatabaseError("Failed to get tag", err)
	}
	return tag, nil
}

// Attach associates a tag with a resource; attaching twice is a no-op
func (r *TagRepository) Attach(ctx context.Context, tagID string, kind inventory.Kind, resourceID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO resource_tags (tag_id, resource_kind, resource_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (tag_id, resource_kind, resource_id) DO NOTHING
	`, tagID, string(kind), resourceID)
	if err != nil {
		return writeError("tag", tagID, "Failed to attach tag", err)
	}
	return nil
}

// ListForResource returns the tags of one resource ordered by key
func (r *TagRepository) ListForResource(ctx context.Context, kind inventory.Kind, resourceID string) ([]*inventory.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.tag_key, t.tag_value, t.account_id, t.region
		FROM tags t
		JOIN resource_tags rt ON rt.tag_id = t.id
		WHERE rt.resource_kind = $1 AND rt.resource_id = $2
		ORDER BY t.tag_key, t.tag_value
	`, string(kind), resourceID)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list tags", err)
	}
	defer rows.Close()

	var tags []*inventory.Tag
	for rows.Next() {
		var t inventory.Tag
		if err := rows.Scan(&t.ID, &t.Key, &t.Value, &t.AccountID, &t.Region); err != nil {
			return nil, errors.DatabaseError("Failed to scan tag", err)
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}
