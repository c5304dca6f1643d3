package postgres

import (
	"context"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
)

// MarkInstanceStopped sets state to stopped and clears the public DNS name
func (r *InventoryRepository) MarkInstanceStopped(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE instances SET state = $1, public_dns_name = '', updated_at = $2 WHERE id = $3",
		inventory.StateStopped, r.now().Unix(), id)
	if err != nil {
		return errors.DatabaseError("Failed to update instance", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return errors.NotFound("Instance")
	}
	return nil
}

// DeleteInstance removes an instance and its tag associations. Attached volumes
// and elastic IPs lose their instance reference through ON DELETE SET NULL.
func (r *InventoryRepository) DeleteInstance(ctx context.Context, id string) error {
	return r.deleteTagged(ctx, inventory.KindInstance, id, "DELETE FROM instances WHERE id = $1", "Instance")
}

// ListDeleteOnTermination returns the volumes deleted together with an instance
func (r *InventoryRepository) ListDeleteOnTermination(ctx context.Context, instanceID string) ([]string, error) {
	return r.column(ctx,
		"SELECT id FROM volumes WHERE instance_id = $1 AND delete_on_termination = $2 ORDER BY id",
		instanceID, true)
}

// DetachVolume clears the instance and attach time of a volume
func (r *InventoryRepository) DetachVolume(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE volumes SET instance_id = NULL, attach_time = NULL WHERE id = $1", id)
	if err != nil {
		return errors.DatabaseError("Failed to detach volume", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return errors.NotFound("Volume")
	}
	return nil
}

// DeleteVolume removes a volume and its tag associations
func (r *InventoryRepository) DeleteVolume(ctx context.Context, id string) error {
	return r.deleteTagged(ctx, inventory.KindVolume, id, "DELETE FROM volumes WHERE id = $1", "Volume")
}

func (r *InventoryRepository) deleteTagged(ctx context.Context, kind inventory.Kind, id, query, resource string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("Failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM resource_tags WHERE resource_kind = $1 AND resource_id = $2", string(kind), id); err != nil {
		return errors.DatabaseError("Failed to delete tag associations", err)
	}

	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return errors.DatabaseError("Failed to delete "+string(kind), err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return errors.NotFound(resource)
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("Failed to commit transaction", err)
	}
	return nil
}
