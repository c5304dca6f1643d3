package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
)

// InventoryRepository implements inventory.Repository over the EC2 tables
type InventoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(db *sql.DB) inventory.Repository {
	return &InventoryRepository{db: db, now: time.Now}
}

// upsert runs existsQuery to learn whether the row is new, then the write
func (r *InventoryRepository) upsert(ctx context.Context, kind inventory.Kind, id string, existsQuery string, existsArgs []interface{}, query string, args ...interface{}) (bool, error) {
	found, err := exists(ctx, r.db, existsQuery, existsArgs...)
	if err != nil {
		return false, errors.DatabaseError("Failed to look up "+string(kind), err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return false, writeError(string(kind), id, "Failed to upsert "+string(kind), err)
	}
	return !found, nil
}

// UpsertKeypair creates or updates a key pair
func (r *InventoryRepository) UpsertKeypair(ctx context.Context, k *inventory.Keypair) (bool, error) {
	return r.upsert(ctx, inventory.KindKeypair, k.KeyName,
		"SELECT 1 FROM keypairs WHERE account_id = $1 AND region = $2 AND key_name = $3",
		[]interface{}{k.AccountID, k.Region, k.KeyName},
		`INSERT INTO keypairs (account_id, region, key_name, fingerprint, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id, region, key_name) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			updated_at = excluded.updated_at`,
		k.AccountID, k.Region, k.KeyName, k.Fingerprint, r.now().Unix(),
	)
}

// KeypairExists reports whether a key pair is known locally
func (r *InventoryRepository) KeypairExists(ctx context.Context, accountID, region, keyName string) (bool, error) {
	found, err := exists(ctx, r.db,
		"SELECT 1 FROM keypairs WHERE account_id = $1 AND region = $2 AND key_name = $3",
		accountID, region, keyName)
	if err != nil {
		return false, errors.DatabaseError("Failed to look up key pair", err)
	}
	return found, nil
}

// UpsertSecurityGroup creates or updates a security group
func (r *InventoryRepository) UpsertSecurityGroup(ctx context.Context, sg *inventory.SecurityGroup) (bool, error) {
	return r.upsert(ctx, inventory.KindSecurityGroup, sg.ID,
		"SELECT 1 FROM security_groups WHERE id = $1", []interface{}{sg.ID},
		`INSERT INTO security_groups (id, account_id, region, name, description, owner_id, vpc_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			account_id = excluded.account_id,
			region = excluded.region,
			name = excluded.name,
			description = excluded.description,
			owner_id = excluded.owner_id,
			vpc_id = excluded.vpc_id,
			updated_at = excluded.updated_at`,
		sg.ID, sg.AccountID, sg.Region, sg.Name, sg.Description, sg.OwnerID, sg.VpcID, r.now().Unix(),
	)
}

// EnsureSecurityGroup inserts a minimal row when the group is unknown
func (r *InventoryRepository) EnsureSecurityGroup(ctx context.Context, sg *inventory.SecurityGroup) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO security_groups (id, account_id, region, name, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, sg.ID, sg.AccountID, sg.Region, sg.Name, r.now().Unix())
	if err != nil {
		return writeError(string(inventory.KindSecurityGroup), sg.ID, "Failed to ensure security group", err)
	}
	return nil
}

// UpsertAMI creates or updates an image; a nil CreatedFromSnapshot keeps the stored value
func (r *InventoryRepository) UpsertAMI(ctx context.Context, a *inventory.AMI) (bool, error) {
	return r.upsert(ctx, inventory.KindAMI, a.ID,
		"SELECT 1 FROM amis WHERE id = $1", []interface{}{a.ID},
		`INSERT INTO amis (id, account_id, region, name, description, owner_id, owner_alias, platform,
			architecture, root_device_name, root_device_type, state, created_from_snapshot, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			account_id = excluded.account_id,
			region = excluded.region,
			name = excluded.name,
			description = excluded.description,
			owner_id = excluded.owner_id,
			owner_alias = excluded.owner_alias,
			platform = excluded.platform,
			architecture = excluded.architecture,
			root_device_name = excluded.root_device_name,
			root_device_type = excluded.root_device_type,
			state = excluded.state,
			created_from_snapshot = COALESCE(excluded.created_from_snapshot, amis.created_from_snapshot),
			updated_at = excluded.updated_at`,
		a.ID, a.AccountID, a.Region, a.Name, a.Description, a.OwnerID, a.OwnerAlias, a.Platform,
		a.Architecture, a.RootDeviceName, a.RootDeviceType, a.State, stringOrNull(a.CreatedFromSnapshot),
		r.now().Unix(),
	)
}

// GetAMI retrieves an image by id
func (r *InventoryRepository) GetAMI(ctx context.Context, id string) (*inventory.AMI, error) {
	query := `
		SELECT id, account_id, region, name, description, owner_id, owner_alias, platform,
			architecture, root_device_name, root_device_type, state, created_from_snapshot
		FROM amis WHERE id = $1
	`
	a, err := scanAMI(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("AMI")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get AMI", err)
	}
	return a, nil
}

// UpsertSnapshot creates, fills in or updates a snapshot. Filling in a placeholder
// counts as a creation.
func (r *InventoryRepository) UpsertSnapshot(ctx context.Context, s *inventory.Snapshot) (bool, error) {
	return r.upsert(ctx, inventory.KindSnapshot, s.ID,
		"SELECT 1 FROM snapshots WHERE id = $1 AND synced_at IS NOT NULL", []interface{}{s.ID},
		`INSERT INTO snapshots (id, account_id, region, description, encrypted, owner_id, owner_alias,
			size, start_time, status, created_from_volume, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			account_id = excluded.account_id,
			region = excluded.region,
			description = excluded.description,
			encrypted = excluded.encrypted,
			owner_id = excluded.owner_id,
			owner_alias = excluded.owner_alias,
			size = excluded.size,
			start_time = excluded.start_time,
			status = excluded.status,
			created_from_volume = COALESCE(excluded.created_from_volume, snapshots.created_from_volume),
			synced_at = excluded.synced_at`,
		s.ID, s.AccountID, s.Region, s.Description, s.Encrypted, s.OwnerID, s.OwnerAlias,
		s.Size, unixOrNull(s.StartTime), s.Status, stringOrNull(s.CreatedFromVolume), r.now().Unix(),
	)
}

// EnsureSnapshot creates a placeholder row when the snapshot is unknown
func (r *InventoryRepository) EnsureSnapshot(ctx context.Context, id, accountID, region string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, account_id, region) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, id, accountID, region)
	if err != nil {
		return writeError(string(inventory.KindSnapshot), id, "Failed to ensure snapshot", err)
	}
	return nil
}

// UpsertVolume creates, fills in or updates a volume. The attachment columns are
// part of the volume description and are replaced.
func (r *InventoryRepository) UpsertVolume(ctx context.Context, v *inventory.Volume) (bool, error) {
	return r.upsert(ctx, inventory.KindVolume, v.ID,
		"SELECT 1 FROM volumes WHERE id = $1 AND synced_at IS NOT NULL", []interface{}{v.ID},
		`INSERT INTO volumes (id, account_id, availability_zone, instance_id, attach_time,
			delete_on_termination, create_time, encrypted, size, type, state, created_from_snapshot, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			account_id = excluded.account_id,
			availability_zone = excluded.availability_zone,
			instance_id = excluded.instance_id,
			attach_time = excluded.attach_time,
			delete_on_termination = excluded.delete_on_termination,
			create_time = excluded.create_time,
			encrypted = excluded.encrypted,
			size = excluded.size,
			type = excluded.type,
			state = excluded.state,
			created_from_snapshot = COALESCE(excluded.created_from_snapshot, volumes.created_from_snapshot),
			synced_at = excluded.synced_at`,
		v.ID, v.AccountID, stringOrNull(v.AvailabilityZone), stringOrNull(v.InstanceID), unixOrNull(v.AttachTime),
		v.DeleteOnTermination, unixOrNull(v.CreateTime), v.Encrypted, v.Size, v.Type, v.State,
		stringOrNull(v.CreatedFromSnapshot), r.now().Unix(),
	)
}

// EnsureVolume creates a placeholder row when the volume is unknown
func (r *InventoryRepository) EnsureVolume(ctx context.Context, id, accountID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO volumes (id, account_id) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, id, accountID)
	if err != nil {
		return writeError(string(inventory.KindVolume), id, "Failed to ensure volume", err)
	}
	return nil
}

// AttachVolume records a block device mapping entry of an instance
func (r *InventoryRepository) AttachVolume(ctx context.Context, accountID string, a inventory.Attachment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO volumes (id, account_id, instance_id, attach_time, delete_on_termination)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			instance_id = excluded.instance_id,
			attach_time = excluded.attach_time,
			delete_on_termination = excluded.delete_on_termination
	`, a.VolumeID, accountID, a.InstanceID, unixOrNull(a.AttachTime), a.DeleteOnTermination)
	if err != nil {
		return writeError(string(inventory.KindVolume), a.VolumeID, "Failed to attach volume", err)
	}
	return nil
}

// UpsertInstance creates or updates an instance. Nil ImageID or KeyName keep the
// stored reference; the price reference is never touched here.
func (r *InventoryRepository) UpsertInstance(ctx context.Context, i *inventory.Instance) (bool, error) {
	return r.upsert(ctx, inventory.KindInstance, i.ID,
		"SELECT 1 FROM instances WHERE id = $1", []interface{}{i.ID},
		`INSERT INTO instances (id, account_id, availability_zone, architecture, ec2_platform, platform,
			instance_type, kernel, launch_time, public_dns_name, private_ip_address, state,
			image_id, key_name, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			account_id = excluded.account_id,
			availability_zone = excluded.availability_zone,
			architecture = excluded.architecture,
			ec2_platform = excluded.ec2_platform,
			platform = excluded.platform,
			instance_type = excluded.instance_type,
			kernel = excluded.kernel,
			launch_time = excluded.launch_time,
			public_dns_name = excluded.public_dns_name,
			private_ip_address = excluded.private_ip_address,
			state = excluded.state,
			image_id = COALESCE(excluded.image_id, instances.image_id),
			key_name = COALESCE(excluded.key_name, instances.key_name),
			updated_at = excluded.updated_at`,
		i.ID, i.AccountID, i.AvailabilityZone, i.Architecture, i.EC2Platform, i.Platform,
		i.InstanceType, i.Kernel, unixOrNull(i.LaunchTime), i.PublicDNSName, i.PrivateIPAddress, i.State,
		stringOrNull(i.ImageID), stringOrNull(i.KeyName), r.now().Unix(),
	)
}

// InstanceExists reports whether an instance is known locally
func (r *InventoryRepository) InstanceExists(ctx context.Context, id string) (bool, error) {
	found, err := exists(ctx, r.db, "SELECT 1 FROM instances WHERE id = $1", id)
	if err != nil {
		return false, errors.DatabaseError("Failed to look up instance", err)
	}
	return found, nil
}

// AddInstanceSecurityGroups links groups to an instance without removing existing links
func (r *InventoryRepository) AddInstanceSecurityGroups(ctx context.Context, instanceID string, groupIDs []string) error {
	return r.link(ctx, string(inventory.KindInstance), instanceID,
		`INSERT INTO instance_security_groups (instance_id, security_group_id) VALUES ($1, $2)
		ON CONFLICT (instance_id, security_group_id) DO NOTHING`, groupIDs)
}

// UpsertElasticIP creates or updates an elastic IP
func (r *InventoryRepository) UpsertElasticIP(ctx context.Context, e *inventory.ElasticIP) (bool, error) {
	return r.upsert(ctx, inventory.KindElasticIP, e.PublicIP,
		"SELECT 1 FROM elastic_ips WHERE public_ip = $1", []interface{}{e.PublicIP},
		`INSERT INTO elastic_ips (public_ip, account_id, region, allocation_id, association_id, domain,
			instance_id, network_interface_id, network_interface_owner_id, private_ip_address, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (public_ip) DO UPDATE SET
			account_id = excluded.account_id,
			region = excluded.region,
			allocation_id = excluded.allocation_id,
			association_id = excluded.association_id,
			domain = excluded.domain,
			instance_id = excluded.instance_id,
			network_interface_id = excluded.network_interface_id,
			network_interface_owner_id = excluded.network_interface_owner_id,
			private_ip_address = excluded.private_ip_address,
			updated_at = excluded.updated_at`,
		e.PublicIP, e.AccountID, e.Region, e.AllocationID, e.AssociationID, e.Domain,
		stringOrNull(e.InstanceID), e.NetworkInterfaceID, e.NetworkInterfaceOwnerID, e.PrivateIPAddress,
		r.now().Unix(),
	)
}

// UpsertLoadBalancer creates or updates a load balancer by (account, region, name)
// and stores the surrogate id in lb.ID
func (r *InventoryRepository) UpsertLoadBalancer(ctx context.Context, lb *inventory.LoadBalancer) (bool, error) {
	found, err := exists(ctx, r.db,
		"SELECT 1 FROM load_balancers WHERE account_id = $1 AND region = $2 AND name = $3",
		lb.AccountID, lb.Region, lb.Name)
	if err != nil {
		return false, errors.DatabaseError("Failed to look up load balancer", err)
	}

	query := `
		INSERT INTO load_balancers (id, account_id, region, name, arn, dns_name, scheme, type, created_time, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (account_id, region, name) DO UPDATE SET
			arn = excluded.arn,
			dns_name = excluded.dns_name,
			scheme = excluded.scheme,
			type = excluded.type,
			created_time = excluded.created_time,
			updated_at = excluded.updated_at
		RETURNING id
	`
	err = r.db.QueryRowContext(ctx, query,
		uuid.New().String(), lb.AccountID, lb.Region, lb.Name, lb.ARN, lb.DNSName, lb.Scheme, lb.Type,
		unixOrNull(lb.CreatedTime), r.now().Unix(),
	).Scan(&lb.ID)
	if err != nil {
		return false, writeError(string(inventory.KindLoadBalancer), lb.Name, "Failed to upsert load balancer", err)
	}
	return !found, nil
}

// AddLoadBalancerLinks links instances, groups and zones without removing existing links
func (r *InventoryRepository) AddLoadBalancerLinks(ctx context.Context, lbID string, instanceIDs, groupIDs, zones []string) error {
	kind := string(inventory.KindLoadBalancer)
	if err := r.link(ctx, kind, lbID,
		`INSERT INTO load_balancer_instances (load_balancer_id, instance_id) VALUES ($1, $2)
		ON CONFLICT (load_balancer_id, instance_id) DO NOTHING`, instanceIDs); err != nil {
		return err
	}
	if err := r.link(ctx, kind, lbID,
		`INSERT INTO load_balancer_security_groups (load_balancer_id, security_group_id) VALUES ($1, $2)
		ON CONFLICT (load_balancer_id, security_group_id) DO NOTHING`, groupIDs); err != nil {
		return err
	}
	return r.link(ctx, kind, lbID,
		`INSERT INTO load_balancer_zones (load_balancer_id, zone_name) VALUES ($1, $2)
		ON CONFLICT (load_balancer_id, zone_name) DO NOTHING`, zones)
}

// link inserts (owner, target) pairs in one transaction
func (r *InventoryRepository) link(ctx context.Context, kind, ownerID, query string, targets []string) error {
	if len(targets) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("Failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return errors.DatabaseError("Failed to prepare statement", err)
	}
	defer stmt.Close()

	for _, target := range targets {
		if _, err := stmt.ExecContext(ctx, ownerID, target); err != nil {
			return writeError(kind, ownerID, "Failed to link "+target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("Failed to commit transaction", err)
	}
	return nil
}

// ListPricedInstances returns every instance with the keys needed to look up a price
func (r *InventoryRepository) ListPricedInstances(ctx context.Context) ([]*inventory.PricedInstance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.ec2_platform, i.instance_type, az.region, i.state
		FROM instances i
		JOIN availability_zones az ON az.name = i.availability_zone
		ORDER BY i.id
	`)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list instances", err)
	}
	defer rows.Close()

	var out []*inventory.PricedInstance
	for rows.Next() {
		var p inventory.PricedInstance
		if err := rows.Scan(&p.ID, &p.EC2Platform, &p.InstanceType, &p.Region, &p.State); err != nil {
			return nil, errors.DatabaseError("Failed to scan instance", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// SetInstancePrice points an instance at a price row
func (r *InventoryRepository) SetInstancePrice(ctx context.Context, instanceID, priceID string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE instances SET price_id = $1 WHERE id = $2", priceID, instanceID)
	if err != nil {
		return writeError(string(inventory.KindInstance), instanceID, "Failed to set instance price", err)
	}
	return nil
}
