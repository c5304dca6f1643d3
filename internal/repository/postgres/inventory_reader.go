package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
)

// scopedQuery accumulates WHERE conditions and their $n arguments
type scopedQuery struct {
	conds []string
	args  []interface{}
}

// newScopedQuery restricts accountCol to the accounts linked to userID
func newScopedQuery(userID int64, accountCol string) *scopedQuery {
	q := &scopedQuery{}
	q.add(accountCol+" IN (SELECT account_id FROM user_accounts WHERE user_id = %s)", userID)
	return q
}

// add appends a condition whose %s is replaced by the next placeholder
func (q *scopedQuery) add(cond string, arg interface{}) {
	q.args = append(q.args, arg)
	q.conds = append(q.conds, fmt.Sprintf(cond, fmt.Sprintf("$%d", len(q.args))))
}

func (q *scopedQuery) filter(f inventory.ListFilter, accountCol, regionCol, stateCol string) *scopedQuery {
	if f.AccountID != "" {
		q.add(accountCol+" = %s", f.AccountID)
	}
	if f.Region != "" && regionCol != "" {
		q.add(regionCol+" = %s", f.Region)
	}
	if f.State != "" && stateCol != "" {
		q.add(stateCol+" = %s", f.State)
	}
	return q
}

func (q *scopedQuery) where() string {
	return " WHERE " + strings.Join(q.conds, " AND ")
}

// page appends LIMIT/OFFSET when a limit is set
func (q *scopedQuery) page(f inventory.ListFilter) string {
	if f.Limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
}

func (r *InventoryRepository) count(ctx context.Context, from string, q *scopedQuery) (int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+from+q.where(), q.args...).Scan(&total); err != nil {
		return 0, errors.DatabaseError("Failed to count resources", err)
	}
	return total, nil
}

const instanceColumns = `
	i.id, i.account_id, i.availability_zone, i.architecture, i.ec2_platform, i.platform,
	i.instance_type, i.kernel, i.launch_time, i.public_dns_name, i.private_ip_address, i.state,
	i.image_id, i.key_name, i.price_id, az.region, p.hourly_price`

const instanceFrom = `instances i
	JOIN availability_zones az ON az.name = i.availability_zone
	LEFT JOIN prices p ON p.id = i.price_id`

var instanceSorts = map[string]string{
	"id":            "i.id",
	"instance_type": "i.instance_type",
	"state":         "i.state",
	"launch_time":   "i.launch_time",
	"region":        "az.region",
	"hourly_price":  "p.hourly_price",
}

func scanInstance(row rowScanner) (*inventory.Instance, error) {
	var i inventory.Instance
	var launch sql.NullInt64
	var imageID, keyName, priceID sql.NullString
	var hourly sql.NullFloat64
	err := row.Scan(&i.ID, &i.AccountID, &i.AvailabilityZone, &i.Architecture, &i.EC2Platform, &i.Platform,
		&i.InstanceType, &i.Kernel, &launch, &i.PublicDNSName, &i.PrivateIPAddress, &i.State,
		&imageID, &keyName, &priceID, &i.Region, &hourly)
	if err != nil {
		return nil, err
	}
	i.LaunchTime = timeOrNil(launch)
	i.ImageID = stringOrNil(imageID)
	i.KeyName = stringOrNil(keyName)
	i.PriceID = stringOrNil(priceID)
	if hourly.Valid {
		v := hourly.Float64
		i.HourlyPrice = &v
	}
	return &i, nil
}

// ListInstances lists the instances visible to a user
func (r *InventoryRepository) ListInstances(ctx context.Context, userID int64, f inventory.ListFilter) ([]*inventory.Instance, int64, error) {
	q := newScopedQuery(userID, "i.account_id").filter(f, "i.account_id", "az.region", "i.state")
	total, err := r.count(ctx, instanceFrom, q)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT " + instanceColumns + " FROM " + instanceFrom + q.where() +
		orderClause(f.SortBy, f.Desc, instanceSorts, "i.id") + q.page(f)
	rows, err := r.db.QueryContext(ctx, query, q.args...)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to list instances", err)
	}

	var instances []*inventory.Instance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			rows.Close()
			return nil, 0, errors.DatabaseError("Failed to scan instance", err)
		}
		instances = append(instances, i)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, errors.DatabaseError("Failed to list instances", err)
	}

	for _, i := range instances {
		if i.SecurityGroupIDs, err = r.column(ctx,
			"SELECT security_group_id FROM instance_security_groups WHERE instance_id = $1 ORDER BY security_group_id",
			i.ID); err != nil {
			return nil, 0, err
		}
	}
	return instances, total, nil
}

// GetInstance retrieves one instance visible to a user
func (r *InventoryRepository) GetInstance(ctx context.Context, userID int64, id string) (*inventory.Instance, error) {
	q := newScopedQuery(userID, "i.account_id")
	q.add("i.id = %s", id)
	i, err := scanInstance(r.db.QueryRowContext(ctx, "SELECT "+instanceColumns+" FROM "+instanceFrom+q.where(), q.args...))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Instance")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get instance", err)
	}
	if i.SecurityGroupIDs, err = r.column(ctx,
		"SELECT security_group_id FROM instance_security_groups WHERE instance_id = $1 ORDER BY security_group_id",
		i.ID); err != nil {
		return nil, err
	}
	return i, nil
}

const volumeColumns = `
	v.id, v.account_id, v.availability_zone, v.instance_id, v.attach_time, v.delete_on_termination,
	v.create_time, v.encrypted, v.size, v.type, v.state, v.created_from_snapshot`

var volumeSorts = map[string]string{
	"id":          "v.id",
	"size":        "v.size",
	"state":       "v.state",
	"create_time": "v.create_time",
	"type":        "v.type",
}

func scanVolume(row rowScanner) (*inventory.Volume, error) {
	var v inventory.Volume
	var az, instanceID, fromSnapshot sql.NullString
	var attach, created sql.NullInt64
	err := row.Scan(&v.ID, &v.AccountID, &az, &instanceID, &attach, &v.DeleteOnTermination,
		&created, &v.Encrypted, &v.Size, &v.Type, &v.State, &fromSnapshot)
	if err != nil {
		return nil, err
	}
	v.AvailabilityZone = stringOrNil(az)
	v.InstanceID = stringOrNil(instanceID)
	v.AttachTime = timeOrNil(attach)
	v.CreateTime = timeOrNil(created)
	v.CreatedFromSnapshot = stringOrNil(fromSnapshot)
	return &v, nil
}

// ListVolumes lists the volumes visible to a user
func (r *InventoryRepository) ListVolumes(ctx context.Context, userID int64, f inventory.ListFilter) ([]*inventory.Volume, int64, error) {
	from := "volumes v LEFT JOIN availability_zones az ON az.name = v.availability_zone"
	q := newScopedQuery(userID, "v.account_id").filter(f, "v.account_id", "az.region", "v.state")
	total, err := r.count(ctx, from, q)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, "SELECT "+volumeColumns+" FROM "+from+q.where()+
		orderClause(f.SortBy, f.Desc, volumeSorts, "v.id")+q.page(f), q.args...)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to list volumes", err)
	}
	defer rows.Close()

	var volumes []*inventory.Volume
	for rows.Next() {
		v, err := scanVolume(rows)
		if err != nil {
			return nil, 0, errors.DatabaseError("Failed to scan volume", err)
		}
		volumes = append(volumes, v)
	}
	return volumes, total, rows.Err()
}

// GetVolume retrieves one volume visible to a user
func (r *InventoryRepository) GetVolume(ctx context.Context, userID int64, id string) (*inventory.Volume, error) {
	q := newScopedQuery(userID, "v.account_id")
	q.add("v.id = %s", id)
	v, err := scanVolume(r.db.QueryRowContext(ctx, "SELECT "+volumeColumns+" FROM volumes v"+q.where(), q.args...))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Volume")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get volume", err)
	}
	return v, nil
}

// ListSnapshots lists the snapshots visible to a user. Placeholders are included.
func (r *InventoryRepository) ListSnapshots(ctx context.Context, userID int64, f inventory.ListFilter) ([]*inventory.Snapshot, int64, error) {
	q := newScopedQuery(userID, "s.account_id").filter(f, "s.account_id", "s.region", "s.status")
	total, err := r.count(ctx, "snapshots s", q)
	if err != nil {
		return nil, 0, err
	}

	sorts := map[string]string{"id": "s.id", "size": "s.size", "start_time": "s.start_time", "status": "s.status"}
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.account_id, s.region, s.description, s.encrypted, s.owner_id, s.owner_alias,
			s.size, s.start_time, s.status, s.created_from_volume
		FROM snapshots s`+q.where()+orderClause(f.SortBy, f.Desc, sorts, "s.id")+q.page(f), q.args...)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to list snapshots", err)
	}
	defer rows.Close()

	var snapshots []*inventory.Snapshot
	for rows.Next() {
		var s inventory.Snapshot
		var start sql.NullInt64
		var fromVolume sql.NullString
		if err := rows.Scan(&s.ID, &s.AccountID, &s.Region, &s.Description, &s.Encrypted, &s.OwnerID,
			&s.OwnerAlias, &s.Size, &start, &s.Status, &fromVolume); err != nil {
			return nil, 0, errors.DatabaseError("Failed to scan snapshot", err)
		}
		s.StartTime = timeOrNil(start)
		s.CreatedFromVolume = stringOrNil(fromVolume)
		snapshots = append(snapshots, &s)
	}
	return snapshots, total, rows.Err()
}

func scanAMI(row rowScanner) (*inventory.AMI, error) {
	var a inventory.AMI
	var fromSnapshot sql.NullString
	err := row.Scan(&a.ID, &a.AccountID, &a.Region, &a.Name, &a.Description, &a.OwnerID, &a.OwnerAlias,
		&a.Platform, &a.Architecture, &a.RootDeviceName, &a.RootDeviceType, &a.State, &fromSnapshot)
	if err != nil {
		return nil, err
	}
	a.CreatedFromSnapshot = stringOrNil(fromSnapshot)
	return &a, nil
}

// ListAMIs lists the images visible to a user
func (r *InventoryRepository) ListAMIs(ctx context.Context, userID int64, f inventory.ListFilter) ([]*inventory.AMI, int64, error) {
	q := newScopedQuery(userID, "account_id").filter(f, "account_id", "region", "state")
	total, err := r.count(ctx, "amis", q)
	if err != nil {
		return nil, 0, err
	}

	sorts := map[string]string{"id": "id", "name": "name", "platform": "platform"}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, region, name, description, owner_id, owner_alias, platform,
			architecture, root_device_name, root_device_type, state, created_from_snapshot
		FROM amis`+q.where()+orderClause(f.SortBy, f.Desc, sorts, "id")+q.page(f), q.args...)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to list AMIs", err)
	}
	defer rows.Close()

	var amis []*inventory.AMI
	for rows.Next() {
		a, err := scanAMI(rows)
		if err != nil {
			return nil, 0, errors.DatabaseError("Failed to scan AMI", err)
		}
		amis = append(amis, a)
	}
	return amis, total, rows.Err()
}

// ListKeypairs lists the key pairs visible to a user
func (r *InventoryRepository) ListKeypairs(ctx context.Context, userID int64, f inventory.ListFilter) ([]*inventory.Keypair, int64, error) {
	q := newScopedQuery(userID, "account_id").filter(f, "account_id", "region", "")
	total, err := r.count(ctx, "keypairs", q)
	if err != nil {
		return nil, 0, err
	}

	sorts := map[string]string{"key_name": "key_name", "region": "region"}
	rows, err := r.db.QueryContext(ctx,
		"SELECT key_name, fingerprint, account_id, region FROM keypairs"+q.where()+
			orderClause(f.SortBy, f.Desc, sorts, "key_name")+q.page(f), q.args...)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to list key pairs", err)
	}
	defer rows.Close()

	var keypairs []*inventory.Keypair
	for rows.Next() {
		var k inventory.Keypair
		if err := rows.Scan(&k.KeyName, &k.Fingerprint, &k.AccountID, &k.Region); err != nil {
			return nil, 0, errors.DatabaseError("Failed to scan key pair", err)
		}
		keypairs = append(keypairs, &k)
	}
	return keypairs, total, rows.Err()
}

// ListSecurityGroups lists the security groups visible to a user
func (r *InventoryRepository) ListSecurityGroups(ctx context.Context, userID int64, f inventory.ListFilter) ([]*inventory.SecurityGroup, int64, error) {
	q := newScopedQuery(userID, "account_id").filter(f, "account_id", "region", "")
	total, err := r.count(ctx, "security_groups", q)
	if err != nil {
		return nil, 0, err
	}

	sorts := map[string]string{"id": "id", "name": "name", "vpc_id": "vpc_id"}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, description, owner_id, vpc_id, account_id, region FROM security_groups"+q.where()+
			orderClause(f.SortBy, f.Desc, sorts, "id")+q.page(f), q.args...)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to list security groups", err)
	}
	defer rows.Close()

	var groups []*inventory.SecurityGroup
	for rows.Next() {
		var sg inventory.SecurityGroup
		if err := rows.Scan(&sg.ID, &sg.Name, &sg.Description, &sg.OwnerID, &sg.VpcID, &sg.AccountID, &sg.Region); err != nil {
			return nil, 0, errors.DatabaseError("Failed to scan security group", err)
		}
		groups = append(groups, &sg)
	}
	return groups, total, rows.Err()
}

// ListElasticIPs lists the elastic IPs visible to a user
func (r *InventoryRepository) ListElasticIPs(ctx context.Context, userID int64, f inventory.ListFilter) ([]*inventory.ElasticIP, int64, error) {
	q := newScopedQuery(userID, "account_id").filter(f, "account_id", "region", "")
	total, err := r.count(ctx, "elastic_ips", q)
	if err != nil {
		return nil, 0, err
	}

	sorts := map[string]string{"public_ip": "public_ip", "domain": "domain"}
	rows, err := r.db.QueryContext(ctx, `
		SELECT public_ip, account_id, region, allocation_id, association_id, domain, instance_id,
			network_interface_id, network_interface_owner_id, private_ip_address
		FROM elastic_ips`+q.where()+orderClause(f.SortBy, f.Desc, sorts, "public_ip")+q.page(f), q.args...)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to list elastic IPs", err)
	}
	defer rows.Close()

	var ips []*inventory.ElasticIP
	for rows.Next() {
		var e inventory.ElasticIP
		var instanceID sql.NullString
		if err := rows.Scan(&e.PublicIP, &e.AccountID, &e.Region, &e.AllocationID, &e.AssociationID, &e.Domain,
			&instanceID, &e.NetworkInterfaceID, &e.NetworkInterfaceOwnerID, &e.PrivateIPAddress); err != nil {
			return nil, 0, errors.DatabaseError("Failed to scan elastic IP", err)
		}
		e.InstanceID = stringOrNil(instanceID)
		ips = append(ips, &e)
	}
	return ips, total, rows.Err()
}

// ListLoadBalancers lists the load balancers visible to a user with their links
func (r *InventoryRepository) ListLoadBalancers(ctx context.Context, userID int64, f inventory.ListFilter) ([]*inventory.LoadBalancer, int64, error) {
	q := newScopedQuery(userID, "account_id").filter(f, "account_id", "region", "")
	total, err := r.count(ctx, "load_balancers", q)
	if err != nil {
		return nil, 0, err
	}

	sorts := map[string]string{"name": "name", "created_time": "created_time", "type": "type"}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, region, name, arn, dns_name, scheme, type, created_time
		FROM load_balancers`+q.where()+orderClause(f.SortBy, f.Desc, sorts, "name")+q.page(f), q.args...)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to list load balancers", err)
	}

	var lbs []*inventory.LoadBalancer
	for rows.Next() {
		var lb inventory.LoadBalancer
		var created sql.NullInt64
		if err := rows.Scan(&lb.ID, &lb.AccountID, &lb.Region, &lb.Name, &lb.ARN, &lb.DNSName,
			&lb.Scheme, &lb.Type, &created); err != nil {
			rows.Close()
			return nil, 0, errors.DatabaseError("Failed to scan load balancer", err)
		}
		lb.CreatedTime = timeOrNil(created)
		lbs = append(lbs, &lb)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, errors.DatabaseError("Failed to list load balancers", err)
	}

	for _, lb := range lbs {
		if lb.InstanceIDs, err = r.column(ctx,
			"SELECT instance_id FROM load_balancer_instances WHERE load_balancer_id = $1 ORDER BY instance_id",
			lb.ID); err != nil {
			return nil, 0, err
		}
		if lb.SecurityGroupIDs, err = r.column(ctx,
			"SELECT security_group_id FROM load_balancer_security_groups WHERE load_balancer_id = $1 ORDER BY security_group_id",
			lb.ID); err != nil {
			return nil, 0, err
		}
		if lb.AvailabilityZones, err = r.column(ctx,
			"SELECT zone_name FROM load_balancer_zones WHERE load_balancer_id = $1 ORDER BY zone_name",
			lb.ID); err != nil {
			return nil, 0, err
		}
	}
	return lbs, total, nil
}

// column collects a single string column
func (r *InventoryRepository) column(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list links", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.DatabaseError("Failed to scan link", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
