package services

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/account"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/price"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
	"github.com/pratik-mahalle/ec2inventory/internal/providers"
)

// InventoryService implements inventory.Service
type InventoryService struct {
	inventory.Reader

	repo     inventory.Repository
	accounts account.Repository
	regions  inventory.RegionRepository
	prices   price.Repository
	factory  providers.Factory
	retry    providers.RetryPolicy
	logger   *logger.Logger
	now      func() time.Time
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	repo inventory.Repository,
	accounts account.Repository,
	regions inventory.RegionRepository,
	prices price.Repository,
	factory providers.Factory,
	retry providers.RetryPolicy,
	log *logger.Logger,
) inventory.Service {
	return &InventoryService{
		Reader:   repo,
		repo:     repo,
		accounts: accounts,
		regions:  regions,
		prices:   prices,
		factory:  factory,
		retry:    retry,
		logger:   log,
		now:      time.Now,
	}
}

// connection opens a provider connection for a resource of the user
func (s *InventoryService) connection(ctx context.Context, userID int64, accountID, region string) (*providers.Connection, error) {
	accounts, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	pool, err := providers.NewClientPool(accounts, s.factory)
	if err != nil {
		return nil, err
	}
	return pool.Connection(ctx, accountID, region)
}

func (s *InventoryService) instanceConnection(ctx context.Context, userID int64, id string) (*inventory.Instance, *providers.Connection, error) {
	inst, err := s.repo.GetInstance(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	if inst.Region == "" {
		return nil, nil, errors.MissingDependency("availability_zone", inst.AvailabilityZone)
	}
	conn, err := s.connection(ctx, userID, inst.AccountID, inst.Region)
	if err != nil {
		return nil, nil, err
	}
	return inst, conn, nil
}

func (s *InventoryService) volumeConnection(ctx context.Context, userID int64, id string) (*inventory.Volume, *providers.Connection, error) {
	v, err := s.repo.GetVolume(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	if v.AvailabilityZone == nil {
		return nil, nil, errors.MissingDependency("availability_zone", "")
	}
	az, err := s.regions.GetAvailabilityZone(ctx, *v.AvailabilityZone)
	if errors.IsNotFound(err) {
		return nil, nil, errors.MissingDependency("availability_zone", *v.AvailabilityZone)
	}
	if err != nil {
		return nil, nil, err
	}
	conn, err := s.connection(ctx, userID, v.AccountID, az.Region)
	if err != nil {
		return nil, nil, err
	}
	return v, conn, nil
}

// StopInstance stops an instance at the provider and marks it stopped
func (s *InventoryService) StopInstance(ctx context.Context, userID int64, id string) error {
	inst, conn, err := s.instanceConnection(ctx, userID, id)
	if err != nil {
		return err
	}

	if _, err := providers.Call(ctx, s.retry, "ec2:StopInstances", func(ctx context.Context) (*ec2.StopInstancesOutput, error) {
		return conn.EC2.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{inst.ID}})
	}); err != nil {
		s.logger.With("instance_id", inst.ID).ErrorWithErr(err, "Failed to stop instance")
		return err
	}
	if err := s.repo.MarkInstanceStopped(ctx, inst.ID); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":     userID,
		"account_id":  inst.AccountID,
		"instance_id": inst.ID,
	}).Info("Instance stopped")
	return nil
}

// TerminateInstance terminates an instance and removes it with its
// delete-on-termination volumes
func (s *InventoryService) TerminateInstance(ctx context.Context, userID int64, id string) ([]string, error) {
	inst, conn, err := s.instanceConnection(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if _, err := providers.Call(ctx, s.retry, "ec2:TerminateInstances", func(ctx context.Context) (*ec2.TerminateInstancesOutput, error) {
		return conn.EC2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{inst.ID}})
	}); err != nil {
		s.logger.With("instance_id", inst.ID).ErrorWithErr(err, "Failed to terminate instance")
		return nil, err
	}

	// Must be read before the instance row goes and the volumes lose their link
	volumes, err := s.repo.ListDeleteOnTermination(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteInstance(ctx, inst.ID); err != nil {
		return nil, err
	}

	for _, volumeID := range volumes {
		if _, err := providers.Call(ctx, s.retry, "ec2:DeleteVolume", func(ctx context.Context) (*ec2.DeleteVolumeOutput, error) {
			return conn.EC2.DeleteVolume(ctx, &ec2.DeleteVolumeInput{VolumeId: aws.String(volumeID)})
		}); err != nil {
			s.logger.With("volume_id", volumeID).WarnWithErr(err, "Provider did not delete volume")
		}
		if err := s.repo.DeleteVolume(ctx, volumeID); err != nil && !errors.IsNotFound(err) {
			return nil, err
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":         userID,
		"account_id":      inst.AccountID,
		"instance_id":     inst.ID,
		"volumes_deleted": len(volumes),
	}).Info("Instance terminated")
	return volumes, nil
}

// DetachVolume detaches a volume from its instance
func (s *InventoryService) DetachVolume(ctx context.Context, userID int64, id string) error {
	v, conn, err := s.volumeConnection(ctx, userID, id)
	if err != nil {
		return err
	}
	if v.InstanceID == nil {
		return errors.Conflict("Volume is not attached")
	}

	if _, err := providers.Call(ctx, s.retry, "ec2:DetachVolume", func(ctx context.Context) (*ec2.DetachVolumeOutput, error) {
		return conn.EC2.DetachVolume(ctx, &ec2.DetachVolumeInput{VolumeId: aws.String(v.ID)})
	}); err != nil {
		s.logger.With("volume_id", v.ID).ErrorWithErr(err, "Failed to detach volume")
		return err
	}
	if err := s.repo.DetachVolume(ctx, v.ID); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":     userID,
		"volume_id":   v.ID,
		"instance_id": *v.InstanceID,
	}).Info("Volume detached")
	return nil
}

// DeleteVolume deletes a volume at the provider and locally
func (s *InventoryService) DeleteVolume(ctx context.Context, userID int64, id string) error {
	v, conn, err := s.volumeConnection(ctx, userID, id)
	if err != nil {
		return err
	}

	if _, err := providers.Call(ctx, s.retry, "ec2:DeleteVolume", func(ctx context.Context) (*ec2.DeleteVolumeOutput, error) {
		return conn.EC2.DeleteVolume(ctx, &ec2.DeleteVolumeInput{VolumeId: aws.String(v.ID)})
	}); err != nil {
		s.logger.With("volume_id", v.ID).ErrorWithErr(err, "Failed to delete volume")
		return err
	}
	if err := s.repo.DeleteVolume(ctx, v.ID); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":    userID,
		"account_id": v.AccountID,
		"volume_id":  v.ID,
	}).Info("Volume deleted")
	return nil
}

// Costs prices every instance of the user that has a price. Account and total
// figures only count running instances.
func (s *InventoryService) Costs(ctx context.Context, userID int64, f inventory.ListFilter) (*inventory.CostReport, error) {
	f.Limit, f.Offset = 0, 0
	instances, _, err := s.repo.ListInstances(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	max, err := s.prices.Max(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	report := &inventory.CostReport{
		Accounts:    []inventory.AccountCost{},
		Instances:   []inventory.InstanceCost{},
		DaysInMonth: price.DaysIn(now),
		MaxHourly:   max,
	}

	byAccount := make(map[string]*inventory.AccountCost)
	for _, inst := range instances {
		if inst.HourlyPrice == nil {
			continue
		}
		hourly := *inst.HourlyPrice
		report.Instances = append(report.Instances, inventory.InstanceCost{
			InstanceID:   inst.ID,
			AccountID:    inst.AccountID,
			InstanceType: inst.InstanceType,
			EC2Platform:  inst.EC2Platform,
			Region:       inst.Region,
			State:        inst.State,
			Hourly:       hourly,
			Daily:        price.Daily(hourly),
			Monthly:      price.Monthly(hourly, now),
			PriceClass:   price.Class(hourly, max),
		})

		if inst.State != inventory.StateRunning {
			continue
		}
		ac, ok := byAccount[inst.AccountID]
		if !ok {
			ac = &inventory.AccountCost{AccountID: inst.AccountID}
			byAccount[inst.AccountID] = ac
		}
		ac.Running++
		ac.Hourly += hourly
	}

	for _, ac := range byAccount {
		ac.Hourly = price.Round3(ac.Hourly)
		ac.Daily = price.Daily(ac.Hourly)
		ac.Monthly = price.Monthly(ac.Hourly, now)
		report.Accounts = append(report.Accounts, *ac)

		report.Total.Running += ac.Running
		report.Total.Hourly += ac.Hourly
	}
	sort.Slice(report.Accounts, func(i, j int) bool {
		return report.Accounts[i].AccountID < report.Accounts[j].AccountID
	})

	report.Total.Hourly = price.Round3(report.Total.Hourly)
	report.Total.Daily = price.Daily(report.Total.Hourly)
	report.Total.Monthly = price.Monthly(report.Total.Hourly, now)
	return report, nil
}
