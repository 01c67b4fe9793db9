package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"sat-dispatch-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	ClaimEmergency(ctx context.Context, orderID, tecID int64) (ClaimResult, error)
	PendingEmergency(ctx context.Context, tecID int64) (*PendingAlert, error)
	OpenEmergencyOrder(ctx context.Context, clientID int64, description string) (*model.EmergencyOrder, []int64, error)
	CloseEmergencyOrder(ctx context.Context, orderID int64) error
	ListTechnicians(ctx context.Context) ([]model.Technician, error)
	ListClients(ctx context.Context) ([]model.Client, error)
	SetOnCall(ctx context.Context, tecID int64, value bool) error
	ReplaceClients(ctx context.Context, tecID int64, clientIDs []int64) (int64, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying gorm handle for handlers that need raw access.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// ClaimEmergency atomically assigns the order to the technician and silences
// further alerting for it. The conditional UPDATE is the serialization point:
// the first request the database processes wins, and the winner keeps winning
// on repeated calls (screen remounts, retries after a dropped response).
func (s *gormStore) ClaimEmergency(ctx context.Context, orderID, tecID int64) (ClaimResult, error) {
	var result ClaimResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.EmergencyOrder{}).
			Where("id = ? AND NOT closed AND (claimed_by_id IS NULL OR claimed_by_id = ?)", orderID, tecID).
			Updates(map[string]any{"claimed_by_id": tecID, "notify_pending": false})
		if res.Error != nil {
			return fmt.Errorf("failed to claim emergency order %d: %w", orderID, res.Error)
		}

		if res.RowsAffected == 1 {
			if err := tx.Model(&model.Technician{}).
				Where("id = ?", tecID).
				Update("current_order_id", orderID).Error; err != nil {
				return fmt.Errorf("failed to mirror claim on technician %d: %w", tecID, err)
			}
			result.Status = ClaimGranted
			return nil
		}

		// No row updated: the order is gone, closed, or held by someone else.
		var order model.EmergencyOrder
		if err := tx.Preload("ClaimedBy").First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result.Status = ClaimNotFound
				return nil
			}
			return fmt.Errorf("failed to look up emergency order %d: %w", orderID, err)
		}

		// A closed order is no longer claimable by anyone, its former owner
		// included. Reporting it as denied would attribute ownership, which
		// for the ex-owner means naming the caller themselves.
		if order.Closed {
			result.Status = ClaimNotFound
			return nil
		}

		result.Status = ClaimDenied
		if order.ClaimedByID != nil {
			result.OwnerID = *order.ClaimedByID
			if order.ClaimedBy != nil {
				result.OwnerName = order.ClaimedBy.Name
			}
		}
		return nil
	})
	return result, err
}

// PendingEmergency returns the newest unclaimed, still-alerting order the
// technician is eligible for, or nil. Used by clients at cold start to
// recover alerts the push channel may have missed. Eligibility matches the
// fan-out in OpenEmergencyOrder: a technician already holding an emergency
// is never handed a second one.
func (s *gormStore) PendingEmergency(ctx context.Context, tecID int64) (*PendingAlert, error) {
	var order model.EmergencyOrder
	err := s.db.WithContext(ctx).
		Select("emergency_orders.*").
		Joins("JOIN technician_client_mapping tcm ON tcm.client_id = emergency_orders.client_id").
		Joins("JOIN technicians t ON t.id = tcm.technician_id").
		Where("tcm.technician_id = ? AND t.on_call AND t.active AND t.current_order_id IS NULL", tecID).
		Where("emergency_orders.notify_pending AND NOT emergency_orders.closed AND emergency_orders.claimed_by_id IS NULL").
		Order("emergency_orders.created_at DESC").
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up pending emergency for technician %d: %w", tecID, err)
	}
	return &PendingAlert{OrderID: order.ID, NotifyPending: order.NotifyPending}, nil
}

// OpenEmergencyOrder creates an alerting order and returns the IDs of the
// technicians that should be notified: on-call, active, linked to the
// order's client, and not already busy with another emergency.
func (s *gormStore) OpenEmergencyOrder(ctx context.Context, clientID int64, description string) (*model.EmergencyOrder, []int64, error) {
	order := model.EmergencyOrder{
		ClientID:      clientID,
		Description:   description,
		NotifyPending: true,
	}
	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create emergency order: %w", err)
	}

	var tecIDs []int64
	err := s.db.WithContext(ctx).Model(&model.Technician{}).
		Joins("JOIN technician_client_mapping tcm ON tcm.technician_id = technicians.id").
		Where("tcm.client_id = ? AND technicians.on_call AND technicians.active AND technicians.current_order_id IS NULL", clientID).
		Pluck("technicians.id", &tecIDs).Error
	if err != nil {
		return nil, nil, fmt.Errorf("failed to select eligible technicians for client %d: %w", clientID, err)
	}

	return &order, tecIDs, nil
}

// CloseEmergencyOrder finishes the underlying ticket: the order stops
// alerting and the owning technician becomes available for new alerts.
func (s *gormStore) CloseEmergencyOrder(ctx context.Context, orderID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.EmergencyOrder{}).
			Where("id = ? AND NOT closed", orderID).
			Updates(map[string]any{"closed": true, "notify_pending": false})
		if res.Error != nil {
			return fmt.Errorf("failed to close emergency order %d: %w", orderID, res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Model(&model.Technician{}).
			Where("current_order_id = ?", orderID).
			Update("current_order_id", nil).Error; err != nil {
			return fmt.Errorf("failed to release technician holding order %d: %w", orderID, err)
		}
		return nil
	})
}

// ListTechnicians returns the full roster with client affinities and any
// currently held emergency order.
func (s *gormStore) ListTechnicians(ctx context.Context) ([]model.Technician, error) {
	var tecs []model.Technician
	if err := s.db.WithContext(ctx).
		Preload("Clients").
		Preload("CurrentOrder").
		Order("name").
		Find(&tecs).Error; err != nil {
		return nil, fmt.Errorf("failed to list technicians: %w", err)
	}
	return tecs, nil
}

// ListClients returns all serviced clients.
func (s *gormStore) ListClients(ctx context.Context) ([]model.Client, error) {
	var clients []model.Client
	if err := s.db.WithContext(ctx).Order("name").Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

// SetOnCall flips the technician's on-call flag. An active claim is
// deliberately left untouched: going off call stops future alerts, it does
// not abandon an emergency already being worked.
func (s *gormStore) SetOnCall(ctx context.Context, tecID int64, value bool) error {
	res := s.db.WithContext(ctx).Model(&model.Technician{}).
		Where("id = ?", tecID).
		Update("on_call", value)
	if res.Error != nil {
		return fmt.Errorf("failed to update on-call flag for technician %d: %w", tecID, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ReplaceClients replaces the technician's whole client affinity set and
// returns the size of the persisted set. The server receives the complete
// target set; the last submission wins, and unknown client IDs are dropped.
func (s *gormStore) ReplaceClients(ctx context.Context, tecID int64, clientIDs []int64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tec model.Technician
		if err := tx.First(&tec, tecID).Error; err != nil {
			return err
		}

		var clients []model.Client
		if len(clientIDs) > 0 {
			if err := tx.Find(&clients, clientIDs).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&tec).Association("Clients").Replace(&clients); err != nil {
			return fmt.Errorf("failed to replace client set for technician %d: %w", tecID, err)
		}
		count = int64(len(clients))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
