package storage

import (
	"context"
	"errors"

	"hostwatch/internal/storage/models"
	pkgerrors "hostwatch/pkg/errors"
)

// Storage defines the interface for data persistence
type Storage interface {
	// Target list operations
	CreateTargetList(ctx context.Context, list *models.TargetList) error
	GetTargetList(ctx context.Context, name string) (*models.TargetList, error)
	GetAllTargetLists(ctx context.Context) ([]*models.TargetList, error)
	SetTargetListDescription(ctx context.Context, listID int64, description string) error
	ReplaceTargetSpecs(ctx context.Context, listID int64, specs []string) error
	DeleteTargetList(ctx context.Context, name string) error

	// Settings operations
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	GetAllSettings(ctx context.Context) (map[string]string, error)

	// Transactions
	BeginTx(ctx context.Context) (Transaction, error)

	// Close closes the storage connection
	Close() error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Storage
}

// SaveTargetList creates or replaces a named list, its description and its
// specs in one transaction.
func SaveTargetList(ctx context.Context, s Storage, name, description string, specs []string) (*models.TargetList, error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	list, err := tx.GetTargetList(ctx, name)
	switch {
	case errors.Is(err, pkgerrors.ErrListNotFound):
		list = &models.TargetList{Name: name, Description: description}
		if err := tx.CreateTargetList(ctx, list); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := tx.SetTargetListDescription(ctx, list.ID, description); err != nil {
			return nil, err
		}
		list.Description = description
	}
	if err := tx.ReplaceTargetSpecs(ctx, list.ID, specs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	list.Specs = append([]string(nil), specs...)
	return list, nil
}
