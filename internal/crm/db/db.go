// Package db implements the storage gateway for Client and Contract
// documents on top of GORM. Writes are guarded by an optimistic version
// check; a stale write fails with ErrVersionConflict, distinctly from
// ErrNotFound, so callers can refetch and retry.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	e "github.com/gartstein/crm/internal/crm/errors"
	"github.com/gartstein/crm/internal/crm/models"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NewRepository connects to Postgres, retrying with exponential backoff,
// and migrates the client and contract tables. A connection that cannot
// be established within the retry budget surfaces as ErrStorageUnavailable.
func NewRepository(cfg *Config) (*Repository, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var db *gorm.DB
	err := backoff.Retry(func() error {
		var openErr error
		db, openErr = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		return openErr
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrStorageUnavailable, err)
	}

	if err := db.AutoMigrate(&models.Client{}, &models.Contract{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) CreateClient(ctx context.Context, client *models.Client) error {
	client.Version = 1
	result := r.db.WithContext(ctx).Create(client)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrDuplicateName
		}
		return result.Error
	}
	return nil
}

func (r *Repository) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	result := r.db.WithContext(ctx).First(&client, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &client, nil
}

// UpdateClient replaces the stored client with the given full image,
// guarded by the image's version. On success the version is incremented
// both in storage and on the passed struct.
func (r *Repository) UpdateClient(ctx context.Context, client *models.Client) error {
	result := r.db.WithContext(ctx).Model(&models.Client{}).
		Where("id = ? AND version = ?", client.ID, client.Version).
		UpdateColumns(map[string]interface{}{
			"type":               client.Type,
			"name":               client.Name,
			"phone":              client.Phone,
			"email":              client.Email,
			"birthday":           client.Birthday,
			"company_identifier": client.CompanyIdentifier,
			"version":            client.Version + 1,
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.staleOrMissing(ctx, &models.Client{}, client.ID)
	}
	client.Version++
	return nil
}

func (r *Repository) DeleteClient(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Client{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

func (r *Repository) ClientExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Client{}).
		Where("name = ?", name).
		Limit(1).
		Count(&count)
	return count > 0, result.Error
}

func (r *Repository) CreateContract(ctx context.Context, contract *models.Contract) error {
	contract.Version = 1
	return r.db.WithContext(ctx).Create(contract).Error
}

func (r *Repository) GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	result := r.db.WithContext(ctx).First(&contract, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &contract, nil
}

// UpdateContract replaces the stored contract with the given full image
// under the same version guard as UpdateClient. UpdatedAt is persisted
// exactly as stamped on the image.
func (r *Repository) UpdateContract(ctx context.Context, contract *models.Contract) error {
	result := r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("id = ? AND version = ?", contract.ID, contract.Version).
		UpdateColumns(map[string]interface{}{
			"start_date": contract.StartDate,
			"end_date":   contract.EndDate,
			"cost":       contract.Cost,
			"client_id":  contract.ClientID,
			"updated_at": contract.UpdatedAt,
			"version":    contract.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.staleOrMissing(ctx, &models.Contract{}, contract.ID)
	}
	contract.Version++
	return nil
}

func (r *Repository) DeleteContract(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Contract{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// ActiveContracts returns the client's contracts with end_date on or after
// activeOn, optionally narrowed to those last updated within [from, to].
// Nil bounds are simply not applied.
func (r *Repository) ActiveContracts(
	ctx context.Context,
	clientID uuid.UUID,
	activeOn time.Time,
	from, to *time.Time,
) ([]*models.Contract, error) {
	query := r.db.WithContext(ctx).
		Where("client_id = ? AND end_date >= ?", clientID, activeOn)
	if from != nil {
		query = query.Where("updated_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("updated_at <= ?", *to)
	}

	var contracts []*models.Contract
	if err := query.Order("updated_at").Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

// SumActiveContractCost sums the cost of the client's contracts with
// end_date on or after activeOn. It returns nil when no contract matches;
// the zero default belongs to the caller.
func (r *Repository) SumActiveContractCost(
	ctx context.Context,
	clientID uuid.UUID,
	activeOn time.Time,
) (*float64, error) {
	var total sql.NullFloat64
	err := r.db.WithContext(ctx).Model(&models.Contract{}).
		Select("SUM(cost)").
		Where("client_id = ? AND end_date >= ?", clientID, activeOn).
		Scan(&total).Error
	if err != nil {
		return nil, err
	}
	if !total.Valid {
		return nil, nil
	}
	return &total.Float64, nil
}

// ContractIDsByClient lists the ids of all contracts referencing the client.
func (r *Repository) ContractIDsByClient(ctx context.Context, clientID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("client_id = ?", clientID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DetachContractsByClient nulls the client reference on all contracts that
// still point at the client. Idempotent: re-running matches nothing.
func (r *Repository) DetachContractsByClient(ctx context.Context, clientID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("client_id = ?", clientID).
		UpdateColumn("client_id", nil).Error
}

// CloseContracts sets end_date on the given contracts. Idempotent: setting
// the same date twice is safe.
func (r *Repository) CloseContracts(ctx context.Context, ids []uuid.UUID, endDate time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("id IN ?", ids).
		UpdateColumn("end_date", endDate).Error
}

func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// staleOrMissing disambiguates a zero-row guarded update: the row either
// never existed (ErrNotFound) or exists at a different version
// (ErrVersionConflict).
func (r *Repository) staleOrMissing(ctx context.Context, model interface{}, id uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return e.ErrNotFound
	}
	return e.ErrVersionConflict
}
