package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	e "github.com/gartstein/crm/internal/crm/errors"
	"github.com/gartstein/crm/internal/crm/events"
	"github.com/gartstein/crm/internal/crm/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContractService provides methods to manage individual contracts.
type ContractService struct {
	repo     Repository
	producer EventProducer
	logger   *zap.Logger
}

// NewContractService constructs a ContractService with a repository,
// an event producer, and a logger.
func NewContractService(repo Repository, producer EventProducer, logger *zap.Logger) *ContractService {
	return &ContractService{
		repo:     repo,
		producer: producer,
		logger:   logger.Named("contract_service"),
	}
}

// GetContract retrieves a Contract by ID, returning an error if not found.
func (s *ContractService) GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	contract, err := s.repo.GetContract(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return contract, nil
}

// CreateContract adds a new Contract owned by an existing client.
// StartDate defaults to today when the draft omits it; UpdatedAt is
// stamped by the system regardless of caller input.
func (s *ContractService) CreateContract(ctx context.Context, clientID uuid.UUID, contract *models.Contract) (*models.Contract, error) {
	if contract.Cost < 0 {
		return nil, fmt.Errorf("%w: cost must not be negative", e.ErrInvalidInput)
	}

	if _, err := s.repo.GetClient(ctx, clientID); err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get client for contract: %w", err)
	}

	contract.ID = uuid.New()
	contract.ClientID = &clientID
	if contract.StartDate.IsZero() {
		contract.StartDate = today()
	}
	contract.UpdatedAt = time.Now().UTC()

	if err := s.repo.CreateContract(ctx, contract); err != nil {
		return nil, fmt.Errorf("failed to create contract: %w", err)
	}
	go func() {
		s.producer.Produce(events.ContractCreated, contract.ID.String(), contract)
	}()
	return contract, nil
}

// UpdateContract merges the non-nil patch fields onto the stored contract
// and persists it under the optimistic version check. UpdatedAt is
// re-stamped on every successful update, even when no business field
// changed.
func (s *ContractService) UpdateContract(ctx context.Context, update *models.ContractUpdate) (*models.Contract, error) {
	if update.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: invalid contract ID", e.ErrInvalidInput)
	}
	if update.Cost != nil && *update.Cost < 0 {
		return nil, fmt.Errorf("%w: cost must not be negative", e.ErrInvalidInput)
	}

	existing, err := s.repo.GetContract(ctx, update.ID)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get contract for update: %w", err)
	}

	merged := update.Merge(*existing)
	merged.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateContract(ctx, &merged); err != nil {
		if errors.Is(err, e.ErrNotFound) || errors.Is(err, e.ErrVersionConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update contract: %w", err)
	}

	go func() {
		s.producer.Produce(events.ContractUpdated, merged.ID.String(), &merged)
	}()
	return &merged, nil
}

// DeleteContract removes a Contract by ID. Contracts have no dependents,
// so there is nothing to cascade.
func (s *ContractService) DeleteContract(ctx context.Context, id uuid.UUID) error {
	contract, err := s.repo.GetContract(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to get contract for deletion: %w", err)
	}

	if err := s.repo.DeleteContract(ctx, id); err != nil {
		return fmt.Errorf("failed to delete contract: %w", err)
	}

	go func() {
		s.producer.Produce(events.ContractDeleted, id.String(), contract)
	}()

	return nil
}
