// Package controller implements the core business logic (service layer)
// for managing Client and Contract entities: validation, the
// active-contract query engine, lifecycle coordination including the
// client-delete cascade, and event production.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	e "github.com/gartstein/crm/internal/crm/errors"
	"github.com/gartstein/crm/internal/crm/events"
	"github.com/gartstein/crm/internal/crm/models"
	"github.com/gartstein/crm/internal/crm/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventProducer interface {
	Produce(eventType events.EventType, key string, payload interface{})
}

// Repository defines the storage interface for Client and Contract documents.
type Repository interface {
	CreateClient(ctx context.Context, client *models.Client) error
	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	UpdateClient(ctx context.Context, client *models.Client) error
	DeleteClient(ctx context.Context, id uuid.UUID) error
	ClientExistsByName(ctx context.Context, name string) (bool, error)
	CreateContract(ctx context.Context, contract *models.Contract) error
	GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	UpdateContract(ctx context.Context, contract *models.Contract) error
	DeleteContract(ctx context.Context, id uuid.UUID) error
	ActiveContracts(ctx context.Context, clientID uuid.UUID, activeOn time.Time, from, to *time.Time) ([]*models.Contract, error)
	SumActiveContractCost(ctx context.Context, clientID uuid.UUID, activeOn time.Time) (*float64, error)
	ContractIDsByClient(ctx context.Context, clientID uuid.UUID) ([]uuid.UUID, error)
	DetachContractsByClient(ctx context.Context, clientID uuid.UUID) error
	CloseContracts(ctx context.Context, ids []uuid.UUID, endDate time.Time) error
	Close() error
}

// ClientService provides methods to manage clients and to query their
// active contracts.
type ClientService struct {
	repo     Repository
	producer EventProducer
	logger   *zap.Logger
}

// NewClientService constructs a ClientService with a repository,
// an event producer, and a logger.
func NewClientService(repo Repository, producer EventProducer, logger *zap.Logger) *ClientService {
	return &ClientService{
		repo:     repo,
		producer: producer,
		logger:   logger.Named("client_service"),
	}
}

// GetClient retrieves a Client by ID, returning an error if not found.
func (s *ClientService) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	client, err := s.repo.GetClient(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return client, nil
}

// CreateClient adds a new Client after validating the full image,
// ensures uniqueness by checking the name, and triggers an event.
func (s *ClientService) CreateClient(ctx context.Context, client *models.Client) (*models.Client, error) {
	if err := validate(client); err != nil {
		return nil, err
	}

	exists, err := s.repo.ClientExistsByName(ctx, client.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check name existence: %w", err)
	}
	if exists {
		return nil, e.ErrDuplicateName
	}

	client.ID = uuid.New()
	if err := s.repo.CreateClient(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	go func() {
		s.producer.Produce(events.ClientCreated, client.ID.String(), client)
	}()
	return client, nil
}

// UpdateClient merges the non-nil patch fields onto the stored client,
// re-validates the merged image, and persists it under the optimistic
// version check.
func (s *ClientService) UpdateClient(ctx context.Context, update *models.ClientUpdate) (*models.Client, error) {
	if update.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: invalid client ID", e.ErrInvalidInput)
	}

	existing, err := s.repo.GetClient(ctx, update.ID)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get client for update: %w", err)
	}

	merged := update.Merge(*existing)
	if err := validate(&merged); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateClient(ctx, &merged); err != nil {
		if errors.Is(err, e.ErrNotFound) || errors.Is(err, e.ErrVersionConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update client: %w", err)
	}

	go func() {
		s.producer.Produce(events.ClientUpdated, merged.ID.String(), &merged)
	}()
	return &merged, nil
}

// DeleteClient removes a Client and then detaches and closes out its
// contracts. The two compensating writes run after the delete, in order:
// the contract set is captured by client id before anything is removed,
// the client reference is nulled, and the captured contracts get
// endDate = today. The delete is reported successful once the client
// document is gone; cascade failures are logged, never swallowed, and
// both steps stay idempotent so they can be re-run.
func (s *ClientService) DeleteClient(ctx context.Context, id uuid.UUID) error {
	client, err := s.repo.GetClient(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to get client for deletion: %w", err)
	}

	contractIDs, err := s.repo.ContractIDsByClient(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list contracts for deletion: %w", err)
	}

	if err := s.repo.DeleteClient(ctx, id); err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}

	if err := s.repo.DetachContractsByClient(ctx, id); err != nil {
		s.logger.Error("Client deleted but contract detach failed; re-run to repair",
			zap.Error(err),
			zap.String("client_id", id.String()),
		)
	}
	if err := s.repo.CloseContracts(ctx, contractIDs, today()); err != nil {
		s.logger.Error("Client deleted but contract close-out failed; re-run to repair",
			zap.Error(err),
			zap.String("client_id", id.String()),
		)
	}

	go func() {
		s.producer.Produce(events.ClientDeleted, id.String(), client)
	}()

	return nil
}

// ActiveContracts returns the client's contracts that are active as of
// today, optionally narrowed to those last updated within the [from, to]
// calendar-day window. Each result is joined with the owning client's
// public projection.
func (s *ClientService) ActiveContracts(
	ctx context.Context,
	clientID uuid.UUID,
	from, to *time.Time,
) ([]*models.EnrichedContract, error) {
	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	var fromBound, toBound *time.Time
	if from != nil {
		b := startOfDay(*from)
		fromBound = &b
	}
	if to != nil {
		// Inclusive to the last second of the day.
		b := startOfDay(*to).AddDate(0, 0, 1).Add(-time.Second)
		toBound = &b
	}
	if fromBound != nil && toBound != nil && fromBound.After(*toBound) {
		return nil, fmt.Errorf("%w: 'from' date is after 'to' date", e.ErrInvalidInput)
	}

	contracts, err := s.repo.ActiveContracts(ctx, clientID, today(), fromBound, toBound)
	if err != nil {
		return nil, fmt.Errorf("failed to query active contracts: %w", err)
	}

	enriched := make([]*models.EnrichedContract, 0, len(contracts))
	for _, contract := range contracts {
		enriched = append(enriched, &models.EnrichedContract{Contract: contract, Client: client})
	}
	return enriched, nil
}

// TotalActiveCost sums the cost of the client's contracts active as of
// today. An empty active set yields zero, not an absence.
func (s *ClientService) TotalActiveCost(ctx context.Context, clientID uuid.UUID) (float64, error) {
	if _, err := s.GetClient(ctx, clientID); err != nil {
		return 0, err
	}

	total, err := s.repo.SumActiveContractCost(ctx, clientID, today())
	if err != nil {
		return 0, fmt.Errorf("failed to sum active contracts: %w", err)
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// validate wraps the validation engine's field errors into ErrInvalidInput.
func validate(client *models.Client) error {
	fieldErrs := validation.ValidateClient(client)
	if len(fieldErrs) == 0 {
		return nil
	}
	reasons := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		reasons = append(reasons, fe.Error())
	}
	return fmt.Errorf("%w: %s", e.ErrInvalidInput, strings.Join(reasons, "; "))
}

// startOfDay truncates an instant to the start of its UTC calendar day.
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func today() time.Time {
	return startOfDay(time.Now())
}
