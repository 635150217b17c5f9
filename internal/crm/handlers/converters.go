package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	e "github.com/gartstein/crm/internal/crm/errors"
	"github.com/gartstein/crm/internal/crm/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// dateLayout is the wire format for calendar dates.
const dateLayout = "2006-01-02"

// CreateClientRequest is the JSON body for creating a client.
type CreateClientRequest struct {
	Type              string  `json:"type" binding:"required"`
	Name              string  `json:"name" binding:"required"`
	Phone             string  `json:"phone"`
	Email             string  `json:"email" binding:"omitempty,email"`
	Birthday          *string `json:"birthday"`
	CompanyIdentifier string  `json:"companyIdentifier"`
}

// UpdateClientRequest is the JSON body for patching a client.
// Omitted fields are left unchanged.
type UpdateClientRequest struct {
	Type              *string `json:"type"`
	Name              *string `json:"name"`
	Phone             *string `json:"phone"`
	Email             *string `json:"email" binding:"omitempty,email"`
	Birthday          *string `json:"birthday"`
	CompanyIdentifier *string `json:"companyIdentifier"`
}

// ClientResponse is the public projection of a client.
type ClientResponse struct {
	ID                string  `json:"id"`
	Type              string  `json:"type"`
	Name              string  `json:"name"`
	Phone             string  `json:"phone,omitempty"`
	Email             string  `json:"email,omitempty"`
	Birthday          *string `json:"birthday,omitempty"`
	CompanyIdentifier string  `json:"companyIdentifier,omitempty"`
}

// CreateContractRequest is the JSON body for creating a contract.
// Cost is a pointer so that an explicit zero is distinguishable from an
// omitted field.
type CreateContractRequest struct {
	StartDate *string  `json:"startDate"`
	EndDate   *string  `json:"endDate"`
	Cost      *float64 `json:"cost" binding:"required"`
}

// UpdateContractRequest is the JSON body for patching a contract.
type UpdateContractRequest struct {
	StartDate *string  `json:"startDate"`
	EndDate   *string  `json:"endDate"`
	Cost      *float64 `json:"cost"`
}

// ContractResponse is the wire shape of a contract, optionally carrying
// the owning client's projection.
type ContractResponse struct {
	ID        string          `json:"id"`
	StartDate string          `json:"startDate"`
	EndDate   *string         `json:"endDate,omitempty"`
	Cost      float64         `json:"cost"`
	Client    *ClientResponse `json:"client,omitempty"`
}

// IDResponse carries the id of a freshly created entity.
type IDResponse struct {
	ID string `json:"id"`
}

func parseDate(value string) (time.Time, error) {
	parsed, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected %s", value, dateLayout)
	}
	return parsed, nil
}

func parseOptionalDate(value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	parsed, err := parseDate(*value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseDateQuery reads an optional YYYY-MM-DD query parameter.
func parseDateQuery(c *gin.Context, name string) (*time.Time, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	parsed, err := parseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("query parameter %q: %w", name, err)
	}
	return &parsed, nil
}

func requestToClient(req *CreateClientRequest) (*models.Client, error) {
	birthday, err := parseOptionalDate(req.Birthday)
	if err != nil {
		return nil, err
	}
	return &models.Client{
		Type:              models.ClientType(req.Type),
		Name:              req.Name,
		Phone:             req.Phone,
		Email:             req.Email,
		Birthday:          birthday,
		CompanyIdentifier: req.CompanyIdentifier,
	}, nil
}

func requestToClientUpdate(req *UpdateClientRequest, id uuid.UUID) (*models.ClientUpdate, error) {
	birthday, err := parseOptionalDate(req.Birthday)
	if err != nil {
		return nil, err
	}
	update := &models.ClientUpdate{
		ID:                id,
		Name:              req.Name,
		Phone:             req.Phone,
		Email:             req.Email,
		Birthday:          birthday,
		CompanyIdentifier: req.CompanyIdentifier,
	}
	if req.Type != nil {
		clientType := models.ClientType(*req.Type)
		update.Type = &clientType
	}
	return update, nil
}

func requestToContract(req *CreateContractRequest) (*models.Contract, error) {
	startDate, err := parseOptionalDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	endDate, err := parseOptionalDate(req.EndDate)
	if err != nil {
		return nil, err
	}
	contract := &models.Contract{
		EndDate: endDate,
		Cost:    *req.Cost,
	}
	if startDate != nil {
		contract.StartDate = *startDate
	}
	return contract, nil
}

func requestToContractUpdate(req *UpdateContractRequest, id uuid.UUID) (*models.ContractUpdate, error) {
	startDate, err := parseOptionalDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	endDate, err := parseOptionalDate(req.EndDate)
	if err != nil {
		return nil, err
	}
	return &models.ContractUpdate{
		ID:        id,
		StartDate: startDate,
		EndDate:   endDate,
		Cost:      req.Cost,
	}, nil
}

func clientToResponse(client *models.Client) *ClientResponse {
	resp := &ClientResponse{
		ID:                client.ID.String(),
		Type:              string(client.Type),
		Name:              client.Name,
		Phone:             client.Phone,
		Email:             client.Email,
		CompanyIdentifier: client.CompanyIdentifier,
	}
	if client.Birthday != nil {
		formatted := client.Birthday.Format(dateLayout)
		resp.Birthday = &formatted
	}
	return resp
}

func contractToResponse(contract *models.Contract, client *models.Client) *ContractResponse {
	resp := &ContractResponse{
		ID:        contract.ID.String(),
		StartDate: contract.StartDate.Format(dateLayout),
		Cost:      contract.Cost,
	}
	if contract.EndDate != nil {
		formatted := contract.EndDate.Format(dateLayout)
		resp.EndDate = &formatted
	}
	if client != nil {
		resp.Client = clientToResponse(client)
	}
	return resp
}

// writeServiceError maps domain or repository errors to HTTP responses.
func writeServiceError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, e.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, e.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, e.ErrDuplicateName):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, e.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, e.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logger.Error("Internal server error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
