package handlers

import (
	"context"
	"net/http"

	"github.com/gartstein/crm/internal/crm/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContractController defines the business logic interface the contract
// endpoints invoke.
type ContractController interface {
	CreateContract(ctx context.Context, clientID uuid.UUID, contract *models.Contract) (*models.Contract, error)
	UpdateContract(ctx context.Context, update *models.ContractUpdate) (*models.Contract, error)
	DeleteContract(ctx context.Context, id uuid.UUID) error
}

// ContractHandler serves the /api/contracts endpoints.
type ContractHandler struct {
	service ContractController
	logger  *zap.Logger
}

// NewContractHandler constructs a ContractHandler with the given service and logger.
func NewContractHandler(service ContractController, logger *zap.Logger) *ContractHandler {
	return &ContractHandler{
		service: service,
		logger:  logger.Named("contract_handler"),
	}
}

// Create adds a new contract for the client given in the clientId query
// parameter and returns the contract id.
func (h *ContractHandler) Create(c *gin.Context) {
	clientID, err := uuid.Parse(c.Query("clientId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing clientId"})
		return
	}

	var req CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contract, err := requestToContract(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.service.CreateContract(c.Request.Context(), clientID, contract)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, IDResponse{ID: created.ID.String()})
}

// Update patches an existing contract. Omitted fields stay unchanged;
// the last-update timestamp is re-stamped either way.
func (h *ContractHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract ID"})
		return
	}

	var req UpdateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update, err := requestToContractUpdate(&req, id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.service.UpdateContract(c.Request.Context(), update); err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes a contract by id.
func (h *ContractHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract ID"})
		return
	}

	if err := h.service.DeleteContract(c.Request.Context(), id); err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
