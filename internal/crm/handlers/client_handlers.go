// Package handlers provides the HTTP surface for the CRM, bridging the
// transport layer and the business logic, translating between JSON
// payloads and domain models.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gartstein/crm/internal/crm/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClientController defines the business logic interface the client
// endpoints invoke.
type ClientController interface {
	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	CreateClient(ctx context.Context, client *models.Client) (*models.Client, error)
	UpdateClient(ctx context.Context, update *models.ClientUpdate) (*models.Client, error)
	DeleteClient(ctx context.Context, id uuid.UUID) error
	ActiveContracts(ctx context.Context, clientID uuid.UUID, from, to *time.Time) ([]*models.EnrichedContract, error)
	TotalActiveCost(ctx context.Context, clientID uuid.UUID) (float64, error)
}

// ClientHandler serves the /api/clients endpoints.
type ClientHandler struct {
	service ClientController
	logger  *zap.Logger
}

// NewClientHandler constructs a ClientHandler with the given service and logger.
func NewClientHandler(service ClientController, logger *zap.Logger) *ClientHandler {
	return &ClientHandler{
		service: service,
		logger:  logger.Named("client_handler"),
	}
}

// Get returns a client by id.
func (h *ClientHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client ID"})
		return
	}

	client, err := h.service.GetClient(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, clientToResponse(client))
}

// Create adds a new client and returns its id.
func (h *ClientHandler) Create(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := requestToClient(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.service.CreateClient(c.Request.Context(), client)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, IDResponse{ID: created.ID.String()})
}

// Update patches an existing client. Omitted fields stay unchanged.
func (h *ClientHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client ID"})
		return
	}

	var req UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update, err := requestToClientUpdate(&req, id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.service.UpdateClient(c.Request.Context(), update)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, clientToResponse(updated))
}

// Delete removes a client; its contracts survive detached and closed out.
func (h *ClientHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client ID"})
		return
	}

	if err := h.service.DeleteClient(c.Request.Context(), id); err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ActiveContracts lists the client's active contracts, optionally
// narrowed by from/to calendar dates on the last-update timestamp.
func (h *ClientHandler) ActiveContracts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client ID"})
		return
	}

	from, err := parseDateQuery(c, "from")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	to, err := parseDateQuery(c, "to")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contracts, err := h.service.ActiveContracts(c.Request.Context(), id, from, to)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	resp := make([]*ContractResponse, 0, len(contracts))
	for _, enriched := range contracts {
		resp = append(resp, contractToResponse(enriched.Contract, enriched.Client))
	}
	c.JSON(http.StatusOK, resp)
}

// TotalActiveCost returns the summed cost of the client's active contracts.
func (h *ClientHandler) TotalActiveCost(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client ID"})
		return
	}

	total, err := h.service.TotalActiveCost(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total})
}
