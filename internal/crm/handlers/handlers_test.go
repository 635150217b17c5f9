package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	e "github.com/gartstein/crm/internal/crm/errors"
	"github.com/gartstein/crm/internal/crm/models"
	"github.com/gartstein/crm/internal/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockClientController implements ClientController for testing
type MockClientController struct {
	getClient       func(context.Context, uuid.UUID) (*models.Client, error)
	createClient    func(context.Context, *models.Client) (*models.Client, error)
	updateClient    func(context.Context, *models.ClientUpdate) (*models.Client, error)
	deleteClient    func(context.Context, uuid.UUID) error
	activeContracts func(context.Context, uuid.UUID, *time.Time, *time.Time) ([]*models.EnrichedContract, error)
	totalActiveCost func(context.Context, uuid.UUID) (float64, error)
}

func (m *MockClientController) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	return m.getClient(ctx, id)
}

func (m *MockClientController) CreateClient(ctx context.Context, c *models.Client) (*models.Client, error) {
	return m.createClient(ctx, c)
}

func (m *MockClientController) UpdateClient(ctx context.Context, u *models.ClientUpdate) (*models.Client, error) {
	return m.updateClient(ctx, u)
}

func (m *MockClientController) DeleteClient(ctx context.Context, id uuid.UUID) error {
	return m.deleteClient(ctx, id)
}

func (m *MockClientController) ActiveContracts(ctx context.Context, id uuid.UUID, from, to *time.Time) ([]*models.EnrichedContract, error) {
	return m.activeContracts(ctx, id, from, to)
}

func (m *MockClientController) TotalActiveCost(ctx context.Context, id uuid.UUID) (float64, error) {
	return m.totalActiveCost(ctx, id)
}

// MockContractController implements ContractController for testing
type MockContractController struct {
	createContract func(context.Context, uuid.UUID, *models.Contract) (*models.Contract, error)
	updateContract func(context.Context, *models.ContractUpdate) (*models.Contract, error)
	deleteContract func(context.Context, uuid.UUID) error
}

func (m *MockContractController) CreateContract(ctx context.Context, clientID uuid.UUID, c *models.Contract) (*models.Contract, error) {
	return m.createContract(ctx, clientID, c)
}

func (m *MockContractController) UpdateContract(ctx context.Context, u *models.ContractUpdate) (*models.Contract, error) {
	return m.updateContract(ctx, u)
}

func (m *MockContractController) DeleteContract(ctx context.Context, id uuid.UUID) error {
	return m.deleteContract(ctx, id)
}

func setupRouter(t *testing.T, clientCtrl ClientController, contractCtrl ContractController) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	return NewRouter(
		NewClientHandler(clientCtrl, logger),
		NewContractHandler(contractCtrl, logger),
	)
}

func doRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestClientHandler_Get(t *testing.T) {
	testID := uuid.New()
	birthday := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	client := &models.Client{
		ID:       testID,
		Type:     models.Person,
		Name:     "John Doe",
		Birthday: &birthday,
	}

	router := setupRouter(t, &MockClientController{
		getClient: func(_ context.Context, id uuid.UUID) (*models.Client, error) {
			if id == testID {
				return client, nil
			}
			return nil, e.ErrNotFound
		},
	}, &MockContractController{})

	t.Run("found", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/clients/"+testID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ClientResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, testID.String(), resp.ID)
		assert.Equal(t, "PERSON", resp.Type)
		require.NotNil(t, resp.Birthday)
		assert.Equal(t, "1990-01-01", *resp.Birthday)
	})

	t.Run("not found", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/clients/"+uuid.New().String(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/clients/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestClientHandler_Create(t *testing.T) {
	testID := uuid.New()

	router := setupRouter(t, &MockClientController{
		createClient: func(_ context.Context, c *models.Client) (*models.Client, error) {
			c.ID = testID
			return c, nil
		},
	}, &MockContractController{})

	t.Run("created", func(t *testing.T) {
		rec := doRequest(router, http.MethodPost, "/api/clients", gin.H{
			"type":     "PERSON",
			"name":     "John Doe",
			"email":    "john@example.com",
			"birthday": "1990-01-01",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp IDResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, testID.String(), resp.ID)
	})

	t.Run("missing required fields", func(t *testing.T) {
		rec := doRequest(router, http.MethodPost, "/api/clients", gin.H{"name": "No Type"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed birthday", func(t *testing.T) {
		rec := doRequest(router, http.MethodPost, "/api/clients", gin.H{
			"type":     "PERSON",
			"name":     "John Doe",
			"birthday": "01.01.1990",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validation failure maps to 400", func(t *testing.T) {
		router := setupRouter(t, &MockClientController{
			createClient: func(_ context.Context, _ *models.Client) (*models.Client, error) {
				return nil, e.ErrInvalidInput
			},
		}, &MockContractController{})

		rec := doRequest(router, http.MethodPost, "/api/clients", gin.H{
			"type": "COMPANY",
			"name": "Acme AG",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate name maps to 409", func(t *testing.T) {
		router := setupRouter(t, &MockClientController{
			createClient: func(_ context.Context, _ *models.Client) (*models.Client, error) {
				return nil, e.ErrDuplicateName
			},
		}, &MockContractController{})

		rec := doRequest(router, http.MethodPost, "/api/clients", gin.H{
			"type": "PERSON",
			"name": "Taken",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestClientHandler_Update(t *testing.T) {
	testID := uuid.New()

	t.Run("patched fields forwarded", func(t *testing.T) {
		var captured *models.ClientUpdate
		router := setupRouter(t, &MockClientController{
			updateClient: func(_ context.Context, u *models.ClientUpdate) (*models.Client, error) {
				captured = u
				return &models.Client{ID: u.ID, Name: *u.Name}, nil
			},
		}, &MockContractController{})

		rec := doRequest(router, http.MethodPut, "/api/clients/"+testID.String(), gin.H{
			"name": "New Name",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, captured)
		assert.Equal(t, testID, captured.ID)
		require.NotNil(t, captured.Name)
		assert.Equal(t, "New Name", *captured.Name)
		assert.Nil(t, captured.Email, "omitted fields must stay nil in the patch")
		assert.Nil(t, captured.Birthday)
	})

	t.Run("version conflict maps to 409", func(t *testing.T) {
		router := setupRouter(t, &MockClientController{
			updateClient: func(_ context.Context, _ *models.ClientUpdate) (*models.Client, error) {
				return nil, e.ErrVersionConflict
			},
		}, &MockContractController{})

		rec := doRequest(router, http.MethodPut, "/api/clients/"+testID.String(), gin.H{
			"name": "Contested",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestClientHandler_Delete(t *testing.T) {
	testID := uuid.New()

	router := setupRouter(t, &MockClientController{
		deleteClient: func(_ context.Context, id uuid.UUID) error {
			if id == testID {
				return nil
			}
			return e.ErrNotFound
		},
	}, &MockContractController{})

	t.Run("deleted", func(t *testing.T) {
		rec := doRequest(router, http.MethodDelete, "/api/clients/"+testID.String(), nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("not found", func(t *testing.T) {
		rec := doRequest(router, http.MethodDelete, "/api/clients/"+uuid.New().String(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestClientHandler_ActiveContracts(t *testing.T) {
	testID := uuid.New()
	client := &models.Client{ID: testID, Type: models.Person, Name: "John Doe"}
	contract := &models.Contract{
		ID:        uuid.New(),
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   utils.Ptr(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
		Cost:      150,
		ClientID:  &testID,
	}

	t.Run("dates parsed and forwarded", func(t *testing.T) {
		var gotFrom, gotTo *time.Time
		router := setupRouter(t, &MockClientController{
			activeContracts: func(_ context.Context, _ uuid.UUID, from, to *time.Time) ([]*models.EnrichedContract, error) {
				gotFrom, gotTo = from, to
				return []*models.EnrichedContract{{Contract: contract, Client: client}}, nil
			},
		}, &MockContractController{})

		rec := doRequest(router, http.MethodGet,
			"/api/clients/"+testID.String()+"/contracts?from=2025-01-01&to=2025-12-31", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		require.NotNil(t, gotFrom)
		assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *gotFrom)
		require.NotNil(t, gotTo)
		assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), *gotTo)

		var resp []*ContractResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp, 1)
		assert.Equal(t, contract.ID.String(), resp[0].ID)
		require.NotNil(t, resp[0].Client)
		assert.Equal(t, testID.String(), resp[0].Client.ID)
	})

	t.Run("no window returns all active", func(t *testing.T) {
		router := setupRouter(t, &MockClientController{
			activeContracts: func(_ context.Context, _ uuid.UUID, from, to *time.Time) ([]*models.EnrichedContract, error) {
				assert.Nil(t, from)
				assert.Nil(t, to)
				return nil, nil
			},
		}, &MockContractController{})

		rec := doRequest(router, http.MethodGet, "/api/clients/"+testID.String()+"/contracts", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("malformed date", func(t *testing.T) {
		router := setupRouter(t, &MockClientController{}, &MockContractController{})

		rec := doRequest(router, http.MethodGet,
			"/api/clients/"+testID.String()+"/contracts?from=31.12.2025", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("inverted window maps to 400", func(t *testing.T) {
		router := setupRouter(t, &MockClientController{
			activeContracts: func(_ context.Context, _ uuid.UUID, _, _ *time.Time) ([]*models.EnrichedContract, error) {
				return nil, e.ErrInvalidInput
			},
		}, &MockContractController{})

		rec := doRequest(router, http.MethodGet,
			"/api/clients/"+testID.String()+"/contracts?from=2025-12-31&to=2025-01-01", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestClientHandler_TotalActiveCost(t *testing.T) {
	testID := uuid.New()

	router := setupRouter(t, &MockClientController{
		totalActiveCost: func(_ context.Context, id uuid.UUID) (float64, error) {
			if id == testID {
				return 150.5, nil
			}
			return 0, e.ErrNotFound
		},
	}, &MockContractController{})

	t.Run("total returned", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/clients/"+testID.String()+"/contracts/total", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"total": 150.5}`, rec.Body.String())
	})

	t.Run("not found", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/clients/"+uuid.New().String()+"/contracts/total", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestContractHandler_Create(t *testing.T) {
	testID := uuid.New()
	clientID := uuid.New()

	t.Run("created", func(t *testing.T) {
		var gotClientID uuid.UUID
		var gotContract *models.Contract
		router := setupRouter(t, &MockClientController{}, &MockContractController{
			createContract: func(_ context.Context, cid uuid.UUID, c *models.Contract) (*models.Contract, error) {
				gotClientID = cid
				gotContract = c
				c.ID = testID
				return c, nil
			},
		})

		rec := doRequest(router, http.MethodPost, "/api/contracts?clientId="+clientID.String(), gin.H{
			"endDate": "2030-06-30",
			"cost":    99.5,
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		assert.Equal(t, clientID, gotClientID)
		assert.True(t, gotContract.StartDate.IsZero(), "omitted startDate must reach the service unset")
		require.NotNil(t, gotContract.EndDate)
		assert.Equal(t, 99.5, gotContract.Cost)

		var resp IDResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, testID.String(), resp.ID)
	})

	t.Run("missing clientId", func(t *testing.T) {
		router := setupRouter(t, &MockClientController{}, &MockContractController{})

		rec := doRequest(router, http.MethodPost, "/api/contracts", gin.H{"cost": 10})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing cost", func(t *testing.T) {
		router := setupRouter(t, &MockClientController{}, &MockContractController{})

		rec := doRequest(router, http.MethodPost, "/api/contracts?clientId="+clientID.String(), gin.H{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("owner not found maps to 404", func(t *testing.T) {
		router := setupRouter(t, &MockClientController{}, &MockContractController{
			createContract: func(_ context.Context, _ uuid.UUID, _ *models.Contract) (*models.Contract, error) {
				return nil, e.ErrNotFound
			},
		})

		rec := doRequest(router, http.MethodPost, "/api/contracts?clientId="+clientID.String(), gin.H{"cost": 10})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestContractHandler_Update(t *testing.T) {
	testID := uuid.New()

	t.Run("patched", func(t *testing.T) {
		var captured *models.ContractUpdate
		router := setupRouter(t, &MockClientController{}, &MockContractController{
			updateContract: func(_ context.Context, u *models.ContractUpdate) (*models.Contract, error) {
				captured = u
				return &models.Contract{ID: u.ID}, nil
			},
		})

		rec := doRequest(router, http.MethodPut, "/api/contracts/"+testID.String(), gin.H{
			"cost": 5,
		})
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, captured)
		require.NotNil(t, captured.Cost)
		assert.Equal(t, 5.0, *captured.Cost)
		assert.Nil(t, captured.StartDate)
		assert.Nil(t, captured.EndDate)
	})

	t.Run("not found", func(t *testing.T) {
		router := setupRouter(t, &MockClientController{}, &MockContractController{
			updateContract: func(_ context.Context, _ *models.ContractUpdate) (*models.Contract, error) {
				return nil, e.ErrNotFound
			},
		})

		rec := doRequest(router, http.MethodPut, "/api/contracts/"+testID.String(), gin.H{"cost": 5})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestContractHandler_Delete(t *testing.T) {
	testID := uuid.New()

	router := setupRouter(t, &MockClientController{}, &MockContractController{
		deleteContract: func(_ context.Context, id uuid.UUID) error {
			if id == testID {
				return nil
			}
			return e.ErrNotFound
		},
	})

	t.Run("deleted", func(t *testing.T) {
		rec := doRequest(router, http.MethodDelete, "/api/contracts/"+testID.String(), nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("not found", func(t *testing.T) {
		rec := doRequest(router, http.MethodDelete, "/api/contracts/"+uuid.New().String(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
