package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surajvsk/ipo-subbrocker/models"
	"github.com/surajvsk/ipo-subbrocker/shared"
)

type recordingClients struct {
	filters []models.ClientFilter
	created []*models.Client
	scopes  []string
}

func (r *recordingClients) FetchClients(_ context.Context, filter models.ClientFilter) ([]models.Client, error) {
	r.filters = append(r.filters, filter)
	return []models.Client{{TradingCode: "C1", BrokerCode: "B1"}}, nil
}

func (r *recordingClients) CreateClient(_ context.Context, client *models.Client) (*models.Client, error) {
	r.created = append(r.created, client)
	return client, nil
}

func (r *recordingClients) UpdateClient(_ context.Context, brokerCode string, _ uuid.UUID, client *models.Client) (*models.Client, error) {
	r.scopes = append(r.scopes, brokerCode)
	return client, nil
}

func (r *recordingClients) DeleteClient(_ context.Context, brokerCode string, id uuid.UUID) error {
	r.scopes = append(r.scopes, brokerCode)
	return shared.NewNotFoundError("ClientService", "DeleteClient", "client", id.String())
}

func newClientApp(store *recordingClients) *fiber.App {
	handler := NewClientHandler(store)
	app := fiber.New()
	group := app.Group("/clients", RequireAuth(testTokens))
	group.Get("", handler.GetClients)
	group.Post("", handler.CreateClient)
	group.Put("/:id", handler.UpdateClient)
	group.Delete("/:id", handler.DeleteClient)
	return app
}

func clientBody() fiber.Map {
	return fiber.Map{
		"trading_code": "C9",
		"name":         "Nine",
		"pan":          "ABCDE1234F",
		"email":        "nine@example.com",
	}
}

func TestGetClientsScopesSubBrokers(t *testing.T) {
	store := &recordingClients{}
	app := newClientApp(store)

	resp, _ := doRequest(t, app, http.MethodGet, "/clients?brokerCode=B2&tradingCode=C1", "bidder", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = doRequest(t, app, http.MethodGet, "/clients?brokerCode=B2", "admin", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Len(t, store.filters, 2)
	assert.Equal(t, models.ClientFilter{BrokerCode: "B1", TradingCode: "C1"}, store.filters[0])
	assert.Equal(t, models.ClientFilter{BrokerCode: "B2"}, store.filters[1])
}

func TestCreateClientOwnership(t *testing.T) {
	store := &recordingClients{}
	app := newClientApp(store)

	body := clientBody()
	body["broker_code"] = "B2"
	resp, _ := doRequest(t, app, http.MethodPost, "/clients", "bidder", body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "B1", store.created[0].BrokerCode)

	resp, respBody := doRequest(t, app, http.MethodPost, "/clients", "admin", clientBody())
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "broker_code", respBody.Errors[0].Field)

	resp, _ = doRequest(t, app, http.MethodPost, "/clients", "admin", body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "B2", store.created[1].BrokerCode)
}

func TestCreateClientRejectsBadPAN(t *testing.T) {
	app := newClientApp(&recordingClients{})

	body := clientBody()
	body["pan"] = "SHORT"
	resp, respBody := doRequest(t, app, http.MethodPost, "/clients", "bidder", body)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	require.Len(t, respBody.Errors, 1)
	assert.Equal(t, "pan", respBody.Errors[0].Field)
	assert.Equal(t, "len", respBody.Errors[0].Code)
}

func TestUpdateAndDeleteClientUseScope(t *testing.T) {
	store := &recordingClients{}
	app := newClientApp(store)
	id := uuid.NewString()

	resp, _ := doRequest(t, app, http.MethodPut, "/clients/"+id, "bidder", clientBody())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodDelete, "/clients/"+id, "admin", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodDelete, "/clients/not-a-uuid", "admin", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, []string{"B1", ""}, store.scopes)
}

type memoryIPOs struct {
	ipos map[uuid.UUID]models.IPO
}

func (m *memoryIPOs) FetchIPO(_ context.Context, id uuid.UUID) (*models.IPO, error) {
	ipo, ok := m.ipos[id]
	if !ok {
		return nil, nil
	}
	return &ipo, nil
}

func (m *memoryIPOs) FetchIPOs(_ context.Context, filter models.IPOFilter) ([]models.IPO, error) {
	var out []models.IPO
	for _, ipo := range m.ipos {
		if filter.Category == "" || ipo.Category == filter.Category {
			out = append(out, ipo)
		}
	}
	return out, nil
}

func (m *memoryIPOs) CreateIPO(_ context.Context, ipo *models.IPO) (*models.IPO, error) {
	ipo.ID = uuid.New()
	m.ipos[ipo.ID] = *ipo
	return ipo, nil
}

func (m *memoryIPOs) UpdateIPO(_ context.Context, id uuid.UUID, ipo *models.IPO) (*models.IPO, error) {
	if _, ok := m.ipos[id]; !ok {
		return nil, shared.NewNotFoundError("IPOService", "UpdateIPO", "IPO", id.String())
	}
	ipo.ID = id
	m.ipos[id] = *ipo
	return ipo, nil
}

func (m *memoryIPOs) DeleteIPO(_ context.Context, id uuid.UUID) error {
	return shared.NewConflictError("IPOService", "DeleteIPO", "IPO has bids", nil)
}

func TestIPOHandlerCatalog(t *testing.T) {
	store := &memoryIPOs{ipos: make(map[uuid.UUID]models.IPO)}
	handler := NewIPOHandler(store)
	app := fiber.New()
	app.Get("/ipos", handler.GetIPOs)
	app.Get("/ipos/:id", handler.GetIPOByID)
	app.Post("/ipos", handler.CreateIPO)
	app.Put("/ipos/:id", handler.UpdateIPO)
	app.Delete("/ipos/:id", handler.DeleteIPO)

	request := fiber.Map{
		"name":           "Acme Ltd",
		"category":       "SME",
		"status":         "Upcoming",
		"price_band_min": "100",
		"price_band_max": "110",
		"lot_size":       1200,
		"retail_max_lot": 1,
		"hni_max_amount": "500000",
	}
	resp, body := doRequest(t, app, http.MethodPost, "/ipos", "", request)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created models.IPO
	require.NoError(t, json.Unmarshal(body.Data, &created))
	assert.Equal(t, models.IPOCategorySME, created.Category)

	resp, body = doRequest(t, app, http.MethodGet, "/ipos?category=SME", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, body.Count)

	resp, _ = doRequest(t, app, http.MethodGet, "/ipos?status=Open", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodGet, "/ipos/"+uuid.NewString(), "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	request["category"] = "Equity"
	resp, body = doRequest(t, app, http.MethodPut, "/ipos/"+created.ID.String(), "", request)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "category", body.Errors[0].Field)
	assert.Equal(t, "oneof", body.Errors[0].Code)

	resp, _ = doRequest(t, app, http.MethodDelete, "/ipos/"+created.ID.String(), "", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}
