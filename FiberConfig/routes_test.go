package FiberConfig

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"FalconFreight/Access"
	"FalconFreight/Billing"
	"FalconFreight/Controllers"
	"FalconFreight/CronJobs"
	"FalconFreight/Fuel"
	"FalconFreight/Models"
	"FalconFreight/Stores"
	"FalconFreight/Stores/storetest"
	"FalconFreight/Trips"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	app   *fiber.App
	store *Stores.Store
	fleet storetest.Fleet
	// bearer tokens by role
	tokens map[Models.Role]string
	users  map[Models.Role]Models.User
}

func newTestServer(t *testing.T, health func(context.Context) error) *testServer {
	t.Helper()
	db := storetest.Open(t)
	store := Stores.New(db)
	fleet := storetest.SeedFleet(t, db)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweepClock := func() time.Time { return time.Date(2024, 8, 15, 9, 0, 0, 0, time.UTC) }

	resolver := Access.NewJWTResolver("routes-test-secret", time.Hour, store)
	sweeper := Billing.NewSweeper(store, Billing.WithLogger(quiet), Billing.WithClock(sweepClock))
	handlers := Handlers{
		Auth:    Controllers.NewAuthHandler(store, resolver),
		Trips:   Controllers.NewTripHandler(Trips.NewService(store, store, Trips.WithLogger(quiet))),
		Fuel:    Controllers.NewFuelHandler(Fuel.NewService(store, store, Fuel.WithLogger(quiet))),
		Billing: Controllers.NewBillingHandler(CronJobs.NewBillingSweeper(sweeper, time.Hour, false, CronJobs.WithLogger(quiet)), store),
	}

	s := &testServer{
		app:    New(handlers, resolver, Options{Logger: quiet, Health: health}),
		store:  store,
		fleet:  fleet,
		tokens: map[Models.Role]string{},
		users:  map[Models.Role]Models.User{},
	}
	for _, role := range []Models.Role{Models.RoleAdmin, Models.RoleDispatcher, Models.RoleDriver} {
		user, err := store.CreateUser(context.Background(), string(role), string(role)+"@falcon.test", "secret123", role)
		require.NoError(t, err)
		token, _, err := resolver.Issue(user)
		require.NoError(t, err)
		s.users[role] = user
		s.tokens[role] = token
	}
	return s
}

func (s *testServer) do(t *testing.T, role Models.Role, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := s.tokens[role]; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decodeTrip(t *testing.T, env envelope) Models.Trip {
	t.Helper()
	var trip Models.Trip
	require.NoError(t, json.Unmarshal(env.Data, &trip))
	return trip
}

// netPayable returns the trip's net_payable as sent, or "" when it is null.
func netPayable(t *testing.T, env envelope) string {
	t.Helper()
	var fields struct {
		NetPayable *decimal.Decimal `json:"net_payable"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &fields))
	if fields.NetPayable == nil {
		return ""
	}
	return fields.NetPayable.String()
}

func (s *testServer) createTrip(t *testing.T) Models.Trip {
	t.Helper()
	status, env := s.do(t, Models.RoleDispatcher, http.MethodPost, "/api/trips", fiber.Map{
		"origin":           "Rosario",
		"destination":      "Bahia Blanca",
		"date":             "01/06/2024",
		"truck_id":         s.fleet.Truck.ID,
		"client_id":        s.fleet.Client.ID,
		"price_per_weight": "12.35",
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	return decodeTrip(t, env)
}

func tripPath(id uint, suffix string) string {
	return "/api/trips/" + strconv.FormatUint(uint64(id), 10) + suffix
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)
	status, _ := s.do(t, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthReportsStoreFailure(t *testing.T) {
	s := newTestServer(t, func(context.Context) error { return errors.New("db down") })
	status, _ := s.do(t, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, nil)

	status, env := s.do(t, "", http.MethodPost, "/api/login", fiber.Map{
		"email": "ADMIN@falcon.test", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, status)
	var data struct {
		Token string      `json:"token"`
		User  Models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data.Token)
	assert.Equal(t, Models.RoleAdmin, data.User.Role)

	status, _ = s.do(t, "", http.MethodPost, "/api/login", fiber.Map{
		"email": "admin@falcon.test", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, "", http.MethodPost, "/api/login", fiber.Map{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLoginCookieAuthenticates(t *testing.T) {
	s := newTestServer(t, nil)
	raw, _ := json.Marshal(fiber.Map{"email": "driver@falcon.test", "password": "secret123"})
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var jwtCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "jwt" {
			jwtCookie = c
		}
	}
	require.NotNil(t, jwtCookie)
	assert.True(t, jwtCookie.HttpOnly)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(jwtCookie)
	resp, err = s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t, nil)
	status, env := s.do(t, "", http.MethodGet, "/api/trips", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Not Logged In.", env.Message)

	req := httptest.NewRequest(http.MethodGet, "/api/trips", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTripLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	trip := s.createTrip(t)
	assert.Equal(t, Models.TripPending, trip.State)
	assert.Equal(t, "2024-06-01", trip.Date)

	// drivers cannot create trips
	status, _ := s.do(t, Models.RoleDriver, http.MethodPost, "/api/trips", fiber.Map{
		"origin": "A", "destination": "B", "date": "2024-06-01", "truck_id": s.fleet.Truck.ID,
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, env := s.do(t, Models.RoleDriver, http.MethodPost, tripPath(trip.ID, "/take"), nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	taken := decodeTrip(t, env)
	assert.Equal(t, Models.TripInProgress, taken.State)
	require.NotNil(t, taken.DriverID)
	assert.Equal(t, s.users[Models.RoleDriver].ID, *taken.DriverID)
	assert.Empty(t, netPayable(t, env), "no amount before completion")

	status, _ = s.do(t, Models.RoleDriver, http.MethodPost, tripPath(trip.ID, "/take"), nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = s.do(t, Models.RoleDriver, http.MethodPost, tripPath(trip.ID, "/finalize"), fiber.Map{
		"distance": "-1", "fuel_consumed": "10",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = s.do(t, Models.RoleDriver, http.MethodPost, tripPath(trip.ID, "/finalize"), fiber.Map{
		"distance": "420.5", "fuel_consumed": "150", "cargo_weight": "30",
	})
	require.Equal(t, http.StatusOK, status, env.Error)
	done := decodeTrip(t, env)
	assert.Equal(t, Models.TripCompleted, done.State)
	require.NotNil(t, done.Amount)
	assert.True(t, decimal.RequireFromString("370.50").Equal(*done.Amount))
	assert.Equal(t, "370.5", netPayable(t, env))

	status, _ = s.do(t, Models.RoleDispatcher, http.MethodDelete, tripPath(trip.ID, ""), nil)
	assert.Equal(t, http.StatusConflict, status)

	status, env = s.do(t, Models.RoleAdmin, http.MethodPost, tripPath(trip.ID, "/credit-notes"), fiber.Map{
		"motive": "short delivery", "amount": "20.25",
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	assert.True(t, decimal.RequireFromString("20.25").Equal(decodeTrip(t, env).CreditNoteTotal))
	assert.Equal(t, "350.25", netPayable(t, env))

	status, env = s.do(t, Models.RoleAdmin, http.MethodGet, tripPath(trip.ID, ""), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decodeTrip(t, env).CreditNotes, 1)
}

func TestTripErrorsOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	status, _ := s.do(t, Models.RoleAdmin, http.MethodGet, "/api/trips/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, Models.RoleAdmin, http.MethodGet, "/api/trips/999", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, Models.RoleDispatcher, http.MethodPost, "/api/trips", fiber.Map{
		"destination": "B", "date": "2024-06-01", "truck_id": s.fleet.Truck.ID,
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, Models.RoleAdmin, http.MethodPost, "/api/trips/purge", fiber.Map{"before": "2024-01-01"})
	assert.Equal(t, http.StatusOK, status)

	trip := s.createTrip(t)
	status, _ = s.do(t, Models.RoleAdmin, http.MethodPost, tripPath(trip.ID, "/invoice"), fiber.Map{
		"invoice_status": "overdue",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, Models.RoleAdmin, http.MethodPost, tripPath(trip.ID, "/invoice"), fiber.Map{
		"invoice_status": "bogus",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminTakeMustNameDriver(t *testing.T) {
	s := newTestServer(t, nil)
	trip := s.createTrip(t)

	status, env := s.do(t, Models.RoleAdmin, http.MethodPost, tripPath(trip.ID, "/take"), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error, "driver_id")

	status, _ = s.do(t, Models.RoleAdmin, http.MethodPost, tripPath(trip.ID, "/take"), fiber.Map{
		"driver_id": s.users[Models.RoleDispatcher].ID,
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = s.do(t, Models.RoleAdmin, http.MethodPost, tripPath(trip.ID, "/take"), fiber.Map{
		"driver_id": s.users[Models.RoleDriver].ID,
	})
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Equal(t, s.users[Models.RoleDriver].ID, *decodeTrip(t, env).DriverID)
}

func TestTripListFilters(t *testing.T) {
	s := newTestServer(t, nil)
	first := s.createTrip(t)
	s.createTrip(t)

	status, _ := s.do(t, Models.RoleDriver, http.MethodPost, tripPath(first.ID, "/take"), nil)
	require.Equal(t, http.StatusOK, status)

	status, env := s.do(t, Models.RoleDispatcher, http.MethodGet, "/api/trips?state=pending", nil)
	require.Equal(t, http.StatusOK, status)
	var trips []Models.Trip
	require.NoError(t, json.Unmarshal(env.Data, &trips))
	assert.Len(t, trips, 1)

	status, _ = s.do(t, Models.RoleDispatcher, http.MethodGet, "/api/trips?driver_id=x", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestFuelOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	status, env := s.do(t, Models.RoleAdmin, http.MethodPost, "/api/fuel/adjustments", fiber.Map{
		"direction": "ingress", "liters": "100",
	})
	require.Equal(t, http.StatusCreated, status, env.Error)

	status, env = s.do(t, Models.RoleAdmin, http.MethodPut, "/api/fuel/price", fiber.Map{"unit_price": "1.50"})
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = s.do(t, Models.RoleDriver, http.MethodPost, "/api/fuel/loads", fiber.Map{
		"truck_id": s.fleet.Truck.ID, "date": "2024-06-03", "liters": "40", "source": "depot",
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	var load struct {
		Entry Models.FuelEntry `json:"entry"`
		Stock Models.FuelStock `json:"stock"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &load))
	assert.True(t, decimal.RequireFromString("60").Equal(load.Stock.AvailableLiters))
	assert.True(t, decimal.RequireFromString("60").Equal(load.Entry.Total))

	status, _ = s.do(t, Models.RoleDriver, http.MethodPost, "/api/fuel/loads", fiber.Map{
		"truck_id": s.fleet.Truck.ID, "liters": "61", "unit_price": "1.50", "source": "depot",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = s.do(t, Models.RoleDriver, http.MethodPost, "/api/fuel/loads", fiber.Map{
		"liters": "10", "source": "pipeline",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, Models.RoleDriver, http.MethodPost, "/api/fuel/adjustments", fiber.Map{
		"direction": "ingress", "liters": "5",
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(t, Models.RoleDriver, http.MethodGet, "/api/fuel/balance", nil)
	require.Equal(t, http.StatusOK, status)
	var stock Models.FuelStock
	require.NoError(t, json.Unmarshal(env.Data, &stock))
	assert.True(t, decimal.RequireFromString("60").Equal(stock.AvailableLiters))

	status, env = s.do(t, Models.RoleDispatcher, http.MethodGet, "/api/fuel/summary?month=6&year=2024", nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var summary Models.FuelSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	require.Len(t, summary.Trucks, 1)
	assert.Equal(t, s.fleet.Truck.Plate, summary.Trucks[0].Plate)

	status, _ = s.do(t, Models.RoleDispatcher, http.MethodGet, "/api/fuel/summary?month=13&year=2024", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = s.do(t, Models.RoleDispatcher, http.MethodGet, "/api/fuel/entries?kind=load", nil)
	require.Equal(t, http.StatusOK, status)
	var entries []Models.FuelEntry
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	assert.Len(t, entries, 1)

	status, env = s.do(t, Models.RoleAdmin, http.MethodGet, "/api/fuel/verify", nil)
	require.Equal(t, http.StatusOK, status)
	var report Fuel.LedgerReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.True(t, report.Consistent)
}

func TestBillingSweepOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	trip := s.createTrip(t)

	status, _ := s.do(t, Models.RoleDispatcher, http.MethodPost, "/api/billing/sweep", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env := s.do(t, Models.RoleAdmin, http.MethodPost, "/api/billing/sweep", nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var result Billing.SweepResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1, result.MarkedOverdue)
	assert.Equal(t, 1, result.NotificationsCreated)

	status, env = s.do(t, Models.RoleAdmin, http.MethodGet, tripPath(trip.ID, ""), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, Models.InvoiceOverdue, decodeTrip(t, env).InvoiceStatus)

	status, _ = s.do(t, Models.RoleDriver, http.MethodGet, "/api/notifications", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(t, Models.RoleDispatcher, http.MethodGet, "/api/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, status)
	var notifications []Models.Notification
	require.NoError(t, json.Unmarshal(env.Data, &notifications))
	require.Len(t, notifications, 1)
	assert.Contains(t, notifications[0].Message, "Acopio Norte")

	status, _ = s.do(t, Models.RoleDispatcher, http.MethodPatch, "/api/notifications/"+strconv.FormatUint(uint64(notifications[0].ID), 10)+"/read", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = s.do(t, Models.RoleDispatcher, http.MethodGet, "/api/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &notifications))
	assert.Empty(t, notifications)

	status, _ = s.do(t, Models.RoleDispatcher, http.MethodPatch, "/api/notifications/999/read", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
