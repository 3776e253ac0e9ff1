package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emergency-dispatch/internal/auth"
	"emergency-dispatch/internal/config"
	"emergency-dispatch/internal/db/dbtest"
	"emergency-dispatch/internal/dispatch"
	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/models"
	"emergency-dispatch/internal/ratelimit"
	"emergency-dispatch/internal/realtime"
	"emergency-dispatch/internal/services"
)

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, models.Assignment) {}
func (nopDispatcher) SendUserAcknowledgment(context.Context, models.User, dispatch.AckNotice, models.Assignment) {
}
func (nopDispatcher) SendStatusUpdate(context.Context, models.Assignment, models.AlertStatus) {}

type testAPI struct {
	store  *dbtest.Memory
	hub    *realtime.Hub
	router *gin.Engine
	user   models.User
	agency models.Agency
}

func setupTestRouter(t *testing.T, alertRate string) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logging.NewWithWriter(io.Discard, "error")
	ctx := context.Background()

	store := dbtest.New()
	user := models.User{FullName: "Ada Obi", Email: "ada@example.com"}
	require.NoError(t, store.CreateUser(ctx, &user))
	agency := models.Agency{Name: "Central Police", Type: models.AgencyPolice, Active: true}
	require.NoError(t, store.CreateAgency(ctx, &agency))

	hub := realtime.NewHub(logger)
	svc := services.New(store, nopDispatcher{}, logger, services.Options{Publisher: hub})
	throttle := ratelimit.New(func(context.Context) string { return alertRate }, logger)

	var cfg config.Config
	cfg.API.BasePath = "/api/v0"
	cfg.API.CORSOrigins = []string{"*"}

	return &testAPI{
		store:  store,
		hub:    hub,
		router: NewRouter(NewHandler(svc, hub, logger), throttle, logger, cfg),
		user:   user,
		agency: agency,
	}
}

func (a *testAPI) civilian() auth.Identity {
	return auth.Identity{Role: auth.RoleCivilian, UserID: a.user.ID}
}

func (a *testAPI) staff() auth.Identity {
	return auth.Identity{Role: auth.RoleAgency, UserID: 500, AgencyID: a.agency.ID}
}

func setIdentity(h http.Header, id auth.Identity) {
	h.Set(auth.HeaderUserID, strconv.FormatInt(id.UserID, 10))
	h.Set(auth.HeaderRole, string(id.Role))
	if id.AgencyID != 0 {
		h.Set(auth.HeaderAgencyID, strconv.FormatInt(id.AgencyID, 10))
	}
}

func (a *testAPI) do(t *testing.T, method, path string, id *auth.Identity, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if id != nil {
		setIdentity(req.Header, *id)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func ptr[T any](v T) *T { return &v }

var robbery = map[string]any{"alert_type": "ROBBERY", "latitude": 6.5, "longitude": 3.4}

func TestHealth(t *testing.T) {
	a := setupTestRouter(t, "5/hour")
	w := a.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestIdentityRequired(t *testing.T) {
	a := setupTestRouter(t, "5/hour")
	w := a.do(t, http.MethodGet, "/api/v0/alerts", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleEnforced(t *testing.T) {
	a := setupTestRouter(t, "5/hour")
	w := a.do(t, http.MethodGet, "/api/v0/admin/reports", ptr(a.staff()), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodPost, "/api/v0/alerts", ptr(a.staff()), robbery)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateAlert_Throttled(t *testing.T) {
	a := setupTestRouter(t, "1/hour")
	id := a.civilian()

	w := a.do(t, http.MethodPost, "/api/v0/alerts", &id, robbery)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	detail := decode[map[string]any](t, w)
	assert.Equal(t, "DISPATCHED", detail["status"])
	assert.Len(t, detail["assignments"], 1)

	w = a.do(t, http.MethodPost, "/api/v0/alerts", &id, robbery)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"Request was throttled."}`, w.Body.String())
}

func TestCreateAlert_Validation(t *testing.T) {
	a := setupTestRouter(t, "5/hour")
	w := a.do(t, http.MethodPost, "/api/v0/alerts", ptr(a.civilian()), map[string]any{"alert_type": "ROBBERY"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"latitude and longitude are required."}`, w.Body.String())
}

func TestAlertNotFoundAndBadID(t *testing.T) {
	a := setupTestRouter(t, "5/hour")
	w := a.do(t, http.MethodGet, "/api/v0/alerts/999", ptr(a.civilian()), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Alert not found."}`, w.Body.String())

	w = a.do(t, http.MethodGet, "/api/v0/alerts/abc", ptr(a.civilian()), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAcknowledgeTwice(t *testing.T) {
	a := setupTestRouter(t, "5/hour")
	w := a.do(t, http.MethodPost, "/api/v0/alerts", ptr(a.civilian()), robbery)
	require.Equal(t, http.StatusCreated, w.Code)

	list := a.do(t, http.MethodGet, "/api/v0/agency/alerts", ptr(a.staff()), nil)
	require.Equal(t, http.StatusOK, list.Code)
	assignments := decode[[]map[string]any](t, list)
	require.Len(t, assignments, 1)
	path := "/api/v0/agency/assignments/" + strconv.Itoa(int(assignments[0]["assignment_id"].(float64))) + "/acknowledge"

	w = a.do(t, http.MethodPost, path, ptr(a.staff()), map[string]any{"acknowledged_by": "Sgt. Bello", "estimated_arrival": 10})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(t, http.MethodPost, path, ptr(a.staff()), map[string]any{"acknowledged_by": "Sgt. Bello"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"This assignment has already been acknowledged."}`, w.Body.String())
}

func TestUpdateSettings(t *testing.T) {
	a := setupTestRouter(t, "5/hour")
	admin := &auth.Identity{Role: auth.RoleAdmin, UserID: 1}

	w := a.do(t, http.MethodPatch, "/api/v0/admin/settings", admin, map[string]any{"nope": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"updated":[],"errors":{"nope":"Unknown setting key."}}`, w.Body.String())

	w = a.do(t, http.MethodPatch, "/api/v0/admin/settings", admin, map[string]any{"alert_creation_rate_limit": 10})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":["alert_creation_rate_limit"]}`, w.Body.String())

	s, err := a.store.GetSetting(context.Background(), "alert_creation_rate_limit")
	require.NoError(t, err)
	assert.Equal(t, "10", s.Value)

	w = a.do(t, http.MethodPatch, "/api/v0/admin/settings", admin, []int{1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAgencyFeedReceivesAssignments(t *testing.T) {
	a := setupTestRouter(t, "5/hour")
	srv := httptest.NewServer(a.router)
	defer srv.Close()

	header := http.Header{}
	setIdentity(header, a.staff())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v0/agency/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return a.hub.Count(a.agency.ID) == 1 }, time.Second, 5*time.Millisecond)

	w := a.do(t, http.MethodPost, "/api/v0/alerts", ptr(a.civilian()), robbery)
	require.Equal(t, http.StatusCreated, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev realtime.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, realtime.EventAssignmentCreated, ev.Type)
}
