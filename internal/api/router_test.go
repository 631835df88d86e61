package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"geousers/internal/users"
	"geousers/pkg/events"
	"geousers/pkg/logger"
	"geousers/pkg/models"
	"geousers/pkg/postgres"
	"geousers/pkg/redis"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

func TestNewRouter_RoutesExist(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := newTestRouter(&mockService{}, healthyReport())

	routes := router.Routes()
	expectedRoutes := map[string]string{
		"GET /health":       "health",
		"POST /users":       "create",
		"GET /users/:id":    "get",
		"PUT /users/:id":    "update",
		"DELETE /users/:id": "delete",
	}

	found := make(map[string]bool)
	for _, r := range routes {
		key := r.Method + " " + r.Path
		if _, ok := expectedRoutes[key]; ok {
			found[key] = true
		}
	}

	for key, desc := range expectedRoutes {
		if !found[key] {
			t.Errorf("missing route %s (%s)", key, desc)
		}
	}
}

func TestSwaggerRouteRegistered(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := newTestRouter(&mockService{}, healthyReport())

	for _, r := range router.Routes() {
		if r.Method == http.MethodGet && r.Path == "/swagger/*any" {
			return
		}
	}
	t.Error("swagger route not registered")
}

type capturedSink struct {
	mu   sync.Mutex
	msgs []events.Message
}

func (s *capturedSink) Send(_ context.Context, msg events.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

// Drives the real coordinator over a Redis document store, a mocked PostGIS
// connection and the async publisher.
func TestUserLifecycle_EndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	sink := &capturedSink{}
	pub := events.NewAsyncPublisher(sink, logger.NewNop(), events.Options{SourceService: "user-service"})

	coord := users.NewCoordinator(redis.NewDocumentStore(client), postgres.NewGeoStore(db), pub,
		users.Options{Collection: "users", Topic: "user.events"}, logger.NewNop())
	router := newTestRouter(coord, healthyReport())

	// Create with location.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO user_locations").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := doRequest(router, http.MethodPost, "/users",
		`{"email":"a@b.com","name":"A","location":{"latitude":-23.5,"longitude":-46.6}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created models.WriteResponse
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.ID == "" {
		t.Fatal("create: expected id")
	}

	// Read back.
	mock.ExpectQuery("SELECT user_id, ST_AsText").
		WithArgs(created.ID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "st_astext"}).AddRow(created.ID, "POINT(-46.6 -23.5)"))

	w = doRequest(router, http.MethodGet, "/users/"+created.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	loc, ok := body["location"].(map[string]any)
	if !ok || loc["latitude"] != -23.5 || loc["longitude"] != -46.6 {
		t.Errorf("get: unexpected location %v", body["location"])
	}
	if body["email"] != "a@b.com" || body["id"] != created.ID {
		t.Errorf("get: unexpected body %v", body)
	}

	// Delete, then delete again.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, ST_AsText").
		WithArgs(created.ID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "st_astext"}).AddRow(created.ID, "POINT(-46.6 -23.5)"))
	mock.ExpectExec("DELETE FROM user_locations").
		WithArgs(created.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w = doRequest(router, http.MethodDelete, "/users/"+created.ID, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d: %s", w.Code, w.Body.String())
	}
	w = doRequest(router, http.MethodDelete, "/users/"+created.ID, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled sql expectations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pub.Close(ctx); err != nil {
		t.Fatalf("close publisher: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.msgs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(sink.msgs))
	}
	for i, want := range []models.EventType{models.EventUserCreated, models.EventUserDeleted} {
		msg := sink.msgs[i]
		if msg.EventType != string(want) || msg.Key != created.ID || msg.Topic != "user.events" {
			t.Errorf("event %d: unexpected message %+v", i, msg)
		}
		var ev models.ChangeEvent
		if err := json.Unmarshal(msg.Body, &ev); err != nil {
			t.Fatalf("event %d: bad body: %v", i, err)
		}
		if ev.UserID != created.ID || ev.SourceService != "user-service" || !strings.HasPrefix(string(ev.EventType), "User") {
			t.Errorf("event %d: unexpected envelope %+v", i, ev)
		}
	}
}
