package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"seating-backend/config"
	"seating-backend/internal/api"
	"seating-backend/internal/arbiter"
	"seating-backend/internal/db"
	"seating-backend/internal/issuance"
	"seating-backend/internal/logging"
	"seating-backend/internal/model"
	"seating-backend/internal/notifier"
	"seating-backend/internal/store"
	"seating-backend/internal/watcher"
)

type client struct {
	t      *testing.T
	router http.Handler
}

func (c client) call(method, path string, body interface{}, out interface{}) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", "k")
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

type recorder struct {
	mu      sync.Mutex
	changes []model.SeatChange
}

func (r *recorder) SeatChanged(_ context.Context, c model.SeatChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

// TestSeatingScenario walks an event from seeding through contested claims
// and a release, checking the HTTP responses and the database at each step.
func TestSeatingScenario(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// 1. Setup an in-memory SQLite database for testing.
	testDB, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	require.NoError(t, db.Migrate(testDB))

	// 2. Wire the services the way the daemon does.
	log := logging.Discard()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := store.NewGormStore(testDB, 5*time.Second)
	reservations := store.NewCachedReservations(s, time.Minute)
	hub := notifier.NewHub(s, config.NotifierConfig{Workers: 2, QueueSize: 8}, log)
	hub.Start(ctx)
	engine := arbiter.New(s, reservations, config.ArbiterConfig{MaxAttempts: 4, Backoff: time.Millisecond}, log)
	rec := &recorder{}
	engine.Observe(hub, rec)

	router := api.NewRouter(api.Deps{
		Store:        s,
		Reservations: reservations,
		Engine:       engine,
		Hub:          hub,
		Issuance:     issuance.NewService(s, s, config.IssuanceConfig{DefaultTables: 3, DefaultSeatsPerTable: 8}, log),
		Log:          log,
	}, config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 60}, "k")
	c := client{t: t, router: router}

	// 3. Seed 3 tables x 8 seats and issue two reservations of two seats.
	require.Equal(t, http.StatusCreated, c.call("POST", "/api/admin/events",
		map[string]string{"id": "gala", "name": "Gala", "date": "2026-02-13"}, nil))

	var a, b model.Reservation
	require.Equal(t, http.StatusCreated, c.call("POST", "/api/admin/events/gala/reservations",
		map[string]interface{}{"buyerLabel": "A", "seatQuota": 2}, &a))
	require.Equal(t, http.StatusCreated, c.call("POST", "/api/admin/events/gala/reservations",
		map[string]interface{}{"buyerLabel": "B", "seatQuota": 2}, &b))

	var snap struct {
		Free  int `json:"free"`
		Seats []struct {
			SeatID string `json:"seatId"`
			Status string `json:"status"`
		} `json:"seats"`
	}
	require.Equal(t, http.StatusOK, c.call("GET", "/api/events/gala/seats", nil, &snap))
	assert.Equal(t, 24, snap.Free)
	require.Len(t, snap.Seats, 24)

	toggle := func(token, seat string) (int, map[string]interface{}) {
		var out map[string]interface{}
		code := c.call("POST", fmt.Sprintf("/api/events/gala/reservations/%s/seats/%s/toggle", token, seat), nil, &out)
		return code, out
	}
	holder := func(seatID string) *string {
		seat, err := s.GetSeat(ctx, "gala", seatID)
		require.NoError(t, err)
		return seat.ClaimedBy
	}

	// 4. A claims T1-S1.
	code, _ := toggle(a.Token, "T1-S1")
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, holder("T1-S1"))
	assert.Equal(t, a.Token, *holder("T1-S1"))

	// 5. B cannot take it.
	code, out := toggle(b.Token, "T1-S1")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "seat_taken", out["code"])

	// 6. A claims T1-S2, then hits the quota on T1-S3.
	code, _ = toggle(a.Token, "T1-S2")
	require.Equal(t, http.StatusOK, code)
	code, out = toggle(a.Token, "T1-S3")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "quota_exceeded", out["code"])
	assert.Equal(t, "you can only claim 2 seat(s); release one first", out["error"])
	assert.Nil(t, holder("T1-S3"))

	// 7. A releases T1-S1 and B claims it.
	code, out = toggle(a.Token, "T1-S1")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "released", out["action"])
	assert.Nil(t, holder("T1-S1"))

	code, _ = toggle(b.Token, "T1-S1")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, b.Token, *holder("T1-S1"))

	// 8. Observers saw exactly the four commits, in order.
	rec.mu.Lock()
	var actions []string
	for _, ch := range rec.changes {
		actions = append(actions, string(ch.Action)+" "+ch.SeatID)
	}
	rec.mu.Unlock()
	assert.Equal(t, []string{"claimed T1-S1", "claimed T1-S2", "released T1-S1", "claimed T1-S1"}, actions)

	require.Equal(t, http.StatusOK, c.call("GET", "/api/events/gala/seats", nil, &snap))
	assert.Equal(t, 22, snap.Free)

	// 9. A second process writing to the same database is picked up by the
	// revision watcher.
	w := watcher.NewService(config.WatcherConfig{Enabled: true, Interval: time.Second}, s, hub, log)
	w.PollOnce(ctx)
	other := arbiter.New(s, s, config.ArbiterConfig{MaxAttempts: 4}, log)
	_, err = other.Claim(ctx, "gala", "T3-S8", b.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{"gala"}, w.PollOnce(ctx))
}
