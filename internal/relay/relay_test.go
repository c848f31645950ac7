package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seating-backend/config"
	"seating-backend/internal/arbiter"
	"seating-backend/internal/logging"
	"seating-backend/internal/model"
	"seating-backend/internal/store/storetest"
)

type refreshes []string

func (r *refreshes) Refresh(eventID string) { *r = append(*r, eventID) }

func TestRelay_EncodeOmitsToken(t *testing.T) {
	r := New(nil, "seating:changes", &refreshes{}, logging.Discard())

	token := "secret-token"
	body, err := r.encode(model.SeatChange{
		EventID: "gala",
		SeatID:  "T1-S1",
		Action:  model.ActionClaimed,
		Token:   token,
		Seat:    model.Seat{ClaimedBy: &token, Version: 7},
	})
	require.NoError(t, err)
	assert.NotContains(t, string(body), token)

	var m Message
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, r.origin, m.Origin)
	assert.Equal(t, "gala", m.EventID)
	assert.Equal(t, int64(7), m.Version)
}

func TestRelay_Handle(t *testing.T) {
	var got refreshes
	r := New(nil, "seating:changes", &got, logging.Discard())
	other := New(nil, "seating:changes", &refreshes{}, logging.Discard())

	own, err := r.encode(model.SeatChange{EventID: "mine"})
	require.NoError(t, err)
	remote, err := other.encode(model.SeatChange{EventID: "gala"})
	require.NoError(t, err)

	r.handle(string(own))
	r.handle("not json")
	r.handle(`{"origin":"x"}`)
	r.handle(string(remote))

	assert.Equal(t, refreshes{"gala"}, got)
}

func TestConnect_Disabled(t *testing.T) {
	assert.Nil(t, Connect(config.RedisConfig{}, logging.Discard()))
}

// hungRedis accepts publishes and never answers; each call returns once its
// context ends.
type hungRedis struct {
	published chan string
}

func (h *hungRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	h.published <- channel
	cmd := redis.NewIntCmd(ctx)
	<-ctx.Done()
	cmd.SetErr(ctx.Err())
	return cmd
}

func (h *hungRedis) Subscribe(context.Context, ...string) *redis.PubSub { return nil }

func TestRelay_HungRedisDoesNotDelayClaims(t *testing.T) {
	s := storetest.NewStore(t)
	storetest.SeedEvent(t, s, "gala", 1, 8)
	storetest.IssueReservation(t, s, "gala", "A", 8)

	client := &hungRedis{published: make(chan string, 8)}
	r := New(client, "seating:changes", &refreshes{}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	e := arbiter.New(s, s, config.ArbiterConfig{MaxAttempts: 4}, logging.Discard())
	e.Observe(r)

	start := time.Now()
	for _, seat := range []string{"T1-S1", "T1-S2"} {
		_, err := e.Claim(context.Background(), "gala", seat, "A")
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), publishTimeout/2)

	select {
	case channel := <-client.published:
		assert.Equal(t, "seating:changes", channel)
	case <-time.After(time.Second):
		t.Fatal("worker never tried to publish")
	}
}

func TestRelay_DispatchDropsWhenFull(t *testing.T) {
	r := New(nil, "seating:changes", &refreshes{}, logging.Discard())
	for i := 0; i < queueSize+5; i++ {
		r.SeatChanged(context.Background(), model.SeatChange{EventID: "gala"})
	}
	assert.Len(t, r.jobs, queueSize)
}
