package arbiter_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seating-backend/config"
	"seating-backend/internal/arbiter"
	"seating-backend/internal/logging"
	"seating-backend/internal/model"
	"seating-backend/internal/store"
	"seating-backend/internal/store/storetest"
)

const event = "gala"

type recorder struct {
	mu      sync.Mutex
	changes []model.SeatChange
}

func (r *recorder) SeatChanged(_ context.Context, c model.SeatChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) all() []model.SeatChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.SeatChange(nil), r.changes...)
}

func newEngine(t *testing.T) (*arbiter.Engine, store.Store, *recorder) {
	t.Helper()
	s := storetest.NewStore(t)
	storetest.SeedEvent(t, s, event, 3, 8)

	e := arbiter.New(s, s, config.ArbiterConfig{MaxAttempts: 4, Backoff: time.Millisecond}, logging.Discard())
	rec := &recorder{}
	e.Observe(rec)
	return e, s, rec
}

func str(s string) *string { return &s }

func TestEngine_Scenario(t *testing.T) {
	e, s, _ := newEngine(t)
	ctx := context.Background()
	storetest.IssueReservation(t, s, event, "A", 2)
	storetest.IssueReservation(t, s, event, "B", 2)

	seats, err := s.ListSeats(ctx, event)
	require.NoError(t, err)
	require.Len(t, seats, 24)

	out, err := e.Toggle(ctx, event, "T1-S1", "A")
	require.NoError(t, err)
	assert.Equal(t, model.ActionClaimed, out.Action)
	assert.True(t, out.Seat.HeldBy("A"))

	_, err = e.Toggle(ctx, event, "T1-S1", "B")
	assert.ErrorIs(t, err, arbiter.ErrSeatTaken)

	_, err = e.Toggle(ctx, event, "T1-S2", "A")
	require.NoError(t, err)

	_, err = e.Toggle(ctx, event, "T1-S3", "A")
	require.ErrorIs(t, err, arbiter.ErrQuotaExceeded)
	assert.Equal(t, "you can only claim 2 seat(s); release one first", err.Error())
	var qe *arbiter.QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 2, qe.Quota)

	out, err = e.Toggle(ctx, event, "T1-S1", "A")
	require.NoError(t, err)
	assert.Equal(t, model.ActionReleased, out.Action)
	assert.True(t, out.Seat.IsFree())

	out, err = e.Toggle(ctx, event, "T1-S1", "B")
	require.NoError(t, err)
	assert.True(t, out.Seat.HeldBy("B"))

	stored, err := s.GetSeat(ctx, event, "T1-S1")
	require.NoError(t, err)
	assert.True(t, stored.HeldBy("B"))
}

func TestEngine_ConcurrentClaimsOnOneSeat(t *testing.T) {
	e, s, _ := newEngine(t)
	storetest.IssueReservation(t, s, event, "A", 1)
	storetest.IssueReservation(t, s, event, "B", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, token := range []string{"A", "B"} {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			_, errs[i] = e.Claim(context.Background(), event, "T2-S4", token)
		}(i, token)
	}
	wg.Wait()

	var won, taken int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, arbiter.ErrSeatTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, taken)

	seat, err := s.GetSeat(context.Background(), event, "T2-S4")
	require.NoError(t, err)
	require.NotNil(t, seat.ClaimedBy)
	assert.Contains(t, []string{"A", "B"}, *seat.ClaimedBy)
	assert.Equal(t, int64(1), seat.Version)
}

func TestEngine_QuotaUnderConcurrentClaims(t *testing.T) {
	e, s, _ := newEngine(t)
	const quota = 3
	storetest.IssueReservation(t, s, event, "A", quota)

	seatIDs := []string{"T1-S1", "T1-S2", "T2-S1", "T3-S8"}
	var wg sync.WaitGroup
	errs := make([]error, len(seatIDs))
	for i, id := range seatIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = e.Claim(context.Background(), event, id, "A")
		}(i, id)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, arbiter.ErrQuotaExceeded):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, quota, ok)
	assert.Equal(t, 1, rejected)

	held, err := s.CountClaimed(context.Background(), event, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(quota), held)
}

func TestEngine_Idempotence(t *testing.T) {
	e, s, rec := newEngine(t)
	ctx := context.Background()
	storetest.IssueReservation(t, s, event, "A", 1)

	out, err := e.Release(ctx, event, "T1-S1", "A")
	require.NoError(t, err)
	assert.False(t, out.Changed)

	_, err = e.Claim(ctx, event, "T1-S1", "A")
	require.NoError(t, err)
	out, err = e.Claim(ctx, event, "T1-S1", "A")
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Equal(t, int64(1), out.Seat.Version)

	held, err := s.CountClaimed(ctx, event, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), held)

	// Only the real claim reaches observers.
	changes := rec.all()
	require.Len(t, changes, 1)
	assert.Equal(t, model.ActionClaimed, changes[0].Action)
	assert.Equal(t, "T1-S1", changes[0].SeatID)
	assert.Equal(t, "A", changes[0].Token)
}

func TestEngine_ReleaseByOtherToken(t *testing.T) {
	e, s, _ := newEngine(t)
	ctx := context.Background()
	storetest.IssueReservation(t, s, event, "A", 1)
	storetest.IssueReservation(t, s, event, "B", 1)

	_, err := e.Claim(ctx, event, "T1-S1", "A")
	require.NoError(t, err)

	_, err = e.Release(ctx, event, "T1-S1", "B")
	assert.ErrorIs(t, err, arbiter.ErrNotOwner)
}

func TestEngine_ClaimClearsAndReleaseClearsFields(t *testing.T) {
	e, s, _ := newEngine(t)
	ctx := context.Background()
	storetest.IssueReservation(t, s, event, "A", 1)

	_, err := e.Claim(ctx, event, "T1-S1", "A")
	require.NoError(t, err)
	out, err := e.UpdateFields(ctx, event, "T1-S1", "A", arbiter.FieldUpdate{
		GuestName: str("  Ada Lovelace "),
		Spirit:    str("Gin"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", out.Seat.GuestName)
	assert.Equal(t, "Gin", out.Seat.Spirit)

	out, err = e.Release(ctx, event, "T1-S1", "A")
	require.NoError(t, err)
	assert.Empty(t, out.Seat.GuestName)
	assert.Empty(t, out.Seat.Spirit)

	stored, err := s.GetSeat(ctx, event, "T1-S1")
	require.NoError(t, err)
	assert.True(t, stored.IsFree())
	assert.Empty(t, stored.GuestName)
	assert.Empty(t, stored.Spirit)
}

func TestEngine_UpdateFields(t *testing.T) {
	e, s, _ := newEngine(t)
	ctx := context.Background()
	storetest.IssueReservation(t, s, event, "A", 2)
	storetest.IssueReservation(t, s, event, "B", 2)
	_, err := e.Claim(ctx, event, "T1-S1", "A")
	require.NoError(t, err)

	long := make([]rune, arbiter.MaxGuestNameLength+1)
	for i := range long {
		long[i] = 'é'
	}

	tests := []struct {
		name    string
		token   string
		seat    string
		update  arbiter.FieldUpdate
		wantErr error
	}{
		{"other token", "B", "T1-S1", arbiter.FieldUpdate{GuestName: str("Mallory")}, arbiter.ErrNotOwner},
		{"free seat", "A", "T1-S2", arbiter.FieldUpdate{GuestName: str("Ada")}, arbiter.ErrNotOwner},
		{"unknown spirit", "A", "T1-S1", arbiter.FieldUpdate{Spirit: str("Absinthe")}, arbiter.ErrInvalidField},
		{"name too long", "A", "T1-S1", arbiter.FieldUpdate{GuestName: str(string(long))}, arbiter.ErrInvalidField},
		{"nothing to update", "A", "T1-S1", arbiter.FieldUpdate{}, arbiter.ErrInvalidField},
		{"unknown token", "Z", "T1-S1", arbiter.FieldUpdate{GuestName: str("x")}, store.ErrNotFound},
		{"unknown seat", "A", "T9-S1", arbiter.FieldUpdate{GuestName: str("x")}, store.ErrNotFound},
		{"spirit only", "A", "T1-S1", arbiter.FieldUpdate{Spirit: str("Whiskey/Bourbon")}, nil},
		{"clear spirit", "A", "T1-S1", arbiter.FieldUpdate{Spirit: str("")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.UpdateFields(ctx, event, tt.seat, tt.token, tt.update)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	stored, err := s.GetSeat(ctx, event, "T1-S1")
	require.NoError(t, err)
	assert.True(t, stored.HeldBy("A"))
	assert.Empty(t, stored.Spirit)
}

func TestEngine_UnknownReservation(t *testing.T) {
	e, _, _ := newEngine(t)
	_, err := e.Toggle(context.Background(), event, "T1-S1", "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// contendedSeats always loses the conditional write.
type contendedSeats struct {
	mu    sync.Mutex
	puts  int
	reads int
}

func (c *contendedSeats) GetSeat(_ context.Context, eventID, seatID string) (model.Seat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	return model.Seat{EventID: eventID, SeatID: seatID, Version: int64(c.reads)}, nil
}

func (c *contendedSeats) CountClaimed(context.Context, string, string) (int64, error) {
	return 0, nil
}

func (c *contendedSeats) PutSeat(context.Context, store.SeatWrite) (model.Seat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	return model.Seat{}, store.ErrConflict
}

type oneReservation struct{}

func (oneReservation) GetReservation(_ context.Context, eventID, token string) (model.Reservation, error) {
	return model.Reservation{EventID: eventID, Token: token, SeatQuota: 2}, nil
}

func TestEngine_RetriesAreBounded(t *testing.T) {
	seats := &contendedSeats{}
	e := arbiter.New(seats, oneReservation{}, config.ArbiterConfig{MaxAttempts: 3}, logging.Discard())
	rec := &recorder{}
	e.Observe(rec)

	_, err := e.Claim(context.Background(), event, "T1-S1", "A")
	assert.ErrorIs(t, err, arbiter.ErrTransientConflict)
	assert.NotErrorIs(t, err, arbiter.ErrSeatTaken)
	assert.Equal(t, 3, seats.puts)
	// Each attempt starts from a fresh read.
	assert.Equal(t, 3, seats.reads)
	assert.Empty(t, rec.all())
}

func TestEngine_CancelledDuringBackoff(t *testing.T) {
	seats := &contendedSeats{}
	e := arbiter.New(seats, oneReservation{}, config.ArbiterConfig{MaxAttempts: 4, Backoff: time.Hour}, logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.Toggle(ctx, event, "T1-S1", "A")
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, seats.puts)
}
