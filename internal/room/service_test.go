package room_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/live-room-coordinator/internal/memstore"
	"github.com/iliyamo/live-room-coordinator/internal/model"
	"github.com/iliyamo/live-room-coordinator/internal/room"
)

const live = uint64(42)

type recorder struct {
	mu     sync.Mutex
	events []room.Event
}

func (r *recorder) RoomChanged(_ context.Context, e room.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []room.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]room.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newService(t *testing.T, opts ...room.Option) (*room.Service, *memstore.RoomStore) {
	t.Helper()
	store := memstore.NewRoomStore()
	return room.New(store, opts...), store
}

func mustCreate(t *testing.T, svc *room.Service, host uint64) uint64 {
	t.Helper()
	id, err := svc.CreateRoom(context.Background(), live, host, model.DifficultyNormal)
	require.NoError(t, err)
	require.NotZero(t, id)
	return id
}

func mustJoin(t *testing.T, svc *room.Service, roomID, user uint64, want room.JoinResult) {
	t.Helper()
	got, err := svc.Join(context.Background(), roomID, user, model.DifficultyHard)
	require.NoError(t, err)
	require.Equal(t, want, got, "join user %d", user)
}

func memberIDs(t *testing.T, svc *room.Service, roomID uint64) []uint64 {
	t.Helper()
	views, err := svc.Members(context.Background(), roomID, 0)
	require.NoError(t, err)
	ids := make([]uint64, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.UserID)
	}
	return ids
}

func hostOf(t *testing.T, svc *room.Service, roomID uint64) uint64 {
	t.Helper()
	views, err := svc.Members(context.Background(), roomID, 0)
	require.NoError(t, err)
	var host uint64
	for _, v := range views {
		if v.IsHost {
			require.Zero(t, host, "more than one host")
			host = v.UserID
		}
	}
	return host
}

func TestNew_PanicsOnNilStore(t *testing.T) {
	assert.Panics(t, func() { room.New(nil) })
}

func TestCreateRoom_SeatsHostAndLists(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, 1)

	status, err := svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaiting, status)
	assert.Equal(t, []uint64{1}, memberIDs(t, svc, id))
	assert.Equal(t, uint64(1), hostOf(t, svc, id))

	list, err := svc.ListRooms(ctx, live)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.RoomSummary{RoomID: id, LiveID: live, JoinedUserCount: 1, MaxUserCount: model.DefaultMaxUserCount}, list[0])

	other, err := svc.ListRooms(ctx, live+1)
	require.NoError(t, err)
	assert.Empty(t, other)

	all, err := svc.ListRooms(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestJoin_FillsRoomThenRefuses(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, 1)

	mustJoin(t, svc, id, 2, room.JoinAccepted)
	mustJoin(t, svc, id, 3, room.JoinAccepted)
	mustJoin(t, svc, id, 4, room.JoinAccepted)
	mustJoin(t, svc, id, 5, room.JoinRoomFull)

	assert.Equal(t, []uint64{1, 2, 3, 4}, memberIDs(t, svc, id))

	// full rooms leave the lobby
	list, err := svc.ListRooms(ctx, live)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestJoin_AlreadySeatedIsAccepted(t *testing.T) {
	svc, _ := newService(t)
	id := mustCreate(t, svc, 1)
	mustJoin(t, svc, id, 2, room.JoinAccepted)
	mustJoin(t, svc, id, 2, room.JoinAccepted)
	assert.Equal(t, []uint64{1, 2}, memberIDs(t, svc, id))
}

func TestJoin_UnknownRoom(t *testing.T) {
	svc, _ := newService(t)
	mustJoin(t, svc, 999, 1, room.JoinNotFound)
}

func TestJoin_DissolvedRoomIsDisbanded(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, 1)
	require.NoError(t, svc.Leave(ctx, id, 1))

	mustJoin(t, svc, id, 2, room.JoinDisbanded)
	assert.Empty(t, memberIDs(t, svc, id))
}

func TestJoin_StartedRoomIsFull(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, 1)
	res, err := svc.Start(ctx, id, 1)
	require.NoError(t, err)
	require.Equal(t, room.StartOK, res)

	mustJoin(t, svc, id, 2, room.JoinRoomFull)
}

func TestJoin_ConcurrentJoinersNeverOverfill(t *testing.T) {
	const capacity = 4
	const joiners = 32
	svc, _ := newService(t, room.WithCapacity(capacity))
	ctx := context.Background()
	id := mustCreate(t, svc, 1)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		full     int
	)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(uid uint64) {
			defer wg.Done()
			res, err := svc.Join(ctx, id, uid, model.DifficultyNormal)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			switch res {
			case room.JoinAccepted:
				accepted++
			case room.JoinRoomFull:
				full++
			}
		}(uint64(100 + i))
	}
	wg.Wait()

	assert.Equal(t, capacity-1, accepted)
	assert.Equal(t, joiners-(capacity-1), full)
	assert.Len(t, memberIDs(t, svc, id), capacity)
}

func TestJoin_EvictsFromPreviousRoom(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a := mustCreate(t, svc, 1)
	mustJoin(t, svc, a, 2, room.JoinAccepted)
	b := mustCreate(t, svc, 3)

	mustJoin(t, svc, b, 2, room.JoinAccepted)

	assert.Equal(t, []uint64{1}, memberIDs(t, svc, a))
	assert.Equal(t, []uint64{3, 2}, memberIDs(t, svc, b))

	// creating a room also releases the creator's other seats
	c := mustCreate(t, svc, 1)
	status, err := svc.Status(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDissolved, status)
	assert.Equal(t, []uint64{1}, memberIDs(t, svc, c))
}

func TestJoin_ConcurrentPlacementsKeepExactlyOneSeat(t *testing.T) {
	ctx := context.Background()
	for trial := 0; trial < 200; trial++ {
		svc, store := newService(t)
		a := mustCreate(t, svc, 1)
		b := mustCreate(t, svc, 2)

		var (
			wg      sync.WaitGroup
			start   = make(chan struct{})
			results [2]room.JoinResult
			errs    [2]error
		)
		for i, id := range []uint64{a, b} {
			wg.Add(1)
			go func(i int, id uint64) {
				defer wg.Done()
				<-start
				results[i], errs[i] = svc.Join(ctx, id, 9, model.DifficultyNormal)
			}(i, id)
		}
		close(start)
		wg.Wait()

		for i := range results {
			require.NoError(t, errs[i])
			require.Equal(t, room.JoinAccepted, results[i])
		}
		held, err := store.RoomsSeating(ctx, 9)
		require.NoError(t, err)
		require.Len(t, held, 1, "trial %d", trial)
	}
}

func TestJoin_LaterPlacementWinsOverEarlier(t *testing.T) {
	var (
		mu  sync.Mutex
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
	svc, _ := newService(t, room.WithClock(clock))
	a := mustCreate(t, svc, 1)
	b := mustCreate(t, svc, 2)

	// the newer placement survives even in the lower-numbered room
	mustJoin(t, svc, b, 9, room.JoinAccepted)
	mustJoin(t, svc, a, 9, room.JoinAccepted)
	assert.Equal(t, []uint64{1, 9}, memberIDs(t, svc, a))
	assert.Equal(t, []uint64{2}, memberIDs(t, svc, b))
}

// seatingFailStore commits placements but cannot list a user's seats.
type seatingFailStore struct {
	room.Store
	err error
}

func (f seatingFailStore) RoomsSeating(context.Context, uint64) ([]room.Placement, error) {
	return nil, f.err
}

func TestJoin_ReleaseFailureKeepsCommittedOutcome(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := seatingFailStore{Store: memstore.NewRoomStore(), err: errors.New("connection reset")}
	svc := room.New(store, room.WithLogger(zap.New(core)))
	ctx := context.Background()

	id, err := svc.CreateRoom(ctx, live, 1, model.DifficultyNormal)
	require.NoError(t, err)
	require.NotZero(t, id)

	res, err := svc.Join(ctx, id, 2, model.DifficultyNormal)
	require.NoError(t, err)
	assert.Equal(t, room.JoinAccepted, res)
	assert.Equal(t, []uint64{1, 2}, memberIDs(t, svc, id))

	warned := logs.FilterMessage("release other seats failed").All()
	require.Len(t, warned, 2)
	assert.Equal(t, "connection reset", warned[1].ContextMap()["error"])
}

func TestLeave_LastMemberDissolves(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, 1)

	require.NoError(t, svc.Leave(ctx, id, 1))

	status, err := svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDissolved, status)
	list, err := svc.ListRooms(ctx, live)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLeave_IsIdempotent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, 1)
	mustJoin(t, svc, id, 2, room.JoinAccepted)

	require.NoError(t, svc.Leave(ctx, id, 2))
	require.NoError(t, svc.Leave(ctx, id, 2))
	require.NoError(t, svc.Leave(ctx, 999, 2))

	assert.Equal(t, []uint64{1}, memberIDs(t, svc, id))
}

func TestLeave_HostMigratesToLowestSeat(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, 1)
	mustJoin(t, svc, id, 2, room.JoinAccepted) // seat 1
	mustJoin(t, svc, id, 3, room.JoinAccepted) // seat 2
	mustJoin(t, svc, id, 4, room.JoinAccepted) // seat 3

	require.NoError(t, svc.Leave(ctx, id, 2))
	mustJoin(t, svc, id, 5, room.JoinAccepted) // reuses seat 1

	require.NoError(t, svc.Leave(ctx, id, 1))
	assert.Equal(t, uint64(5), hostOf(t, svc, id))

	require.NoError(t, svc.Leave(ctx, id, 5))
	assert.Equal(t, uint64(3), hostOf(t, svc, id))

	res, err := svc.Start(ctx, id, 3)
	require.NoError(t, err)
	assert.Equal(t, room.StartOK, res)
}

func TestPoll_MarksRequesterAndHost(t *testing.T) {
	users := memstore.NewUserStore()
	ctx := context.Background()
	alice, err := users.Create(ctx, "alice", 11)
	require.NoError(t, err)
	bob, err := users.Create(ctx, "bob", 22)
	require.NoError(t, err)

	svc, _ := newService(t, room.WithProfiles(users))
	id := mustCreate(t, svc, alice)
	mustJoin(t, svc, id, bob, room.JoinAccepted)

	status, views, err := svc.Poll(ctx, id, bob)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaiting, status)
	require.Len(t, views, 2)
	assert.Equal(t, room.SeatView{UserID: alice, Name: "alice", LeaderCardID: 11, Difficulty: model.DifficultyNormal, IsHost: true}, views[0])
	assert.Equal(t, room.SeatView{UserID: bob, Name: "bob", LeaderCardID: 22, Difficulty: model.DifficultyHard, IsRequester: true}, views[1])
}

func TestPoll_UnknownRoom(t *testing.T) {
	svc, _ := newService(t)
	status, views, err := svc.Poll(context.Background(), 999, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDissolved, status)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestStart_OnlyHost(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, 1)
	mustJoin(t, svc, id, 2, room.JoinAccepted)

	res, err := svc.Start(ctx, id, 2)
	require.NoError(t, err)
	assert.Equal(t, room.StartForbidden, res)

	res, err = svc.Start(ctx, 999, 1)
	require.NoError(t, err)
	assert.Equal(t, room.StartNotFound, res)

	res, err = svc.Start(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, room.StartOK, res)

	// repeated start is a no-op
	res, err = svc.Start(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, room.StartOK, res)

	status, err := svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusLiveStarted, status)
	list, err := svc.ListRooms(ctx, live)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStart_DissolvedRoomForbidden(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, 1)
	require.NoError(t, svc.Leave(ctx, id, 1))

	res, err := svc.Start(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, room.StartForbidden, res)
}

func TestResults_FullFlow(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, 1)
	for _, u := range []uint64{2, 3, 4} {
		mustJoin(t, svc, id, u, room.JoinAccepted)
	}
	res, err := svc.Start(ctx, id, 1)
	require.NoError(t, err)
	require.Equal(t, room.StartOK, res)

	judges := []int{10, 5, 1, 0, 0}
	sub, err := svc.Submit(ctx, id, 1, 9000, judges)
	require.NoError(t, err)
	require.Equal(t, room.SubmitOK, sub)
	judges[0] = 999 // caller's slice must not leak into the store

	for _, u := range []uint64{2, 3} {
		sub, err = svc.Submit(ctx, id, u, 7000+int64(u), []int{8, 4, 2, 1, int(u)})
		require.NoError(t, err)
		require.Equal(t, room.SubmitOK, sub)
	}

	views, err := svc.Collect(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views, "pending until every member submits")
	status, err := svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusLiveStarted, status)

	sub, err = svc.Submit(ctx, id, 4, 6000, []int{7, 3, 3, 2, 1})
	require.NoError(t, err)
	require.Equal(t, room.SubmitOK, sub)

	views, err = svc.Collect(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []room.ResultView{
		{UserID: 1, JudgeCounts: []int{10, 5, 1, 0, 0}, Score: 9000},
		{UserID: 2, JudgeCounts: []int{8, 4, 2, 1, 2}, Score: 7002},
		{UserID: 3, JudgeCounts: []int{8, 4, 2, 1, 3}, Score: 7003},
		{UserID: 4, JudgeCounts: []int{7, 3, 3, 2, 1}, Score: 6000},
	}, views)

	// the set stays readable for the other members
	again, err := svc.Collect(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, views, again)
}

func TestSubmit_RejectsResubmissionAndStrangers(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, 1)

	sub, err := svc.Submit(ctx, id, 1, 100, []int{1})
	require.NoError(t, err)
	assert.Equal(t, room.SubmitOK, sub)

	sub, err = svc.Submit(ctx, id, 1, 200, []int{2})
	require.NoError(t, err)
	assert.Equal(t, room.SubmitAlreadySubmitted, sub)

	sub, err = svc.Submit(ctx, id, 2, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, room.SubmitNotInRoom, sub)

	sub, err = svc.Submit(ctx, 999, 1, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, room.SubmitNotInRoom, sub)

	views, err := svc.Collect(ctx, id)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, int64(100), views[0].Score)
}

func TestCollect_LeaveCompletesPendingSet(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, 1)
	mustJoin(t, svc, id, 2, room.JoinAccepted)

	_, err := svc.Submit(ctx, id, 1, 500, []int{3})
	require.NoError(t, err)
	views, err := svc.Collect(ctx, id)
	require.NoError(t, err)
	require.Empty(t, views)

	require.NoError(t, svc.Leave(ctx, id, 2))

	views, err = svc.Collect(ctx, id)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, uint64(1), views[0].UserID)
}

func TestCollect_UnknownRoomIsPending(t *testing.T) {
	svc, _ := newService(t)
	views, err := svc.Collect(context.Background(), 999)
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestObserver_ReceivesCommittedEvents(t *testing.T) {
	rec := &recorder{}
	svc, _ := newService(t, room.WithObserver(rec), room.WithCapacity(2))
	ctx := context.Background()

	id := mustCreate(t, svc, 1)
	mustJoin(t, svc, id, 2, room.JoinAccepted)
	mustJoin(t, svc, id, 3, room.JoinRoomFull)
	require.NoError(t, svc.Leave(ctx, id, 1))
	_, err := svc.Start(ctx, id, 2)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, id, 2, 1, []int{1})
	require.NoError(t, err)
	_, err = svc.Collect(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, []room.EventType{
		room.EventCreated,
		room.EventJoined,
		room.EventLeft,
		room.EventHostChanged,
		room.EventStarted,
		room.EventResultSubmitted,
		room.EventResultsReady,
		room.EventDissolved,
	}, rec.types())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, e := range rec.events {
		assert.Equal(t, id, e.RoomID)
		assert.Equal(t, live, e.LiveID)
		assert.False(t, e.At.IsZero())
	}
	assert.Equal(t, uint64(2), rec.events[3].UserID, "new host")
}

type failingStore struct {
	room.Store
	err error
}

func (f failingStore) WithRoomLock(context.Context, uint64, func(room.RoomTx) error) error {
	return f.err
}

func (f failingStore) Snapshot(context.Context, uint64) (model.Room, []model.Seat, error) {
	return model.Room{}, nil, f.err
}

func TestStoreFailuresSurfaceAsStoreError(t *testing.T) {
	boom := errors.New("connection reset")
	svc := room.New(failingStore{Store: memstore.NewRoomStore(), err: boom})
	ctx := context.Background()

	_, err := svc.Join(ctx, 1, 1, model.DifficultyNormal)
	var se *room.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "join room", se.Op)
	assert.ErrorIs(t, err, boom)

	_, err = svc.Start(ctx, 1, 1)
	assert.ErrorAs(t, err, &se)
	assert.ErrorAs(t, svc.Leave(ctx, 1, 1), &se)
	_, err = svc.Submit(ctx, 1, 1, 0, nil)
	assert.ErrorAs(t, err, &se)
	_, err = svc.Collect(ctx, 1)
	assert.ErrorAs(t, err, &se)
	_, err = svc.Status(ctx, 1)
	assert.ErrorAs(t, err, &se)
}
