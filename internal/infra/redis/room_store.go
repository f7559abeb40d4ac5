package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/app"
)

// markTimeout bounds each liveness write so an unreachable Redis only
// delays the marker, never a room operation.
const markTimeout = 250 * time.Millisecond

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Notes:
//   - Rooms themselves stay in process; the room mutex is the only
//     serialization point for a room.
//   - Redis carries a liveness marker per room, refreshed on every lookup,
//     so operators can see which rooms are active on which instance.
//   - Marker writes run in the background, outside the store lock.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	rooms  map[string]*app.Room

	pending sync.WaitGroup
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*app.Room),
	}
}

func (s *RoomStore) GetOrCreate(roomID string) *app.Room {
	s.mu.Lock()
	room, existed := s.rooms[roomID]
	if !existed {
		room = app.NewRoom(roomID)
		s.rooms[roomID] = room
	}
	s.mu.Unlock()

	if existed {
		s.touch(roomID)
	} else {
		s.mark(roomID)
	}
	return room
}

func (s *RoomStore) Get(roomID string) (*app.Room, bool) {
	s.mu.RLock()
	room, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if ok {
		s.touch(roomID)
	}
	return room, ok
}

// Wait blocks until every in-flight liveness write has finished.
func (s *RoomStore) Wait() {
	s.pending.Wait()
}

func (s *RoomStore) mark(roomID string) {
	s.async(func(ctx context.Context) error {
		return s.client.Set(ctx, key(roomID), "1", s.ttl).Err()
	})
}

func (s *RoomStore) touch(roomID string) {
	if s.ttl <= 0 {
		return
	}
	s.async(func(ctx context.Context) error {
		return s.client.Expire(ctx, key(roomID), s.ttl).Err()
	})
}

// best-effort: errors are dropped, the marker is advisory.
func (s *RoomStore) async(write func(ctx context.Context) error) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), markTimeout)
		defer cancel()
		_ = write(ctx)
	}()
}

func key(roomID string) string {
	return "quiz:room:" + roomID
}
