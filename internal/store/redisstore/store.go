package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sparkline-ai/chat-backend/internal/chat"
)

// ChatroomListTTL is the safety net against missed invalidations; list reads
// are best-effort and never replace the authoritative store.
const ChatroomListTTL = 5 * time.Minute

// Store is the process's cache handle. Constructed once at startup and
// injected; there is no lazily initialized global client.
type Store struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func chatroomListKey(userID uint64) string {
	return fmt.Sprintf("chatrooms:user:%d", userID)
}

func (s *Store) GetChatroomList(ctx context.Context, userID uint64, out *[]chat.Chatroom) (bool, error) {
	val, err := s.rdb.Get(ctx, chatroomListKey(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) SetChatroomList(ctx context.Context, userID uint64, rooms []chat.Chatroom) error {
	b, err := json.Marshal(rooms)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, chatroomListKey(userID), b, ChatroomListTTL).Err()
}

func (s *Store) InvalidateChatroomList(ctx context.Context, userID uint64) error {
	return s.rdb.Del(ctx, chatroomListKey(userID)).Err()
}
