// Package presence implements the presence collaborator: a key→status map
// with last-write-wins semantics and an automatic "offline" write when a
// client's connection goes away (the hub calls SetOffline on unregister).
package presence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"pairgogo/backend/internal/config"
)

// Status of one user.
type Status string

const (
	Online  Status = "online"
	InChat  Status = "in-chat"
	Offline Status = "offline"
)

// Service is the Redis-backed presence store. Presence and typing flags are
// plain overwrites: they are not correctness-critical, so no transaction.
type Service struct {
	Redis *redis.Client
	Ctx   context.Context
}

func NewService(rdb *redis.Client) *Service {
	return &Service{Redis: rdb, Ctx: context.Background()}
}

// Set writes the user's status and announces it on the user's channel.
func (s *Service) Set(userID string, st Status) error {
	if err := s.Redis.Set(s.Ctx, "presence:"+userID, string(st), 0).Err(); err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, "presence_ch:"+userID, string(st)).Err()
}

// SetOffline is the disconnect hook.
func (s *Service) SetOffline(userID string) error {
	return s.Set(userID, Offline)
}

// Get returns the current status; a missing key reads as offline.
func (s *Service) Get(userID string) (Status, error) {
	val, err := s.Redis.Get(s.Ctx, "presence:"+userID).Result()
	if errors.Is(err, redis.Nil) {
		return Offline, nil
	}
	if err != nil {
		return Offline, err
	}
	return Status(val), nil
}

// Watch streams status changes for one user until cancel is called.
func (s *Service) Watch(ctx context.Context, userID string) (<-chan Status, func()) {
	out := make(chan Status, 4)
	subCtx, cancel := context.WithCancel(ctx)
	pubsub := s.Redis.Subscribe(subCtx, "presence_ch:"+userID)

	go func() {
		defer pubsub.Close()
		defer close(out)
		if st, err := s.Get(userID); err == nil {
			out <- st
		}
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- Status(msg.Payload):
				default:
				}
			}
		}
	}()
	return out, cancel
}

// SetTyping raises the typing flag for a user in a session. The key expires
// on its own after the inactivity window; callers just keep re-setting it
// while input continues.
func (s *Service) SetTyping(sessionID, userID string) error {
	return s.Redis.Set(s.Ctx, "typing:"+sessionID+":"+userID, "1", config.TypingTTL).Err()
}

// ClearTyping drops the flag immediately (message sent).
func (s *Service) ClearTyping(sessionID, userID string) error {
	return s.Redis.Del(s.Ctx, "typing:"+sessionID+":"+userID).Err()
}

// IsTyping reports whether the flag is currently raised.
func (s *Service) IsTyping(sessionID, userID string) (bool, error) {
	err := s.Redis.Get(s.Ctx, "typing:"+sessionID+":"+userID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
