// Package session owns the chat-session lifecycle: creation (by the pairing
// coordinator or an accepted direct request), the active-session-per-user
// index, and the guarded transition to ended. Sessions are never deleted;
// ending one only flips Active and stamps EndedAt.
package session

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"pairgogo/backend/internal/models"
	"pairgogo/backend/internal/store"
)

var (
	// ErrBusy means a participant already has an active session with
	// somebody else, so creating a new one would break exclusivity.
	ErrBusy = errors.New("session: participant already in an active session")
	// ErrNoRequest means accept/reject found no pending request slot.
	ErrNoRequest = errors.New("session: no pending chat request")
)

// Archive receives the durable side effects of session transitions. It is
// satisfied by storage.Service; a nil Archive skips archiving (tests).
type Archive interface {
	SaveSessionRecord(rec *models.SessionRecord) error
	CloseSessionRecord(sessionID string) error
	BlockUser(blockerID, blockedID string) error
}

// Service drives session state in the shared store.
type Service struct {
	Store   store.Store
	Archive Archive
}

func NewService(st store.Store, archive Archive) *Service {
	return &Service{Store: st, Archive: archive}
}

// New builds an in-memory session document. Nothing is persisted.
func New(u1, name1, u2, name2 string, kind models.SessionKind) *models.ChatSession {
	return &models.ChatSession{
		ID:           uuid.New().String(),
		Participants: [2]string{u1, u2},
		Names:        map[string]string{u1: name1, u2: name2},
		Kind:         kind,
		Active:       true,
		CreatedAt:    time.Now(),
	}
}

// CreateInTx writes the session document and both active/ index entries
// inside an already-running transaction. Callers are responsible for
// watching the active keys and verifying neither participant is busy.
func CreateInTx(tx store.Tx, sess *models.ChatSession) error {
	if err := tx.Put(store.SessionKey(sess.ID), sess); err != nil {
		return err
	}
	for _, uid := range sess.Participants {
		if err := tx.Put(store.ActiveKey(uid), sess.ID); err != nil {
			return err
		}
	}
	return nil
}

// Get reads one session document.
func (s *Service) Get(ctx context.Context, id string) (*models.ChatSession, error) {
	var sess models.ChatSession
	if err := s.Store.Get(ctx, store.SessionKey(id), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// ActiveFor returns the user's active session, or (nil, nil) when there is
// none. A stale index entry pointing at an ended session reads as none.
func (s *Service) ActiveFor(ctx context.Context, uid string) (*models.ChatSession, error) {
	var sessionID string
	err := s.Store.Get(ctx, store.ActiveKey(uid), &sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess, err := s.Get(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !sess.Active {
		return nil, nil
	}
	return sess, nil
}

// ExistingBetween returns the active session shared by the two users, if
// any. Used to short-circuit both pairing and direct-request acceptance so
// a pair never ends up with two simultaneous sessions.
func (s *Service) ExistingBetween(ctx context.Context, u1, u2 string) (*models.ChatSession, error) {
	sess, err := s.ActiveFor(ctx, u1)
	if err != nil || sess == nil {
		return nil, err
	}
	if sess.Has(u2) {
		return sess, nil
	}
	return nil, nil
}

// CreateDirect creates a direct session between two users, short-circuiting
// to an existing one for the pair and refusing when either side is busy
// elsewhere. All checks re-run inside the transaction.
func (s *Service) CreateDirect(ctx context.Context, u1, name1, u2, name2 string) (*models.ChatSession, error) {
	var result *models.ChatSession
	watched := []string{store.ActiveKey(u1), store.ActiveKey(u2)}

	err := s.Store.Update(ctx, watched, func(tx store.Tx) error {
		existing, err := ActiveForInTx(tx, u1)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Has(u2) {
				result = existing
				return nil
			}
			return ErrBusy
		}
		other, err := ActiveForInTx(tx, u2)
		if err != nil {
			return err
		}
		if other != nil {
			return ErrBusy
		}

		result = New(u1, name1, u2, name2, models.SessionDirect)
		return CreateInTx(tx, result)
	})
	if err != nil {
		return nil, err
	}
	s.RecordCreated(result)
	return result, nil
}

// End flips the session inactive and clears both active/ indexes in one
// atomic unit. Ending an already-ended session is a silent no-op. A block
// additionally records the block in the directory.
func (s *Service) End(ctx context.Context, sessionID, byUID string, cause models.EndCause) error {
	key := store.SessionKey(sessionID)
	var ended *models.ChatSession

	err := s.Store.Update(ctx, []string{key}, func(tx store.Tx) error {
		ended = nil
		var sess models.ChatSession
		if err := tx.Get(key, &sess); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		if !sess.Active {
			return nil
		}

		now := time.Now()
		sess.Active = false
		sess.EndedAt = &now
		sess.EndedBy = byUID
		sess.EndCause = cause
		if err := tx.Put(key, &sess); err != nil {
			return err
		}
		// Clear the index entries, but only where they still point here:
		// a participant may already be in a newer session.
		for _, uid := range sess.Participants {
			var current string
			if err := tx.Get(store.ActiveKey(uid), &current); err == nil && current == sess.ID {
				tx.Delete(store.ActiveKey(uid))
			}
		}
		ended = &sess
		return nil
	})
	if err != nil || ended == nil {
		return err
	}

	if s.Archive != nil {
		if aerr := s.Archive.CloseSessionRecord(sessionID); aerr != nil {
			log.Printf("session: archive close for %s failed: %v", sessionID, aerr)
		}
		if cause == models.EndBlock {
			if berr := s.Archive.BlockUser(byUID, ended.Other(byUID)); berr != nil {
				log.Printf("session: block by %s failed: %v", byUID, berr)
			}
		}
	}
	return nil
}

// Watch streams the session document after every change.
func (s *Service) Watch(ctx context.Context, sessionID string) (<-chan models.ChatSession, func()) {
	key := store.SessionKey(sessionID)
	snaps, cancel := s.Store.Subscribe(ctx, key)
	out := make(chan models.ChatSession, 1)

	go func() {
		defer close(out)
		for snap := range snaps {
			var sess models.ChatSession
			if err := snap.Decode(key, &sess); err != nil {
				continue
			}
			select {
			case out <- sess:
			default:
				select {
				case <-out:
				default:
				}
				out <- sess
			}
		}
	}()
	return out, cancel
}

// RecordCreated archives the freshly created session. Also called by the
// pairing coordinator after a successful atomic match.
func (s *Service) RecordCreated(sess *models.ChatSession) {
	if s.Archive == nil || sess == nil {
		return
	}
	err := s.Archive.SaveSessionRecord(&models.SessionRecord{
		SessionID: sess.ID,
		User1ID:   sess.Participants[0],
		User2ID:   sess.Participants[1],
		Kind:      string(sess.Kind),
		Active:    sess.Active,
		StartedAt: sess.CreatedAt.Unix(),
	})
	if err != nil {
		log.Printf("session: archive create for %s failed: %v", sess.ID, err)
	}
}

// ActiveForInTx resolves a user's active session through the transaction's
// own reads so the check participates in conflict detection.
func ActiveForInTx(tx store.Tx, uid string) (*models.ChatSession, error) {
	var sessionID string
	err := tx.Get(store.ActiveKey(uid), &sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess models.ChatSession
	err = tx.Get(store.SessionKey(sessionID), &sess)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !sess.Active {
		return nil, nil
	}
	return &sess, nil
}
