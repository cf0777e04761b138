package session

import (
	"context"
	"errors"
	"time"

	"pairgogo/backend/internal/models"
	"pairgogo/backend/internal/store"
)

// Request files (or re-files) a direct chat request. One slot per (from, to)
// pair, so a re-send overwrites the previous request instead of stacking.
func (s *Service) Request(ctx context.Context, fromID, fromName, toID, toName string) error {
	req := models.ChatRequest{
		FromID:    fromID,
		FromName:  fromName,
		ToID:      toID,
		ToName:    toName,
		Status:    models.RequestPending,
		CreatedAt: time.Now(),
	}
	return s.Store.Put(ctx, store.RequestKey(fromID, toID), &req)
}

// AcceptRequest turns a pending request into a direct session. The guard and
// the creation run in one transaction: the request must still be pending and
// addressed to the acceptor, an existing active session for the pair is
// joined instead of duplicated, and a participant busy elsewhere aborts with
// ErrBusy, leaving the request pending.
func (s *Service) AcceptRequest(ctx context.Context, fromID, toID string) (*models.ChatSession, error) {
	reqKey := store.RequestKey(fromID, toID)
	watched := []string{reqKey, store.ActiveKey(fromID), store.ActiveKey(toID)}

	var result *models.ChatSession
	var created bool
	err := s.Store.Update(ctx, watched, func(tx store.Tx) error {
		result, created = nil, false

		var req models.ChatRequest
		if err := tx.Get(reqKey, &req); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNoRequest
			}
			return err
		}
		if req.Status != models.RequestPending || req.ToID != toID {
			return ErrNoRequest
		}

		existing, err := ActiveForInTx(tx, fromID)
		if err != nil {
			return err
		}
		if existing != nil && !existing.Has(toID) {
			return ErrBusy
		}
		if existing == nil {
			other, err := ActiveForInTx(tx, toID)
			if err != nil {
				return err
			}
			if other != nil {
				return ErrBusy
			}
		}

		if existing != nil {
			result = existing
		} else {
			result = New(fromID, req.FromName, toID, req.ToName, models.SessionDirect)
			if err := CreateInTx(tx, result); err != nil {
				return err
			}
			created = true
		}

		req.Status = models.RequestAccepted
		req.SessionID = result.ID
		return tx.Put(reqKey, &req)
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.RecordCreated(result)
	}
	return result, nil
}

// RejectRequest marks a pending request rejected. Any other state is left
// alone.
func (s *Service) RejectRequest(ctx context.Context, fromID, toID string) error {
	reqKey := store.RequestKey(fromID, toID)
	return s.Store.Update(ctx, []string{reqKey}, func(tx store.Tx) error {
		var req models.ChatRequest
		if err := tx.Get(reqKey, &req); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		if req.Status != models.RequestPending {
			return nil
		}
		req.Status = models.RequestRejected
		return tx.Put(reqKey, &req)
	})
}

// PendingFor lists requests currently waiting on the given recipient.
func (s *Service) PendingFor(ctx context.Context, uid string) ([]models.ChatRequest, error) {
	snap, err := s.Store.List(ctx, store.RequestPrefix)
	if err != nil {
		return nil, err
	}
	var out []models.ChatRequest
	for key := range snap {
		var req models.ChatRequest
		if err := snap.Decode(key, &req); err != nil {
			continue
		}
		if req.ToID == uid && req.Status == models.RequestPending {
			out = append(out, req)
		}
	}
	return out, nil
}

// WatchRequests streams the recipient's pending requests on every change.
func (s *Service) WatchRequests(ctx context.Context, uid string) (<-chan []models.ChatRequest, func()) {
	snaps, cancel := s.Store.Subscribe(ctx, store.RequestPrefix)
	out := make(chan []models.ChatRequest, 1)

	go func() {
		defer close(out)
		for snap := range snaps {
			var pending []models.ChatRequest
			for key := range snap {
				var req models.ChatRequest
				if err := snap.Decode(key, &req); err != nil {
					continue
				}
				if req.ToID == uid && req.Status == models.RequestPending {
					pending = append(pending, req)
				}
			}
			select {
			case out <- pending:
			default:
				select {
				case <-out:
				default:
				}
				out <- pending
			}
		}
	}()
	return out, cancel
}
