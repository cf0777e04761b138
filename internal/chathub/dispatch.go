package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"pairgogo/backend/internal/games"
	"pairgogo/backend/internal/models"
	"pairgogo/backend/internal/session"
)

// dispatch routes one client message. Runs in its own goroutine; it must
// not touch the run loop's registries, and client responses go back through
// eventsCh so only the run loop ever writes to a send channel.
func (m *ManagerService) dispatch(client Client, msg models.ChatMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch msg.Type {
	case "text":
		m.handleText(ctx, client, msg)
	case "typing":
		m.handleTyping(client)
	case "session":
		m.handleSessionCommand(ctx, client, msg)
	case "game":
		m.handleGameCommand(ctx, client, msg)
	default:
		log.Printf("WARNING: unknown message type %q from %s", msg.Type, client.GetUserID())
	}
}

// reply sends a system message to one client via the run loop.
func (m *ManagerService) reply(uid, content string) {
	m.eventsCh <- hubEvent{
		to:      uid,
		deliver: &models.ChatMessage{SenderID: "system", Type: "system", Content: content},
	}
}

func (m *ManagerService) handleText(ctx context.Context, client Client, msg models.ChatMessage) {
	sid := client.GetSessionID()
	if sid == "" || msg.Content == "" {
		return
	}
	// The session id comes from the attached session, never from the body.
	msg.SessionID = sid

	if err := m.Storage.SaveMessage(&msg); err != nil {
		log.Printf("ERROR: save message in %s: %v", sid, err)
	}
	if err := m.Storage.PublishMessage(sid, msg); err != nil {
		log.Printf("ERROR: publish message in %s: %v", sid, err)
	}
}

func (m *ManagerService) handleTyping(client Client) {
	sid := client.GetSessionID()
	if sid == "" {
		return
	}
	uid := client.GetUserID()
	if err := m.Presence.SetTyping(sid, uid); err != nil {
		log.Printf("ERROR: typing flag for %s: %v", uid, err)
	}
	msg := models.ChatMessage{SenderID: uid, SessionID: sid, Type: "typing"}
	if err := m.Storage.PublishMessage(sid, msg); err != nil {
		log.Printf("ERROR: publish typing in %s: %v", sid, err)
	}
}

func (m *ManagerService) handleSessionCommand(ctx context.Context, client Client, msg models.ChatMessage) {
	var cmd models.SessionCommand
	if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
		log.Printf("WARNING: bad session command from %s: %v", client.GetUserID(), err)
		return
	}
	uid := client.GetUserID()

	switch cmd.Action {
	case "search":
		banned, err := m.Storage.IsUserBanned(uid)
		if err != nil {
			log.Printf("ERROR: ban check for %s: %v", uid, err)
		}
		if banned {
			m.reply(uid, "banned")
			return
		}
		m.searchCh <- uid

	case "cancel":
		m.cancelSearch(uid)
		m.reply(uid, "search-canceled")

	case "skip", "end", "block":
		sid := client.GetSessionID()
		if sid == "" {
			return
		}
		cause := models.EndChat
		switch cmd.Action {
		case "skip":
			cause = models.EndSkip
		case "block":
			cause = models.EndBlock
		}
		// On skip the ended-session event puts both sides back into the
		// pool, so no explicit re-search is needed here.
		if err := m.Sessions.End(ctx, sid, uid, cause); err != nil {
			log.Printf("ERROR: end session %s: %v", sid, err)
		}

	case "invite":
		if cmd.TargetID == "" || cmd.TargetID == uid {
			return
		}
		profile, err := m.Storage.GetProfile(cmd.TargetID)
		if err != nil {
			m.reply(uid, "unknown-user")
			return
		}
		if err := m.Sessions.Request(ctx, uid, client.GetUsername(), cmd.TargetID, profile.Username); err != nil {
			log.Printf("ERROR: invite %s -> %s: %v", uid, cmd.TargetID, err)
		}

	case "accept_invite":
		_, err := m.Sessions.AcceptRequest(ctx, cmd.TargetID, uid)
		switch {
		case errors.Is(err, session.ErrBusy):
			m.reply(uid, "busy")
		case errors.Is(err, session.ErrNoRequest):
			m.reply(uid, "no-request")
		case err != nil:
			log.Printf("ERROR: accept invite %s -> %s: %v", cmd.TargetID, uid, err)
		}
		// On success both sides attach through their active-session watch.

	case "reject_invite":
		if err := m.Sessions.RejectRequest(ctx, cmd.TargetID, uid); err != nil {
			log.Printf("ERROR: reject invite %s -> %s: %v", cmd.TargetID, uid, err)
		}

	default:
		log.Printf("WARNING: unknown session action %q from %s", cmd.Action, uid)
	}
}

func (m *ManagerService) handleGameCommand(ctx context.Context, client Client, msg models.ChatMessage) {
	var cmd models.GameCommand
	if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
		log.Printf("WARNING: bad game command from %s: %v", client.GetUserID(), err)
		return
	}
	uid := client.GetUserID()
	sid := client.GetSessionID()
	if sid == "" {
		return
	}
	kind := games.Kind(cmd.Game)

	var err error
	switch cmd.Action {
	case "request", "accept", "decline", "cancel", "rematch", "close":
		slot, ok := m.Games.Slot(kind)
		if !ok {
			log.Printf("WARNING: unknown game %q from %s", cmd.Game, uid)
			return
		}
		switch cmd.Action {
		case "request":
			var sess *models.ChatSession
			sess, err = m.Sessions.Get(ctx, sid)
			if err != nil {
				break
			}
			err = slot.Request(ctx, sid, uid, sess.Other(uid))
			if err == nil && kind == games.KindPong {
				m.ensurePongHost(uid, sid)
			}
		case "accept":
			err = slot.Accept(ctx, sid, uid)
		case "decline":
			err = slot.Decline(ctx, sid, uid)
		case "cancel":
			err = slot.CancelRequest(ctx, sid, uid)
		case "rematch":
			err = slot.Rematch(ctx, sid, uid)
		case "close":
			err = slot.Close(ctx, sid)
		}

	case "move":
		err = m.Games.TicTacToe.Move(ctx, sid, uid, cmd.Cell)
	case "choose":
		err = m.Games.RPS.Choose(ctx, sid, uid, games.RPSChoice(cmd.Choice))
	case "board":
		err = m.Games.Bingo.SetBoard(ctx, sid, uid, cmd.Board)
	case "ready":
		err = m.Games.Bingo.SetReady(ctx, sid, uid)
	case "play":
		err = m.Games.Bingo.PlayNumber(ctx, sid, uid, cmd.Number)
	case "paddle":
		err = m.Games.Pong.MovePaddle(ctx, sid, uid, cmd.Y)

	default:
		log.Printf("WARNING: unknown game action %q from %s", cmd.Action, uid)
		return
	}

	if err != nil {
		log.Printf("ERROR: game %s/%s by %s in %s: %v", cmd.Game, cmd.Action, uid, sid, err)
	}
}

// ensurePongHost starts the host supervisor for uid in the given session:
// whenever the pong slot is active and uid is its host, the authoritative
// physics loop runs on this instance. Idempotent per user.
func (m *ManagerService) ensurePongHost(uid, sessionID string) {
	m.mu.Lock()
	if _, running := m.hosts[uid]; running {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.hosts[uid] = cancel
	m.mu.Unlock()

	go func() {
		updates, stop := m.Games.Pong.Watch(ctx, sessionID)
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case state, ok := <-updates:
				if !ok {
					return
				}
				if state.Status == games.StatusActive && state.HostUID == uid {
					// Blocks until the game leaves the active state, then
					// we go back to watching for a rematch.
					m.Games.Pong.RunHost(ctx, sessionID, uid)
				}
			}
		}
	}()
}
