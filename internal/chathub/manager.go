// Package chathub is the WebSocket transport layer. The hub owns the set of
// connected clients and routes three kinds of traffic: client commands into
// the pairing/session/game services, store watch events back down to the
// affected clients, and chat messages across instances via Redis Pub/Sub.
package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"pairgogo/backend/internal/config"
	"pairgogo/backend/internal/games"
	"pairgogo/backend/internal/models"
	"pairgogo/backend/internal/pairing"
	"pairgogo/backend/internal/presence"
	"pairgogo/backend/internal/session"
	"pairgogo/backend/internal/storage"
	"pairgogo/backend/internal/store"
)

// PresenceTracker is the slice of the presence service the hub needs. It is
// satisfied by presence.Service; tests substitute a mock.
type PresenceTracker interface {
	Set(userID string, st presence.Status) error
	SetOffline(userID string) error
	SetTyping(sessionID, userID string) error
}

// hubEvent is the internal channel envelope watcher goroutines use to hand
// work back to the run loop, which owns all client state.
type hubEvent struct {
	deliver *models.ChatMessage // fan out to the session's local clients
	to      string              // non-empty: deliver to this user only
	attach  *models.ChatSession // session became active, attach participants
	ended   *models.ChatSession // session ended, detach participants
}

// ManagerService is the hub. The Run loop is the single owner of the
// Clients map and the per-session watcher registry; everything else reaches
// it through channels.
type ManagerService struct {
	Clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	IncomingCh   chan models.ChatMessage

	Store    store.Store
	Sessions *session.Service
	Games    *games.Set
	Storage  storage.Storage
	Presence PresenceTracker

	eventsCh chan hubEvent
	searchCh chan string
	pubSubCh chan models.ChatMessage

	// run-loop-owned registries
	userWatch map[string]context.CancelFunc // per-user active-session watcher
	groups    map[string]context.CancelFunc // per-session watcher group

	// shared with dispatch goroutines
	mu       sync.Mutex
	searches map[string]context.CancelFunc // running pairing coordinators
	hosts    map[string]context.CancelFunc // pong host supervisors
}

func NewManagerService(st store.Store, sessions *session.Service, gameSet *games.Set, storageSvc storage.Storage, pres PresenceTracker) *ManagerService {
	return &ManagerService{
		Clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		IncomingCh:   make(chan models.ChatMessage),
		Store:        st,
		Sessions:     sessions,
		Games:        gameSet,
		Storage:      storageSvc,
		Presence:     pres,
		eventsCh:     make(chan hubEvent, 64),
		searchCh:     make(chan string, 16),
		pubSubCh:     make(chan models.ChatMessage, 64),
		userWatch:    make(map[string]context.CancelFunc),
		groups:       make(map[string]context.CancelFunc),
		searches:     make(map[string]context.CancelFunc),
		hosts:        make(map[string]context.CancelFunc),
	}
}

// Run is the hub's main loop.
func (m *ManagerService) Run() {
	m.StartPubSubListener()

	for {
		select {
		case client := <-m.RegisterCh:
			m.handleRegister(client)

		case client := <-m.UnregisterCh:
			m.handleUnregister(client)

		case msg := <-m.IncomingCh:
			client, ok := m.Clients[msg.SenderID]
			if !ok {
				continue
			}
			go m.dispatch(client, msg)

		case ev := <-m.eventsCh:
			m.handleEvent(ev)

		case uid := <-m.searchCh:
			m.startSearch(uid)

		case msg := <-m.pubSubCh:
			m.deliver(msg)
		}
	}
}

func (m *ManagerService) handleRegister(client Client) {
	uid := client.GetUserID()

	if old, ok := m.Clients[uid]; ok {
		// A reconnect replaces the stale connection.
		old.Close()
	}
	m.Clients[uid] = client

	if err := m.Storage.EnsureUser(uid, client.GetUsername()); err != nil {
		log.Printf("ERROR: ensure user %s: %v", uid, err)
	}
	if err := m.Presence.Set(uid, presence.Online); err != nil {
		log.Printf("ERROR: presence for %s: %v", uid, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.userWatch[uid] = cancel
	go m.watchActive(ctx, uid)
	go m.watchInvites(ctx, uid)

	// Reconnects re-attach to a session that is already running.
	go func() {
		if sess, err := m.Sessions.ActiveFor(ctx, uid); err == nil && sess != nil {
			m.eventsCh <- hubEvent{attach: sess}
		}
	}()

	log.Printf("Client registered: %s", uid)
}

func (m *ManagerService) handleUnregister(client Client) {
	uid := client.GetUserID()
	current, ok := m.Clients[uid]
	if !ok || current != client {
		return // already replaced by a reconnect
	}
	delete(m.Clients, uid)

	if cancel, ok := m.userWatch[uid]; ok {
		cancel()
		delete(m.userWatch, uid)
	}
	m.cancelSearch(uid)
	m.cancelHost(uid)

	if err := m.Presence.SetOffline(uid); err != nil {
		log.Printf("ERROR: presence for %s: %v", uid, err)
	}

	sid := client.GetSessionID()
	client.Close()

	if sid != "" {
		m.maybeDropGroup(sid)
		// An anonymous partner will not come back; end the random session
		// so the other side is released. Direct sessions survive the drop.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			sess, err := m.Sessions.Get(ctx, sid)
			if err != nil || !sess.Active || sess.Kind != models.SessionRandom {
				return
			}
			if err := m.Sessions.End(ctx, sid, uid, models.EndSkip); err != nil {
				log.Printf("ERROR: end session %s on disconnect: %v", sid, err)
			}
		}()
	}

	log.Printf("Client unregistered: %s", uid)
}

func (m *ManagerService) handleEvent(ev hubEvent) {
	switch {
	case ev.deliver != nil && ev.to != "":
		if client, ok := m.Clients[ev.to]; ok {
			m.send(client, *ev.deliver)
		}
	case ev.deliver != nil:
		m.deliver(*ev.deliver)
	case ev.attach != nil:
		m.handleAttach(ev.attach)
	case ev.ended != nil:
		m.handleEnded(ev.ended)
	}
}

func (m *ManagerService) handleAttach(sess *models.ChatSession) {
	payload, err := json.Marshal(sess)
	if err != nil {
		log.Printf("ERROR: encode session %s: %v", sess.ID, err)
		return
	}

	local := false
	for _, uid := range sess.Participants {
		client, ok := m.Clients[uid]
		if !ok {
			continue
		}
		local = true
		if client.GetSessionID() == sess.ID {
			continue
		}
		client.SetSessionID(sess.ID)
		m.cancelSearch(uid)
		if err := m.Presence.Set(uid, presence.InChat); err != nil {
			log.Printf("ERROR: presence for %s: %v", uid, err)
		}
		m.send(client, models.ChatMessage{
			SenderID:  "system",
			SessionID: sess.ID,
			Type:      "session",
			Payload:   payload,
		})
	}
	if local {
		m.ensureGroup(sess.ID)
	}
}

func (m *ManagerService) handleEnded(sess *models.ChatSession) {
	if cancel, ok := m.groups[sess.ID]; ok {
		cancel()
		delete(m.groups, sess.ID)
	}

	payload, _ := json.Marshal(sess)
	for _, uid := range sess.Participants {
		client, ok := m.Clients[uid]
		if !ok {
			continue
		}
		if client.GetSessionID() == sess.ID {
			client.SetSessionID("")
		}
		m.cancelHost(uid)
		if err := m.Presence.Set(uid, presence.Online); err != nil {
			log.Printf("ERROR: presence for %s: %v", uid, err)
		}
		m.send(client, models.ChatMessage{
			SenderID:  "system",
			SessionID: sess.ID,
			Type:      "session",
			Payload:   payload,
		})

		if sess.EndedBy == uid {
			// The skipper goes straight back to searching.
			if sess.EndCause == models.EndSkip {
				m.startSearch(uid)
			}
			continue
		}
		m.send(client, models.ChatMessage{
			SenderID:  "system",
			SessionID: sess.ID,
			Type:      "system",
			Content:   "partner-left",
		})
		// The leftover side of a random chat goes back to searching after
		// a short grace period.
		if sess.Kind == models.SessionRandom && sess.EndCause == models.EndSkip {
			uid := uid
			time.AfterFunc(config.PartnerLeftGrace, func() { m.searchCh <- uid })
		}
	}
}

// deliver fans a message out to every local client attached to its session.
func (m *ManagerService) deliver(msg models.ChatMessage) {
	for _, client := range m.Clients {
		if client.GetSessionID() == msg.SessionID {
			m.send(client, msg)
		}
	}
}

// send is non-blocking: a client too slow to drain its buffer loses the
// message rather than stalling the hub.
func (m *ManagerService) send(client Client, msg models.ChatMessage) {
	select {
	case client.GetSendChannel() <- msg:
	default:
		log.Printf("WARNING: dropping message for slow client %s", client.GetUserID())
	}
}

// startSearch launches a pairing coordinator for the user. Run-loop only.
func (m *ManagerService) startSearch(uid string) {
	client, ok := m.Clients[uid]
	if !ok || client.GetSessionID() != "" {
		return
	}

	m.mu.Lock()
	if _, busy := m.searches[uid]; busy {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.searches[uid] = cancel
	m.mu.Unlock()

	m.send(client, models.ChatMessage{SenderID: "system", Type: "system", Content: "searching"})

	go func() {
		defer m.clearSearch(uid)
		coord := pairing.NewCoordinator(m.Store, m.Sessions, m.Storage, uid)
		sess, err := coord.Run(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Printf("ERROR: search for %s: %v", uid, err)
			}
			return
		}
		m.eventsCh <- hubEvent{attach: sess}
	}()
}

func (m *ManagerService) cancelSearch(uid string) {
	m.mu.Lock()
	if cancel, ok := m.searches[uid]; ok {
		cancel()
		delete(m.searches, uid)
	}
	m.mu.Unlock()
}

func (m *ManagerService) clearSearch(uid string) {
	m.mu.Lock()
	delete(m.searches, uid)
	m.mu.Unlock()
}

func (m *ManagerService) cancelHost(uid string) {
	m.mu.Lock()
	if cancel, ok := m.hosts[uid]; ok {
		cancel()
		delete(m.hosts, uid)
	}
	m.mu.Unlock()
}

// maybeDropGroup cancels the session watcher group when no local client is
// attached to the session anymore. Run-loop only.
func (m *ManagerService) maybeDropGroup(sessionID string) {
	for _, client := range m.Clients {
		if client.GetSessionID() == sessionID {
			return
		}
	}
	if cancel, ok := m.groups[sessionID]; ok {
		cancel()
		delete(m.groups, sessionID)
	}
}

// ensureGroup starts the watcher group for a session. Run-loop only.
func (m *ManagerService) ensureGroup(sessionID string) {
	if _, ok := m.groups[sessionID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.groups[sessionID] = cancel
	go m.watchSession(ctx, sessionID)
}

// watchActive follows the user's active-session index so the hub attaches
// them no matter where the session came from: their own search, the partner
// side of a match, or an accepted invite.
func (m *ManagerService) watchActive(ctx context.Context, uid string) {
	snaps, cancel := m.Store.Subscribe(ctx, store.ActiveKey(uid))
	defer cancel()

	for range snaps {
		sess, err := m.Sessions.ActiveFor(ctx, uid)
		if err != nil {
			continue
		}
		if sess != nil {
			m.eventsCh <- hubEvent{attach: sess}
		}
	}
}

// watchInvites pushes the user's pending direct-chat requests, first the
// current set and then every change.
func (m *ManagerService) watchInvites(ctx context.Context, uid string) {
	updates, cancel := m.Sessions.WatchRequests(ctx, uid)
	defer cancel()

	push := func(pending []models.ChatRequest) {
		payload, err := json.Marshal(pending)
		if err != nil {
			return
		}
		m.eventsCh <- hubEvent{
			to:      uid,
			deliver: &models.ChatMessage{SenderID: "system", Type: "invites", Payload: payload},
		}
	}

	if pending, err := m.Sessions.PendingFor(ctx, uid); err == nil && len(pending) > 0 {
		push(pending)
	}
	for pending := range updates {
		push(pending)
	}
}

// watchSession is the per-session watcher group: the session document plus
// all four game slots, forwarded to the run loop.
func (m *ManagerService) watchSession(ctx context.Context, sessionID string) {
	updates, cancel := m.Sessions.Watch(ctx, sessionID)
	defer cancel()
	tttCh, cancelTTT := m.Games.TicTacToe.Watch(ctx, sessionID)
	defer cancelTTT()
	rpsCh, cancelRPS := m.Games.RPS.Watch(ctx, sessionID)
	defer cancelRPS()
	bingoCh, cancelBingo := m.Games.Bingo.Watch(ctx, sessionID)
	defer cancelBingo()
	pongCh, cancelPong := m.Games.Pong.Watch(ctx, sessionID)
	defer cancelPong()

	for {
		select {
		case <-ctx.Done():
			return

		case sess, ok := <-updates:
			if !ok {
				return
			}
			if !sess.Active {
				m.eventsCh <- hubEvent{ended: &sess}
				return
			}
			payload, err := json.Marshal(sess)
			if err != nil {
				continue
			}
			m.eventsCh <- hubEvent{deliver: &models.ChatMessage{
				SenderID: "system", SessionID: sessionID, Type: "session", Payload: payload,
			}}

		case state, ok := <-tttCh:
			if !ok {
				return
			}
			m.forwardGame(sessionID, games.KindTicTacToe, state)
		case state, ok := <-rpsCh:
			if !ok {
				return
			}
			m.forwardGame(sessionID, games.KindRPS, state)
		case state, ok := <-bingoCh:
			if !ok {
				return
			}
			m.forwardGame(sessionID, games.KindBingo, state)
		case state, ok := <-pongCh:
			if !ok {
				return
			}
			m.forwardGame(sessionID, games.KindPong, state)
		}
	}
}

func (m *ManagerService) forwardGame(sessionID string, kind games.Kind, state any) {
	payload, err := json.Marshal(state)
	if err != nil {
		log.Printf("ERROR: encode %s state for %s: %v", kind, sessionID, err)
		return
	}
	m.eventsCh <- hubEvent{deliver: &models.ChatMessage{
		SenderID:  "system",
		SessionID: sessionID,
		Type:      "game",
		Content:   string(kind),
		Payload:   payload,
	}}
}
