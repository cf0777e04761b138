package games

import (
	"context"
	"log"
	"math"
	"time"

	"pairgogo/backend/internal/config"
	"pairgogo/backend/internal/store"
)

// PongBall is the ball's normalized position and per-tick velocity.
type PongBall struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}

// PongState is the pong slot payload. The requester is the host and the sole
// writer of ball physics and scoring; each player writes only their own
// paddle position, last-write-wins. The requester defends the bottom edge,
// the responder the top. Paddle values are the paddle center's normalized
// position along its edge.
type PongState struct {
	Meta
	HostUID string             `json:"hostUid"`
	Ball    PongBall           `json:"ball"`
	Paddles map[string]float64 `json:"paddles"`
}

func (s *PongState) meta() *Meta { return &s.Meta }

func pongServe(vxSign, vySign float64) PongBall {
	return PongBall{
		X:  0.5,
		Y:  0.5,
		VX: vxSign * config.PongServeSpeedX,
		VY: vySign * config.PongServeSpeedY,
	}
}

// Pong drives the pong slot.
type Pong struct {
	*Engine[*PongState]
}

func NewPong(st store.Store) *Pong {
	fresh := func(s *PongState) {
		s.Status = StatusActive
		s.HostUID = s.RequesterID
		s.Ball = pongServe(1, 1)
		s.Paddles = map[string]float64{s.RequesterID: 0.5, s.ResponderID: 0.5}
		// The score counts goals within the current match; a carried score
		// would sit at the win threshold from the first goal.
		s.Scores = map[string]int{}
	}
	return &Pong{Engine: &Engine[*PongState]{
		Store: st,
		Kind:  KindPong,
		init:  func() *PongState { return &PongState{} },
		start: fresh,
		reset: func(s *PongState, _ string) { fresh(s) },
	}}
}

// MovePaddle writes the player's own paddle position. Clamped to [0,1];
// never rejected on contention, last write wins.
func (g *Pong) MovePaddle(ctx context.Context, sessionID, uid string, pos float64) error {
	return g.Mutate(ctx, sessionID, func(s *PongState) (bool, error) {
		if s.Status != StatusActive || !s.Has(uid) {
			return false, nil
		}
		s.Paddles[uid] = math.Max(0, math.Min(1, pos))
		return true, nil
	})
}

// Tick advances the simulation by one step. Only the host may tick. The
// returned state is the post-tick document, or nil when the guard rejected
// (missing slot, not active, not the host).
func (g *Pong) Tick(ctx context.Context, sessionID, hostID string) (*PongState, error) {
	var result *PongState
	err := g.Mutate(ctx, sessionID, func(s *PongState) (bool, error) {
		if s.Status != StatusActive || s.HostUID != hostID {
			return false, nil
		}
		g.step(s)
		result = s
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// step moves the ball, bounces it off the side walls, and resolves the
// paddle bands. A miss scores for the opposite player and re-serves toward
// the scorer's side; the first player at the win threshold ends the match.
func (g *Pong) step(s *PongState) {
	ball := &s.Ball
	ball.X += ball.VX
	ball.Y += ball.VY

	if ball.X < config.PongWallMin || ball.X > config.PongWallMax {
		ball.VX = -ball.VX
	}

	// Bottom edge: requester's paddle.
	if ball.Y >= config.PongBottomBand {
		if math.Abs(ball.X-s.Paddles[s.RequesterID]) <= config.PongPaddleReach {
			ball.VY = -math.Abs(ball.VY)
		} else {
			g.score(s, s.ResponderID, pongServe(1, -1))
			return
		}
	}

	// Top edge: responder's paddle.
	if ball.Y <= config.PongTopBand {
		if math.Abs(ball.X-s.Paddles[s.ResponderID]) <= config.PongPaddleReach {
			ball.VY = math.Abs(ball.VY)
		} else {
			g.score(s, s.RequesterID, pongServe(-1, 1))
			return
		}
	}
}

func (g *Pong) score(s *PongState, scorerUID string, serve PongBall) {
	s.AddPoint(scorerUID)
	s.Ball = serve
	if s.Scores[scorerUID] >= config.PongWinScore {
		s.conclude(StatusEnded, scorerUID)
	}
}

// RunHost runs the host's physics loop, pushing an authoritative state every
// tick until the game leaves the active state or ctx is cancelled. Meant to
// run in its own goroutine on the host's connection.
func (g *Pong) RunHost(ctx context.Context, sessionID, hostID string) {
	ticker := time.NewTicker(config.PongTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state, err := g.Tick(ctx, sessionID, hostID)
			if err != nil {
				log.Printf("ERROR: pong tick for session %s: %v", sessionID, err)
				return
			}
			if state == nil || state.Status != StatusActive {
				return
			}
		}
	}
}
