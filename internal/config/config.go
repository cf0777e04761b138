package config

import "time"

// Pairing protocol tuning. The timeouts are UX-driven, not protocol
// invariants, so they live here instead of being hard-wired at call sites.
const (
	// MatchDebounce coalesces pool-snapshot-triggered match attempts so a
	// burst of enqueues does not produce a herd of competing transactions.
	MatchDebounce = 500 * time.Millisecond

	// MatchConfirmTimeout bounds how long a client waits for its session to
	// appear after its pool entry vanished. On expiry it re-enters the pool.
	MatchConfirmTimeout = 30 * time.Second

	// PartnerLeftGrace is how long the "partner left" state is shown before
	// the remaining user is put back into the waiting pool.
	PartnerLeftGrace = 2 * time.Second

	// TypingTTL clears a typing flag after this much input inactivity.
	TypingTTL = 1500 * time.Millisecond
)

// Rock-paper-scissors.
const (
	RPSWinScore  = 2
	RPSMaxRounds = 3
	// RPSPickTimer is enforced client-side: when it expires the round's
	// input is locked locally. The server never rejects a late pick.
	RPSPickTimer = 10 * time.Second
)

// Bingo.
const (
	BingoBoardSize = 25
	BingoWinLines  = 5
)

// Pong. Coordinates are normalized to [0,1] on both axes.
const (
	PongWinScore     = 5
	PongTick         = 50 * time.Millisecond // ~20Hz authoritative push
	PongWallMin      = 0.03
	PongWallMax      = 0.97
	PongTopBand      = 0.08
	PongBottomBand   = 0.92
	PongPaddleReach  = 0.2 // half-width of the paddle hit band
	PongServeSpeedX  = 0.006
	PongServeSpeedY  = 0.004
)

// Store transaction retry bound. The redis implementation retries optimistic
// transactions this many times before giving up with ErrConflict.
const StoreTxMaxRetries = 20

// Reports / bans.
const (
	BanThresholdReports = 5
	BanReportWindow     = 24 * time.Hour
	BanDuration         = 24 * time.Hour
)
