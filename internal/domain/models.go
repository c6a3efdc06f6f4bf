package domain

import "encoding/json"

// DefaultAvatar is assigned when a joining player sends no glyph.
const DefaultAvatar = "🎓"

// MaxNameLength caps trimmed display names, in runes.
const MaxNameLength = 20

// Player is one connected participant and their accumulated standing.
type Player struct {
	Name    string
	Avatar  string
	Score   int
	Answers []ScoredAnswer
}

// ScoredAnswer is a settled answer kept on the player's history.
type ScoredAnswer struct {
	SlideID string
	Points  int
	Correct bool
}

// Answer is a pending submission for the current question. Value keeps the
// raw client payload; its shape depends on the slide variant and is decoded
// by the scoring engine. ElapsedMS is measured server-side from the moment
// the countdown was armed.
type Answer struct {
	Value     json.RawMessage
	ElapsedMS int64
}

// LeaderboardEntry is a snapshot-friendly view of a player.
type LeaderboardEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Score  int    `json:"score"`
}
