package app

import (
	"github.com/jonboulle/clockwork"

	"slidecast/internal/domain"
)

// graceRecord keeps a disconnected player's snapshot until the window
// expires or a rejoin under the same display name consumes it.
type graceRecord struct {
	player    *domain.Player
	oldConnID string
	release   clockwork.Timer
}

// Disconnect moves the player into the grace table keyed by display name so a
// rejoin can restore their standing. At most one record exists per name; a
// second disconnect under the same name replaces the first.
func (s *Session) Disconnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[connID]
	if !ok {
		// Presenter or a connection that never joined.
		return
	}

	delete(s.players, connID)
	delete(s.answers, connID)
	delete(s.joinSeq, connID)

	if old, ok := s.grace[player.Name]; ok {
		old.release.Stop()
	}
	rec := &graceRecord{player: player, oldConnID: connID}
	rec.release = s.clock.AfterFunc(s.opts.Grace, func() {
		s.expireGrace(player.Name, rec)
	})
	s.grace[player.Name] = rec

	s.out.ToPresenters(EventPlayerDisconnected, PlayerPresence{
		ID:          connID,
		Name:        player.Name,
		PlayerCount: len(s.players),
	})
	s.log.Info().
		Str("name", player.Name).
		Dur("grace", s.opts.Grace).
		Msg("player disconnected, grace window open")

	// The departed player no longer gates early settlement.
	if s.questionActive && len(s.players) > 0 && len(s.answers) >= len(s.players) {
		s.settleLocked()
	}
}

// expireGrace drops the record if it is still the current one; a rejoin or a
// newer disconnect under the same name leaves this call with nothing to do.
func (s *Session) expireGrace(name string, rec *graceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grace[name] != rec {
		return
	}
	delete(s.grace, name)

	s.out.ToPresenters(EventPlayerLeft, PlayerPresence{
		ID:          rec.oldConnID,
		Name:        name,
		PlayerCount: len(s.players),
	})
	s.log.Info().Str("name", name).Msg("player left for good, grace window expired")
}
