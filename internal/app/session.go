// Package app contains the session orchestration engine: the authoritative
// state machine, countdown coordination and reconnect grace handling for one
// presenter-led quiz run.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"slidecast/internal/domain"
	"slidecast/internal/scoring"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// QuizRepository loads quiz content. Invalidate drops any cached copy so the
// next load re-reads the backing store; the session calls it on every start,
// which is what lets operators edit the definition between runs.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	Invalidate(ctx context.Context, quizID string) error
}

// Options tunes a session. Zero values fall back to the defaults below.
type Options struct {
	QuizID           string
	Grace            time.Duration // reconnect window for disconnected players
	Tick             time.Duration // timer-update cadence
	AutoArmDelay     time.Duration // reading time before a timed question arms itself
	DefaultCountdown int           // seconds, when the slide has no time limit
	Clock            clockwork.Clock
	Logger           zerolog.Logger
	Rand             *rand.Rand
}

const (
	defaultGrace        = 5 * time.Minute
	defaultTick         = 250 * time.Millisecond
	defaultAutoArmDelay = 2 * time.Second
	defaultCountdownSec = 30
)

func (o *Options) applyDefaults() {
	if o.Grace <= 0 {
		o.Grace = defaultGrace
	}
	if o.Tick <= 0 {
		o.Tick = defaultTick
	}
	if o.AutoArmDelay <= 0 {
		o.AutoArmDelay = defaultAutoArmDelay
	}
	if o.DefaultCountdown <= 0 {
		o.DefaultCountdown = defaultCountdownSec
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}

// Session is the single authoritative owner of one quiz run. Every mutation
// happens under mu, including timer ticks and grace expiries, so state
// transitions never interleave partially.
type Session struct {
	out     Broadcaster
	quizzes QuizRepository
	opts    Options
	clock   clockwork.Clock
	log     zerolog.Logger

	mu             sync.Mutex
	status         Status
	quiz           domain.Quiz
	slideIndex     int
	questionActive bool
	revealAnswer   bool
	timerEnd       time.Time
	armedLimit     int // seconds of the running countdown
	players        map[string]*domain.Player
	answers        map[string]domain.Answer
	joinSeq        map[string]int
	seq            int
	rnd            *rand.Rand

	// slideEpoch invalidates scheduled work (auto-arm) from an earlier slide.
	slideEpoch int
	stopTick   chan struct{}
	pendingArm clockwork.Timer

	grace map[string]*graceRecord
}

// NewSession builds an idle session in the waiting state. The quiz definition
// is loaded on Start, not here.
func NewSession(out Broadcaster, quizzes QuizRepository, opts Options) *Session {
	opts.applyDefaults()
	return &Session{
		out:     out,
		quizzes: quizzes,
		opts:    opts,
		clock:   opts.Clock,
		log:     opts.Logger.With().Str("component", "session").Str("quiz_id", opts.QuizID).Logger(),
		status:  StatusWaiting,
		players: make(map[string]*domain.Player),
		answers: make(map[string]domain.Answer),
		joinSeq: make(map[string]int),
		rnd:     opts.Rand,
		grace:   make(map[string]*graceRecord),
	}
}

// PresenterConnect sends the full state snapshot to a presenter connection.
func (s *Session) PresenterConnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.out.ToConn(connID, EventGameState, s.snapshotLocked())
	s.log.Info().Str("conn_id", connID).Msg("presenter connected")
}

// Join attaches a player to the roster, restoring their standing when a grace
// record exists for the same display name. Valid in every state.
func (s *Session) Join(connID, name, avatar string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		name = "Anonymous"
	}
	if runes := []rune(name); len(runes) > domain.MaxNameLength {
		name = string(runes[:domain.MaxNameLength])
	}
	if avatar == "" {
		avatar = domain.DefaultAvatar
	}

	reconnected := false
	if rec, ok := s.grace[name]; ok {
		rec.release.Stop()
		delete(s.grace, name)
		delete(s.players, rec.oldConnID)
		delete(s.answers, rec.oldConnID)
		delete(s.joinSeq, rec.oldConnID)

		s.players[connID] = rec.player
		reconnected = true
	} else {
		s.players[connID] = &domain.Player{Name: name, Avatar: avatar}
	}
	player := s.players[connID]
	s.joinSeq[connID] = s.seq
	s.seq++

	s.out.ToConn(connID, EventJoinSuccess, JoinSuccess{
		Name:        player.Name,
		Avatar:      player.Avatar,
		PlayerCount: len(s.players),
		Reconnected: reconnected,
		Score:       player.Score,
	})

	// A mid-session joiner catches up with the current slide right away, in
	// the answer-safe projection.
	if s.status == StatusActive {
		if slide := s.currentSlideLocked(); slide != nil {
			s.out.ToConn(connID, EventSlideChanged, PlayerSlide{
				Slide:          slide.PlayerView(s.rnd),
				SlideIndex:     s.slideIndex,
				TotalSlides:    len(s.quiz.Slides),
				QuestionActive: s.questionActive,
				RevealAnswer:   s.revealAnswer,
			})
		}
	}

	s.out.ToPresenters(EventPlayerJoined, PlayerJoined{
		ID:          connID,
		Name:        player.Name,
		Avatar:      player.Avatar,
		PlayerCount: len(s.players),
	})

	s.log.Info().
		Str("conn_id", connID).
		Str("name", player.Name).
		Bool("reconnected", reconnected).
		Int("players", len(s.players)).
		Msg("player joined")
}

// Start transitions waiting|finished -> active: reloads the quiz definition,
// zeroes every score and shows slide 0. An unreadable definition is fatal for
// the start and surfaced to the caller.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.quizzes.Invalidate(ctx, s.opts.QuizID); err != nil {
		s.log.Warn().Err(err).Msg("quiz cache invalidation failed")
	}
	quiz, err := s.quizzes.GetQuiz(ctx, s.opts.QuizID)
	if err != nil {
		return fmt.Errorf("load quiz %q: %w", s.opts.QuizID, err)
	}
	if len(quiz.Slides) == 0 {
		return domain.ErrQuizEmpty
	}

	s.stopCountdownLocked()
	s.cancelPendingArmLocked()
	s.quiz = quiz
	s.status = StatusActive
	s.slideIndex = 0
	s.slideEpoch++
	s.answers = make(map[string]domain.Answer)
	s.questionActive = false
	s.revealAnswer = false
	s.timerEnd = time.Time{}
	for _, p := range s.players {
		p.Score = 0
		p.Answers = nil
	}

	s.out.Broadcast(EventQuizStarted, QuizStarted{TotalSlides: len(quiz.Slides)})
	s.showSlideLocked()
	s.log.Info().Int("slides", len(quiz.Slides)).Msg("quiz started")
	return nil
}

// Next advances the slide pointer. While a countdown runs it force-settles the
// current question instead; past the last slide it finishes the session.
func (s *Session) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return
	}
	if s.questionActive {
		s.settleLocked()
		return
	}
	if s.slideIndex < len(s.quiz.Slides)-1 {
		s.slideIndex++
		s.changeSlideLocked()
		return
	}

	s.status = StatusFinished
	s.cancelPendingArmLocked()
	s.out.Broadcast(EventQuizFinished, QuizFinished{Leaderboard: s.leaderboardLocked()})
	s.log.Info().Msg("quiz finished")
}

// Prev steps back one slide. Rejected while a question is running: stepping
// backward mid-question would reopen a settled question.
func (s *Session) Prev() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive || s.questionActive {
		return
	}
	if s.slideIndex == 0 {
		return
	}
	s.slideIndex--
	s.changeSlideLocked()
}

// StartTimer arms the countdown for the current question slide. Zero seconds
// means the slide's own limit, falling back to the configured default.
func (s *Session) StartTimer(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return
	}
	slide := s.currentSlideLocked()
	if slide == nil || !slide.IsQuestion() {
		return
	}
	if seconds <= 0 {
		seconds = slide.TimeLimit
	}
	if seconds <= 0 {
		seconds = s.opts.DefaultCountdown
	}

	s.cancelPendingArmLocked()
	s.armCountdownLocked(seconds)
	s.emitQuestionActiveLocked(*slide, seconds)
}

// SubmitAnswer records the first answer per connection while the question is
// open. Duplicate and out-of-window submissions are idempotent no-ops.
func (s *Session) SubmitAnswer(connID string, value json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.questionActive {
		return
	}
	if _, dup := s.answers[connID]; dup {
		return
	}
	player, ok := s.players[connID]
	if !ok {
		return
	}

	// Server-observed elapsed time; the client never supplies it.
	remaining := s.timerEnd.Sub(s.clock.Now())
	elapsed := int64(s.armedLimit)*1000 - remaining.Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}
	s.answers[connID] = domain.Answer{Value: value, ElapsedMS: elapsed}

	s.out.ToConn(connID, EventAnswerConfirmed, struct{}{})
	s.out.ToPresenters(EventAnswerReceived, AnswerReceived{
		PlayerID:    connID,
		PlayerName:  player.Name,
		AnswerCount: len(s.answers),
		PlayerCount: len(s.players),
	})

	s.log.Debug().Str("name", player.Name).Int64("elapsed_ms", elapsed).Msg("answer received")

	if len(s.players) > 0 && len(s.answers) >= len(s.players) {
		s.settleLocked()
	}
}

// RequestLeaderboard answers a direct leaderboard query.
func (s *Session) RequestLeaderboard(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.out.ToConn(connID, EventLeaderboard, Leaderboard{Leaderboard: s.leaderboardLocked()})
}

// Reset returns to waiting from any state, keeping the connected roster but
// zeroing every score, and refreshes the presenter snapshot.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopCountdownLocked()
	s.cancelPendingArmLocked()
	s.status = StatusWaiting
	s.slideIndex = 0
	s.slideEpoch++
	s.questionActive = false
	s.revealAnswer = false
	s.timerEnd = time.Time{}
	s.answers = make(map[string]domain.Answer)
	for _, p := range s.players {
		p.Score = 0
		p.Answers = nil
	}

	s.out.Broadcast(EventQuizReset, struct{}{})
	s.out.ToPresenters(EventGameState, s.snapshotLocked())
	s.log.Info().Msg("quiz reset")
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// PlayerScore looks up a connected player's score, for inspection.
func (s *Session) PlayerScore(connID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[connID]
	if !ok {
		return 0, false
	}
	return p.Score, true
}

func (s *Session) currentSlideLocked() *domain.Slide {
	if s.slideIndex < 0 || s.slideIndex >= len(s.quiz.Slides) {
		return nil
	}
	return &s.quiz.Slides[s.slideIndex]
}

// changeSlideLocked clears per-question state after the pointer moved, then
// broadcasts the new slide.
func (s *Session) changeSlideLocked() {
	s.slideEpoch++
	s.answers = make(map[string]domain.Answer)
	s.revealAnswer = false
	s.showSlideLocked()
}

// showSlideLocked fans out the current slide to both audiences and schedules
// the automatic countdown for timed questions.
func (s *Session) showSlideLocked() {
	slide := s.currentSlideLocked()
	if slide == nil {
		return
	}
	idx, total := s.slideIndex, len(s.quiz.Slides)

	s.out.ToPresenters(EventSlideChanged, PresenterSlide{
		Slide:       *slide,
		SlideIndex:  idx,
		TotalSlides: total,
		Leaderboard: s.leaderboardLocked(),
		PlayerCount: len(s.players),
	})
	s.out.ToPlayersEach(EventSlideChanged, func() any {
		return PlayerSlide{
			Slide:       slide.PlayerView(s.rnd),
			SlideIndex:  idx,
			TotalSlides: total,
		}
	})

	// Give players a moment to read the question before the countdown arms.
	if slide.IsQuestion() && slide.TimeLimit > 0 {
		epoch := s.slideEpoch
		limit := slide.TimeLimit
		s.cancelPendingArmLocked()
		s.pendingArm = s.clock.AfterFunc(s.opts.AutoArmDelay, func() {
			s.autoArm(epoch, limit)
		})
	}
}

func (s *Session) autoArm(epoch, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slideEpoch != epoch || s.status != StatusActive || s.questionActive {
		return
	}
	slide := s.currentSlideLocked()
	if slide == nil {
		return
	}
	s.armCountdownLocked(limit)
	s.emitQuestionActiveLocked(*slide, limit)
}

func (s *Session) emitQuestionActiveLocked(slide domain.Slide, seconds int) {
	s.out.ToPresenters(EventQuestionActive, QuestionActive{
		Slide:     slide.PlayerView(s.rnd),
		TimeLimit: seconds,
	})
	s.out.ToPlayersEach(EventQuestionActive, func() any {
		return QuestionActive{
			Slide:     slide.PlayerView(s.rnd),
			TimeLimit: seconds,
		}
	})
}

// settleLocked closes the current question exactly once: clearing the active
// flag first makes a racing "all answered" vs "deadline elapsed" trigger a
// no-op on the losing side.
func (s *Session) settleLocked() {
	if !s.questionActive {
		return
	}
	s.questionActive = false
	s.stopCountdownLocked()

	slide := s.currentSlideLocked()
	results := make(map[string]scoring.Result)
	if slide != nil && slide.IsQuestion() {
		for connID, ans := range s.answers {
			res := scoring.Score(*slide, ans)
			results[connID] = res
			if p, ok := s.players[connID]; ok {
				p.Score += res.Points
				p.Answers = append(p.Answers, domain.ScoredAnswer{
					SlideID: slide.ID,
					Points:  res.Points,
					Correct: res.Correct,
				})
			}
		}
	}
	s.revealAnswer = true

	s.out.Broadcast(EventTimeUp, TimeUp{
		Results:       results,
		CorrectAnswer: slide,
		Leaderboard:   s.leaderboardLocked(),
	})
	s.log.Info().Int("answers", len(results)).Msg("question settled")
}

// leaderboardLocked orders players by score descending; ties keep join order.
func (s *Session) leaderboardLocked() []domain.LeaderboardEntry {
	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return s.joinSeq[ids[i]] < s.joinSeq[ids[j]] })

	entries := make([]domain.LeaderboardEntry, 0, len(ids))
	for _, id := range ids {
		p := s.players[id]
		entries = append(entries, domain.LeaderboardEntry{
			ID:     id,
			Name:   p.Name,
			Avatar: p.Avatar,
			Score:  p.Score,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	return entries
}

func (s *Session) snapshotLocked() GameState {
	return GameState{
		Status:         s.status,
		SlideIndex:     s.slideIndex,
		TotalSlides:    len(s.quiz.Slides),
		QuestionActive: s.questionActive,
		RevealAnswer:   s.revealAnswer,
		PlayerCount:    len(s.players),
		Leaderboard:    s.leaderboardLocked(),
		Slide:          s.currentSlideLocked(),
	}
}

func (s *Session) cancelPendingArmLocked() {
	if s.pendingArm != nil {
		s.pendingArm.Stop()
		s.pendingArm = nil
	}
}
