package app

import (
	"slidecast/internal/domain"
	"slidecast/internal/scoring"
)

// Event names shared by the session and the transport layer.
const (
	EventGameState          = "game-state"
	EventJoinSuccess        = "join-success"
	EventPlayerJoined       = "player-joined"
	EventQuizStarted        = "quiz-started"
	EventSlideChanged       = "slide-changed"
	EventQuestionActive     = "question-active"
	EventTimerUpdate        = "timer-update"
	EventTimeUp             = "time-up"
	EventAnswerConfirmed    = "answer-confirmed"
	EventAnswerReceived     = "answer-received"
	EventLeaderboard        = "leaderboard"
	EventQuizFinished       = "quiz-finished"
	EventQuizReset          = "quiz-reset"
	EventPlayerDisconnected = "player-disconnected"
	EventPlayerLeft         = "player-left"
)

// Broadcaster fans session events out to connected clients. Implementations
// must not block: the session invokes these while holding its state lock, so
// sends are best-effort (buffered, slow clients dropped). The payload builder
// passed to ToPlayersEach is called synchronously, once per player connection.
type Broadcaster interface {
	Broadcast(event string, payload any)
	ToPresenters(event string, payload any)
	ToPlayers(event string, payload any)
	ToPlayersEach(event string, payload func() any)
	ToConn(connID, event string, payload any)
}

// GameState is the full session snapshot sent to a connecting presenter.
type GameState struct {
	Status         Status                    `json:"status"`
	SlideIndex     int                       `json:"slideIndex"`
	TotalSlides    int                       `json:"totalSlides"`
	QuestionActive bool                      `json:"questionActive"`
	RevealAnswer   bool                      `json:"revealAnswer"`
	PlayerCount    int                       `json:"playerCount"`
	Leaderboard    []domain.LeaderboardEntry `json:"leaderboard"`
	Slide          *domain.Slide             `json:"slide,omitempty"`
}

// JoinSuccess acknowledges a player-join directly to the joining client.
type JoinSuccess struct {
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	PlayerCount int    `json:"playerCount"`
	Reconnected bool   `json:"reconnected"`
	Score       int    `json:"score"`
}

// PlayerJoined notifies the presenter audience of a new roster entry.
type PlayerJoined struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	PlayerCount int    `json:"playerCount"`
}

// QuizStarted opens a run.
type QuizStarted struct {
	TotalSlides int `json:"totalSlides"`
}

// PresenterSlide carries the full slide, solutions included, plus live
// standings for the presenter screen.
type PresenterSlide struct {
	Slide          domain.Slide              `json:"slide"`
	SlideIndex     int                       `json:"slideIndex"`
	TotalSlides    int                       `json:"totalSlides"`
	QuestionActive bool                      `json:"questionActive"`
	Leaderboard    []domain.LeaderboardEntry `json:"leaderboard"`
	PlayerCount    int                       `json:"playerCount"`
}

// PlayerSlide carries the answer-safe projection to one player.
type PlayerSlide struct {
	Slide          domain.PlayerSlide `json:"slide"`
	SlideIndex     int                `json:"slideIndex"`
	TotalSlides    int                `json:"totalSlides"`
	QuestionActive bool               `json:"questionActive"`
	RevealAnswer   bool               `json:"revealAnswer"`
}

// QuestionActive announces an armed countdown. The embedded slide is the
// player projection; the solution stays server-side until settlement.
type QuestionActive struct {
	Slide     domain.PlayerSlide `json:"slide"`
	TimeLimit int                `json:"timeLimit"`
}

// TimerUpdate broadcasts remaining whole seconds while a countdown runs.
type TimerUpdate struct {
	Remaining int `json:"remaining"`
}

// TimeUp is the settlement payload: per-connection results, the revealed
// slide and the updated standings. Safe for all audiences because the
// question has closed.
type TimeUp struct {
	Results       map[string]scoring.Result `json:"results"`
	CorrectAnswer *domain.Slide             `json:"correctAnswer"`
	Leaderboard   []domain.LeaderboardEntry `json:"leaderboard"`
}

// AnswerReceived tells the presenter who answered, without the content.
type AnswerReceived struct {
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	AnswerCount int    `json:"answerCount"`
	PlayerCount int    `json:"playerCount"`
}

// Leaderboard answers a get-leaderboard request.
type Leaderboard struct {
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

// QuizFinished carries the final standings.
type QuizFinished struct {
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

// PlayerPresence reports disconnects and permanent departures to presenters.
type PlayerPresence struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
}
