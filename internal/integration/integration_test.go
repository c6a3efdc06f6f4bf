package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"slidecast/internal/app"
	"slidecast/internal/domain"
	pgloader "slidecast/internal/infra/postgres"
	pgmigrations "slidecast/internal/infra/postgres/migrations"
	infraredis "slidecast/internal/infra/redis"
)

// sink collects session events; the integration flow only needs counts and
// the last payload per event.
type sink struct {
	mu   sync.Mutex
	last map[string]any
	seen map[string]int
}

func newSink() *sink {
	return &sink{last: make(map[string]any), seen: make(map[string]int)}
}

func (s *sink) record(event string, payload any) {
	s.mu.Lock()
	s.last[event] = payload
	s.seen[event]++
	s.mu.Unlock()
}

func (s *sink) Broadcast(event string, payload any)    { s.record(event, payload) }
func (s *sink) ToPresenters(event string, payload any) { s.record(event, payload) }
func (s *sink) ToPlayers(event string, payload any)    { s.record(event, payload) }
func (s *sink) ToPlayersEach(event string, payload func() any) {
	s.record(event, payload())
}
func (s *sink) ToConn(connID, event string, payload any) { s.record(event, payload) }

func (s *sink) count(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[event]
}

func (s *sink) payload(event string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[event]
}

func TestQuizRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	quizRepo := infraredis.NewQuizRepository(redisClient, pgloader.NewQuizLoader(pool), 5*time.Minute)

	out := newSink()
	session := app.NewSession(out, quizRepo, app.Options{QuizID: "main"})

	session.Join("p1", "Alice", "")
	session.Join("p2", "Bob", "")

	if err := session.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	session.StartTimer(20)
	session.SubmitAnswer("p1", json.RawMessage(`1`))
	session.SubmitAnswer("p2", json.RawMessage(`0`))

	if out.count("time-up") != 1 {
		t.Fatalf("expected settlement once everyone answered, got %d", out.count("time-up"))
	}
	tu := out.payload("time-up").(app.TimeUp)
	if !tu.Results["p1"].Correct || tu.Results["p2"].Correct {
		t.Fatalf("unexpected results: %+v", tu.Results)
	}
	if len(tu.Leaderboard) != 2 || tu.Leaderboard[0].Name != "Alice" {
		t.Fatalf("expected Alice leading, got %+v", tu.Leaderboard)
	}

	// Editing the stored definition takes effect on the next start because the
	// session drops the Redis cache before reloading.
	edited := sampleQuiz()
	edited.Slides = append(edited.Slides, domain.Slide{Type: domain.SlideInfo, Title: "Encore"})
	seedQuiz(t, ctx, pgURL, edited)

	if err := session.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	started := out.payload("quiz-started").(app.QuizStarted)
	if started.TotalSlides != len(edited.Slides) {
		t.Fatalf("expected %d slides after edit, got %d", len(edited.Slides), started.TotalSlides)
	}
	if score, ok := session.PlayerScore("p1"); !ok || score != 0 {
		t.Fatalf("expected scores zeroed on restart, got %d", score)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID: "main",
		Slides: []domain.Slide{
			{
				ID:       "mc-1",
				Type:     domain.SlideMultipleChoice,
				Question: "What is 2 + 2?",
				MultipleChoice: &domain.MultipleChoiceSlide{
					Options: []string{"3", "4", "5"},
					Correct: 1,
				},
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
