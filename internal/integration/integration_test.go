package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"quiz-kiosk-service/internal/app"
	"quiz-kiosk-service/internal/domain"
	pginfra "quiz-kiosk-service/internal/infra/postgres"
	pgmigrations "quiz-kiosk-service/internal/infra/postgres/migrations"
	redisinfra "quiz-kiosk-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestQuizSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedCatalog(t, ctx, pgURL, sampleQuestions())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := redisinfra.NewCatalogCache(redisClient, pginfra.NewCatalogLoader(pool, ""), 5*time.Minute)
	keeper := app.NewPreferenceKeeper(ctx, pginfra.NewPreferenceStore(pool))
	engine := app.NewEngine(loader, keeper)
	engine.Start(ctx)
	waitLoaded(t, engine)

	categories := engine.Categories()
	if len(categories) != 2 || categories[0] != "Science" || categories[1] != "History" {
		t.Fatalf("expected [Science History], got %v", categories)
	}

	if err := keeper.SetUserName(ctx, "Alice"); err != nil {
		t.Fatalf("set name: %v", err)
	}

	engine.BeginSession("Science")
	state := engine.State()
	if state.TotalQuestions() != 2 {
		t.Fatalf("expected 2 science questions, got %d", state.TotalQuestions())
	}

	// Answer every question correctly; Correct always carries the option text.
	for !engine.State().Finished() {
		engine.SubmitAnswer(engine.State().CurrentQuestion().Correct)
		engine.Advance()
	}
	if got := engine.State().Score; got != 2 {
		t.Fatalf("expected perfect score 2, got %d", got)
	}

	waitHighScore(t, keeper, 2)

	// The record must survive a fresh store over the same database.
	reread := pginfra.NewPreferenceStore(pool)
	if score, err := reread.HighScore(ctx); err != nil || score != 2 {
		t.Fatalf("expected durable high score 2, got %d err=%v", score, err)
	}
	if name, err := reread.UserName(ctx); err != nil || name != "Alice" {
		t.Fatalf("expected durable name Alice, got %q err=%v", name, err)
	}

	// A lower later score never regresses the record.
	if err := keeper.SetHighScore(ctx, 1); err != nil {
		t.Fatalf("set lower high score: %v", err)
	}
	if score, _ := reread.HighScore(ctx); score != 2 {
		t.Fatalf("expected high score to stay 2, got %d", score)
	}

	// Catalog document got cached in redis along the way.
	if n, err := redisClient.Exists(ctx, "quiz:catalog").Result(); err != nil || n != 1 {
		t.Fatalf("expected cached catalog key, exists=%d err=%v", n, err)
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

func seedCatalog(t *testing.T, ctx context.Context, dsn string, questions []domain.Question) {
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

	data, err := json.Marshal(questions)
	if err != nil {
		t.Fatalf("marshal catalog: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO catalog (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, pginfra.DefaultCatalogID, string(data)); err != nil {
		t.Fatalf("insert catalog: %v", err)
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, Correct: "4", Category: "Science", Trivia: "Addition predates writing."},
		{Prompt: "What is H2O?", Options: []string{"Water", "Salt"}, Correct: "Water", Category: "Science", Trivia: "Most of the body is water."},
		{Prompt: "Year of the moon landing?", Options: []string{"1969", "1972"}, Correct: "1969", Category: "History", Trivia: "Apollo 11 landed in July 1969."},
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

func waitLoaded(t *testing.T, engine *app.Engine) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if !engine.State().IsLoading {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("catalog load did not complete")
}

func waitHighScore(t *testing.T, keeper *app.PreferenceKeeper, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if keeper.Snapshot().HighScore == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("high score never reached %d, got %d", want, keeper.Snapshot().HighScore)
}
