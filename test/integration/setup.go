package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"vouchers/internal/codegen"
	"vouchers/internal/config"
	"vouchers/internal/database"
	"vouchers/internal/event"
	"vouchers/internal/repository"
	"vouchers/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container, a connection pool and the
// default voucher schema.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	// Create PostgreSQL container
	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	// Get connection string
	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := postgresContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	// Create connection pool
	dbConfig := config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "testuser",
		Password:        "testpass",
		Database:        "testdb",
		MaxConnections:  20,
		MinConnections:  2,
		MaxConnLifetime: 300,
		LockTimeout:     10 * time.Second,
		ConnectAttempts: 3,
	}

	logger := zerolog.Nop()
	pool, err := database.NewPool(ctx, dbConfig, logger)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	// Create schema
	if err := database.Migrate(ctx, pool, database.DefaultTables(), logger); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// CleanupDB removes all vouchers and redemptions from the default tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := database.DefaultTables()
	for _, table := range []string{tables.RedemptionIdent(), tables.VoucherIdent()} {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}

// RecordingNotifier keeps every published event.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []event.Event
}

func (n *RecordingNotifier) Publish(ctx context.Context, e event.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

// Events returns a copy of the published events.
func (n *RecordingNotifier) Events() []event.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]event.Event(nil), n.events...)
}

// NewTestService wires a voucher service against pool using tables.
func NewTestService(t *testing.T, pool *pgxpool.Pool, tables database.Tables, notifier event.Notifier) service.VoucherService {
	t.Helper()

	logger := zerolog.Nop()
	repo := repository.NewVoucherRepository(pool, tables, logger)

	gen, err := codegen.NewGenerator(codegen.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create code generator: %v", err)
	}

	return service.NewVoucherService(
		repo,
		codegen.NewUniqueGenerator(gen, repo, 16, logger),
		service.MatchExtra,
		notifier,
		nil,
		service.Options{},
		logger,
	)
}

// CountRedemptions counts the stored redemptions of a voucher.
func CountRedemptions(t *testing.T, pool *pgxpool.Pool, code string) int {
	t.Helper()

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE voucher_code = $1", database.DefaultTables().RedemptionIdent())

	var count int
	if err := pool.QueryRow(context.Background(), query, code).Scan(&count); err != nil {
		t.Fatalf("failed to count redemptions: %v", err)
	}
	return count
}
