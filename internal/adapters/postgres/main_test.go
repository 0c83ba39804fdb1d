package postgres

import (
	"DocVerify/internal/core/domain"
	"DocVerify/internal/core/ports"
	"DocVerify/internal/shared/config"
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var testDB *DB

// testPolicy uses a zero backoff so failed events are immediately
// re-claimable without sleeping in tests.
var testPolicy = RetryPolicy{
	MaxAttempts: 3,
	StaleAfter:  30 * time.Minute,
	BackoffBase: 0,
	BackoffCap:  time.Hour,
}

// TestMain sets up a connection to the test database.
func TestMain(m *testing.M) {
	// 1. Load config to get the DB URL.
	// We MUST load the .env file from the project root.
	// We need to go up 3 levels: /postgres -> /adapters -> /internal -> ROOT
	os.Chdir("../../../")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("TestMain: Failed to load config: %v", err)
	}

	// 2. Set up DB Connection
	nopLogger := zerolog.Nop()
	testDB, err = NewDB(context.Background(), cfg.DatabaseURL, &nopLogger)
	if err != nil {
		log.Fatalf("TestMain: Failed to connect to test database: %v", err)
	}

	// 3. Start from an empty queue so claim tests see only their own rows
	if _, err := testDB.pool.Exec(context.Background(), "TRUNCATE verification_events"); err != nil {
		log.Fatalf("TestMain: Failed to truncate verification_events: %v", err)
	}

	// 4. Run tests
	code := m.Run()

	// 5. Teardown
	testDB.Close()
	os.Exit(code)
}

func newTestRepo() ports.EventRepository {
	nopLogger := zerolog.Nop()
	return NewEventRepository(testDB, testPolicy, &nopLogger)
}

// Helper to enqueue a valid event and return its id.
func enqueueTestEvent(t *testing.T, repo ports.EventRepository, eventType domain.EventType) int64 {
	t.Helper()

	event := &domain.Event{
		UserID:         uuid.NewString(),
		IdentityNumber: "12345678901",
		EventType:      eventType,
		RecordID:       uuid.NewString(),
		DocumentNumber: "BARCODE" + uuid.NewString()[:8],
	}

	id, err := repo.Enqueue(t.Context(), event)
	if err != nil {
		t.Fatalf("enqueueTestEvent failed: %v", err)
	}

	t.Cleanup(func() {
		cleanupTestEvent(t, id)
	})
	return id
}

// Helper to clean up the DB after tests
func cleanupTestEvent(t *testing.T, id int64) {
	_, err := testDB.pool.Exec(context.Background(), "DELETE FROM verification_events WHERE id = $1", id)
	if err != nil {
		t.Logf("Warning: Failed to cleanup event %d: %v", id, err)
	}
}
