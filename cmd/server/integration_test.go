//go:build integration

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liamcoop/marches/internal/config"
	"github.com/liamcoop/marches/procedures"
	"github.com/liamcoop/marches/rules"
)

// startPostgres starts a PostgreSQL testcontainer and returns its URL
func startPostgres(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { postgres.Terminate(ctx) })

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return fmt.Sprintf("postgres://postgres:password@%s:%s/testdb?sslmode=disable", host, port.Port())
}

func integrationConfig(databaseURL, redisAddr string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           8080,
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   5 * time.Second,
			RequestTimeout: 5 * time.Second,
		},
		Database: config.DatabaseConfig{URL: databaseURL, RunMigrations: true},
		Cache: config.CacheConfig{
			Backend:   config.CacheBackendRedis,
			RedisAddr: redisAddr,
			TTL:       time.Minute,
		},
		Logging: config.LoggingConfig{Level: "INFO", ErrorSampleRate: 1},
		Engine:  config.EngineConfig{Timezone: "Europe/Paris"},
	}
}

// TestEndToEnd_PostgresAndRedis runs the procedure workflow against
// PostgreSQL with migrations applied at startup and a Redis list cache
func TestEndToEnd_PostgresAndRedis(t *testing.T) {
	databaseURL := startPostgres(t)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	server, err := NewServer(context.Background(), integrationConfig(databaseURL, mr.Addr()))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer server.Close()

	ts := httptest.NewServer(server)
	defer ts.Close()
	base := ts.URL + "/api/v1"

	var health HealthResponse
	if code := doRequest(t, "GET", base+"/health", nil, &health); code != http.StatusOK || health.Store != "postgres" {
		t.Fatalf("Expected healthy postgres store, got %d %+v", code, health)
	}

	t.Log("Step 1: Creating procedure...")
	var created procedures.View
	code := doRequest(t, "POST", base+"/procedures", ProcedureRequest{Data: rules.Record{
		"objet":                       "Maintenance ascenseurs",
		"statut_rapport_presentation": "3-Validé",
	}}, &created)
	if code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", code)
	}
	if created.Statut != rules.StatusNotification {
		t.Errorf("Expected %q, got %q", rules.StatusNotification, created.Statut)
	}

	t.Log("Step 2: Listing fills the Redis cache...")
	var list ProceduresListResponse
	doRequest(t, "GET", base+"/procedures", nil, &list)
	if list.Count != 1 {
		t.Fatalf("Expected 1 procedure, got %d", list.Count)
	}
	if !mr.Exists(procedures.DefaultRedisCacheKey) {
		t.Error("Expected list to be cached in Redis")
	}

	t.Log("Step 3: Bulk import invalidates the cache...")
	var imported BulkImportResponse
	code = doRequest(t, "POST", base+"/procedures/bulk", BulkImportRequest{Procedures: []rules.Record{
		{"finalite_consultation": "Abandonnée"},
		{"objet": "Brouillon"},
	}}, &imported)
	if code != http.StatusCreated || imported.Imported != 2 {
		t.Fatalf("Expected 2 imported, got %d %+v", code, imported)
	}
	if mr.Exists(procedures.DefaultRedisCacheKey) {
		t.Error("Expected cache to be invalidated by the import")
	}

	var summary SummaryResponse
	doRequest(t, "GET", base+"/procedures/summary", nil, &summary)
	if summary.Total != 3 || summary.Summary[rules.StatusTerminee] != 1 || summary.Summary[rules.StatusInitiee] != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}

	t.Log("Step 4: Deleting procedure...")
	if code := doRequest(t, "DELETE", base+"/procedures/"+created.ID, nil, nil); code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", code)
	}
	if code := doRequest(t, "GET", base+"/procedures/"+created.ID, nil, &ErrorResponse{}); code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", code)
	}
}

// TestNewServer_MigrationsAreIdempotent starts two servers on one database
func TestNewServer_MigrationsAreIdempotent(t *testing.T) {
	databaseURL := startPostgres(t)
	cfg := integrationConfig(databaseURL, "")
	cfg.Cache.Backend = config.CacheBackendMemory

	for i := 0; i < 2; i++ {
		server, err := NewServer(context.Background(), cfg)
		if err != nil {
			t.Fatalf("Server %d failed to start: %v", i+1, err)
		}
		server.Close()
	}
}
