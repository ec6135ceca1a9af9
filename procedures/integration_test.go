//go:build integration
// +build integration

package procedures_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liamcoop/marches/migrations"
	"github.com/liamcoop/marches/procedures"
	"github.com/liamcoop/marches/rules"
)

// setupTestDB creates a PostgreSQL container, applies the embedded
// migrations and returns a connection
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "marches_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgresContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	databaseURL := fmt.Sprintf("postgres://test:test@%s:%s/marches_test?sslmode=disable", host, port.Port())

	// Wait for connection to be available
	var db *sql.DB
	for i := 0; i < 30; i++ {
		db, err = sql.Open("postgres", databaseURL)
		if err == nil {
			err = db.Ping()
			if err == nil {
				break
			}
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		t.Fatalf("Failed to open embedded migrations: %v", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		t.Fatalf("Failed to create migration instance: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	m.Close()

	cleanup := func() {
		db.Close()
		postgresContainer.Terminate(ctx)
	}

	return db, cleanup
}

func TestPostgresStore_BasicCRUD(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := procedures.NewPostgresStore(db)

	p := &procedures.Procedure{
		ID: "p-1",
		Data: rules.Record{
			"objet":                     "Nettoyage des locaux",
			"date_publication":          "01/02/2024",
			"montant":                   125000.5,
			"Reprise_au_statut_Termine": false,
		},
	}
	if err := store.Add(ctx, p); err != nil {
		t.Fatalf("Failed to add procedure: %v", err)
	}

	got, err := store.Get(ctx, "p-1")
	if err != nil {
		t.Fatalf("Failed to get procedure: %v", err)
	}
	if got.Data["objet"] != "Nettoyage des locaux" {
		t.Errorf("Expected objet 'Nettoyage des locaux', got %v", got.Data["objet"])
	}
	if got.Data["montant"] != 125000.5 {
		t.Errorf("Expected montant 125000.5, got %v", got.Data["montant"])
	}
	if got.Data["Reprise_au_statut_Termine"] != false {
		t.Errorf("Expected boolean field to survive JSONB, got %v", got.Data["Reprise_au_statut_Termine"])
	}

	if err := store.Add(ctx, &procedures.Procedure{ID: "p-1", Data: rules.Record{"a": "b"}}); !errors.Is(err, procedures.ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists for duplicate ID, got %v", err)
	}

	update := &procedures.Procedure{ID: "p-1", Data: rules.Record{"finalite_consultation": "Abandonnée"}}
	if err := store.Update(ctx, update); err != nil {
		t.Fatalf("Failed to update procedure: %v", err)
	}
	if !update.CreatedAt.Equal(got.CreatedAt) {
		t.Errorf("Expected CreatedAt to be preserved, got %v want %v", update.CreatedAt, got.CreatedAt)
	}

	got, _ = store.Get(ctx, "p-1")
	if status := rules.ComputeStatus(got.Data, time.Now()); status != rules.StatusTerminee {
		t.Errorf("Expected status %q after update, got %q", rules.StatusTerminee, status)
	}

	if err := store.Delete(ctx, "p-1"); err != nil {
		t.Fatalf("Failed to delete procedure: %v", err)
	}
	if _, err := store.Get(ctx, "p-1"); !errors.Is(err, procedures.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "p-1"); !errors.Is(err, procedures.ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestPostgresStore_ListAndSearch(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := procedures.NewPostgresStore(db)
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	records := []rules.Record{
		{"objet": "Nettoyage des locaux"},
		{"objet": "Maintenance ascenseurs", "note": "100% remise"},
		{"objet": "Travaux de NETTOYAGE"},
	}
	for i, r := range records {
		p := &procedures.Procedure{ID: fmt.Sprintf("p-%d", i), Data: r, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.Add(ctx, p); err != nil {
			t.Fatalf("Failed to add procedure %d: %v", i, err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list procedures: %v", err)
	}
	if len(list) != 3 || list[0].ID != "p-0" || list[2].ID != "p-2" {
		t.Errorf("Expected procedures in creation order, got %d", len(list))
	}

	testCases := []struct {
		query string
		want  int
	}{
		{"nettoyage", 2},
		{"ascenseurs", 1},
		{"100%", 1},
		{"%", 1},
		{"_", 0},
		{"p-1", 1},
		{"objet", 0},
		{"note", 0},
		{"  ascenseurs ", 1},
	}
	for _, tc := range testCases {
		found, err := store.Search(ctx, tc.query)
		if err != nil {
			t.Fatalf("Search(%q) failed: %v", tc.query, err)
		}
		if len(found) != tc.want {
			t.Errorf("Search(%q) returned %d procedures, want %d", tc.query, len(found), tc.want)
		}
	}
}

func TestPostgresStore_BulkInsert(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := procedures.NewPostgresStore(db)

	batch := make([]*procedures.Procedure, 100)
	for i := range batch {
		batch[i] = &procedures.Procedure{ID: fmt.Sprintf("b-%03d", i), Data: rules.Record{"n": float64(i)}}
	}
	n, err := store.BulkInsert(ctx, batch)
	if err != nil || n != 100 {
		t.Fatalf("BulkInsert() = %d, %v; want 100, nil", n, err)
	}

	// A batch hitting an existing ID is rolled back entirely
	_, err = store.BulkInsert(ctx, []*procedures.Procedure{
		{ID: "c-1", Data: rules.Record{"n": "x"}},
		{ID: "b-000", Data: rules.Record{"n": "y"}},
	})
	if !errors.Is(err, procedures.ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists for conflicting batch, got %v", err)
	}
	if _, err := store.Get(ctx, "c-1"); !errors.Is(err, procedures.ErrNotFound) {
		t.Error("Expected rejected batch to be rolled back")
	}

	list, _ := store.List(ctx)
	if len(list) != 100 {
		t.Errorf("Expected 100 procedures, got %d", len(list))
	}
}

func TestService_WithPostgresStore(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	engine, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	svc := procedures.NewService(procedures.NewPostgresStore(db), engine,
		procedures.WithClock(func() time.Time { return now }))

	v, err := svc.Create(ctx, rules.Record{"statut_rapport_presentation": "3-Validé"})
	if err != nil {
		t.Fatalf("Failed to create procedure: %v", err)
	}
	if v.Statut != rules.StatusNotification {
		t.Errorf("Expected status %q, got %q", rules.StatusNotification, v.Statut)
	}

	summary, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("Failed to summarise: %v", err)
	}
	if summary[rules.StatusNotification] != 1 {
		t.Errorf("Expected 1 procedure in notification, got %d", summary[rules.StatusNotification])
	}
}
