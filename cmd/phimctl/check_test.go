package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/source"
	"github.com/phimhub/ingest/internal/store"
)

func TestCheckSQLite(t *testing.T) {
	result := checkSQLite()

	if result.error {
		t.Errorf("SQLite check failed: %s", result.message)
	}
	if result.message == "" {
		t.Error("expected version information in message")
	}
}

func TestCheckDatabase_NonExistent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nonexistent.db")

	result := checkDatabase(dbPath)

	// Should not error - database will be created on first run
	if result.error {
		t.Errorf("non-existent database check should not error: %s", result.message)
	}
	if result.message == "" {
		t.Error("expected message about database creation")
	}
}

func TestCheckDatabase_Existing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if _, err := db.InsertMovie(context.Background(), &catalog.Movie{Slug: "a", Name: "A", Type: catalog.TypeSingle}); err != nil {
		t.Fatalf("failed to insert test movie: %v", err)
	}
	db.Close()

	result := checkDatabase(dbPath)

	if result.error {
		t.Errorf("database check failed: %s", result.message)
	}
	if !strings.Contains(result.message, "schema v") || !strings.Contains(result.message, "1 movies") {
		t.Errorf("message = %q", result.message)
	}
}

func TestCheckDatabase_Empty(t *testing.T) {
	result := checkDatabase("")

	if !result.warning {
		t.Error("expected warning for empty database path")
	}
}

func TestCheckDatabase_Directory(t *testing.T) {
	result := checkDatabase(t.TempDir())

	if !result.error {
		t.Error("expected error when path is a directory")
	}
}

func TestCheckSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"name":"A","slug":"a"}],"pathImage":"https://img.example/","pagination":{"totalItems":1,"totalItemsPerPage":24,"currentPage":1,"totalPages":1}}`))
	}))
	defer srv.Close()

	cfg := source.SourceConfig{Key: "primary", Kind: "ophim", BaseURL: srv.URL}.WithDefaults()
	result := checkSource(context.Background(), cfg)

	if result.error {
		t.Errorf("source check failed: %s", result.message)
	}
}

func TestCheckSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := source.SourceConfig{Key: "primary", Kind: "ophim", BaseURL: srv.URL}.WithDefaults()
	result := checkSource(context.Background(), cfg)

	if !result.error {
		t.Error("expected error for a failing source")
	}
}

func TestCheckAssetDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")

	result := checkAssetDir(dir)

	if result.error {
		t.Errorf("asset dir check failed: %s", result.message)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Error("expected directory to be created")
	}
}

func TestCheckAssetDir_File(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := checkAssetDir(filePath)

	if !result.error {
		t.Error("expected error when path is a file, not a directory")
	}
}
