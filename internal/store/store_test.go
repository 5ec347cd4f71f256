package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "data", "scan.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func testTrack(path string) *ScannedTrack {
	return &ScannedTrack{
		Tempo:    floatPtr(128.5),
		Duration: 241.3,
		Bitrate:  320,
		Metadata: Metadata{
			Artist:  strPtr("Daft Punk"),
			Title:   strPtr("Around the World"),
			Release: strPtr("Homework"),
		},
		Echoprint:   "eJzFm2uS5CgOgK_SR-g",
		Chromaprint: strPtr("AQADtEmUKEqSJEqS"),
		Path:        path,
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "postgres", "x")
	if !errors.Is(err, ErrUnsupportedDriver) {
		t.Fatalf("expected ErrUnsupportedDriver, got %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "scan.db")
	ctx := context.Background()

	s, err := Open(ctx, DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if _, err := s.Insert(ctx, testTrack("/music/a.mp3")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	s.Close()

	s, err = Open(ctx, DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s.Close()

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1 after reopen", n)
	}
	v, err := s.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if v != currentSchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", v, currentSchemaVersion)
	}
}

func TestInsertAndByPath(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	in := testTrack("/music/around.mp3")
	id, err := s.Insert(ctx, in)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if id == 0 || in.ID != id {
		t.Errorf("id = %d, in.ID = %d", id, in.ID)
	}

	got, err := s.ByPath(ctx, "/music/around.mp3")
	if err != nil {
		t.Fatalf("ByPath failed: %v", err)
	}
	if got.Tempo == nil || *got.Tempo != 128.5 {
		t.Errorf("Tempo = %v, want 128.5", got.Tempo)
	}
	if got.Duration != 241.3 || got.Bitrate != 320 {
		t.Errorf("Duration/Bitrate = %v/%d", got.Duration, got.Bitrate)
	}
	if got.Metadata.Artist == nil || *got.Metadata.Artist != "Daft Punk" {
		t.Errorf("Artist = %v", got.Metadata.Artist)
	}
	if got.Metadata.Genre != nil {
		t.Errorf("Genre = %q, want nil", *got.Metadata.Genre)
	}
	if got.Chromaprint == nil || *got.Chromaprint != "AQADtEmUKEqSJEqS" {
		t.Errorf("Chromaprint = %v", got.Chromaprint)
	}
	if got.ScannedAt.Unix() != 1700000000 {
		t.Errorf("ScannedAt = %v", got.ScannedAt)
	}
}

func TestInsert_NullableColumns(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	in := testTrack("/music/untempo.mp3")
	in.Tempo = nil
	in.Chromaprint = nil
	in.Metadata = Metadata{}
	if _, err := s.Insert(ctx, in); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := s.ByPath(ctx, in.Path)
	if err != nil {
		t.Fatalf("ByPath failed: %v", err)
	}
	if got.Tempo != nil {
		t.Errorf("Tempo = %v, want nil", *got.Tempo)
	}
	if got.Chromaprint != nil {
		t.Errorf("Chromaprint = %q, want nil", *got.Chromaprint)
	}
	if got.Metadata.Artist != nil || got.Metadata.Title != nil {
		t.Errorf("Metadata = %+v, want all nil", got.Metadata)
	}
}

func TestInsert_Duplicate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, testTrack("/music/dup.mp3")); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}
	_, err := s.Insert(ctx, testTrack("/music/dup.mp3"))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second Insert: expected ErrDuplicate, got %v", err)
	}

	n, _ := s.Count(ctx)
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestInsert_PathIsCaseSensitive(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"/music/Track.mp3", "/music/track.mp3", "/music/café.mp3", "/music/cafe.mp3"} {
		if _, err := s.Insert(ctx, testTrack(p)); err != nil {
			t.Fatalf("Insert(%q) failed: %v", p, err)
		}
	}
	n, _ := s.Count(ctx)
	if n != 4 {
		t.Errorf("Count = %d, want 4", n)
	}
}

func TestMySQLSchema_BinaryPathCollation(t *testing.T) {
	var ddl string
	for _, stmt := range mysqlSchema {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS scanned_tracks") {
			ddl = stmt
		}
	}
	if ddl == "" {
		t.Fatal("no scanned_tracks table in MySQL schema")
	}
	want := "path VARCHAR(768) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL"
	if !strings.Contains(ddl, want) {
		t.Errorf("scanned_tracks DDL missing %q:\n%s", want, ddl)
	}
}

func TestInsert_ConcurrentSamePath(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	const writers = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		stored     int
		duplicates int
		other      []error
	)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Insert(ctx, testTrack("/music/race.mp3"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				stored++
			case errors.Is(err, ErrDuplicate):
				duplicates++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if stored != 1 || duplicates != writers-1 {
		t.Errorf("stored = %d, duplicates = %d; want 1 and %d", stored, duplicates, writers-1)
	}
}

func TestExists(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "/music/x.mp3")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if ok {
		t.Error("Exists = true on empty store")
	}

	if _, err := s.Insert(ctx, testTrack("/music/x.mp3")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	ok, err = s.Exists(ctx, "/music/x.mp3")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !ok {
		t.Error("Exists = false after insert")
	}

	// Paths are compared verbatim.
	ok, _ = s.Exists(ctx, "/music/X.mp3")
	if ok {
		t.Error("Exists should be case-sensitive")
	}
}

func TestByPath_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.ByPath(context.Background(), "/nope.mp3")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"/a.mp3", "/b.mp3", "/c.mp3"} {
		if _, err := s.Insert(ctx, testTrack(p)); err != nil {
			t.Fatalf("Insert %s failed: %v", p, err)
		}
	}

	all, err := s.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List(0,0) returned %d rows, want 3", len(all))
	}
	if all[0].Path != "/a.mp3" || all[2].Path != "/c.mp3" {
		t.Errorf("unexpected order: %s, %s", all[0].Path, all[2].Path)
	}

	page, err := s.List(ctx, 1, 1)
	if err != nil {
		t.Fatalf("List(1,1) failed: %v", err)
	}
	if len(page) != 1 || page[0].Path != "/b.mp3" {
		t.Errorf("List(1,1) = %+v, want [/b.mp3]", page)
	}
}

func TestPing(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping on open store: %v", err)
	}
	s.Close()
	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping on closed store should fail")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Error("nil should not be a unique violation")
	}
	if IsUniqueViolation(errors.New("UNIQUE constraint failed")) {
		t.Error("plain errors should not be treated as driver errors")
	}
	if !IsUniqueViolation(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}) {
		t.Error("MySQL 1062 should be a unique violation")
	}
	if IsUniqueViolation(&mysql.MySQLError{Number: 1213, Message: "Deadlock"}) {
		t.Error("MySQL 1213 should not be a unique violation")
	}
}

func TestWithSQLitePragmas(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{":memory:", ":memory:"},
		{"/tmp/a.db", "/tmp/a.db?" + sqlitePragmas},
		{"/tmp/a.db?cache=shared", "/tmp/a.db?cache=shared&" + sqlitePragmas},
		{"/tmp/a.db?_pragma=foreign_keys(1)", "/tmp/a.db?_pragma=foreign_keys(1)"},
	}
	for _, tt := range tests {
		if got := withSQLitePragmas(tt.in); got != tt.want {
			t.Errorf("withSQLitePragmas(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
