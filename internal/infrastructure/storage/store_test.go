package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"smishguard/internal/domain/models"
	"smishguard/pkg/logger"
)

type scanStore interface {
	Save(ctx context.Context, record *models.ScanRecord) (string, error)
	Load(ctx context.Context, id string) (*models.ScanRecord, error)
}

func sampleRecord() *models.ScanRecord {
	return &models.ScanRecord{
		Metadata: models.Metadata{
			Text:         "Your parcel is held. Pay at royalmail-fee.com",
			CleanedText:  "your parcel is held. pay at royalmail-fee.com",
			PhoneNumbers: []string{"07826514174"},
			Emails:       []string{},
			URLs:         []string{"royalmail-fee.com"},
		},
		Prediction: &models.ClassificationResult{
			Label:       models.LabelPhishing,
			LabelName:   "phishing",
			Probability: 0.91,
		},
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func stores(t *testing.T) map[string]scanStore {
	t.Helper()
	fileStore, err := NewFileStore(filepath.Join(t.TempDir(), "results"), logger.NewNop())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return map[string]scanStore{
		"file":     fileStore,
		"postgres": NewPostgresStore(newFakeDB(), logger.NewNop()),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			record := sampleRecord()

			id, err := store.Save(ctx, record)
			if err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if id == "" || record.ID != id {
				t.Fatalf("Save() id = %q, record.ID = %q", id, record.ID)
			}

			loaded, err := store.Load(ctx, id)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !reflect.DeepEqual(loaded, record) {
				t.Errorf("Load() = %+v, want %+v", loaded, record)
			}
		})
	}
}

func TestStore_FreshIDs(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			first, _ := store.Save(context.Background(), sampleRecord())
			second, _ := store.Save(context.Background(), sampleRecord())
			if first == second {
				t.Errorf("Save() reused id %q", first)
			}
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{
				"3f2b8a7e-1c4d-4e5f-9a6b-7c8d9e0f1a2b",
				"not-a-uuid",
				"../../etc/passwd",
				"",
			} {
				_, err := store.Load(context.Background(), id)
				if !errors.Is(err, ErrNotFound) {
					t.Errorf("Load(%q) error = %v, want ErrNotFound", id, err)
				}
			}
		})
	}
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	id, err := store.Save(context.Background(), sampleRecord())
	if err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "scan_"+id+".json" {
		t.Errorf("results dir = %v, want only scan_%s.json", entries, id)
	}

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestFileStore_CorruptRecord(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir, logger.NewNop())

	id := "3f2b8a7e-1c4d-4e5f-9a6b-7c8d9e0f1a2b"
	if err := os.WriteFile(filepath.Join(dir, "scan_"+id+".json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := store.Load(context.Background(), id)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want a decode error distinct from ErrNotFound", err)
	}
}

type fakeDB struct {
	mu   sync.Mutex
	rows map[string][]byte
}

func newFakeDB() *fakeDB { return &fakeDB{rows: map[string][]byte{}} }

func (f *fakeDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := args[0].(string)
	if _, exists := f.rows[id]; exists {
		return pgconn.CommandTag{}, errors.New("duplicate key")
	}
	f.rows[id] = append([]byte(nil), args[1].([]byte)...)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.rows[args[0].(string)]
	return fakeRow{data: data, found: ok}
}

type fakeRow struct {
	data  []byte
	found bool
}

func (r fakeRow) Scan(dest ...any) error {
	if !r.found {
		return pgx.ErrNoRows
	}
	*dest[0].(*[]byte) = r.data
	return nil
}
