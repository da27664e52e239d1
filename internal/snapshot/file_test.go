package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content_sync/internal/domain"
)

func generation(gen, size int) []domain.Content {
	records := make([]domain.Content, size)
	for i := range records {
		records[i] = domain.Content{
			ID:         fmt.Sprintf("g%d-%d", gen, i),
			Kind:       domain.KindArticle,
			Status:     domain.StatusPublished,
			Title:      fmt.Sprintf("generation %d", gen),
			Categories: []string{},
			Tags:       []string{},
			CreatedAt:  time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
			UpdatedAt:  time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
		}
	}
	return records
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "snapshot.json"))

	records, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFileStore_WriteThenRead(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "snapshot.json"))

	want := generation(1, 3)
	require.NoError(t, store.Write(ctx, want))

	got, err := store.Read(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "g1-0", got[0].ID)
	assert.True(t, want[2].CreatedAt.Equal(got[2].CreatedAt))
}

func TestFileStore_CorruptFile(t *testing.T) {
	tests := map[string]string{
		"garbage":   "{not json",
		"truncated": `[{"id":"a","title":"x"`,
		"empty":     "",
	}

	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "snapshot.json")
			require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

			_, err := NewFileStore(path).Read(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrSnapshotCorrupt))
		})
	}
}

func TestFileStore_WriteIsDeterministic(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	store := NewFileStore(path)

	require.NoError(t, store.Write(ctx, generation(1, 5)))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, generation(1, 5)))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "snapshot.json"))

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Write(context.Background(), generation(i, 2)))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "snapshot.json", entries[0].Name())
}

func TestFileStore_CancelledWriteKeepsOldContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	store := NewFileStore(path)
	require.NoError(t, store.Write(context.Background(), generation(1, 2)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, store.Write(ctx, generation(2, 2)))

	got, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "g1-0", got[0].ID)
}

// Readers racing a stream of full rewrites must only ever see one generation.
func TestFileStore_ReadersNeverSeeMixedGenerations(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "snapshot.json"))
	require.NoError(t, store.Write(ctx, generation(0, 50)))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 8)

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				records, err := store.Read(ctx)
				if err != nil {
					errs <- err
					return
				}
				for _, rec := range records {
					if rec.Title != records[0].Title {
						errs <- fmt.Errorf("mixed generations: %q and %q", records[0].Title, rec.Title)
						return
					}
				}
			}
		}()
	}

	for gen := 1; gen <= 30; gen++ {
		require.NoError(t, store.Write(ctx, generation(gen, 50)))
	}
	close(stop)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
