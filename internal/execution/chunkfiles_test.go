package execution

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bitflyer-trader/internal/domain"
)

func writeEmptyFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

func TestListChunkFilesSortsAscendingByFirstID(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	codec := domain.ChunkFileName{}
	chunkA := domain.Chunk{
		Exchange: domain.ExchangeBitFlyer, Symbol: domain.SymbolFXBTCJPY,
		FirstID: 200, FirstDatetime: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		LastID: 299, LastDatetime: time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC),
	}
	chunkB := domain.Chunk{
		Exchange: domain.ExchangeBitFlyer, Symbol: domain.SymbolFXBTCJPY,
		FirstID: 100, FirstDatetime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		LastID: 199, LastDatetime: time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
	}
	writeEmptyFile(t, filepath.Join(dir, codec.Unparse(chunkA)))
	writeEmptyFile(t, filepath.Join(dir, codec.Unparse(chunkB)))
	writeEmptyFile(t, filepath.Join(dir, "not-a-chunk.txt"))

	files, err := ListChunkFiles(dir, time.Time{})
	if err != nil {
		t.Fatalf("ListChunkFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2 (non-.sqlite3 file must be skipped)", len(files))
	}
	if files[0].Chunk.FirstID != 100 || files[1].Chunk.FirstID != 200 {
		t.Errorf("order = [%d, %d], want [100, 200]", files[0].Chunk.FirstID, files[1].Chunk.FirstID)
	}
}

func TestListChunkFilesFiltersByFromCutoff(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	codec := domain.ChunkFileName{}
	older := domain.Chunk{
		Exchange: domain.ExchangeBitFlyer, Symbol: domain.SymbolFXBTCJPY,
		FirstID: 1, FirstDatetime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		LastID: 50, LastDatetime: time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
	}
	newer := domain.Chunk{
		Exchange: domain.ExchangeBitFlyer, Symbol: domain.SymbolFXBTCJPY,
		FirstID: 51, FirstDatetime: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		LastID: 100, LastDatetime: time.Date(2024, 6, 1, 1, 0, 0, 0, time.UTC),
	}
	writeEmptyFile(t, filepath.Join(dir, codec.Unparse(older)))
	writeEmptyFile(t, filepath.Join(dir, codec.Unparse(newer)))

	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	files, err := ListChunkFiles(dir, cutoff)
	if err != nil {
		t.Fatalf("ListChunkFiles: %v", err)
	}
	if len(files) != 1 || files[0].Chunk.FirstID != 51 {
		t.Fatalf("got %v, want only the chunk at or after cutoff", files)
	}
}

func TestListChunkFilesEmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	files, err := ListChunkFiles(dir, time.Time{})
	if err != nil {
		t.Fatalf("ListChunkFiles: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("got %d files, want 0", len(files))
	}
}
