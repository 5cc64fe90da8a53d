// Package execution discovers historical execution chunk files on disk,
// the top-level counterpart to internal/execution/stream (adapters) and
// internal/execution/warmup (the time-window queue). Grounded on
// list_sqlite_connections in trade/execution/stream/sqlite.py.
package execution

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"bitflyer-trader/internal/domain"
)

// ChunkFile pairs a parsed Chunk with the path of the file it came from.
type ChunkFile struct {
	Chunk domain.Chunk
	Path  string
}

// ListChunkFiles lists every *.sqlite3 chunk file directly under dir,
// parses its filename into a Chunk (skipping *.sqlite3 files whose name
// does not parse as a chunk, such as the writer's in-progress
// temp.sqlite3), optionally drops anything whose
// FirstDatetime precedes from (pass the zero time to keep everything), and
// returns them sorted ascending by FirstID — the order a historical replay
// must read them in to preserve the non-decreasing-timestamp invariant.
func ListChunkFiles(dir string, from time.Time) ([]ChunkFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("execution: list chunk dir %s: %w", dir, err)
	}

	var codec domain.ChunkFileName
	out := make([]ChunkFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sqlite3" {
			continue
		}
		chunk, err := codec.Parse(entry.Name())
		if err != nil {
			continue
		}
		if !from.IsZero() && chunk.FirstDatetime.Before(from) {
			continue
		}
		out = append(out, ChunkFile{Chunk: chunk, Path: filepath.Join(dir, entry.Name())})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Chunk.FirstID < out[j].Chunk.FirstID })
	return out, nil
}
