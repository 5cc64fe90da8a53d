// Package writer implements the rotating sqlite execution writer (C11):
// buffers incoming executions, flushes every RecordsInsertion rows in one
// batch insert, and rotates every RecordsRotation rows by closing the
// current file and renaming it to its canonical Chunk filename. Grounded
// on trade/executionwriter/sqlite.py's SqliteExecutionWriter/Connection,
// with the atomic temp-then-rename idiom borrowed from
// 0xtitan6-polymarket-mm's internal/store/store.go.
package writer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bitflyer-trader/internal/domain"
)

const tempFileName = "temp.sqlite3"

// Writer appends executions to a rotating sqlite row store.
type Writer struct {
	mu sync.Mutex

	baseDir  string
	exchange domain.Exchange

	recordsRotation  int
	recordsInsertion int

	logger *slog.Logger

	db  *gorm.DB
	buf []executionRow
	n   int
}

// Open creates (or truncates) the temp file and the executions table,
// ready to accept writes.
func Open(baseDir string, exchange domain.Exchange, recordsRotation, recordsInsertion int, log *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create writer base dir: %w", err)
	}

	w := &Writer{
		baseDir:          baseDir,
		exchange:         exchange,
		recordsRotation:  recordsRotation,
		recordsInsertion: recordsInsertion,
		logger:           log.With("component", "execution_writer"),
	}

	db, err := openTemp(baseDir)
	if err != nil {
		return nil, err
	}
	w.db = db
	return w, nil
}

func openTemp(baseDir string) (*gorm.DB, error) {
	path := filepath.Join(baseDir, tempFileName)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&executionRow{}); err != nil {
		return nil, fmt.Errorf("migrate executions table: %w", err)
	}
	return db, nil
}

// Write appends one execution, flushing every RecordsInsertion rows and
// rotating every RecordsRotation rows. A SwitchedToRealtime marker carries
// no meaningful row and is skipped.
func (w *Writer) Write(e *domain.Execution) error {
	if e.IsSwitchedToRealtime() {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, toRow(e))
	w.n++

	if w.n%w.recordsInsertion != 0 && w.n != w.recordsRotation {
		return nil
	}

	if err := w.flushLocked(); err != nil {
		return err
	}

	if w.n == w.recordsRotation {
		if err := w.rotateLocked(); err != nil {
			return err
		}
		w.n = 0
	}
	return nil
}

// Close flushes any buffered rows and finalizes the current file into its
// canonical chunk filename, the way a rotation would.
func (w *Writer) Close() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flushLocked(); err != nil {
		return "", err
	}
	return w.closeAndRenameLocked()
}

func (w *Writer) flushLocked() error {
	if len(w.buf) == 0 {
		return nil
	}
	if err := w.db.CreateInBatches(&w.buf, len(w.buf)).Error; err != nil {
		return fmt.Errorf("insert executions: %w", err)
	}
	w.logger.Info("flushed execution buffer", "rows", len(w.buf), "subtotal", w.n)
	w.buf = w.buf[:0]
	return nil
}

func (w *Writer) rotateLocked() error {
	path, err := w.closeAndRenameLocked()
	if err != nil {
		return err
	}
	w.logger.Info("rotated execution file", "filename", filepath.Base(path))

	db, err := openTemp(w.baseDir)
	if err != nil {
		return err
	}
	w.db = db
	return nil
}

// closeAndRenameLocked computes the chunk range from the current temp
// file's MIN/MAX id rows, closes it, and renames it to
// ChunkFileName.Unparse(chunk) — mirroring Connection.close.
func (w *Writer) closeAndRenameLocked() (string, error) {
	var first, last executionRow
	if err := w.db.Where("id IS NOT NULL").Order("id ASC").First(&first).Error; err != nil {
		return "", fmt.Errorf("find first row for chunk boundary: %w", err)
	}
	if err := w.db.Where("id IS NOT NULL").Order("id DESC").First(&last).Error; err != nil {
		return "", fmt.Errorf("find last row for chunk boundary: %w", err)
	}

	sqlDB, err := w.db.DB()
	if err != nil {
		return "", fmt.Errorf("underlying sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return "", fmt.Errorf("close sqlite connection: %w", err)
	}

	chunk := domain.Chunk{
		Exchange:      w.exchange,
		Symbol:        domain.Symbol(first.Symbol),
		FirstID:       *first.ID,
		FirstDatetime: first.Timestamp,
		LastID:        *last.ID,
		LastDatetime:  last.Timestamp,
	}
	toPath := filepath.Join(w.baseDir, domain.ChunkFileName{}.Unparse(chunk))
	fromPath := filepath.Join(w.baseDir, tempFileName)

	if err := os.Rename(fromPath, toPath); err != nil {
		return "", fmt.Errorf("rename chunk file: %w", err)
	}
	return toPath, nil
}

func toRow(e *domain.Execution) executionRow {
	row := executionRow{
		Symbol:                     string(e.Symbol),
		ID:                         e.ID,
		Timestamp:                  e.Timestamp,
		Side:                       string(e.Side),
		Price:                      e.Price.String(),
		Size:                       e.Size.String(),
		BuyChildOrderAcceptanceID:  e.BuyChildOrderAcceptanceID,
		SellChildOrderAcceptanceID: e.SellChildOrderAcceptanceID,
	}

	if s := e.Synchronized; s != nil {
		deviation := s.PriceDeviation.String()
		deltaNanos := int64(s.TimeDelta / time.Nanosecond)
		symbol := string(s.Symbol)
		side := string(s.Side)
		price := s.Price.String()
		size := s.Size.String()
		timestamp := s.Timestamp

		row.SynchronizedExecutionPriceDeviation = &deviation
		row.SynchronizedExecutionTimeDelta = &deltaNanos
		row.SynchronizedSymbol = &symbol
		row.SynchronizedID = s.ID
		row.SynchronizedTimestamp = &timestamp
		row.SynchronizedSide = &side
		row.SynchronizedPrice = &price
		row.SynchronizedSize = &size
		row.SynchronizedBuyChildOrderAcceptanceID = &s.BuyChildOrderAcceptanceID
		row.SynchronizedSellChildOrderAcceptanceID = &s.SellChildOrderAcceptanceID
	}

	return row
}
