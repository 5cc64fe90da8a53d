package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bitflyer-trader/internal/domain"
	"bitflyer-trader/internal/execution"
	"bitflyer-trader/internal/execution/stream"
)

// chunkRow mirrors the "executions" table written by internal/writer,
// read back column-by-column rather than reusing writer's unexported
// model across package boundaries.
type chunkRow struct {
	Symbol                     string `gorm:"column:symbol"`
	ID                         *int64 `gorm:"column:id"`
	Timestamp                  time.Time
	Side                       string
	Price                      string
	Size                       string
	BuyChildOrderAcceptanceID  string `gorm:"column:buy_child_order_acceptance_id"`
	SellChildOrderAcceptanceID string `gorm:"column:sell_child_order_acceptance_id"`

	SynchronizedExecutionPriceDeviation *string
	SynchronizedExecutionTimeDelta      *int64

	SynchronizedSymbol                     *string
	SynchronizedID                         *int64
	SynchronizedTimestamp                  *time.Time
	SynchronizedSide                       *string
	SynchronizedPrice                      *string
	SynchronizedSize                       *string
	SynchronizedBuyChildOrderAcceptanceID  *string
	SynchronizedSellChildOrderAcceptanceID *string
}

func (chunkRow) TableName() string { return "executions" }

// RowStoreSource replays an ordered directory of *.sqlite3 chunk files as a
// single Stream, reading each file's rows in ascending id order and moving
// to the next file once exhausted — exactly the composition
// ChainedStream expects of its upstreams. Grounded on
// SqliteStreamReader in trade/execution/stream/sqlite.py.
type RowStoreSource struct {
	files []execution.ChunkFile
	fi    int

	db   *gorm.DB
	rows []chunkRow
	ri   int
}

// NewRowStoreSource discovers every chunk file under dir (via
// execution.ListChunkFiles) whose FirstDatetime is at or after from, and
// returns a Stream that replays them in order.
func NewRowStoreSource(dir string, from time.Time) (*RowStoreSource, error) {
	files, err := execution.ListChunkFiles(dir, from)
	if err != nil {
		return nil, err
	}
	return &RowStoreSource{files: files}, nil
}

func (s *RowStoreSource) Next(ctx context.Context) (*domain.Execution, error) {
	for {
		if s.ri < len(s.rows) {
			row := s.rows[s.ri]
			s.ri++
			return rowToExecution(row)
		}

		if err := s.closeCurrent(); err != nil {
			return nil, err
		}

		if s.fi >= len(s.files) {
			return nil, stream.ErrEndOfStream
		}

		if err := s.openNext(ctx); err != nil {
			return nil, err
		}
	}
}

func (s *RowStoreSource) openNext(ctx context.Context) error {
	cf := s.files[s.fi]
	s.fi++

	db, err := gorm.Open(sqlite.Open(cf.Path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return fmt.Errorf("feed: open chunk file %s: %w", cf.Path, err)
	}

	var rows []chunkRow
	if err := db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return fmt.Errorf("feed: read chunk file %s: %w", cf.Path, err)
	}

	s.db = db
	s.rows = rows
	s.ri = 0
	return nil
}

func (s *RowStoreSource) closeCurrent() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("feed: underlying sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("feed: close chunk file: %w", err)
	}
	s.db = nil
	return nil
}

// Close releases the currently open chunk file, if any. Safe to call more
// than once.
func (s *RowStoreSource) Close() error {
	return s.closeCurrent()
}

func rowToExecution(row chunkRow) (*domain.Execution, error) {
	price, err := decimal.NewFromString(row.Price)
	if err != nil {
		return nil, fmt.Errorf("feed: parse price %q: %w", row.Price, err)
	}
	size, err := decimal.NewFromString(row.Size)
	if err != nil {
		return nil, fmt.Errorf("feed: parse size %q: %w", row.Size, err)
	}

	e := &domain.Execution{
		Symbol:                     domain.Symbol(row.Symbol),
		ID:                         row.ID,
		Timestamp:                  row.Timestamp,
		Side:                       domain.Side(row.Side),
		Price:                      price,
		Size:                       size,
		BuyChildOrderAcceptanceID:  row.BuyChildOrderAcceptanceID,
		SellChildOrderAcceptanceID: row.SellChildOrderAcceptanceID,
	}

	if row.SynchronizedID != nil {
		sync, err := rowToSynchronized(row)
		if err != nil {
			return nil, err
		}
		e.Synchronized = sync
	}

	return e, nil
}

func rowToSynchronized(row chunkRow) (*domain.SynchronizedExecution, error) {
	price, err := decimal.NewFromString(deref(row.SynchronizedPrice))
	if err != nil {
		return nil, fmt.Errorf("feed: parse synchronized price: %w", err)
	}
	size, err := decimal.NewFromString(deref(row.SynchronizedSize))
	if err != nil {
		return nil, fmt.Errorf("feed: parse synchronized size: %w", err)
	}
	deviation, err := decimal.NewFromString(deref(row.SynchronizedExecutionPriceDeviation))
	if err != nil {
		return nil, fmt.Errorf("feed: parse synchronized price deviation: %w", err)
	}

	var delta time.Duration
	if row.SynchronizedExecutionTimeDelta != nil {
		delta = time.Duration(*row.SynchronizedExecutionTimeDelta) * time.Nanosecond
	}
	var ts time.Time
	if row.SynchronizedTimestamp != nil {
		ts = *row.SynchronizedTimestamp
	}

	return &domain.SynchronizedExecution{
		Symbol:                     domain.Symbol(deref(row.SynchronizedSymbol)),
		ID:                         row.SynchronizedID,
		Timestamp:                  ts,
		Side:                       domain.Side(deref(row.SynchronizedSide)),
		Price:                      price,
		Size:                       size,
		BuyChildOrderAcceptanceID:  deref(row.SynchronizedBuyChildOrderAcceptanceID),
		SellChildOrderAcceptanceID: deref(row.SynchronizedSellChildOrderAcceptanceID),
		PriceDeviation:             deviation,
		TimeDelta:                  delta,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
