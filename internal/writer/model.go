package writer

import "time"

// executionRow is the GORM model for the "executions" table: the 18-column
// schema of trade/executionwriter/sqlite.py's CREATE TABLE, the primary
// execution fields followed by the eight synchronised-companion columns.
// Strings carry decimal.Decimal values rendered via String() to keep exact
// precision across the sqlite round trip, mirroring the source's str(...)
// calls before binding each column.
type executionRow struct {
	Symbol                     string `gorm:"column:symbol;not null"`
	ID                         *int64 `gorm:"column:id"`
	Timestamp                  time.Time `gorm:"column:timestamp;not null"`
	Side                       string `gorm:"column:side"`
	Price                      string `gorm:"column:price;not null"`
	Size                       string `gorm:"column:size"`
	BuyChildOrderAcceptanceID  string `gorm:"column:buy_child_order_acceptance_id"`
	SellChildOrderAcceptanceID string `gorm:"column:sell_child_order_acceptance_id"`

	SynchronizedExecutionPriceDeviation *string `gorm:"column:synchronized_execution_price_deviation"`
	SynchronizedExecutionTimeDelta      *int64  `gorm:"column:synchronized_execution_time_delta"`

	SynchronizedSymbol                     *string    `gorm:"column:synchronized_symbol"`
	SynchronizedID                         *int64     `gorm:"column:synchronized_id"`
	SynchronizedTimestamp                  *time.Time `gorm:"column:synchronized_timestamp"`
	SynchronizedSide                       *string    `gorm:"column:synchronized_side"`
	SynchronizedPrice                      *string    `gorm:"column:synchronized_price"`
	SynchronizedSize                       *string    `gorm:"column:synchronized_size"`
	SynchronizedBuyChildOrderAcceptanceID  *string    `gorm:"column:synchronized_buy_child_order_acceptance_id"`
	SynchronizedSellChildOrderAcceptanceID *string    `gorm:"column:synchronized_sell_child_order_acceptance_id"`
}

// TableName pins the GORM default (would otherwise pluralize to
// "execution_rows") to the schema's actual table name.
func (executionRow) TableName() string { return "executions" }
