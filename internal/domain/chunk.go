package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Chunk identifies a historical execution file: which exchange and symbol
// it covers, and the id/timestamp range of the rows inside it. Grounded on
// trade/execution/__init__.py's Chunk dataclass.
type Chunk struct {
	Exchange      Exchange
	Symbol        Symbol
	FirstID       int64
	FirstDatetime time.Time
	LastID        int64
	LastDatetime  time.Time
}

// chunkTimeLayout matches the source's str(np.datetime64) rendering close
// enough for round-tripping: date and time with nanosecond precision and no
// zone suffix.
const chunkTimeLayout = "2006-01-02T15:04:05.000000000"

// encodeSafeFilename strips the colons out of a timestamp so it is safe to
// use inside a filename, mirroring encode_safe_filename in
// trade/execution/stream/sqlite.py.
func encodeSafeFilename(t time.Time) string {
	return strings.ReplaceAll(t.UTC().Format(chunkTimeLayout), ":", "")
}

// decodeSafeFilename re-inserts colons into the HH MM SS portion of a
// colon-stripped timestamp, mirroring decode_safe_filename. The date
// portion (YYYY-MM-DD) is untouched; the time portion following 'T' is
// grouped back into HH:MM:SS plus the fractional remainder.
func decodeSafeFilename(s string) (time.Time, error) {
	tIdx := strings.Index(s, "T")
	if tIdx < 0 || len(s) < tIdx+1+6 {
		return time.Time{}, fmt.Errorf("domain: malformed chunk timestamp %q", s)
	}
	datePart := s[:tIdx]
	timePart := s[tIdx+1:]
	if len(timePart) < 6 {
		return time.Time{}, fmt.Errorf("domain: malformed chunk time-of-day %q", s)
	}
	hh, mm, ss := timePart[0:2], timePart[2:4], timePart[4:6]
	frac := timePart[6:]
	rebuilt := datePart + "T" + hh + ":" + mm + ":" + ss + frac
	return time.Parse(chunkTimeLayout, rebuilt)
}

// ChunkFileName implements the bijective filename codec from spec.md §3:
// "<exchange>_<symbol>_<first_id>-<first_datetime>_<last_id>-<last_datetime>.sqlite3"
// with colons stripped from the timestamps for filesystem safety. Grounded
// on the FileName class in trade/execution/stream/sqlite.py.
type ChunkFileName struct{}

// Unparse renders a Chunk into its canonical filename.
func (ChunkFileName) Unparse(c Chunk) string {
	return fmt.Sprintf("%s_%s_%d-%s_%d-%s.sqlite3",
		c.Exchange, c.Symbol,
		c.FirstID, encodeSafeFilename(c.FirstDatetime),
		c.LastID, encodeSafeFilename(c.LastDatetime),
	)
}

// Parse recovers a Chunk from a filename produced by Unparse. Symbols such
// as FX_BTC_JPY themselves contain underscores, so the exchange/symbol
// prefix can't be split by position alone: the last two underscore-
// delimited fields are always the id-timestamp pairs, and everything
// between the first field (the exchange) and those is the symbol,
// rejoined with "_".
func (ChunkFileName) Parse(filename string) (Chunk, error) {
	name := strings.TrimSuffix(filename, ".sqlite3")
	parts := strings.Split(name, "_")
	if len(parts) < 4 {
		return Chunk{}, fmt.Errorf("domain: malformed chunk filename %q", filename)
	}

	exchange := parts[0]
	symbol := strings.Join(parts[1:len(parts)-2], "_")
	firstPart := parts[len(parts)-2]
	lastPart := parts[len(parts)-1]

	firstID, firstDT, err := splitIDAndTimestamp(firstPart)
	if err != nil {
		return Chunk{}, err
	}
	lastID, lastDT, err := splitIDAndTimestamp(lastPart)
	if err != nil {
		return Chunk{}, err
	}

	return Chunk{
		Exchange:      Exchange(exchange),
		Symbol:        Symbol(symbol),
		FirstID:       firstID,
		FirstDatetime: firstDT,
		LastID:        lastID,
		LastDatetime:  lastDT,
	}, nil
}

func splitIDAndTimestamp(s string) (int64, time.Time, error) {
	idx := strings.Index(s, "-")
	if idx < 0 {
		return 0, time.Time{}, fmt.Errorf("domain: malformed chunk id-timestamp pair %q", s)
	}
	id, err := strconv.ParseInt(s[:idx], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("domain: malformed chunk id %q: %w", s, err)
	}
	ts, err := decodeSafeFilename(s[idx+1:])
	if err != nil {
		return 0, time.Time{}, err
	}
	return id, ts, nil
}
