package broker

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bitflyer-trader/internal/domain"
	"bitflyer-trader/internal/exchange"
)

// minimumSize is the exchange's minimum order size increment for
// FX_BTC_JPY; sizes are truncated down to this many decimal places.
// Grounded on BitflyerOrder.minimum_size in
// trade/broker/declarative/bitflyer/model.py.
var minimumSize = decimal.New(1, -2) // 0.01

// bitflyerOrder is a fully-quantised order ready to submit: price truncated
// to an integer (bitFlyer JPY ticks have no sub-unit) and size truncated
// down to minimumSize. Grounded on BitflyerOrder in
// trade/broker/declarative/bitflyer/model.py.
type bitflyerOrder struct {
	symbol         domain.Symbol
	productCode    string
	side           domain.Side
	price          int64
	size           decimal.Decimal
	childOrderType string
	minuteToExpire int
	timeInForce    string
}

// newBitflyerOrder builds a quantised order from a raw delta position.
func newBitflyerOrder(productCode string, delta domain.Position, minuteToExpire int, timeInForce string) bitflyerOrder {
	return bitflyerOrder{
		symbol:         delta.Symbol,
		productCode:    productCode,
		side:           delta.Side,
		price:          delta.Price.Truncate(0).IntPart(),
		size:           delta.Size.Truncate(2),
		childOrderType: "LIMIT",
		minuteToExpire: minuteToExpire,
		timeInForce:    timeInForce,
	}
}

// isZero reports whether this order has nothing to submit.
func (o bitflyerOrder) isZero() bool {
	return o.size.Sign() == 0
}

func (o bitflyerOrder) toSendChildOrderRequest() exchange.SendChildOrderRequest {
	size, _ := o.size.Float64()
	return exchange.SendChildOrderRequest{
		ProductCode:    o.productCode,
		ChildOrderType: o.childOrderType,
		Side:           string(o.side),
		Price:          o.price,
		Size:           size,
		MinuteToExpire: o.minuteToExpire,
		TimeInForce:    o.timeInForce,
	}
}

func (o bitflyerOrder) String() string {
	return fmt.Sprintf("BitflyerOrder(%s side=%s price=%d size=%s)", o.symbol, o.side, o.price, o.size)
}

// minimumSizeDecimal exposes the configured minimum tick for tests.
func minimumSizeDecimal() decimal.Decimal { return minimumSize }
