package exchange

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bitflyer-trader/internal/domain"
)

// ChildOrderState is the lifecycle state of an order on bitFlyer's books.
type ChildOrderState string

const (
	ChildOrderStateActive    ChildOrderState = "ACTIVE"
	ChildOrderStateCompleted ChildOrderState = "COMPLETED"
	ChildOrderStateCanceled  ChildOrderState = "CANCELED"
	ChildOrderStateExpired   ChildOrderState = "EXPIRED"
	ChildOrderStateRejected  ChildOrderState = "REJECTED"
)

// ChildOrderType distinguishes the order types bitFlyer supports. The
// broker only ever issues LIMIT orders and must ignore every other type it
// observes, since those belong to other actors (spec.md §4.5 phase 1).
type ChildOrderType string

const (
	ChildOrderTypeLimit     ChildOrderType = "LIMIT"
	ChildOrderTypeMarket    ChildOrderType = "MARKET"
	ChildOrderTypeStop      ChildOrderType = "STOP"
	ChildOrderTypeStopLimit ChildOrderType = "STOP_LIMIT"
	ChildOrderTypeTrail     ChildOrderType = "TRAIL"
)

// ChildOrder mirrors the response shape of GET /v1/me/getchildorders,
// grounded on ChildOrder in trade/broker/declarative/bitflyer/model.py.
type ChildOrder struct {
	ID                      int64           `json:"id"`
	ChildOrderID            string          `json:"child_order_id"`
	ChildOrderAcceptanceID  string          `json:"child_order_acceptance_id"`
	ProductCode             string          `json:"product_code"`
	Side                    domain.Side     `json:"side"`
	ChildOrderType          ChildOrderType  `json:"child_order_type"`
	Price                   decimal.Decimal `json:"price"`
	Size                    decimal.Decimal `json:"size"`
	ChildOrderState         ChildOrderState `json:"child_order_state"`
	ExecutedSize            decimal.Decimal `json:"executed_size"`
}

// ToCancelBody builds the POST /v1/me/cancelchildorder request body.
func (c ChildOrder) ToCancelBody(productCode string) CancelChildOrderRequest {
	return CancelChildOrderRequest{
		ProductCode:  productCode,
		ChildOrderID: c.ChildOrderID,
	}
}

// CancelChildOrderRequest is the POST /v1/me/cancelchildorder body.
type CancelChildOrderRequest struct {
	ProductCode  string `json:"product_code"`
	ChildOrderID string `json:"child_order_id"`
}

// SendChildOrderRequest is the POST /v1/me/sendchildorder body. Price is
// forced to an integer (bitFlyer JPY ticks have no sub-unit) and Size is
// quantized to the exchange's minimum tick before this struct is built;
// see the broker package's bitflyerOrder.
type SendChildOrderRequest struct {
	ProductCode    string  `json:"product_code"`
	ChildOrderType string  `json:"child_order_type"`
	Side           string  `json:"side"`
	Price          int64   `json:"price"`
	Size           float64 `json:"size"`
	MinuteToExpire int     `json:"minute_to_expire"`
	TimeInForce    string  `json:"time_in_force"`
}

// SendChildOrderResponse is the POST /v1/me/sendchildorder response.
type SendChildOrderResponse struct {
	ChildOrderAcceptanceID string `json:"child_order_acceptance_id"`
}

// Position mirrors one entry of GET /v1/me/getpositions.
type Position struct {
	ProductCode string          `json:"product_code"`
	Side        domain.Side     `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Size        decimal.Decimal `json:"size"`
}

// ToDomain converts an exchange Position into a domain.Position under the
// given symbol, the last step before normalisation (internal/domain's
// Positions.Normalize groups these by (symbol, side)).
func (p Position) ToDomain(symbol domain.Symbol) domain.Position {
	return domain.Position{Symbol: symbol, Side: p.Side, Price: p.Price, Size: p.Size}
}

func (c ChildOrder) String() string {
	return fmt.Sprintf("ChildOrder(id=%s state=%s side=%s price=%s size=%s)",
		c.ChildOrderAcceptanceID, c.ChildOrderState, c.Side, c.Price, c.Size)
}
