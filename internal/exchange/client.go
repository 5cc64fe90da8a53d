// Package exchange implements the bitFlyer Private API REST client: the
// signed HTTP envelope (C1/C2), the Transient/RateLimited/fatal retry
// taxonomy (C1), and the four endpoints the broker needs. Grounded on
// 0xtitan6-polymarket-mm's internal/exchange/client.go for the resty
// wiring shape, and on
// trade/broker/declarative/bitflyer/__init__.py's _get_child_orders,
// _get_positions, and the cancel/send calls for the bitFlyer-specific
// request/response shapes.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"bitflyer-trader/internal/config"
)

// Client is the bitFlyer Private API REST client. It wraps a resty HTTP
// client with rate limiting, a bounded retry for transport-level failures,
// and per-request HMAC signing via RequestBuilder.
type Client struct {
	http    *resty.Client
	builder *RequestBuilder
	rl      *RateLimiter
	dryRun  bool
	logger  *slog.Logger
}

// NewClient creates a bitFlyer REST client with rate limiting and retry.
func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.API.BaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &Client{
		http:    httpClient,
		builder: NewRequestBuilder(cfg.API),
		rl:      NewRateLimiter(),
		dryRun:  cfg.DryRun,
		logger:  logger.With("component", "exchange_client"),
	}
}

const childOrdersPath = "/v1/me/getchildorders"

// GetChildOrders issues GET /v1/me/getchildorders with the given state and
// an optional acceptance-id filter (pass "" to list all orders in that
// state). Returns ErrTransient on 5xx and ErrRateLimited on 429.
func (c *Client) GetChildOrders(ctx context.Context, productCode string, state ChildOrderState, acceptanceID string) ([]ChildOrder, error) {
	if err := c.rl.Read.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("product_code", productCode)
	if state != "" {
		query.Set("child_order_state", string(state))
	}
	if acceptanceID != "" {
		query.Set("child_order_acceptance_id", acceptanceID)
	}
	pathWithQuery := childOrdersPath + "?" + query.Encode()

	var orders []ChildOrder
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.builder.BuildGetHeaders(pathWithQuery)).
		SetResult(&orders).
		Get(c.builder.BuildURL(pathWithQuery))
	if err != nil {
		return nil, fmt.Errorf("get child orders: %w", err)
	}
	if classified := classifyHTTPStatus(resp.StatusCode()); classified != nil {
		return nil, classified
	}
	return orders, nil
}

const cancelChildOrderPath = "/v1/me/cancelchildorder"

// CancelChildOrder issues POST /v1/me/cancelchildorder for a single order.
func (c *Client) CancelChildOrder(ctx context.Context, req CancelChildOrderRequest) error {
	if c.dryRun {
		c.logger.Info("dry-run: would cancel child order", "child_order_id", req.ChildOrderID)
		return nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal cancel request: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.builder.BuildPostHeaders(cancelChildOrderPath, string(body))).
		SetBody(body).
		Post(c.builder.BuildURL(cancelChildOrderPath))
	if err != nil {
		return fmt.Errorf("cancel child order: %w", err)
	}
	if classified := classifyHTTPStatus(resp.StatusCode()); classified != nil {
		return classified
	}
	return nil
}

const sendChildOrderPath = "/v1/me/sendchildorder"

// SendChildOrder issues POST /v1/me/sendchildorder. Raises
// ErrUnexpectedResponse if the 200 response body is empty or lacks an
// acceptance id (spec.md §4.5 phase 3, §7).
func (c *Client) SendChildOrder(ctx context.Context, req SendChildOrderRequest) (*SendChildOrderResponse, error) {
	if c.dryRun {
		c.logger.Info("dry-run: would send child order", "side", req.Side, "price", req.Price, "size", req.Size)
		return &SendChildOrderResponse{ChildOrderAcceptanceID: "dry-run"}, nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal send order request: %w", err)
	}

	var result SendChildOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.builder.BuildPostHeaders(sendChildOrderPath, string(body))).
		SetBody(body).
		SetResult(&result).
		Post(c.builder.BuildURL(sendChildOrderPath))
	if err != nil {
		return nil, fmt.Errorf("send child order: %w", err)
	}
	if classified := classifyHTTPStatus(resp.StatusCode()); classified != nil {
		return nil, classified
	}
	if len(resp.Body()) == 0 || result.ChildOrderAcceptanceID == "" {
		return nil, fmt.Errorf("%w: empty body on order submission", ErrUnexpectedResponse)
	}
	return &result, nil
}

const positionsPath = "/v1/me/getpositions"

// GetPositions issues GET /v1/me/getpositions for the given product.
func (c *Client) GetPositions(ctx context.Context, productCode string) ([]Position, error) {
	if err := c.rl.Read.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("product_code", productCode)
	pathWithQuery := positionsPath + "?" + query.Encode()

	var positions []Position
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.builder.BuildGetHeaders(pathWithQuery)).
		SetResult(&positions).
		Get(c.builder.BuildURL(pathWithQuery))
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	if classified := classifyHTTPStatus(resp.StatusCode()); classified != nil {
		return nil, classified
	}
	return positions, nil
}
