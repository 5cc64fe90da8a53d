package broker

import (
	"context"
	"fmt"
	"time"

	"bitflyer-trader/internal/domain"
	"bitflyer-trader/internal/exchange"
)

// sleepSettlementDelay optionally pauses to absorb read-after-write lag
// before a confirmation re-query, mirroring the `if self._delay: await
// asyncio.sleep(self._delay)` calls in _clearing_orders/_ordering.
func (b *Broker) sleepSettlementDelay(ctx context.Context) {
	if b.cfg.SettlementDelay <= 0 {
		return
	}
	select {
	case <-time.After(b.cfg.SettlementDelay):
	case <-ctx.Done():
	}
}

// clearingOrders cancels every ACTIVE LIMIT order on the target product,
// then confirms none remain, retrying forever on a Transient condition.
// Orders of any other type belong to another actor (e.g. a stop-loss) and
// must be left untouched. Grounded on _clearing_orders in
// trade/broker/declarative/bitflyer/__init__.py.
func (b *Broker) clearingOrders(ctx context.Context, reqID string) error {
	active, err := b.activeLimitOrders(ctx)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		b.logger.Info("clearing: no active limit orders", "request_id", reqID)
		return nil
	}
	b.logger.Info("clearing: cancelling active limit orders", "request_id", reqID, "count", len(active))

	for _, o := range active {
		if err := b.client.CancelChildOrder(ctx, o.ToCancelBody(b.productCode)); err != nil {
			return fmt.Errorf("cancel child order %s: %w", o.ChildOrderID, err)
		}
	}

	b.sleepSettlementDelay(ctx)

	return exchange.RetryForever(ctx, b.cfg.TimeWaitRetrying, b.cfg.TimeWait429Suspends, func() error {
		remaining, err := b.activeLimitOrders(ctx)
		if err != nil {
			return err
		}
		if len(remaining) > 0 {
			return fmt.Errorf("%w: %d active limit order(s) still present", exchange.ErrTransient, len(remaining))
		}
		return nil
	})
}

func (b *Broker) activeLimitOrders(ctx context.Context) ([]exchange.ChildOrder, error) {
	orders, err := b.client.GetChildOrders(ctx, b.productCode, exchange.ChildOrderStateActive, "")
	if err != nil {
		return nil, err
	}
	out := orders[:0]
	for _, o := range orders {
		if o.ChildOrderType == exchange.ChildOrderTypeLimit {
			out = append(out, o)
		}
	}
	return out, nil
}

// makingOrders fetches actual positions, normalises them, computes the
// delta against the desired snapshot via domain.Position.Sub, and builds
// one quantised order per non-zero delta. Grounded on _making_orders.
func (b *Broker) makingOrders(ctx context.Context, reqID string, desired domain.NormalizedPositions) ([]bitflyerOrder, error) {
	rawPositions, err := b.client.GetPositions(ctx, b.productCode)
	if err != nil {
		return nil, err
	}

	raw := make(domain.Positions, 0, len(rawPositions))
	for _, p := range rawPositions {
		raw = append(raw, p.ToDomain(b.symbol))
	}

	actual, err := raw.Normalize()
	if err != nil {
		return nil, fmt.Errorf("normalize actual positions: %w", err)
	}
	b.logger.Info("making orders: actual positions", "request_id", reqID, "actual", actual)
	b.logger.Info("making orders: desired positions", "request_id", reqID, "desired", desired)

	d, ok := desired[b.symbol]
	if !ok {
		return nil, fmt.Errorf("no desired position for symbol %s", b.symbol)
	}

	var delta domain.Position
	if a, ok := actual[b.symbol]; ok {
		delta, err = d.Sub(a)
		if err != nil {
			return nil, fmt.Errorf("compute delta: %w", err)
		}
	} else {
		delta = d
	}

	order := newBitflyerOrder(b.productCode, delta, b.cfg.MinuteToExpire, b.cfg.TimeInForce)
	b.logger.Info("making orders: built order", "request_id", reqID, "order", order)
	return []bitflyerOrder{order}, nil
}

// ordering submits every order under the exclusive semaphore (so a pending
// cancellation cannot tear an in-flight batch), then confirms each
// acceptance id appeared, first as COMPLETED, then as ACTIVE, retrying
// forever on Transient. Grounded on _ordering.
func (b *Broker) ordering(ctx context.Context, reqID string, orders []bitflyerOrder) error {
	acceptanceIDs := make([]string, 0, len(orders))

	if err := b.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	sendErr := func() error {
		defer b.sem.Release(1)

		for _, o := range orders {
			if o.isZero() {
				continue
			}
			resp, err := b.client.SendChildOrder(ctx, o.toSendChildOrderRequest())
			if err != nil {
				return err
			}
			acceptanceIDs = append(acceptanceIDs, resp.ChildOrderAcceptanceID)
		}
		return nil
	}()
	if sendErr != nil {
		return fmt.Errorf("send child order: %w", sendErr)
	}

	b.sleepSettlementDelay(ctx)

	return exchange.RetryForever(ctx, b.cfg.TimeWaitRetrying, b.cfg.TimeWait429Suspends, func() error {
		for _, id := range acceptanceIDs {
			completed, err := b.client.GetChildOrders(ctx, b.productCode, exchange.ChildOrderStateCompleted, id)
			if err != nil {
				return err
			}
			if containsAcceptanceID(completed, id) {
				b.logger.Info("ordering: confirmed completed", "request_id", reqID, "acceptance_id", id)
				continue
			}

			active, err := b.client.GetChildOrders(ctx, b.productCode, exchange.ChildOrderStateActive, id)
			if err != nil {
				return err
			}
			if containsAcceptanceID(active, id) {
				b.logger.Info("ordering: confirmed active", "request_id", reqID, "acceptance_id", id)
				continue
			}

			return fmt.Errorf("%w: acceptance id %s not yet visible", exchange.ErrTransient, id)
		}
		return nil
	})
}

func containsAcceptanceID(orders []exchange.ChildOrder, id string) bool {
	for _, o := range orders {
		if o.ChildOrderAcceptanceID == id {
			return true
		}
	}
	return false
}
