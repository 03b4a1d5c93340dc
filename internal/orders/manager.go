// Package orders tracks the order book of a run. The lifecycle is
// deliberately short: every pending order resolves within the bar it
// was created on, either filling fully or being canceled, so no order
// state survives across bars.
package orders

import (
	"fmt"

	"go.uber.org/zap"

	"daywise-backtester/internal/domain"
	"daywise-backtester/internal/execution"
)

// Manager accepts sized orders and resolves them against bars.
type Manager struct {
	sim    *execution.Simulator
	logger *zap.Logger

	pending  []*domain.Order
	archived []*domain.Order
}

// NewManager builds an order manager around a fill simulator.
func NewManager(sim *execution.Simulator, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{sim: sim, logger: logger}
}

// Submit queues an order for resolution against the current bar. A
// zero-quantity order is canceled immediately rather than queued.
func (m *Manager) Submit(order *domain.Order) error {
	if order.Status != domain.OrderStatusPending {
		return fmt.Errorf("order %s: cannot submit in status %s", order.OrderID, order.Status)
	}
	if order.Quantity == 0 {
		order.Status = domain.OrderStatusCanceled
		m.archived = append(m.archived, order)
		m.logger.Debug("zero-quantity order canceled", zap.String("order_id", order.OrderID))
		return nil
	}
	if order.Quantity < 0 {
		return fmt.Errorf("order %s: negative quantity %d", order.OrderID, order.Quantity)
	}
	m.pending = append(m.pending, order)
	return nil
}

// ResolveBar resolves every pending order against bar. Orders the bar
// never touches are canceled; there are no partial fills and nothing
// stays pending afterwards. Fills are returned in submission order.
func (m *Manager) ResolveBar(bar *domain.Bar) ([]*domain.Fill, error) {
	if len(m.pending) == 0 {
		return nil, nil
	}

	var fills []*domain.Fill
	for _, order := range m.pending {
		fill, err := m.sim.Fill(order, bar, 0)
		if err != nil {
			return nil, fmt.Errorf("resolve order %s: %w", order.OrderID, err)
		}
		if fill == nil {
			order.Status = domain.OrderStatusCanceled
			m.logger.Debug("order canceled, bar never touched trigger",
				zap.String("order_id", order.OrderID),
				zap.String("symbol", order.Symbol))
		} else {
			order.Status = domain.OrderStatusFilled
			fills = append(fills, fill)
		}
		m.archived = append(m.archived, order)
	}
	m.pending = m.pending[:0]
	return fills, nil
}

// Pending returns the count of unresolved orders. Nonzero outside a
// bar's resolution step indicates a sequencing bug.
func (m *Manager) Pending() int {
	return len(m.pending)
}

// Archived returns every terminal order in submission order.
func (m *Manager) Archived() []*domain.Order {
	out := make([]*domain.Order, len(m.archived))
	copy(out, m.archived)
	return out
}
