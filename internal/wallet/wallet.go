// Package wallet implements the virtual portfolio used during replay:
// cash and positions with realistic fills, commission and slippage,
// a trade ledger and an equity curve.
package wallet

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/retracehq/retrace/internal/domain"
)

var bpsDivisor = decimal.NewFromInt(10000)

// conservationTolerance absorbs decimal division remainders from
// fractional position closes.
var conservationTolerance = decimal.New(1, -8)

// TradeRequest describes one fill to apply against the wallet.
// Size is in base units and must be positive; direction comes from Side.
type TradeRequest struct {
	Symbol         string
	Side           domain.Side
	Size           decimal.Decimal
	ReferencePrice decimal.Decimal
	Timestamp      time.Time
	CommissionRate decimal.Decimal
	SlippageBps    decimal.Decimal
	MaxLeverage    decimal.Decimal
	StrategyTag    string
}

// Wallet holds the simulated portfolio of one backtest run. It is
// owned and mutated exclusively by that run's replay goroutine, so it
// carries no locking.
type Wallet struct {
	initialCapital decimal.Decimal
	cash           decimal.Decimal
	positions      map[string]*domain.Position
	ledger         []domain.Trade
	curve          []domain.EquitySnapshot
	realized       decimal.Decimal
	commissions    decimal.Decimal
	orderSeq       int
	logger         *zap.Logger
}

// New creates a wallet funded with the given initial capital.
func New(initialCapital decimal.Decimal, logger *zap.Logger) (*Wallet, error) {
	if initialCapital.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("initial capital must be greater than zero")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wallet{
		initialCapital: initialCapital,
		cash:           initialCapital,
		positions:      make(map[string]*domain.Position),
		logger:         logger,
	}, nil
}

// ExecuteTrade applies one fill: slippage adverse to the trader,
// commission on the filled notional, and a funds check under the
// configured leverage. A rejected trade returns InsufficientFundsError
// and leaves the wallet untouched.
func (w *Wallet) ExecuteTrade(req TradeRequest) (*domain.Trade, error) {
	if req.Size.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Errorf("trade size must be positive, got %s", req.Size.String())
	}
	if req.ReferencePrice.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Errorf("reference price must be positive, got %s", req.ReferencePrice.String())
	}
	leverage := req.MaxLeverage
	if leverage.LessThan(decimal.NewFromInt(1)) {
		leverage = decimal.NewFromInt(1)
	}

	// buys fill higher, sells fill lower
	slip := req.ReferencePrice.Mul(req.SlippageBps).Div(bpsDivisor)
	fill := req.ReferencePrice.Add(slip.Mul(req.Side.Sign()))

	commission := fill.Mul(req.Size).Mul(req.CommissionRate)

	delta := req.Size.Mul(req.Side.Sign())
	pos := w.positions[req.Symbol]

	var (
		closeSize      decimal.Decimal // unsigned portion that reduces the open position
		realizedPnL    decimal.Decimal
		marginReleased decimal.Decimal
	)
	openSize := req.Size
	if pos != nil && !pos.Size.IsZero() && pos.Size.Sign() != delta.Sign() {
		closeSize = decimal.Min(req.Size, pos.AbsSize())
		realizedPnL = fill.Sub(pos.EntryPrice).Mul(closeSize).Mul(pos.Side().Sign())
		marginReleased = pos.Margin.Mul(closeSize).Div(pos.AbsSize())
		openSize = req.Size.Sub(closeSize)
	}

	marginNeeded := fill.Mul(openSize).Div(leverage)

	available := w.cash.Add(marginReleased).Add(realizedPnL)
	needed := marginNeeded.Add(commission)
	if needed.GreaterThan(available) {
		return nil, &domain.InsufficientFundsError{
			Symbol:    req.Symbol,
			Required:  needed,
			Available: available,
		}
	}

	w.cash = available.Sub(needed)
	w.commissions = w.commissions.Add(commission)

	if !closeSize.IsZero() {
		w.realized = w.realized.Add(realizedPnL)
		pos.Size = pos.Size.Sub(closeSize.Mul(pos.Side().Sign()))
		pos.Margin = pos.Margin.Sub(marginReleased)
		if pos.Size.IsZero() {
			delete(w.positions, req.Symbol)
			pos = nil
		}
	}

	if !openSize.IsZero() {
		signedOpen := openSize.Mul(req.Side.Sign())
		if pos == nil {
			w.positions[req.Symbol] = &domain.Position{
				Symbol:     req.Symbol,
				Size:       signedOpen,
				EntryPrice: fill,
				Margin:     marginNeeded,
				OpenedAt:   req.Timestamp,
			}
		} else {
			// same-direction increase re-bases the entry price
			total := pos.Size.Add(signedOpen)
			notional := pos.EntryPrice.Mul(pos.Size.Abs()).Add(fill.Mul(openSize))
			pos.EntryPrice = notional.Div(total.Abs())
			pos.Size = total
			pos.Margin = pos.Margin.Add(marginNeeded)
		}
	}

	w.orderSeq++
	trade := domain.Trade{
		OrderID:         fmt.Sprintf("ord-%06d", w.orderSeq),
		Symbol:          req.Symbol,
		Side:            req.Side,
		RequestedSize:   req.Size,
		FillPrice:       fill,
		Commission:      commission,
		SlippageApplied: slip,
		Timestamp:       req.Timestamp,
		StrategyTag:     req.StrategyTag,
	}
	if !closeSize.IsZero() {
		pnl := realizedPnL
		trade.RealizedPnL = &pnl
	}
	w.ledger = append(w.ledger, trade)

	w.logger.Debug("trade executed",
		zap.String("order_id", trade.OrderID),
		zap.String("symbol", req.Symbol),
		zap.String("side", req.Side.String()),
		zap.String("size", req.Size.String()),
		zap.String("fill", fill.String()),
		zap.String("cash", w.cash.String()))

	return &trade, nil
}

// MarkToMarket recomputes unrealized PnL at the given prices and
// appends an equity snapshot. The trade ledger is never mutated.
func (w *Wallet) MarkToMarket(ts time.Time, prices map[string]decimal.Decimal) domain.EquitySnapshot {
	positionsValue := w.positionsValue(prices)
	snapshot := domain.EquitySnapshot{
		Timestamp:      ts,
		Cash:           w.cash,
		PositionsValue: positionsValue,
		TotalEquity:    w.cash.Add(positionsValue),
	}
	w.curve = append(w.curve, snapshot)
	return snapshot
}

// Equity returns cash plus position market value without recording a
// snapshot.
func (w *Wallet) Equity(prices map[string]decimal.Decimal) decimal.Decimal {
	return w.cash.Add(w.positionsValue(prices))
}

// CheckConservation verifies the financial conservation invariant:
// cash + position value - initial capital equals realized plus
// unrealized PnL minus commissions, within decimal tolerance.
func (w *Wallet) CheckConservation(prices map[string]decimal.Decimal) error {
	lhs := w.cash.Add(w.positionsValue(prices)).Sub(w.initialCapital)
	rhs := w.realized.Add(w.unrealizedPnL(prices)).Sub(w.commissions)
	if lhs.Sub(rhs).Abs().GreaterThan(conservationTolerance) {
		return errors.Errorf("conservation violated: lhs=%s rhs=%s", lhs.String(), rhs.String())
	}
	if w.cash.IsNegative() {
		return errors.Errorf("cash balance is negative: %s", w.cash.String())
	}
	return nil
}

func (w *Wallet) positionsValue(prices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for symbol, pos := range w.positions {
		price, ok := prices[symbol]
		if !ok {
			price = pos.EntryPrice
		}
		total = total.Add(pos.MarketValue(price))
	}
	return total
}

func (w *Wallet) unrealizedPnL(prices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for symbol, pos := range w.positions {
		price, ok := prices[symbol]
		if !ok {
			price = pos.EntryPrice
		}
		total = total.Add(pos.UnrealizedPnL(price))
	}
	return total
}

// Cash returns the current cash balance.
func (w *Wallet) Cash() decimal.Decimal {
	return w.cash
}

// InitialCapital returns the starting cash balance.
func (w *Wallet) InitialCapital() decimal.Decimal {
	return w.initialCapital
}

// RealizedPnL returns accumulated realized PnL across all closes.
func (w *Wallet) RealizedPnL() decimal.Decimal {
	return w.realized
}

// Commissions returns total commission paid.
func (w *Wallet) Commissions() decimal.Decimal {
	return w.commissions
}

// Position returns a copy of the open position for the symbol, or nil.
func (w *Wallet) Position(symbol string) *domain.Position {
	pos, ok := w.positions[symbol]
	if !ok {
		return nil
	}
	clone := *pos
	return &clone
}

// Ledger returns the append-only trade ledger.
func (w *Wallet) Ledger() []domain.Trade {
	return w.ledger
}

// EquityCurve returns the recorded equity snapshots.
func (w *Wallet) EquityCurve() []domain.EquitySnapshot {
	return w.curve
}
