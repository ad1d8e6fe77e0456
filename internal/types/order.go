package types

// TradingState is the per-symbol trade lifecycle state.
type TradingState string

const (
	// TradingStatePending means no open position exists for the symbol.
	TradingStatePending TradingState = "PENDING"
	// TradingStateTrading means one open bracketed position exists.
	TradingStateTrading TradingState = "TRADING"
)

// Order is a bracketed position: a filled buy paired with linked
// stop-loss/take-profit exit prices. At most one Order may be open per
// symbol at any time.
type Order struct {
	Symbol     string  `yaml:"symbol" json:"symbol"`
	Quantity   float64 `yaml:"quantity" json:"quantity"`
	EntryPrice float64 `yaml:"entry_price" json:"entry_price"`
	GainPrice  float64 `yaml:"gain_price" json:"gain_price"`
	LossPrice  float64 `yaml:"loss_price" json:"loss_price"`
}

// SettlementOutcome tells how a bracketed position was closed.
type SettlementOutcome string

const (
	SettlementGain SettlementOutcome = "GAIN"
	SettlementLoss SettlementOutcome = "LOSS"
)

// SimulationResult aggregates a finished backtest or simulator run.
type SimulationResult struct {
	Losses  int     `yaml:"losses" json:"losses"`
	Gains   int     `yaml:"gains" json:"gains"`
	Balance float64 `yaml:"balance" json:"balance"`
}
