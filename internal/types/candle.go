package types

import "time"

// Candle represents a single OHLCV candlestick. Candles are immutable once
// fetched and always handled as chronological, fixed-interval sequences.
type Candle struct {
	OpenTime   time.Time `yaml:"open_time" json:"open_time"`
	Open       float64   `yaml:"open" json:"open"`
	High       float64   `yaml:"high" json:"high"`
	Low        float64   `yaml:"low" json:"low"`
	Close      float64   `yaml:"close" json:"close"`
	Volume     float64   `yaml:"volume" json:"volume"`
	CloseTime  time.Time `yaml:"close_time" json:"close_time"`
	TradeCount int64     `yaml:"trade_count" json:"trade_count"`
}

// SymbolPrice is a single entry of a batch ticker-price response.
type SymbolPrice struct {
	Symbol string  `yaml:"symbol" json:"symbol"`
	Price  float64 `yaml:"price" json:"price"`
}

// BuildSymbol concatenates an asset-to-trade code with a base-asset code,
// e.g. ("ADA", "USDT") -> "ADAUSDT". The symbol is the sole cross-component
// key for cache entries, ongoing-trade sets, and price lookups.
func BuildSymbol(assetToTrade, baseAsset string) string {
	return assetToTrade + baseAsset
}
