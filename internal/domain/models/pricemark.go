package models

// PriceMark is a streamed last-price update for one symbol, used to refresh
// position marks between snapshot ticks.
type PriceMark struct {
	Symbol    string  `json:"s"`
	Price     float64 `json:"p"`
	Timestamp int64   `json:"t"`
}
