package models

import "github.com/shopspring/decimal"

func init() {
	// Balance пишется в JSON числом, как в старых записях
	decimal.MarshalJSONWithoutQuotes = true
}

// Action — запись аудита об одной сделке.
type Action struct {
	IsSell bool  `json:"isSell"`
	Amount int64 `json:"amt"`
}

// Portfolio хранит бумаги, историю сделок и баланс одного пользователя.
// JSON-ключи совместимы со старыми записями в Redis.
type Portfolio struct {
	Holdings map[string]int64 `json:"StockMap"`
	History  map[int64]Action `json:"ActionMap"` // unix ms -> action
	Balance  decimal.Decimal  `json:"Balance"`

	// Version растёт на каждой условной записи.
	Version uint64 `json:"Version"`
}

func NewPortfolio() *Portfolio {
	return &Portfolio{
		Holdings: make(map[string]int64),
		History:  make(map[int64]Action),
	}
}
