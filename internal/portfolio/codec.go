package portfolio

import (
	"fmt"

	"github.com/bytedance/sonic"

	"stock_ledger/internal/models"
)

// Encode serializes a portfolio with sorted map keys, so equal portfolios give equal bytes.
func Encode(p *models.Portfolio) ([]byte, error) {
	data, err := sonic.ConfigStd.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("portfolio.Encode: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (*models.Portfolio, error) {
	var p models.Portfolio
	if err := sonic.ConfigStd.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("portfolio.Decode: %w", err)
	}

	// ensure maps are non-nil
	if p.Holdings == nil {
		p.Holdings = make(map[string]int64)
	}
	if p.History == nil {
		p.History = make(map[int64]models.Action)
	}
	return &p, nil
}
