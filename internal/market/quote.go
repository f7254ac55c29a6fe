package market

import (
	"context"

	"github.com/ZilDuck/marketplace-settlement/internal/fee"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
)

// Quote is what each fee policy would take from price. Clients use it to fill
// in the caller-supplied token-rail fees.
type Quote struct {
	Price     uint64    `json:"price"`
	MintFee   fee.Split `json:"mintFee"`
	TradeFee  fee.Split `json:"tradeFee"`
	RelistFee fee.Split `json:"relistFee"`
}

func (s service) QuoteFees(ctx context.Context, price uint64) (*Quote, error) {
	quote := Quote{Price: price}

	err := s.ledger.View(ctx, func(tx ledger.Tx) error {
		cfg, err := s.marketConfig(tx)
		if err != nil {
			return err
		}

		if quote.MintFee, err = fee.Compute(price, cfg.MintFeeBps); err != nil {
			return err
		}
		if quote.TradeFee, err = fee.Compute(price, cfg.TradeFeeBps); err != nil {
			return err
		}
		quote.RelistFee, err = fee.Compute(price, cfg.RelistFeeBps)

		return err
	})
	if err != nil {
		return nil, err
	}

	return &quote, nil
}
