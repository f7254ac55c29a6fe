package market

import (
	"context"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/ZilDuck/marketplace-settlement/internal/fee"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/gagliardetto/solana-go"
)

// SendRequest is a taxed peer transfer. The rail follows Mint; token accounts
// are ignored on the native rail.
type SendRequest struct {
	Sender                solana.PublicKey `json:"sender"`
	Recipient             solana.PublicKey `json:"recipient"`
	Mint                  solana.PublicKey `json:"mint"`
	Amount                uint64           `json:"amount"`
	SenderTokenAccount    solana.PublicKey `json:"senderTokenAccount"`
	RecipientTokenAccount solana.PublicKey `json:"recipientTokenAccount"`
	TreasuryTokenAccount  solana.PublicKey `json:"treasuryTokenAccount"`
}

func (s service) SendToken(ctx context.Context, req SendRequest) (*entity.Action, error) {
	return s.commit(ctx, entity.SendAction, func(tx ledger.Tx) (entity.Action, error) {
		cfg, err := s.marketConfig(tx)
		if err != nil {
			return entity.Action{}, err
		}
		split, err := fee.Compute(req.Amount, cfg.TradeFeeBps)
		if err != nil {
			return entity.Action{}, err
		}

		rail := entity.RailForMint(req.Mint)
		sender := authority.Principal(req.Sender)
		toRecipient := payment{
			Rail:             rail,
			Payer:            sender,
			Recipient:        req.Recipient,
			PayerAccount:     req.SenderTokenAccount,
			RecipientAccount: req.RecipientTokenAccount,
			Amount:           split.Residual,
		}
		toTreasury := payment{
			Rail:             rail,
			Payer:            sender,
			Recipient:        s.treasury.Key,
			PayerAccount:     req.SenderTokenAccount,
			RecipientAccount: req.TreasuryTokenAccount,
			Amount:           split.Fee,
		}
		if rail == entity.RailToken && split.Fee > 0 {
			if _, err := s.checkTreasuryAccount(tx, req.TreasuryTokenAccount); err != nil {
				return entity.Action{}, err
			}
		}

		if err := payFee(tx, toRecipient); err != nil {
			return entity.Action{}, err
		}
		if err := payFee(tx, toTreasury); err != nil {
			return entity.Action{}, err
		}

		return entity.Action{
			From:   req.Sender.String(),
			To:     req.Recipient.String(),
			Mint:   req.Mint.String(),
			Rail:   rail,
			Amount: req.Amount,
			Fee:    split.Fee,
		}, nil
	})
}
