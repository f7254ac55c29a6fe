package market

import (
	"fmt"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// payment is one leg of a split. On the native rail value moves from the
// payer's own balance to Recipient; on the token rail it moves between the two
// token accounts and the payer only authorises it.
type payment struct {
	Rail             entity.Rail
	Payer            authority.Signer
	Recipient        solana.PublicKey
	PayerAccount     solana.PublicKey
	RecipientAccount solana.PublicKey
	Amount           uint64
}

func payFee(tx ledger.Tx, p payment) error {
	if p.Amount == 0 {
		return nil
	}

	zap.L().With(
		zap.String("rail", string(p.Rail)),
		zap.String("payer", p.Payer.Key.String()),
		zap.Uint64("amount", p.Amount),
	).Debug("Market: Paying leg")

	switch p.Rail {
	case entity.RailNative:
		if !present(p.Recipient) {
			return fmt.Errorf("native recipient: %w", ErrMissingAccount)
		}
		return tx.TransferNative(p.Payer, p.Recipient, p.Amount)
	case entity.RailToken:
		if !present(p.PayerAccount) {
			return fmt.Errorf("payer token account: %w", ErrMissingAccount)
		}
		if !present(p.RecipientAccount) {
			return fmt.Errorf("recipient token account: %w", ErrMissingAccount)
		}
		return tx.TransferToken(p.PayerAccount, p.RecipientAccount, p.Payer, p.Amount)
	}

	return fmt.Errorf("%q: %w", p.Rail, ErrInvalidRail)
}

func present(k solana.PublicKey) bool {
	return k != solana.PublicKey{}
}
