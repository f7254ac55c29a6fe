package market

import (
	"context"
	"fmt"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/ZilDuck/marketplace-settlement/internal/fee"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// SwapRequest routes Data through an exchange program and skims the trade fee
// off whatever lands in the user-out account. InAmount is informational.
type SwapRequest struct {
	User     solana.PublicKey `json:"user"`
	Program  solana.PublicKey `json:"program"`
	Data     []byte           `json:"data"`
	InAmount uint64           `json:"inAmount"`
	Accounts AccountSet       `json:"accounts"`
}

type balanceGauge struct {
	address solana.PublicKey
	token   bool
	mint    solana.PublicKey
}

func (p balanceGauge) read(tx ledger.Tx) (uint64, error) {
	if !p.token {
		return tx.NativeBalance(p.address), nil
	}
	acc, err := tx.TokenAccount(p.address)
	if err != nil {
		return 0, err
	}
	return acc.Amount, nil
}

func (s service) SwapToken(ctx context.Context, req SwapRequest) (*entity.Action, error) {
	return s.commit(ctx, entity.SwapAction, func(tx ledger.Tx) (entity.Action, error) {
		cfg, err := s.marketConfig(tx)
		if err != nil {
			return entity.Action{}, err
		}

		userOut, err := req.Accounts.Lookup(RoleUserOut)
		if err != nil {
			return entity.Action{}, err
		}
		gauge := balanceGauge{address: userOut, mint: solana.SolMint}
		if tx.IsTokenAccount(userOut) {
			acc, err := tx.TokenAccount(userOut)
			if err != nil {
				return entity.Action{}, err
			}
			if !acc.Owner.Equals(req.User) {
				return entity.Action{}, fmt.Errorf("output account %s owned by %s: %w", userOut, acc.Owner, ErrInvalidOwner)
			}
			gauge.token, gauge.mint = true, acc.Mint
		}

		before, err := gauge.read(tx)
		if err != nil {
			return entity.Action{}, err
		}

		program, err := s.programs.Get(req.Program)
		if err != nil {
			return entity.Action{}, err
		}
		if err := program.Invoke(tx, req.Data, req.Accounts.Copy()); err != nil {
			return entity.Action{}, err
		}

		after, err := gauge.read(tx)
		if err != nil {
			return entity.Action{}, err
		}

		out := fee.Delta(before, after)
		split, err := fee.Compute(out, cfg.TradeFeeBps)
		if err != nil {
			return entity.Action{}, err
		}

		zap.L().With(
			zap.String("program", req.Program.String()),
			zap.Uint64("in", req.InAmount),
			zap.Uint64("before", before),
			zap.Uint64("after", after),
			zap.Uint64("fee", split.Fee),
		).Info("Market: Swap settled")

		rail := entity.RailForMint(gauge.mint)
		if split.Fee > 0 {
			if err := s.skimSwapFee(tx, req, gauge, rail, split.Fee); err != nil {
				return entity.Action{}, err
			}
		}

		return entity.Action{
			From:   req.User.String(),
			To:     req.Program.String(),
			Mint:   gauge.mint.String(),
			Rail:   rail,
			Amount: out,
			Fee:    split.Fee,
		}, nil
	})
}

func (s service) skimSwapFee(tx ledger.Tx, req SwapRequest, gauge balanceGauge, rail entity.Rail, amount uint64) error {
	user, err := req.Accounts.Lookup(RoleUser)
	if err != nil {
		return err
	}
	treasury, err := req.Accounts.Lookup(RoleTreasury)
	if err != nil {
		return err
	}
	treasuryToken, err := req.Accounts.Lookup(RoleTreasuryToken)
	if err != nil {
		return err
	}

	if !user.Equals(req.User) {
		return fmt.Errorf("user role %s: %w", user, ErrInvalidOwner)
	}
	if !treasury.Equals(s.treasury.Key) {
		return fmt.Errorf("treasury role %s: %w", treasury, ErrInvalidOwner)
	}

	leg := payment{
		Rail:      rail,
		Payer:     authority.Principal(user),
		Recipient: treasury,
		Amount:    amount,
	}
	if rail == entity.RailToken {
		if _, err := s.checkTreasuryAccount(tx, treasuryToken); err != nil {
			return err
		}
		leg.PayerAccount, leg.RecipientAccount = gauge.address, treasuryToken
	}

	return payFee(tx, leg)
}
