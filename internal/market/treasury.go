package market

import (
	"context"
	"fmt"

	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/ZilDuck/marketplace-settlement/internal/fee"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

type InitializeMarketRequest struct {
	Admin             solana.PublicKey   `json:"admin"`
	MintFeeBps        uint16             `json:"mintFeeBps"`
	TradeFeeBps       uint16             `json:"tradeFeeBps"`
	RelistFeeBps      uint16             `json:"relistFeeBps"`
	MultisigAdmins    []solana.PublicKey `json:"multisigAdmins"`
	MultisigThreshold uint8              `json:"multisigThreshold"`
}

// InitializeTreasuryRequest opens treasury token accounts for Mints. The
// native mint is skipped.
type InitializeTreasuryRequest struct {
	Initializer solana.PublicKey   `json:"initializer"`
	Mints       []solana.PublicKey `json:"mints"`
}

// WithdrawRequest releases pooled fees to the admin. Admin is itself one of
// the quorum candidates alongside Signers.
type WithdrawRequest struct {
	Admin                solana.PublicKey   `json:"admin"`
	Signers              []solana.PublicKey `json:"signers"`
	Mint                 solana.PublicKey   `json:"mint"`
	Amount               uint64             `json:"amount"`
	TreasuryTokenAccount solana.PublicKey   `json:"treasuryTokenAccount"`
	AdminTokenAccount    solana.PublicKey   `json:"adminTokenAccount"`
}

func (s service) InitializeMarket(ctx context.Context, req InitializeMarketRequest) (*entity.MarketConfig, error) {
	for _, bps := range []uint16{req.MintFeeBps, req.TradeFeeBps, req.RelistFeeBps} {
		if bps > fee.MaxBps {
			return nil, fmt.Errorf("%d: %w", bps, ErrInvalidFeeBps)
		}
	}
	if req.MultisigThreshold == 0 || int(req.MultisigThreshold) > len(req.MultisigAdmins)+1 {
		return nil, fmt.Errorf("threshold %d over %d admins: %w", req.MultisigThreshold, len(req.MultisigAdmins), ErrInvalidThreshold)
	}
	if !present(req.Admin) {
		return nil, fmt.Errorf("admin: %w", ErrMissingAccount)
	}

	cfg := entity.MarketConfig{
		Admin:             req.Admin,
		MintFeeBps:        req.MintFeeBps,
		TradeFeeBps:       req.TradeFeeBps,
		RelistFeeBps:      req.RelistFeeBps,
		Treasury:          s.treasury.Key,
		TreasuryBump:      s.treasury.Bump,
		MultisigAdmins:    append([]solana.PublicKey(nil), req.MultisigAdmins...),
		MultisigThreshold: req.MultisigThreshold,
	}

	_, err := s.commit(ctx, entity.InitializeMarketAction, func(tx ledger.Tx) (entity.Action, error) {
		if s.configRepo.Exists(tx) {
			return entity.Action{}, fmt.Errorf("market config: %w", ErrAlreadyInitialized)
		}
		if err := s.configRepo.Save(tx, cfg); err != nil {
			return entity.Action{}, err
		}

		return entity.Action{From: entity.KeyString(req.Admin)}, nil
	})
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (s service) InitializeTreasury(ctx context.Context, req InitializeTreasuryRequest) (*entity.Treasury, error) {
	treasury := entity.Treasury{
		Address:     s.treasury.Key,
		Bump:        s.treasury.Bump,
		Initializer: req.Initializer,
	}

	_, err := s.commit(ctx, entity.InitializeTreasuryAction, func(tx ledger.Tx) (entity.Action, error) {
		if s.configRepo.TreasuryExists(tx) {
			return entity.Action{}, fmt.Errorf("treasury: %w", ErrAlreadyInitialized)
		}
		for _, mint := range req.Mints {
			if entity.RailForMint(mint) == entity.RailNative {
				continue
			}
			if _, err := tx.EnsureAssociatedTokenAccount(s.treasury.Key, mint); err != nil {
				return entity.Action{}, err
			}
		}
		if err := s.configRepo.SaveTreasury(tx, treasury); err != nil {
			return entity.Action{}, err
		}

		return entity.Action{From: entity.KeyString(req.Initializer), To: s.treasury.Key.String()}, nil
	})
	if err != nil {
		return nil, err
	}

	return &treasury, nil
}

func (s service) WithdrawTreasury(ctx context.Context, req WithdrawRequest) (*entity.Action, error) {
	return s.commit(ctx, entity.WithdrawTreasuryAction, func(tx ledger.Tx) (entity.Action, error) {
		cfg, err := s.marketConfig(tx)
		if err != nil {
			return entity.Action{}, err
		}
		if !cfg.Admin.Equals(req.Admin) {
			return entity.Action{}, fmt.Errorf("admin %s: %w", req.Admin, ErrInvalidOwner)
		}

		candidates := append([]solana.PublicKey{req.Admin}, req.Signers...)
		have, need := Quorum(cfg.MultisigAdmins, candidates), RequiredQuorum(cfg.MultisigThreshold, s.enforceThreshold)
		if have < need {
			return entity.Action{}, fmt.Errorf("%d of %d signers: %w", have, need, ErrUnauthorized)
		}

		rail := entity.RailForMint(req.Mint)
		zap.L().With(
			zap.String("mint", req.Mint.String()),
			zap.Uint64("amount", req.Amount),
			zap.Int("signers", have),
		).Info("Market: Withdrawing treasury")

		leg := payment{
			Rail:             rail,
			Payer:            s.treasury.Signer(),
			Recipient:        req.Admin,
			PayerAccount:     req.TreasuryTokenAccount,
			RecipientAccount: req.AdminTokenAccount,
			Amount:           req.Amount,
		}
		if rail == entity.RailToken && (!present(req.TreasuryTokenAccount) || !present(req.AdminTokenAccount)) {
			return entity.Action{}, fmt.Errorf("treasury and admin token accounts: %w", ErrMissingAccount)
		}
		if err := payFee(tx, leg); err != nil {
			return entity.Action{}, err
		}

		return entity.Action{
			From:   s.treasury.Key.String(),
			To:     req.Admin.String(),
			Mint:   req.Mint.String(),
			Rail:   rail,
			Amount: req.Amount,
		}, nil
	})
}

func (s service) TreasuryBalance(ctx context.Context, mint solana.PublicKey) (balance uint64, err error) {
	err = s.ledger.View(ctx, func(tx ledger.Tx) error {
		if entity.RailForMint(mint) == entity.RailNative {
			balance = tx.NativeBalance(s.treasury.Key)
			return nil
		}

		address, err := ledger.AssociatedTokenAddress(s.treasury.Key, mint)
		if err != nil {
			return err
		}
		if !tx.IsTokenAccount(address) {
			return nil
		}
		acc, err := tx.TokenAccount(address)
		if err != nil {
			return err
		}
		balance = acc.Amount

		return nil
	})
	return
}
