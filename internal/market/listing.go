package market

import (
	"context"
	"fmt"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/ZilDuck/marketplace-settlement/internal/event"
	"github.com/ZilDuck/marketplace-settlement/internal/fee"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// MintAndListRequest issues the single unit of Asset to Seller and lists it.
// TokenFee is taken as given on the token rail; it is not checked against the
// mint fee rate because it may be denominated in a different token.
type MintAndListRequest struct {
	Seller               solana.PublicKey `json:"seller"`
	Asset                solana.PublicKey `json:"asset"`
	Price                uint64           `json:"price"`
	Rail                 entity.Rail      `json:"rail"`
	TokenFee             uint64           `json:"tokenFee"`
	SellerPaymentAccount solana.PublicKey `json:"sellerPaymentAccount"`
	AdminTokenAccount    solana.PublicKey `json:"adminTokenAccount"`
}

// RelistRequest hands an existing listing to whoever now holds the asset.
// Listing and SellerAssetAccount default to the canonical addresses.
type RelistRequest struct {
	NewOwner             solana.PublicKey `json:"newOwner"`
	Asset                solana.PublicKey `json:"asset"`
	Listing              solana.PublicKey `json:"listing"`
	SellerAssetAccount   solana.PublicKey `json:"sellerAssetAccount"`
	NewPrice             uint64           `json:"newPrice"`
	Rail                 entity.Rail      `json:"rail"`
	RelistFee            uint64           `json:"relistFee"`
	SellerPaymentAccount solana.PublicKey `json:"sellerPaymentAccount"`
	TreasuryTokenAccount solana.PublicKey `json:"treasuryTokenAccount"`
}

func (s service) MintAndList(ctx context.Context, req MintAndListRequest) (*entity.Listing, error) {
	if !req.Rail.Valid() {
		return nil, fmt.Errorf("%q: %w", req.Rail, ErrInvalidRail)
	}

	var listing entity.Listing
	_, err := s.commit(ctx, entity.MintAndListAction, func(tx ledger.Tx) (entity.Action, error) {
		cfg, err := s.marketConfig(tx)
		if err != nil {
			return entity.Action{}, err
		}

		mintAuth, err := s.deriver.Derive(authority.MintAuthorityLabel, req.Asset)
		if err != nil {
			return entity.Action{}, err
		}
		escrow, err := s.deriver.Derive(authority.EscrowLabel, req.Asset)
		if err != nil {
			return entity.Action{}, err
		}

		sellerAssetAccount, err := tx.EnsureAssociatedTokenAccount(req.Seller, req.Asset)
		if err != nil {
			return entity.Action{}, err
		}
		if err := tx.MintTo(req.Asset, sellerAssetAccount, mintAuth.Signer(), 1); err != nil {
			return entity.Action{}, err
		}
		if err := tx.SetMintAuthority(req.Asset, mintAuth.Signer(), nil); err != nil {
			return entity.Action{}, err
		}
		if err := tx.Approve(sellerAssetAccount, escrow.Key, authority.Principal(req.Seller), 1); err != nil {
			return entity.Action{}, err
		}

		action := entity.Action{
			Asset:  req.Asset.String(),
			From:   req.Seller.String(),
			Rail:   req.Rail,
			Amount: req.Price,
		}

		pinned, err := paymentMint(tx, req.Rail, req.Seller, req.SellerPaymentAccount)
		if err != nil {
			return entity.Action{}, err
		}

		leg := payment{Rail: req.Rail, Payer: authority.Principal(req.Seller)}
		if req.Rail == entity.RailNative {
			split, err := fee.Compute(req.Price, cfg.MintFeeBps)
			if err != nil {
				return entity.Action{}, err
			}
			leg.Recipient = s.treasury.Key
			leg.Amount = split.Fee
			action.To = s.treasury.Key.String()
		} else {
			leg.PayerAccount = req.SellerPaymentAccount
			leg.RecipientAccount = req.AdminTokenAccount
			leg.Amount = req.TokenFee
			action.To = entity.KeyString(req.AdminTokenAccount)
		}
		if err := payFee(tx, leg); err != nil {
			return entity.Action{}, err
		}
		action.Fee = leg.Amount

		address, err := s.listingRepo.Address(req.Asset)
		if err != nil {
			return entity.Action{}, err
		}
		if _, found := tx.Record(address); found {
			return entity.Action{}, fmt.Errorf("%s: %w", req.Asset, ErrListingExists)
		}

		now := s.now()
		listing = entity.Listing{
			Seller:      req.Seller,
			Asset:       req.Asset,
			Price:       req.Price,
			Rail:        req.Rail,
			PaymentMint: pinned,
			Bump:        escrow.Bump,
			ListedAt:    now,
			UpdatedAt:   now,
		}

		return action, s.listingRepo.Save(tx, address, listing)
	}, func() {
		event.EmitEvent(event.ListingUpdatedEvent, listing)
	})
	if err != nil {
		return nil, err
	}

	return &listing, nil
}

func (s service) RelistNft(ctx context.Context, req RelistRequest) (*entity.Listing, error) {
	if !req.Rail.Valid() {
		return nil, fmt.Errorf("%q: %w", req.Rail, ErrInvalidRail)
	}

	var listing entity.Listing
	_, err := s.commit(ctx, entity.RelistAction, func(tx ledger.Tx) (entity.Action, error) {
		if _, err := s.marketConfig(tx); err != nil {
			return entity.Action{}, err
		}

		address := req.Listing
		if !present(address) {
			var err error
			if address, err = s.listingRepo.Address(req.Asset); err != nil {
				return entity.Action{}, err
			}
		}
		current, err := s.listingRepo.GetListingByAddress(tx, address)
		if err != nil {
			return entity.Action{}, err
		}
		if !current.Asset.Equals(req.Asset) {
			return entity.Action{}, fmt.Errorf("listing holds %s, presented %s: %w", current.Asset, req.Asset, ErrInvalidNFT)
		}

		assetAccount := req.SellerAssetAccount
		if !present(assetAccount) {
			if assetAccount, err = ledger.AssociatedTokenAddress(req.NewOwner, req.Asset); err != nil {
				return entity.Action{}, err
			}
		}
		holding, err := tx.TokenAccount(assetAccount)
		if err != nil {
			return entity.Action{}, err
		}
		if !holding.Mint.Equals(req.Asset) {
			return entity.Action{}, fmt.Errorf("asset account %s holds %s: %w", assetAccount, holding.Mint, ErrInvalidNFT)
		}
		if !holding.Owner.Equals(req.NewOwner) || holding.Amount == 0 {
			return entity.Action{}, fmt.Errorf("asset account %s: %w", assetAccount, ErrInvalidOwner)
		}

		pinned, err := paymentMint(tx, req.Rail, req.NewOwner, req.SellerPaymentAccount)
		if err != nil {
			return entity.Action{}, err
		}

		action := entity.Action{
			Asset:  req.Asset.String(),
			From:   req.NewOwner.String(),
			Rail:   req.Rail,
			Amount: req.NewPrice,
		}

		if req.Rail == entity.RailToken && req.RelistFee > 0 {
			if _, err := s.checkTreasuryAccount(tx, req.TreasuryTokenAccount); err != nil {
				return entity.Action{}, err
			}
			err := payFee(tx, payment{
				Rail:             entity.RailToken,
				Payer:            authority.Principal(req.NewOwner),
				PayerAccount:     req.SellerPaymentAccount,
				RecipientAccount: req.TreasuryTokenAccount,
				Amount:           req.RelistFee,
			})
			if err != nil {
				return entity.Action{}, err
			}
			action.To = req.TreasuryTokenAccount.String()
			action.Fee = req.RelistFee
		}

		escrow, err := s.deriver.Derive(authority.EscrowLabel, req.Asset)
		if err != nil {
			return entity.Action{}, err
		}
		if err := tx.Approve(assetAccount, escrow.Key, authority.Principal(req.NewOwner), 1); err != nil {
			return entity.Action{}, err
		}

		zap.L().With(
			zap.String("asset", req.Asset.String()),
			zap.String("from", current.Seller.String()),
			zap.String("to", req.NewOwner.String()),
		).Info("Market: Relisting")

		listing = *current
		listing.Seller = req.NewOwner
		listing.Price = req.NewPrice
		listing.Rail = req.Rail
		listing.PaymentMint = pinned
		listing.Bump = escrow.Bump
		listing.UpdatedAt = s.now()

		return action, s.listingRepo.Save(tx, address, listing)
	}, func() {
		event.EmitEvent(event.ListingUpdatedEvent, listing)
	})
	if err != nil {
		return nil, err
	}

	return &listing, nil
}

// checkTreasuryAccount rejects a fee destination the treasury does not own.
func (s service) checkTreasuryAccount(tx ledger.Tx, address solana.PublicKey) (ledger.TokenAccount, error) {
	if !present(address) {
		return ledger.TokenAccount{}, fmt.Errorf("treasury token account: %w", ErrMissingAccount)
	}
	acc, err := tx.TokenAccount(address)
	if err != nil {
		return ledger.TokenAccount{}, err
	}
	if !acc.Owner.Equals(s.treasury.Key) {
		return ledger.TokenAccount{}, fmt.Errorf("treasury token account %s owned by %s: %w", address, acc.Owner, ErrInvalidOwner)
	}
	return acc, nil
}

// paymentMint reads the mint a token-rail seller asks to be paid in from the
// seller's own payment account. Native listings and listings made without an
// account pin no mint.
func paymentMint(tx ledger.Tx, rail entity.Rail, seller, account solana.PublicKey) (*solana.PublicKey, error) {
	if rail != entity.RailToken || !present(account) {
		return nil, nil
	}
	acc, err := tx.TokenAccount(account)
	if err != nil {
		return nil, err
	}
	if !acc.Owner.Equals(seller) {
		return nil, fmt.Errorf("payment account %s owned by %s: %w", account, acc.Owner, ErrInvalidOwner)
	}
	return &acc.Mint, nil
}
