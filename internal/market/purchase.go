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

// BuyRequest settles a listing. The listing is found by Listing, or by Asset
// when Listing is empty. Rail selects the payment rail; when it is left
// unspecified a BuyerPaymentAccount equal to Buyer means native payment.
type BuyRequest struct {
	Buyer                solana.PublicKey `json:"buyer"`
	Seller               solana.PublicKey `json:"seller"`
	Asset                solana.PublicKey `json:"asset"`
	Listing              solana.PublicKey `json:"listing"`
	Rail                 entity.Rail      `json:"rail"`
	BuyerPaymentAccount  solana.PublicKey `json:"buyerPaymentAccount"`
	SellerPaymentAccount solana.PublicKey `json:"sellerPaymentAccount"`
	TreasuryTokenAccount solana.PublicKey `json:"treasuryTokenAccount"`
	SellerAssetAccount   solana.PublicKey `json:"sellerAssetAccount"`
	BuyerAssetAccount    solana.PublicKey `json:"buyerAssetAccount"`
}

func (r BuyRequest) paymentRail() (entity.Rail, error) {
	switch {
	case r.Rail.Valid():
		return r.Rail, nil
	case r.Rail != entity.RailUnspecified:
		return "", fmt.Errorf("%q: %w", r.Rail, ErrInvalidRail)
	case r.BuyerPaymentAccount.Equals(r.Buyer):
		return entity.RailNative, nil
	}
	return entity.RailToken, nil
}

func (s service) BuyNft(ctx context.Context, req BuyRequest) (*entity.Action, error) {
	rail, err := req.paymentRail()
	if err != nil {
		return nil, err
	}

	return s.commit(ctx, entity.BuyAction, func(tx ledger.Tx) (entity.Action, error) {
		listing, err := s.findListing(tx, req.Listing, req.Asset)
		if err != nil {
			return entity.Action{}, err
		}
		if !listing.Seller.Equals(req.Seller) {
			return entity.Action{}, fmt.Errorf("listing seller %s, presented %s: %w", listing.Seller, req.Seller, ErrInvalidOwner)
		}
		if rail != listing.Rail {
			zap.L().With(
				zap.String("asset", listing.Asset.String()),
				zap.String("listed", string(listing.Rail)),
				zap.String("paid", string(rail)),
			).Warn("Market: Buy settles on a different rail than listed")
		}

		cfg, err := s.marketConfig(tx)
		if err != nil {
			return entity.Action{}, err
		}
		split, err := fee.Compute(listing.Price, cfg.TradeFeeBps)
		if err != nil {
			return entity.Action{}, err
		}

		buyer := authority.Principal(req.Buyer)
		toSeller := payment{Rail: rail, Payer: buyer, Amount: split.Residual}
		toTreasury := payment{Rail: rail, Payer: buyer, Amount: split.Fee}
		if rail == entity.RailNative {
			toSeller.Recipient = req.Seller
			toTreasury.Recipient = s.treasury.Key
		} else {
			sellerAccount, err := checkSellerAccount(tx, *listing, req)
			if err != nil {
				return entity.Action{}, err
			}
			if split.Fee > 0 {
				treasuryAccount, err := s.checkTreasuryAccount(tx, req.TreasuryTokenAccount)
				if err != nil {
					return entity.Action{}, err
				}
				if !treasuryAccount.Mint.Equals(sellerAccount.Mint) {
					return entity.Action{}, fmt.Errorf("treasury token account %s holds %s: %w", req.TreasuryTokenAccount, treasuryAccount.Mint, ledger.ErrMintMismatch)
				}
			}
			toSeller.PayerAccount, toSeller.RecipientAccount = req.BuyerPaymentAccount, req.SellerPaymentAccount
			toTreasury.PayerAccount, toTreasury.RecipientAccount = req.BuyerPaymentAccount, req.TreasuryTokenAccount
		}
		if err := payFee(tx, toSeller); err != nil {
			return entity.Action{}, err
		}
		if err := payFee(tx, toTreasury); err != nil {
			return entity.Action{}, err
		}

		if err := s.releaseAsset(tx, *listing, req); err != nil {
			return entity.Action{}, err
		}

		return entity.Action{
			Asset:  listing.Asset.String(),
			From:   req.Seller.String(),
			To:     req.Buyer.String(),
			Rail:   rail,
			Amount: listing.Price,
			Fee:    split.Fee,
		}, nil
	})
}

// checkSellerAccount rejects a seller leg that would not reach the listed
// seller, or would pay in a mint other than the buyer's or the listing's.
func checkSellerAccount(tx ledger.Tx, listing entity.Listing, req BuyRequest) (ledger.TokenAccount, error) {
	if !present(req.SellerPaymentAccount) {
		return ledger.TokenAccount{}, fmt.Errorf("seller payment account: %w", ErrMissingAccount)
	}
	if !present(req.BuyerPaymentAccount) {
		return ledger.TokenAccount{}, fmt.Errorf("buyer payment account: %w", ErrMissingAccount)
	}

	seller, err := tx.TokenAccount(req.SellerPaymentAccount)
	if err != nil {
		return ledger.TokenAccount{}, err
	}
	if !seller.Owner.Equals(listing.Seller) {
		return ledger.TokenAccount{}, fmt.Errorf("seller payment account %s owned by %s: %w", req.SellerPaymentAccount, seller.Owner, ErrInvalidOwner)
	}

	buyer, err := tx.TokenAccount(req.BuyerPaymentAccount)
	if err != nil {
		return ledger.TokenAccount{}, err
	}
	if !buyer.Mint.Equals(seller.Mint) {
		return ledger.TokenAccount{}, fmt.Errorf("buyer pays %s, seller takes %s: %w", buyer.Mint, seller.Mint, ledger.ErrMintMismatch)
	}
	if listing.PaymentMint != nil && !seller.Mint.Equals(*listing.PaymentMint) {
		return ledger.TokenAccount{}, fmt.Errorf("listing is priced in %s, presented %s: %w", *listing.PaymentMint, seller.Mint, ledger.ErrMintMismatch)
	}

	return seller, nil
}

func (s service) findListing(tx ledger.Tx, address, asset solana.PublicKey) (*entity.Listing, error) {
	if !present(address) {
		if !present(asset) {
			return nil, fmt.Errorf("listing or asset: %w", ErrMissingAccount)
		}
		return s.listingRepo.GetListing(tx, asset)
	}

	listing, err := s.listingRepo.GetListingByAddress(tx, address)
	if err != nil {
		return nil, err
	}
	if present(asset) && !listing.Asset.Equals(asset) {
		return nil, fmt.Errorf("listing holds %s, presented %s: %w", listing.Asset, asset, ErrInvalidNFT)
	}
	return listing, nil
}

// releaseAsset moves the listed unit to the buyer under the escrow authority.
func (s service) releaseAsset(tx ledger.Tx, listing entity.Listing, req BuyRequest) error {
	escrow, err := s.deriver.Derive(authority.EscrowLabel, listing.Asset)
	if err != nil {
		return err
	}

	from := req.SellerAssetAccount
	if !present(from) {
		if from, err = ledger.AssociatedTokenAddress(listing.Seller, listing.Asset); err != nil {
			return err
		}
	}
	held, err := tx.TokenAccount(from)
	if err != nil {
		return err
	}
	if held.Delegate == nil || !held.Delegate.Equals(escrow.Key) || held.DelegatedAmount == 0 {
		return fmt.Errorf("asset account %s: %w", from, ledger.ErrInsufficientDelegation)
	}

	to := req.BuyerAssetAccount
	if !present(to) {
		if to, err = tx.EnsureAssociatedTokenAccount(req.Buyer, listing.Asset); err != nil {
			return err
		}
	}

	return tx.TransferToken(from, to, escrow.Signer(), 1)
}
