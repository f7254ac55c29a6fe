package repository

import (
	"context"
	"testing"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var programID = solana.MustPublicKeyFromBase58("uogw4oywo9nb4gyX6euzQgTHSkLLuiLc1FCEz4fpFHC")

func TestListingRoundTrip(t *testing.T) {
	deriver := authority.NewDeriver(programID)
	repo := NewListingRepository(deriver)
	l := ledger.NewMemory(programID)
	asset := solana.NewWallet().PublicKey()

	require.NoError(t, l.Atomic(context.Background(), func(tx ledger.Tx) error {
		address, err := repo.Address(asset)
		if err != nil {
			return err
		}
		return repo.Save(tx, address, entity.Listing{Seller: solana.NewWallet().PublicKey(), Asset: asset, Price: 10, Rail: entity.RailNative})
	}))

	require.NoError(t, l.View(context.Background(), func(tx ledger.Tx) error {
		listing, err := repo.GetListing(tx, asset)
		require.NoError(t, err)
		assert.Equal(t, asset, listing.Asset)
		assert.Equal(t, uint64(10), listing.Price)
		assert.Nil(t, listing.PaymentMint)
		return nil
	}))
}

func TestListingAtAnotherKindOfRecord(t *testing.T) {
	deriver := authority.NewDeriver(programID)
	configRepo := NewMarketConfigRepository(deriver)
	listingRepo := NewListingRepository(deriver)
	l := ledger.NewMemory(programID)

	require.NoError(t, l.Atomic(context.Background(), func(tx ledger.Tx) error {
		if err := configRepo.Save(tx, entity.MarketConfig{Admin: solana.NewWallet().PublicKey()}); err != nil {
			return err
		}
		return configRepo.SaveTreasury(tx, entity.Treasury{Address: solana.NewWallet().PublicKey()})
	}))

	treasury := deriver.MustDerive(authority.TreasuryLabel)
	require.NoError(t, l.View(context.Background(), func(tx ledger.Tx) error {
		_, err := listingRepo.GetListingByAddress(tx, configRepo.Address())
		assert.ErrorIs(t, err, ErrListingNotFound)
		assert.ErrorIs(t, err, ErrRecordKind)

		_, err = listingRepo.GetListingByAddress(tx, treasury.Key)
		assert.ErrorIs(t, err, ErrListingNotFound)

		cfg, err := configRepo.Get(tx)
		require.NoError(t, err)
		assert.NotEqual(t, solana.PublicKey{}, cfg.Admin)
		return nil
	}))
}

func TestUntaggedRecordIsRejected(t *testing.T) {
	deriver := authority.NewDeriver(programID)
	configRepo := NewMarketConfigRepository(deriver)
	l := ledger.NewMemory(programID)

	require.NoError(t, l.Atomic(context.Background(), func(tx ledger.Tx) error {
		tx.PutRecord(configRepo.Address(), []byte(`{"admin":"11111111111111111111111111111111"}`))
		return nil
	}))

	require.NoError(t, l.View(context.Background(), func(tx ledger.Tx) error {
		_, err := configRepo.Get(tx)
		assert.ErrorIs(t, err, ErrRecordKind)
		return nil
	}))
}
