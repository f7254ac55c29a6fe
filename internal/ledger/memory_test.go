package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var programID = solana.MustPublicKeyFromBase58("uogw4oywo9nb4gyX6euzQgTHSkLLuiLc1FCEz4fpFHC")

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func TestAtomicRollsBackOnError(t *testing.T) {
	l := NewMemory(programID)
	alice, bob := newKey(), newKey()
	require.NoError(t, l.Airdrop(alice, 100))

	boom := errors.New("boom")
	err := l.Atomic(context.Background(), func(tx Tx) error {
		require.NoError(t, tx.TransferNative(authority.Principal(alice), bob, 60))
		tx.PutRecord(bob, []byte("written"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_ = l.View(context.Background(), func(tx Tx) error {
		assert.Equal(t, uint64(100), tx.NativeBalance(alice))
		assert.Equal(t, uint64(0), tx.NativeBalance(bob))
		_, found := tx.Record(bob)
		assert.False(t, found)
		return nil
	})
}

func TestAtomicHonoursCancelledContext(t *testing.T) {
	l := NewMemory(programID)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := l.Atomic(ctx, func(tx Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestTransferNativeInsufficientFunds(t *testing.T) {
	l := NewMemory(programID)
	alice := newKey()
	require.NoError(t, l.Airdrop(alice, 10))

	err := l.Atomic(context.Background(), func(tx Tx) error {
		return tx.TransferNative(authority.Principal(alice), newKey(), 11)
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestTransferNativeFromDerivedAuthority(t *testing.T) {
	l := NewMemory(programID)
	deriver := authority.NewDeriver(programID)
	treasury := deriver.MustDerive(authority.TreasuryLabel)
	admin := newKey()
	require.NoError(t, l.Airdrop(treasury.Key, 500))

	forged := authority.Signer{Key: treasury.Key, Seeds: [][]byte{[]byte("treasury"), {0}}}
	if forged.Seeds[1][0] == treasury.Bump {
		forged.Seeds[1][0]++
	}
	err := l.Atomic(context.Background(), func(tx Tx) error {
		return tx.TransferNative(forged, admin, 100)
	})
	require.Error(t, err)

	require.NoError(t, l.Atomic(context.Background(), func(tx Tx) error {
		return tx.TransferNative(treasury.Signer(), admin, 100)
	}))
	_ = l.View(context.Background(), func(tx Tx) error {
		assert.Equal(t, uint64(400), tx.NativeBalance(treasury.Key))
		assert.Equal(t, uint64(100), tx.NativeBalance(admin))
		return nil
	})
}

func TestMintToAndRevokeAuthority(t *testing.T) {
	l := NewMemory(programID)
	mint, issuer, holder := newKey(), newKey(), newKey()
	require.NoError(t, l.CreateMint(mint, &issuer, 0))

	err := l.Atomic(context.Background(), func(tx Tx) error {
		ata, err := tx.EnsureAssociatedTokenAccount(holder, mint)
		if err != nil {
			return err
		}
		if err := tx.MintTo(mint, ata, authority.Principal(issuer), 1); err != nil {
			return err
		}
		return tx.SetMintAuthority(mint, authority.Principal(issuer), nil)
	})
	require.NoError(t, err)

	err = l.Atomic(context.Background(), func(tx Tx) error {
		ata, _ := AssociatedTokenAddress(holder, mint)
		return tx.MintTo(mint, ata, authority.Principal(issuer), 1)
	})
	require.ErrorIs(t, err, ErrMintAuthority)

	_ = l.View(context.Background(), func(tx Tx) error {
		m, err := tx.Mint(mint)
		require.NoError(t, err)
		assert.Nil(t, m.Authority)
		assert.Equal(t, uint64(1), m.Supply)
		return nil
	})
}

func TestDelegatedTransferIsExhausted(t *testing.T) {
	l := NewMemory(programID)
	mint, issuer, owner, buyer, delegate := newKey(), newKey(), newKey(), newKey(), newKey()
	require.NoError(t, l.CreateMint(mint, &issuer, 0))

	var ownerAta, buyerAta solana.PublicKey
	require.NoError(t, l.Atomic(context.Background(), func(tx Tx) error {
		ownerAta, _ = tx.EnsureAssociatedTokenAccount(owner, mint)
		buyerAta, _ = tx.EnsureAssociatedTokenAccount(buyer, mint)
		if err := tx.MintTo(mint, ownerAta, authority.Principal(issuer), 1); err != nil {
			return err
		}
		return tx.Approve(ownerAta, delegate, authority.Principal(owner), 1)
	}))

	require.NoError(t, l.Atomic(context.Background(), func(tx Tx) error {
		return tx.TransferToken(ownerAta, buyerAta, authority.Principal(delegate), 1)
	}))

	err := l.Atomic(context.Background(), func(tx Tx) error {
		return tx.TransferToken(ownerAta, buyerAta, authority.Principal(delegate), 1)
	})
	require.ErrorIs(t, err, ErrOwnerMismatch)

	_ = l.View(context.Background(), func(tx Tx) error {
		acc, err := tx.TokenAccount(ownerAta)
		require.NoError(t, err)
		assert.Nil(t, acc.Delegate)
		assert.Equal(t, uint64(0), acc.Amount)
		return nil
	})
}

func TestTransferTokenRejectsStrangers(t *testing.T) {
	l := NewMemory(programID)
	mint, issuer, owner, other := newKey(), newKey(), newKey(), newKey()
	require.NoError(t, l.CreateMint(mint, &issuer, 6))

	var ownerAta, otherAta solana.PublicKey
	require.NoError(t, l.Atomic(context.Background(), func(tx Tx) error {
		ownerAta, _ = tx.EnsureAssociatedTokenAccount(owner, mint)
		otherAta, _ = tx.EnsureAssociatedTokenAccount(other, mint)
		return tx.MintTo(mint, ownerAta, authority.Principal(issuer), 1_000)
	}))

	err := l.Atomic(context.Background(), func(tx Tx) error {
		return tx.TransferToken(ownerAta, otherAta, authority.Principal(other), 10)
	})
	require.ErrorIs(t, err, ErrOwnerMismatch)

	err = l.Atomic(context.Background(), func(tx Tx) error {
		return tx.TransferToken(ownerAta, otherAta, authority.Principal(owner), 1_001)
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestViewDiscardsWrites(t *testing.T) {
	l := NewMemory(programID)
	key := newKey()

	_ = l.View(context.Background(), func(tx Tx) error {
		tx.PutRecord(key, []byte("x"))
		return nil
	})

	_ = l.View(context.Background(), func(tx Tx) error {
		_, found := tx.Record(key)
		assert.False(t, found)
		return nil
	})
}

func TestUnitReadsItsOwnWrites(t *testing.T) {
	l := NewMemory(programID)
	alice, bob, record := newKey(), newKey(), newKey()
	require.NoError(t, l.Airdrop(alice, 100))

	require.NoError(t, l.Atomic(context.Background(), func(tx Tx) error {
		require.NoError(t, tx.TransferNative(authority.Principal(alice), bob, 30))
		assert.Equal(t, uint64(70), tx.NativeBalance(alice))
		assert.Equal(t, uint64(30), tx.NativeBalance(bob))

		tx.PutRecord(record, []byte("first"))
		tx.PutRecord(record, []byte("second"))
		data, found := tx.Record(record)
		assert.True(t, found)
		assert.Equal(t, []byte("second"), data)

		return tx.TransferNative(authority.Principal(bob), alice, 10)
	}))

	_ = l.View(context.Background(), func(tx Tx) error {
		assert.Equal(t, uint64(80), tx.NativeBalance(alice))
		assert.Equal(t, uint64(20), tx.NativeBalance(bob))
		data, _ := tx.Record(record)
		assert.Equal(t, []byte("second"), data)
		return nil
	})
}

func TestCommittedDelegateIsNotShared(t *testing.T) {
	l := NewMemory(programID)
	mint, issuer, owner, delegate := newKey(), newKey(), newKey(), newKey()
	require.NoError(t, l.CreateMint(mint, &issuer, 0))

	var ata solana.PublicKey
	require.NoError(t, l.Atomic(context.Background(), func(tx Tx) error {
		var err error
		if ata, err = tx.EnsureAssociatedTokenAccount(owner, mint); err != nil {
			return err
		}
		return tx.Approve(ata, delegate, authority.Principal(owner), 1)
	}))

	_ = l.View(context.Background(), func(tx Tx) error {
		acc, err := tx.TokenAccount(ata)
		require.NoError(t, err)
		require.NotNil(t, acc.Delegate)
		*acc.Delegate = newKey()
		return nil
	})

	_ = l.View(context.Background(), func(tx Tx) error {
		acc, err := tx.TokenAccount(ata)
		require.NoError(t, err)
		assert.Equal(t, delegate, *acc.Delegate)
		return nil
	})
}
