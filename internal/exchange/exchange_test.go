package exchange

import (
	"context"
	"testing"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var programID = solana.MustPublicKeyFromBase58("uogw4oywo9nb4gyX6euzQgTHSkLLuiLc1FCEz4fpFHC")

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

type pool struct {
	ledger  *ledger.Memory
	quote   FixedQuote
	user    solana.PublicKey
	pool    solana.PublicKey
	mint    solana.PublicKey
	userIn  solana.PublicKey
	poolIn  solana.PublicKey
	poolOut solana.PublicKey
	userOut solana.PublicKey
}

// newPool trades native in for tokens out.
func newPool(t *testing.T) pool {
	p := pool{
		ledger: ledger.NewMemory(programID),
		user:   newKey(),
		pool:   newKey(),
		mint:   newKey(),
	}
	p.quote = NewFixedQuote(newKey(), p.pool)
	p.userIn, p.poolIn = p.user, p.pool

	require.NoError(t, p.ledger.CreateMint(p.mint, &p.pool, 6))
	require.NoError(t, p.ledger.Airdrop(p.user, 1_000))
	require.NoError(t, p.ledger.Atomic(context.Background(), func(tx ledger.Tx) error {
		var err error
		if p.poolOut, err = tx.EnsureAssociatedTokenAccount(p.pool, p.mint); err != nil {
			return err
		}
		if p.userOut, err = tx.EnsureAssociatedTokenAccount(p.user, p.mint); err != nil {
			return err
		}
		return tx.MintTo(p.mint, p.poolOut, authority.Principal(p.pool), 10_000)
	}))

	return p
}

func (p pool) accounts() []*solana.AccountMeta {
	return FixedQuoteAccounts(p.userOut, p.userIn, p.poolIn, p.poolOut, p.user, p.pool)
}

func (p pool) invoke(data string, accounts []*solana.AccountMeta) error {
	return p.ledger.Atomic(context.Background(), func(tx ledger.Tx) error {
		return p.quote.Invoke(tx, []byte(data), accounts)
	})
}

func TestRegistry(t *testing.T) {
	q := NewFixedQuote(newKey(), newKey())
	r := NewRegistry(q)

	got, err := r.Get(q.ID())
	require.NoError(t, err)
	assert.Equal(t, q.ID(), got.ID())
	assert.Equal(t, []solana.PublicKey{q.ID()}, r.Programs())

	_, err = r.Get(newKey())
	assert.ErrorIs(t, err, ErrUnknownProgram)
}

func TestFixedQuoteFill(t *testing.T) {
	p := newPool(t)

	require.NoError(t, p.invoke(`{"in":100,"out":150}`, p.accounts()))

	_ = p.ledger.View(context.Background(), func(tx ledger.Tx) error {
		assert.Equal(t, uint64(900), tx.NativeBalance(p.user))
		assert.Equal(t, uint64(100), tx.NativeBalance(p.pool))

		out, err := tx.TokenAccount(p.userOut)
		require.NoError(t, err)
		assert.Equal(t, uint64(150), out.Amount)
		return nil
	})
}

func TestFixedQuoteRejectsBadInput(t *testing.T) {
	p := newPool(t)

	assert.ErrorIs(t, p.invoke(`not json`, p.accounts()), ErrInvalidPayload)
	assert.ErrorIs(t, p.invoke(`{"in":1,"out":1}`, p.accounts()[:5]), ErrNotEnoughAccounts)

	impostor := FixedQuoteAccounts(p.userOut, p.userIn, p.poolIn, p.poolOut, p.user, newKey())
	assert.ErrorIs(t, p.invoke(`{"in":1,"out":1}`, impostor), authority.ErrInvalidSigner)

	// the user cannot spend someone else's native balance
	stolen := FixedQuoteAccounts(p.userOut, p.pool, p.poolIn, p.poolOut, p.user, p.pool)
	assert.ErrorIs(t, p.invoke(`{"in":1,"out":1}`, stolen), ledger.ErrOwnerMismatch)

	assert.ErrorIs(t, p.invoke(`{"in":5000,"out":1}`, p.accounts()), ledger.ErrInsufficientFunds)
}
