package market

import (
	"context"
	"testing"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/ZilDuck/marketplace-settlement/internal/exchange"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

var programID = solana.MustPublicKeyFromBase58("uogw4oywo9nb4gyX6euzQgTHSkLLuiLc1FCEz4fpFHC")

type fixture struct {
	t       *testing.T
	ctx     context.Context
	ledger  *ledger.Memory
	deriver authority.Deriver
	svc     Service

	admin, signer1, signer2 solana.PublicKey
	issuer                  solana.PublicKey
	payMint                 solana.PublicKey
	treasuryPay             solana.PublicKey

	dex, poolAuthority solana.PublicKey
}

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		t:             t,
		ctx:           context.Background(),
		ledger:        ledger.NewMemory(programID),
		deriver:       authority.NewDeriver(programID),
		admin:         newKey(),
		signer1:       newKey(),
		signer2:       newKey(),
		issuer:        newKey(),
		payMint:       newKey(),
		dex:           newKey(),
		poolAuthority: newKey(),
	}
	registry := exchange.NewRegistry(exchange.NewFixedQuote(f.dex, f.poolAuthority))
	f.svc = NewService(f.ledger, f.deriver, registry)

	require.NoError(t, f.ledger.CreateMint(f.payMint, &f.issuer, 6))

	return f
}

// initialized is a fixture with the market and treasury set up: mint fee 5%,
// trade fee 2.5%, relist fee 1%, roster {admin, signer1, signer2}, threshold 2.
func initialized(t *testing.T) *fixture {
	f := newFixture(t)

	_, err := f.svc.InitializeMarket(f.ctx, InitializeMarketRequest{
		Admin:             f.admin,
		MintFeeBps:        500,
		TradeFeeBps:       250,
		RelistFeeBps:      100,
		MultisigAdmins:    []solana.PublicKey{f.admin, f.signer1, f.signer2},
		MultisigThreshold: 2,
	})
	require.NoError(t, err)

	_, err = f.svc.InitializeTreasury(f.ctx, InitializeTreasuryRequest{
		Initializer: f.admin,
		Mints:       []solana.PublicKey{solana.SolMint, f.payMint},
	})
	require.NoError(t, err)

	f.treasuryPay, err = ledger.AssociatedTokenAddress(f.svc.Treasury(), f.payMint)
	require.NoError(t, err)

	return f
}

// newAsset registers a fresh asset mint whose issuance authority is the
// program's mint authority for it.
func (f *fixture) newAsset() solana.PublicKey {
	asset := newKey()
	mintAuth := f.deriver.MustDerive(authority.MintAuthorityLabel, asset)
	require.NoError(f.t, f.ledger.CreateMint(asset, &mintAuth.Key, 0))
	return asset
}

func (f *fixture) airdrop(to solana.PublicKey, amount uint64) {
	require.NoError(f.t, f.ledger.Airdrop(to, amount))
}

// fund mints amount of mint into owner's associated account, creating it.
func (f *fixture) fund(owner, mint solana.PublicKey, amount uint64) solana.PublicKey {
	var address solana.PublicKey
	require.NoError(f.t, f.ledger.Atomic(f.ctx, func(tx ledger.Tx) error {
		var err error
		if address, err = tx.EnsureAssociatedTokenAccount(owner, mint); err != nil {
			return err
		}
		return tx.MintTo(mint, address, authority.Principal(f.issuer), amount)
	}))
	return address
}

func (f *fixture) tokenAccount(address solana.PublicKey) ledger.TokenAccount {
	var acc ledger.TokenAccount
	require.NoError(f.t, f.ledger.View(f.ctx, func(tx ledger.Tx) error {
		var err error
		acc, err = tx.TokenAccount(address)
		return err
	}))
	return acc
}

func (f *fixture) tokenBalance(address solana.PublicKey) uint64 {
	return f.tokenAccount(address).Amount
}

func (f *fixture) native(address solana.PublicKey) uint64 {
	var balance uint64
	require.NoError(f.t, f.ledger.View(f.ctx, func(tx ledger.Tx) error {
		balance = tx.NativeBalance(address)
		return nil
	}))
	return balance
}

func (f *fixture) ata(owner, mint solana.PublicKey) solana.PublicKey {
	address, err := ledger.AssociatedTokenAddress(owner, mint)
	require.NoError(f.t, err)
	return address
}

// listNative mints and lists a fresh asset for seller at price on the native
// rail.
func (f *fixture) listNative(seller solana.PublicKey, price uint64) solana.PublicKey {
	asset := f.newAsset()
	_, err := f.svc.MintAndList(f.ctx, MintAndListRequest{
		Seller: seller,
		Asset:  asset,
		Price:  price,
		Rail:   entity.RailNative,
	})
	require.NoError(f.t, err)
	return asset
}
