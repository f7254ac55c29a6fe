package market

import (
	"testing"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/exchange"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeMarketValidation(t *testing.T) {
	admins := []solana.PublicKey{newKey(), newKey()}

	tests := []struct {
		name string
		req  InitializeMarketRequest
		err  error
	}{
		{"mint fee above 100%", InitializeMarketRequest{MintFeeBps: 10_001, MultisigAdmins: admins, MultisigThreshold: 2}, ErrInvalidFeeBps},
		{"trade fee above 100%", InitializeMarketRequest{TradeFeeBps: 65_535, MultisigAdmins: admins, MultisigThreshold: 2}, ErrInvalidFeeBps},
		{"zero threshold", InitializeMarketRequest{MultisigAdmins: admins, MultisigThreshold: 0}, ErrInvalidThreshold},
		{"threshold above roster plus admin", InitializeMarketRequest{MultisigAdmins: admins, MultisigThreshold: 4}, ErrInvalidThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.req.Admin = f.admin

			_, err := f.svc.InitializeMarket(f.ctx, tt.req)
			require.ErrorIs(t, err, tt.err)

			_, err = f.svc.GetMarketConfig(f.ctx)
			require.ErrorIs(t, err, ErrNotInitialized)
		})
	}
}

func TestInitializeMarket(t *testing.T) {
	f := newFixture(t)
	req := InitializeMarketRequest{
		Admin:             f.admin,
		MintFeeBps:        10_000,
		TradeFeeBps:       250,
		MultisigAdmins:    []solana.PublicKey{f.signer1, f.signer2},
		MultisigThreshold: 3,
	}

	cfg, err := f.svc.InitializeMarket(f.ctx, req)
	require.NoError(t, err)

	treasury := f.deriver.MustDerive(authority.TreasuryLabel)
	assert.Equal(t, treasury.Key, cfg.Treasury)
	assert.Equal(t, treasury.Bump, cfg.TreasuryBump)

	stored, err := f.svc.GetMarketConfig(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, *cfg, *stored)

	_, err = f.svc.InitializeMarket(f.ctx, req)
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestInitializeTreasury(t *testing.T) {
	f := initialized(t)

	acc := f.tokenAccount(f.treasuryPay)
	assert.Equal(t, f.svc.Treasury(), acc.Owner)
	assert.Equal(t, f.payMint, acc.Mint)

	_, err := f.svc.InitializeTreasury(f.ctx, InitializeTreasuryRequest{Initializer: f.admin})
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestWithdrawTreasuryNative(t *testing.T) {
	f := initialized(t)
	f.airdrop(f.svc.Treasury(), 10_000)
	outsider := newKey()

	tests := []struct {
		name    string
		admin   solana.PublicKey
		signers []solana.PublicKey
		err     error
	}{
		{"not the admin", f.signer1, []solana.PublicKey{f.admin, f.signer2}, ErrInvalidOwner},
		{"one of three on the roster", f.admin, []solana.PublicKey{outsider, newKey()}, ErrUnauthorized},
		{"same signer twice", f.admin, []solana.PublicKey{f.admin, f.admin}, ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.WithdrawTreasury(f.ctx, WithdrawRequest{
				Admin:   tt.admin,
				Signers: tt.signers,
				Mint:    solana.SolMint,
				Amount:  1_000,
			})
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, uint64(10_000), f.native(f.svc.Treasury()))
		})
	}

	action, err := f.svc.WithdrawTreasury(f.ctx, WithdrawRequest{
		Admin:   f.admin,
		Signers: []solana.PublicKey{f.signer1, outsider},
		Mint:    solana.SolMint,
		Amount:  1_000,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), action.Amount)
	assert.Equal(t, uint64(9_000), f.native(f.svc.Treasury()))
	assert.Equal(t, uint64(1_000), f.native(f.admin))

	balance, err := f.svc.TreasuryBalance(f.ctx, solana.SolMint)
	require.NoError(t, err)
	assert.Equal(t, uint64(9_000), balance)
}

func TestWithdrawTreasuryToken(t *testing.T) {
	f := initialized(t)
	f.fund(f.svc.Treasury(), f.payMint, 500)
	adminPay := f.fund(f.admin, f.payMint, 0)

	_, err := f.svc.WithdrawTreasury(f.ctx, WithdrawRequest{
		Admin:                f.admin,
		Signers:              []solana.PublicKey{f.signer1, f.signer2},
		Mint:                 f.payMint,
		Amount:               200,
		TreasuryTokenAccount: f.treasuryPay,
	})
	require.ErrorIs(t, err, ErrMissingAccount)

	_, err = f.svc.WithdrawTreasury(f.ctx, WithdrawRequest{
		Admin:                f.admin,
		Signers:              []solana.PublicKey{f.signer1, f.signer2},
		Mint:                 f.payMint,
		Amount:               200,
		TreasuryTokenAccount: f.treasuryPay,
		AdminTokenAccount:    adminPay,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(300), f.tokenBalance(f.treasuryPay))
	assert.Equal(t, uint64(200), f.tokenBalance(adminPay))

	balance, err := f.svc.TreasuryBalance(f.ctx, f.payMint)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), balance)
}

func TestWithdrawTreasuryThreshold(t *testing.T) {
	tests := []struct {
		name     string
		enforce  bool
		twoOfSet error
	}{
		{"two roster members are enough by default", false, nil},
		{"enforced threshold of three", true, ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.svc = NewService(f.ledger, f.deriver, exchange.NewRegistry(), EnforceThreshold(tt.enforce))
			extra := newKey()
			_, err := f.svc.InitializeMarket(f.ctx, InitializeMarketRequest{
				Admin:             f.admin,
				MultisigAdmins:    []solana.PublicKey{f.admin, f.signer1, f.signer2, extra},
				MultisigThreshold: 3,
			})
			require.NoError(t, err)
			f.airdrop(f.svc.Treasury(), 100)

			_, err = f.svc.WithdrawTreasury(f.ctx, WithdrawRequest{
				Admin: f.admin, Signers: []solana.PublicKey{f.signer1}, Mint: solana.SolMint, Amount: 40,
			})
			if tt.twoOfSet != nil {
				require.ErrorIs(t, err, tt.twoOfSet)
				assert.Equal(t, uint64(100), f.native(f.svc.Treasury()))
			} else {
				require.NoError(t, err)
				assert.Equal(t, uint64(60), f.native(f.svc.Treasury()))
			}

			_, err = f.svc.WithdrawTreasury(f.ctx, WithdrawRequest{
				Admin: f.admin, Signers: []solana.PublicKey{f.signer1, extra}, Mint: solana.SolMint, Amount: 10,
			})
			require.NoError(t, err)
		})
	}
}

func TestWithdrawTreasuryOverdraw(t *testing.T) {
	f := initialized(t)
	f.airdrop(f.svc.Treasury(), 10)

	_, err := f.svc.WithdrawTreasury(f.ctx, WithdrawRequest{
		Admin: f.admin, Signers: []solana.PublicKey{f.signer1, f.signer2}, Mint: solana.SolMint, Amount: 11,
	})
	require.Error(t, err)
	assert.Equal(t, "insufficient_funds", ErrorCode(err))
	assert.Equal(t, uint64(10), f.native(f.svc.Treasury()))
}

func TestQuorum(t *testing.T) {
	a, b, c, x := newKey(), newKey(), newKey(), newKey()
	roster := []solana.PublicKey{a, b, c}

	assert.Equal(t, 0, Quorum(roster, nil))
	assert.Equal(t, 1, Quorum(roster, []solana.PublicKey{a, x, x}))
	assert.Equal(t, 1, Quorum(roster, []solana.PublicKey{a, a, a}))
	assert.Equal(t, 2, Quorum(roster, []solana.PublicKey{a, x, c}))
	assert.Equal(t, 3, Quorum(roster, []solana.PublicKey{c, b, a, x}))

	assert.Equal(t, 2, RequiredQuorum(0, true))
	assert.Equal(t, 2, RequiredQuorum(1, true))
	assert.Equal(t, 2, RequiredQuorum(2, true))
	assert.Equal(t, 5, RequiredQuorum(5, true))
	assert.Equal(t, 2, RequiredQuorum(5, false))
}

func TestQuoteFees(t *testing.T) {
	f := initialized(t)

	quote, err := f.svc.QuoteFees(f.ctx, 10_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), quote.MintFee.Fee)
	assert.Equal(t, uint64(250), quote.TradeFee.Fee)
	assert.Equal(t, uint64(9_750), quote.TradeFee.Residual)
	assert.Equal(t, uint64(100), quote.RelistFee.Fee)
}
