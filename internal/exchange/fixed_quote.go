package exchange

import (
	"encoding/json"
	"fmt"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// FixedQuote fills any order at the amounts named in its payload. It stands in
// for a routed pool on devnet and in tests.
//
// Accounts, in order: user output, user input, pool input, pool output, user,
// pool authority.
type FixedQuote struct {
	id            solana.PublicKey
	poolAuthority solana.PublicKey
}

type FixedQuoteOrder struct {
	In  uint64 `json:"in"`
	Out uint64 `json:"out"`
}

func NewFixedQuote(id, poolAuthority solana.PublicKey) FixedQuote {
	return FixedQuote{id, poolAuthority}
}

func (q FixedQuote) ID() solana.PublicKey {
	return q.id
}

// FixedQuoteAccounts lays the accounts out in the order Invoke reads them.
func FixedQuoteAccounts(userOut, userIn, poolIn, poolOut, user, poolAuthority solana.PublicKey) []*solana.AccountMeta {
	return []*solana.AccountMeta{
		solana.NewAccountMeta(userOut, true, false),
		solana.NewAccountMeta(userIn, true, false),
		solana.NewAccountMeta(poolIn, true, false),
		solana.NewAccountMeta(poolOut, true, false),
		solana.NewAccountMeta(user, false, true),
		solana.NewAccountMeta(poolAuthority, false, true),
	}
}

func (q FixedQuote) Invoke(tx ledger.Tx, data []byte, accounts []*solana.AccountMeta) error {
	var order FixedQuoteOrder
	if err := json.Unmarshal(data, &order); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}
	if len(accounts) < 6 {
		return fmt.Errorf("%w: have %d, need 6", ErrNotEnoughAccounts, len(accounts))
	}

	userOut, userIn := accounts[0].PublicKey, accounts[1].PublicKey
	poolIn, poolOut := accounts[2].PublicKey, accounts[3].PublicKey
	user, pool := accounts[4].PublicKey, accounts[5].PublicKey

	if !pool.Equals(q.poolAuthority) {
		return fmt.Errorf("pool authority %s: %w", pool, authority.ErrInvalidSigner)
	}

	zap.L().With(
		zap.String("user", user.String()),
		zap.Uint64("in", order.In),
		zap.Uint64("out", order.Out),
	).Debug("Exchange: FixedQuote fill")

	if err := move(tx, userIn, poolIn, user, order.In); err != nil {
		return err
	}
	return move(tx, poolOut, userOut, pool, order.Out)
}

func move(tx ledger.Tx, from, to, signer solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if tx.IsTokenAccount(from) {
		return tx.TransferToken(from, to, authority.Principal(signer), amount)
	}
	if !from.Equals(signer) {
		return fmt.Errorf("native debit of %s signed by %s: %w", from, signer, ledger.ErrOwnerMismatch)
	}
	return tx.TransferNative(authority.Principal(signer), to, amount)
}
