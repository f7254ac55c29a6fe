package ledger

import (
	"context"
	"fmt"
	"math/bits"
	"sync"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Memory is an in-process ledger. Units are serialised by a single lock. A
// unit writes into an overlay of the keys it touches, which is merged into the
// live state only when the unit succeeds.
type Memory struct {
	mu        sync.Mutex
	programID solana.PublicKey
	state     *state
	version   uint64
}

type state struct {
	native  map[solana.PublicKey]uint64
	tokens  map[solana.PublicKey]TokenAccount
	mints   map[solana.PublicKey]Mint
	records map[solana.PublicKey][]byte
}

func newState() *state {
	return &state{
		native:  map[solana.PublicKey]uint64{},
		tokens:  map[solana.PublicKey]TokenAccount{},
		mints:   map[solana.PublicKey]Mint{},
		records: map[solana.PublicKey][]byte{},
	}
}

func NewMemory(programID solana.PublicKey) *Memory {
	return &Memory{programID: programID, state: newState()}
}

func (m *Memory) ProgramID() solana.PublicKey {
	return m.programID
}

func (m *Memory) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := m.begin(ctx)
	if err := fn(tx); err != nil {
		zap.L().With(zap.Error(err)).Debug("Ledger: Unit rolled back")
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.state.merge(tx.dirty)
	m.version++

	return nil
}

// View runs fn against the live state. Its writes land in an overlay that is
// thrown away.
func (m *Memory) View(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	return fn(m.begin(ctx))
}

func (m *Memory) begin(ctx context.Context) *memTx {
	return &memTx{ctx: ctx, programID: m.programID, base: m.state, dirty: newState()}
}

// Airdrop credits native currency out of thin air. Bootstrap only.
func (m *Memory) Airdrop(to solana.PublicKey, amount uint64) error {
	return m.Atomic(context.Background(), func(tx Tx) error {
		return tx.(*memTx).credit(to, amount)
	})
}

// CreateMint registers a mint with the given issuance authority. Bootstrap only.
func (m *Memory) CreateMint(address solana.PublicKey, mintAuthority *solana.PublicKey, decimals uint8) error {
	return m.Atomic(context.Background(), func(tx Tx) error {
		t := tx.(*memTx)
		if _, exists := t.mint(address); exists {
			return fmt.Errorf("mint %s: %w", address, ErrAccountExists)
		}
		t.dirty.mints[address] = Mint{Address: address, Authority: copyKey(mintAuthority), Decimals: decimals}
		return nil
	})
}

// merge writes every key of dirty over s. Token and mint values are copied on
// the way in, so nothing in s aliases the overlay.
func (s *state) merge(dirty *state) {
	for k, v := range dirty.native {
		s.native[k] = v
	}
	for k, v := range dirty.tokens {
		v.Delegate = copyKey(v.Delegate)
		s.tokens[k] = v
	}
	for k, v := range dirty.mints {
		v.Authority = copyKey(v.Authority)
		s.mints[k] = v
	}
	for k, v := range dirty.records {
		s.records[k] = v
	}
}

func (s *state) clone() *state {
	c := newState()
	c.merge(s)
	for k, v := range c.records {
		c.records[k] = append([]byte(nil), v...)
	}
	return c
}

// memTx reads through its overlay to the live state and writes only to the
// overlay.
type memTx struct {
	ctx       context.Context
	programID solana.PublicKey
	base      *state
	dirty     *state
}

func (t *memTx) native(address solana.PublicKey) uint64 {
	if v, ok := t.dirty.native[address]; ok {
		return v
	}
	return t.base.native[address]
}

func (t *memTx) token(address solana.PublicKey) (TokenAccount, bool) {
	if v, ok := t.dirty.tokens[address]; ok {
		return v, true
	}
	v, ok := t.base.tokens[address]
	return v, ok
}

func (t *memTx) mint(address solana.PublicKey) (Mint, bool) {
	if v, ok := t.dirty.mints[address]; ok {
		return v, true
	}
	v, ok := t.base.mints[address]
	return v, ok
}

func (t *memTx) record(address solana.PublicKey) ([]byte, bool) {
	if v, ok := t.dirty.records[address]; ok {
		return v, true
	}
	v, ok := t.base.records[address]
	return v, ok
}

func (t *memTx) Context() context.Context {
	return t.ctx
}

func (t *memTx) ProgramID() solana.PublicKey {
	return t.programID
}

func (t *memTx) NativeBalance(address solana.PublicKey) uint64 {
	return t.native(address)
}

func (t *memTx) TransferNative(from authority.Signer, to solana.PublicKey, amount uint64) error {
	if err := authority.Verify(t.programID, from); err != nil {
		return err
	}

	balance := t.native(from.Key)
	if balance < amount {
		return fmt.Errorf("native %s has %d, needs %d: %w", from.Key, balance, amount, ErrInsufficientFunds)
	}
	if from.Key.Equals(to) {
		return nil
	}
	if err := t.credit(to, amount); err != nil {
		return err
	}
	t.dirty.native[from.Key] = balance - amount

	return nil
}

func (t *memTx) credit(to solana.PublicKey, amount uint64) error {
	sum, carry := bits.Add64(t.native(to), amount, 0)
	if carry != 0 {
		return fmt.Errorf("native %s: %w", to, ErrBalanceOverflow)
	}
	t.dirty.native[to] = sum

	return nil
}

func (t *memTx) Mint(address solana.PublicKey) (Mint, error) {
	mint, ok := t.mint(address)
	if !ok {
		return Mint{}, fmt.Errorf("mint %s: %w", address, ErrAccountNotFound)
	}
	mint.Authority = copyKey(mint.Authority)

	return mint, nil
}

func (t *memTx) MintTo(mintAddr, to solana.PublicKey, signer authority.Signer, amount uint64) error {
	mint, ok := t.mint(mintAddr)
	if !ok {
		return fmt.Errorf("mint %s: %w", mintAddr, ErrAccountNotFound)
	}
	if mint.Authority == nil || !mint.Authority.Equals(signer.Key) {
		return fmt.Errorf("mint %s: %w", mintAddr, ErrMintAuthority)
	}
	if err := authority.Verify(t.programID, signer); err != nil {
		return err
	}

	dst, ok := t.token(to)
	if !ok {
		return fmt.Errorf("token account %s: %w", to, ErrAccountNotFound)
	}
	if !dst.Mint.Equals(mintAddr) {
		return fmt.Errorf("token account %s: %w", to, ErrMintMismatch)
	}

	supply, carry := bits.Add64(mint.Supply, amount, 0)
	if carry != 0 {
		return fmt.Errorf("mint %s: %w", mintAddr, ErrBalanceOverflow)
	}
	balance, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return fmt.Errorf("token account %s: %w", to, ErrBalanceOverflow)
	}

	mint.Supply = supply
	dst.Amount = balance
	t.dirty.mints[mintAddr] = mint
	t.dirty.tokens[to] = dst

	return nil
}

func (t *memTx) SetMintAuthority(mintAddr solana.PublicKey, signer authority.Signer, next *solana.PublicKey) error {
	mint, ok := t.mint(mintAddr)
	if !ok {
		return fmt.Errorf("mint %s: %w", mintAddr, ErrAccountNotFound)
	}
	if mint.Authority == nil || !mint.Authority.Equals(signer.Key) {
		return fmt.Errorf("mint %s: %w", mintAddr, ErrMintAuthority)
	}
	if err := authority.Verify(t.programID, signer); err != nil {
		return err
	}

	mint.Authority = copyKey(next)
	t.dirty.mints[mintAddr] = mint

	return nil
}

func (t *memTx) IsTokenAccount(address solana.PublicKey) bool {
	_, ok := t.token(address)
	return ok
}

func (t *memTx) TokenAccount(address solana.PublicKey) (TokenAccount, error) {
	acc, ok := t.token(address)
	if !ok {
		return TokenAccount{}, fmt.Errorf("token account %s: %w", address, ErrAccountNotFound)
	}
	acc.Delegate = copyKey(acc.Delegate)

	return acc, nil
}

func (t *memTx) EnsureAssociatedTokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	address, err := AssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}

	if acc, ok := t.token(address); ok {
		if !acc.Owner.Equals(owner) {
			return address, fmt.Errorf("token account %s: %w", address, ErrOwnerMismatch)
		}
		return address, nil
	}

	if _, ok := t.mint(mint); !ok {
		return address, fmt.Errorf("mint %s: %w", mint, ErrAccountNotFound)
	}

	t.dirty.tokens[address] = TokenAccount{Address: address, Mint: mint, Owner: owner}
	zap.L().With(zap.String("owner", owner.String()), zap.String("mint", mint.String())).Debug("Ledger: Created token account")

	return address, nil
}

func (t *memTx) TransferToken(from, to solana.PublicKey, signer authority.Signer, amount uint64) error {
	src, ok := t.token(from)
	if !ok {
		return fmt.Errorf("token account %s: %w", from, ErrAccountNotFound)
	}
	dst, ok := t.token(to)
	if !ok {
		return fmt.Errorf("token account %s: %w", to, ErrAccountNotFound)
	}
	if !src.Mint.Equals(dst.Mint) {
		return fmt.Errorf("token transfer %s -> %s: %w", from, to, ErrMintMismatch)
	}
	if err := authority.Verify(t.programID, signer); err != nil {
		return err
	}

	switch {
	case src.Owner.Equals(signer.Key):
	case src.Delegate != nil && src.Delegate.Equals(signer.Key):
		if src.DelegatedAmount < amount {
			return fmt.Errorf("token account %s: %w", from, ErrInsufficientDelegation)
		}
		src.DelegatedAmount -= amount
		if src.DelegatedAmount == 0 {
			src.Delegate = nil
		}
	default:
		return fmt.Errorf("token account %s: %w", from, ErrOwnerMismatch)
	}

	if src.Amount < amount {
		return fmt.Errorf("token account %s has %d, needs %d: %w", from, src.Amount, amount, ErrInsufficientFunds)
	}
	if from.Equals(to) {
		t.dirty.tokens[from] = src
		return nil
	}

	balance, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return fmt.Errorf("token account %s: %w", to, ErrBalanceOverflow)
	}
	src.Amount -= amount
	dst.Amount = balance
	t.dirty.tokens[from] = src
	t.dirty.tokens[to] = dst

	return nil
}

func (t *memTx) Approve(account, delegate solana.PublicKey, owner authority.Signer, amount uint64) error {
	acc, ok := t.token(account)
	if !ok {
		return fmt.Errorf("token account %s: %w", account, ErrAccountNotFound)
	}
	if !acc.Owner.Equals(owner.Key) {
		return fmt.Errorf("token account %s: %w", account, ErrOwnerMismatch)
	}
	if err := authority.Verify(t.programID, owner); err != nil {
		return err
	}

	acc.Delegate = copyKey(&delegate)
	acc.DelegatedAmount = amount
	t.dirty.tokens[account] = acc

	return nil
}

func (t *memTx) Record(address solana.PublicKey) ([]byte, bool) {
	data, ok := t.record(address)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

func (t *memTx) PutRecord(address solana.PublicKey, data []byte) {
	t.dirty.records[address] = append([]byte(nil), data...)
}

func copyKey(k *solana.PublicKey) *solana.PublicKey {
	if k == nil {
		return nil
	}
	c := *k
	return &c
}
