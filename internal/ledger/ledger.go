// Package ledger is the boundary to the host ledger: native balances, the
// fungible-token service and program-owned records. Every marketplace
// operation runs inside one Atomic unit; either all of its effects commit or
// none do.
package ledger

import (
	"context"
	"errors"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrAccountExists          = errors.New("account already exists")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrBalanceOverflow        = errors.New("balance overflow")
	ErrOwnerMismatch          = errors.New("owner does not match")
	ErrMintMismatch           = errors.New("mint does not match")
	ErrMintAuthority          = errors.New("mint authority does not match or has been revoked")
	ErrInsufficientDelegation = errors.New("delegated amount exceeded")
)

type TokenAccount struct {
	Address         solana.PublicKey  `json:"address"`
	Mint            solana.PublicKey  `json:"mint"`
	Owner           solana.PublicKey  `json:"owner"`
	Amount          uint64            `json:"amount"`
	Delegate        *solana.PublicKey `json:"delegate,omitempty"`
	DelegatedAmount uint64            `json:"delegatedAmount"`
}

type Mint struct {
	Address   solana.PublicKey  `json:"address"`
	Authority *solana.PublicKey `json:"authority,omitempty"`
	Supply    uint64            `json:"supply"`
	Decimals  uint8             `json:"decimals"`
}

// Tx is the view of the ledger inside one atomic unit.
type Tx interface {
	Context() context.Context
	ProgramID() solana.PublicKey

	NativeBalance(address solana.PublicKey) uint64
	TransferNative(from authority.Signer, to solana.PublicKey, amount uint64) error

	Mint(address solana.PublicKey) (Mint, error)
	MintTo(mint, to solana.PublicKey, signer authority.Signer, amount uint64) error
	SetMintAuthority(mint solana.PublicKey, signer authority.Signer, next *solana.PublicKey) error

	IsTokenAccount(address solana.PublicKey) bool
	TokenAccount(address solana.PublicKey) (TokenAccount, error)
	EnsureAssociatedTokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, error)
	TransferToken(from, to solana.PublicKey, signer authority.Signer, amount uint64) error
	Approve(account, delegate solana.PublicKey, owner authority.Signer, amount uint64) error

	Record(address solana.PublicKey) ([]byte, bool)
	PutRecord(address solana.PublicKey, data []byte)
}

type Ledger interface {
	// Atomic runs fn as one indivisible unit. Units touching the same
	// accounts are serialised; an error from fn discards every effect.
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn against a consistent snapshot and discards any writes.
	View(ctx context.Context, fn func(tx Tx) error) error
	// Version counts committed units.
	Version() uint64
}

// AssociatedTokenAddress is the canonical token account of owner for mint.
func AssociatedTokenAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	return addr, err
}
