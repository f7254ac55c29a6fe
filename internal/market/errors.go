package market

import (
	"context"
	"errors"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/exchange"
	"github.com/ZilDuck/marketplace-settlement/internal/fee"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/ZilDuck/marketplace-settlement/internal/repository"
)

var (
	ErrInvalidOwner     = errors.New("invalid owner")
	ErrInvalidNFT       = errors.New("invalid nft")
	ErrMathOverflow     = fee.ErrMathOverflow
	ErrInvalidThreshold = errors.New("invalid multisig threshold")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrMissingAccount   = errors.New("required account missing")

	ErrInvalidFeeBps      = errors.New("fee bps out of range")
	ErrInvalidRail        = errors.New("invalid payment rail")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("market not initialized")
	ErrListingExists      = errors.New("listing already exists")
	ErrListingNotFound    = repository.ErrListingNotFound
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidOwner, "invalid_owner"},
	{ErrInvalidNFT, "invalid_nft"},
	{ErrMathOverflow, "math_overflow"},
	{ErrInvalidThreshold, "invalid_threshold"},
	{ErrUnauthorized, "unauthorized"},
	{ErrMissingAccount, "missing_account"},
	{ErrInvalidFeeBps, "invalid_fee_bps"},
	{ErrInvalidRail, "invalid_rail"},
	{ErrAlreadyInitialized, "already_initialized"},
	{ErrNotInitialized, "not_initialized"},
	{ErrListingExists, "listing_exists"},
	{ErrListingNotFound, "listing_not_found"},
	{ledger.ErrInsufficientFunds, "insufficient_funds"},
	{ledger.ErrInsufficientDelegation, "insufficient_delegation"},
	{ledger.ErrMintAuthority, "mint_authority"},
	{ledger.ErrOwnerMismatch, "owner_mismatch"},
	{ledger.ErrMintMismatch, "mint_mismatch"},
	{ledger.ErrAccountNotFound, "account_not_found"},
	{ledger.ErrAccountExists, "account_exists"},
	{ledger.ErrBalanceOverflow, "balance_overflow"},
	{authority.ErrInvalidSigner, "invalid_signer"},
	{exchange.ErrUnknownProgram, "unknown_program"},
	{exchange.ErrInvalidPayload, "invalid_payload"},
	{exchange.ErrNotEnoughAccounts, "not_enough_accounts"},
	{context.Canceled, "canceled"},
	{context.DeadlineExceeded, "deadline_exceeded"},
}

// ErrorCode is a stable, low-cardinality name for err, or "internal" when err
// wraps none of the known sentinels.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
