package market

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Role names what an account in a swap's account list is used for by the
// settlement core itself.
type Role string

const (
	RoleUserOut       Role = "user-out"
	RoleUser          Role = "user"
	RoleTreasury      Role = "treasury"
	RoleTreasuryToken Role = "treasury-token"
)

// AccountSet is the account list handed to an exchange program, in the order
// the program expects, plus the roles the core needs to find in it.
type AccountSet struct {
	Metas []*solana.AccountMeta     `json:"metas"`
	Roles map[Role]solana.PublicKey `json:"roles"`
}

func NewAccountSet(metas ...*solana.AccountMeta) *AccountSet {
	return &AccountSet{Metas: metas, Roles: map[Role]solana.PublicKey{}}
}

func (a *AccountSet) Bind(role Role, key solana.PublicKey) *AccountSet {
	if a.Roles == nil {
		a.Roles = map[Role]solana.PublicKey{}
	}
	a.Roles[role] = key
	return a
}

func (a AccountSet) Contains(key solana.PublicKey) bool {
	for _, m := range a.Metas {
		if m != nil && m.PublicKey.Equals(key) {
			return true
		}
	}
	return false
}

// Lookup returns the account bound to role. It fails when the role is unbound
// or its account is absent from the list.
func (a AccountSet) Lookup(role Role) (solana.PublicKey, error) {
	key, ok := a.Roles[role]
	if !ok || !present(key) {
		return solana.PublicKey{}, fmt.Errorf("role %s unbound: %w", role, ErrMissingAccount)
	}
	if !a.Contains(key) {
		return solana.PublicKey{}, fmt.Errorf("role %s account %s not in list: %w", role, key, ErrMissingAccount)
	}
	return key, nil
}

// Copy returns the account list for handing to a program, which may not
// alter the caller's view of it.
func (a AccountSet) Copy() []*solana.AccountMeta {
	metas := make([]*solana.AccountMeta, 0, len(a.Metas))
	for _, m := range a.Metas {
		if m == nil {
			continue
		}
		c := *m
		metas = append(metas, &c)
	}
	return metas
}
