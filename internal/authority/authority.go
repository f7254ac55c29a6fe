// Package authority derives the program-controlled identities of the
// marketplace. A derived authority has no private key: it is recomputed from a
// label and a scope whenever it is needed, and the ledger accepts its signature
// only when the presented seeds reproduce the key under the program id.
package authority

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

type Label string

const (
	MarketConfigLabel  Label = "market_config"
	TreasuryLabel      Label = "treasury"
	ListingLabel       Label = "listing"
	EscrowLabel        Label = "escrow_signer"
	MintAuthorityLabel Label = "mint_auth"
)

var (
	ErrInvalidSigner = errors.New("signer does not match its derivation")
)

// Authority is a derived identity together with the bump that makes it
// derivable.
type Authority struct {
	Key   solana.PublicKey
	Bump  uint8
	Seeds [][]byte
}

// Signer returns the signature the ledger checks for this authority.
func (a Authority) Signer() Signer {
	seeds := make([][]byte, 0, len(a.Seeds)+1)
	seeds = append(seeds, a.Seeds...)
	seeds = append(seeds, []byte{a.Bump})

	return Signer{Key: a.Key, Seeds: seeds}
}

// Signer authorises a debit. Principals sign with their own key and carry no
// seeds; derived authorities carry the seeds, bump included.
type Signer struct {
	Key   solana.PublicKey
	Seeds [][]byte
}

func Principal(key solana.PublicKey) Signer {
	return Signer{Key: key}
}

func (s Signer) IsDerived() bool {
	return len(s.Seeds) != 0
}

// Verify checks a derived signer against the program id. Principal signers are
// authenticated by the host and always pass.
func Verify(programID solana.PublicKey, s Signer) error {
	if !s.IsDerived() {
		return nil
	}

	key, err := solana.CreateProgramAddress(s.Seeds, programID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSigner, err)
	}
	if !key.Equals(s.Key) {
		return ErrInvalidSigner
	}

	return nil
}

type Deriver interface {
	ProgramID() solana.PublicKey
	Derive(label Label, scope ...solana.PublicKey) (Authority, error)
	MustDerive(label Label, scope ...solana.PublicKey) Authority
}

type deriver struct {
	programID solana.PublicKey
	cache     *cache.Cache
}

func NewDeriver(programID solana.PublicKey) Deriver {
	return deriver{programID, cache.New(30*time.Minute, time.Hour)}
}

func (d deriver) ProgramID() solana.PublicKey {
	return d.programID
}

func (d deriver) Derive(label Label, scope ...solana.PublicKey) (Authority, error) {
	seeds := [][]byte{[]byte(label)}
	for _, s := range scope {
		seeds = append(seeds, s.Bytes())
	}

	cacheKey := cacheKeyFor(seeds)
	if cached, found := d.cache.Get(cacheKey); found {
		return cached.(Authority), nil
	}

	key, bump, err := solana.FindProgramAddress(seeds, d.programID)
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("label", string(label))).Error("Authority: Failed to derive")
		return Authority{}, err
	}

	a := Authority{Key: key, Bump: bump, Seeds: seeds}
	d.cache.Set(cacheKey, a, cache.DefaultExpiration)

	return a, nil
}

// MustDerive is Derive for the fixed labels, whose derivation only fails if
// no bump in range produces an off-curve key.
func (d deriver) MustDerive(label Label, scope ...solana.PublicKey) Authority {
	a, err := d.Derive(label, scope...)
	if err != nil {
		panic(err)
	}
	return a
}

func cacheKeyFor(seeds [][]byte) string {
	parts := make([]string, len(seeds))
	for i, s := range seeds {
		parts[i] = hex.EncodeToString(s)
	}
	return strings.Join(parts, ":")
}
