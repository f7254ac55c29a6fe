// Package exchange holds the external programs a swap can be routed through.
// The settlement core treats them as opaque: it hands over the caller's
// payload and account list and observes balances before and after.
package exchange

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

var (
	ErrUnknownProgram    = errors.New("unknown exchange program")
	ErrInvalidPayload    = errors.New("invalid exchange payload")
	ErrNotEnoughAccounts = errors.New("not enough accounts for exchange")
)

type Program interface {
	ID() solana.PublicKey
	Invoke(tx ledger.Tx, data []byte, accounts []*solana.AccountMeta) error
}

type Registry interface {
	Register(program Program)
	Get(id solana.PublicKey) (Program, error)
	Programs() []solana.PublicKey
}

type registry struct {
	mu       sync.RWMutex
	programs map[solana.PublicKey]Program
}

func NewRegistry(programs ...Program) Registry {
	r := &registry{programs: map[solana.PublicKey]Program{}}
	for _, p := range programs {
		r.Register(p)
	}
	return r
}

func (r *registry) Register(program Program) {
	r.mu.Lock()
	defer r.mu.Unlock()

	zap.L().With(zap.String("program", program.ID().String())).Info("Exchange: Registered program")
	r.programs[program.ID()] = program
}

func (r *registry) Get(id solana.PublicKey) (Program, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.programs[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownProgram)
	}
	return p, nil
}

func (r *registry) Programs() []solana.PublicKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]solana.PublicKey, 0, len(r.programs))
	for id := range r.programs {
		ids = append(ids, id)
	}
	return ids
}
