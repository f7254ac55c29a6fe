// Package market is the settlement core: listing custody, fee splitting over
// the native and token rails, quorum-gated treasury release and the fee skim
// on routed swaps. Every operation is a single ledger unit; events and
// metrics are published only after the unit commits.
package market

import (
	"context"
	"sync"
	"time"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/ZilDuck/marketplace-settlement/internal/event"
	"github.com/ZilDuck/marketplace-settlement/internal/exchange"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/ZilDuck/marketplace-settlement/internal/metrics"
	"github.com/ZilDuck/marketplace-settlement/internal/repository"
	"github.com/gagliardetto/solana-go"
	uuid "github.com/nu7hatch/gouuid"
	"go.uber.org/zap"
)

type Service interface {
	InitializeMarket(ctx context.Context, req InitializeMarketRequest) (*entity.MarketConfig, error)
	InitializeTreasury(ctx context.Context, req InitializeTreasuryRequest) (*entity.Treasury, error)
	MintAndList(ctx context.Context, req MintAndListRequest) (*entity.Listing, error)
	BuyNft(ctx context.Context, req BuyRequest) (*entity.Action, error)
	RelistNft(ctx context.Context, req RelistRequest) (*entity.Listing, error)
	WithdrawTreasury(ctx context.Context, req WithdrawRequest) (*entity.Action, error)
	SendToken(ctx context.Context, req SendRequest) (*entity.Action, error)
	SwapToken(ctx context.Context, req SwapRequest) (*entity.Action, error)

	GetMarketConfig(ctx context.Context) (*entity.MarketConfig, error)
	GetListing(ctx context.Context, asset solana.PublicKey) (*entity.Listing, error)
	TreasuryBalance(ctx context.Context, mint solana.PublicKey) (uint64, error)
	QuoteFees(ctx context.Context, price uint64) (*Quote, error)

	Treasury() solana.PublicKey
}

type service struct {
	ledger      ledger.Ledger
	deriver     authority.Deriver
	programs    exchange.Registry
	configRepo  repository.MarketConfigRepository
	listingRepo repository.ListingRepository
	treasury    authority.Authority
	now         func() time.Time
	publish     *sync.Mutex

	enforceThreshold bool
}

type Option func(s *service)

// EnforceThreshold makes a treasury release need the market's configured
// multisig threshold when it is above MinQuorum.
func EnforceThreshold(enforce bool) Option {
	return func(s *service) {
		s.enforceThreshold = enforce
	}
}

func NewService(l ledger.Ledger, deriver authority.Deriver, programs exchange.Registry, opts ...Option) Service {
	s := service{
		ledger:      l,
		deriver:     deriver,
		programs:    programs,
		configRepo:  repository.NewMarketConfigRepository(deriver),
		listingRepo: repository.NewListingRepository(deriver),
		treasury:    deriver.MustDerive(authority.TreasuryLabel),
		now:         func() time.Time { return time.Now().UTC() },
		publish:     &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s service) Treasury() solana.PublicKey {
	return s.treasury.Key
}

// commit runs fn as one ledger unit and, once it has committed, stamps and
// publishes the action it produced, then runs after. Commit and publish happen
// under one lock so events are published in commit order.
func (s service) commit(ctx context.Context, actionType entity.ActionType, fn func(tx ledger.Tx) (entity.Action, error), after ...func()) (*entity.Action, error) {
	timer := metrics.NewOperationTimer(string(actionType))
	defer timer.ObserveDuration()

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	s.publish.Lock()
	defer s.publish.Unlock()

	var action entity.Action
	err = s.ledger.Atomic(ctx, func(tx ledger.Tx) error {
		var err error
		action, err = fn(tx)
		return err
	})
	if err != nil {
		metrics.OperationFailed(string(actionType), ErrorCode(err))
		zap.L().With(zap.Error(err), zap.String("operation", string(actionType))).Warn("Market: Operation failed")
		return nil, err
	}

	action.ID = id.String()
	action.Type = actionType
	action.Sequence = s.ledger.Version()
	action.Time = s.now()

	metrics.OperationCommitted(action)
	event.EmitEvent(event.ActionCommittedEvent, action)
	for _, fn := range after {
		fn()
	}

	zap.L().With(
		zap.String("operation", string(actionType)),
		zap.String("id", action.ID),
		zap.Uint64("amount", action.Amount),
		zap.Uint64("fee", action.Fee),
	).Info("Market: Operation committed")

	return &action, nil
}

func (s service) marketConfig(tx ledger.Tx) (*entity.MarketConfig, error) {
	cfg, err := s.configRepo.Get(tx)
	if err == repository.ErrMarketConfigNotFound {
		return nil, ErrNotInitialized
	}
	return cfg, err
}

func (s service) GetMarketConfig(ctx context.Context) (cfg *entity.MarketConfig, err error) {
	err = s.ledger.View(ctx, func(tx ledger.Tx) error {
		cfg, err = s.marketConfig(tx)
		return err
	})
	return
}

func (s service) GetListing(ctx context.Context, asset solana.PublicKey) (listing *entity.Listing, err error) {
	err = s.ledger.View(ctx, func(tx ledger.Tx) error {
		listing, err = s.listingRepo.GetListing(tx, asset)
		return err
	})
	return
}
