package repository

import (
	"errors"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrMarketConfigNotFound = errors.New("market config not found")
	ErrTreasuryNotFound     = errors.New("treasury not found")
)

type MarketConfigRepository interface {
	Address() solana.PublicKey
	Exists(tx ledger.Tx) bool
	Get(tx ledger.Tx) (*entity.MarketConfig, error)
	Save(tx ledger.Tx, cfg entity.MarketConfig) error

	TreasuryExists(tx ledger.Tx) bool
	GetTreasury(tx ledger.Tx) (*entity.Treasury, error)
	SaveTreasury(tx ledger.Tx, treasury entity.Treasury) error
}

type marketConfigRepository struct {
	config   authority.Authority
	treasury authority.Authority
}

func NewMarketConfigRepository(deriver authority.Deriver) MarketConfigRepository {
	return marketConfigRepository{
		config:   deriver.MustDerive(authority.MarketConfigLabel),
		treasury: deriver.MustDerive(authority.TreasuryLabel),
	}
}

func (r marketConfigRepository) Address() solana.PublicKey {
	return r.config.Key
}

func (r marketConfigRepository) Exists(tx ledger.Tx) bool {
	_, found := tx.Record(r.config.Key)
	return found
}

func (r marketConfigRepository) Get(tx ledger.Tx) (*entity.MarketConfig, error) {
	var cfg entity.MarketConfig
	found, err := readRecord(tx, r.config.Key, MarketConfigKind, &cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrMarketConfigNotFound
	}

	return &cfg, nil
}

func (r marketConfigRepository) Save(tx ledger.Tx, cfg entity.MarketConfig) error {
	return writeRecord(tx, r.config.Key, MarketConfigKind, cfg)
}

func (r marketConfigRepository) TreasuryExists(tx ledger.Tx) bool {
	_, found := tx.Record(r.treasury.Key)
	return found
}

func (r marketConfigRepository) GetTreasury(tx ledger.Tx) (*entity.Treasury, error) {
	var treasury entity.Treasury
	found, err := readRecord(tx, r.treasury.Key, TreasuryKind, &treasury)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrTreasuryNotFound
	}

	return &treasury, nil
}

func (r marketConfigRepository) SaveTreasury(tx ledger.Tx, treasury entity.Treasury) error {
	return writeRecord(tx, r.treasury.Key, TreasuryKind, treasury)
}
