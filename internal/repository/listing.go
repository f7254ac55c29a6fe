package repository

import (
	"errors"
	"fmt"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrListingNotFound = errors.New("listing not found")
)

type ListingRepository interface {
	Address(asset solana.PublicKey) (solana.PublicKey, error)
	Exists(tx ledger.Tx, asset solana.PublicKey) (bool, error)
	GetListing(tx ledger.Tx, asset solana.PublicKey) (*entity.Listing, error)
	GetListingByAddress(tx ledger.Tx, address solana.PublicKey) (*entity.Listing, error)
	Save(tx ledger.Tx, address solana.PublicKey, listing entity.Listing) error
}

type listingRepository struct {
	deriver authority.Deriver
}

func NewListingRepository(deriver authority.Deriver) ListingRepository {
	return listingRepository{deriver}
}

func (r listingRepository) Address(asset solana.PublicKey) (solana.PublicKey, error) {
	a, err := r.deriver.Derive(authority.ListingLabel, asset)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return a.Key, nil
}

func (r listingRepository) Exists(tx ledger.Tx, asset solana.PublicKey) (bool, error) {
	address, err := r.Address(asset)
	if err != nil {
		return false, err
	}
	_, found := tx.Record(address)

	return found, nil
}

func (r listingRepository) GetListing(tx ledger.Tx, asset solana.PublicKey) (*entity.Listing, error) {
	address, err := r.Address(asset)
	if err != nil {
		return nil, err
	}
	return r.GetListingByAddress(tx, address)
}

func (r listingRepository) GetListingByAddress(tx ledger.Tx, address solana.PublicKey) (*entity.Listing, error) {
	var listing entity.Listing
	found, err := readRecord(tx, address, ListingKind, &listing)
	if errors.Is(err, ErrRecordKind) {
		return nil, fmt.Errorf("%s: %v: %w", address, err, ErrListingNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", address, ErrListingNotFound)
	}

	return &listing, nil
}

func (r listingRepository) Save(tx ledger.Tx, address solana.PublicKey, listing entity.Listing) error {
	return writeRecord(tx, address, ListingKind, listing)
}
