package repository

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

var (
	ErrRecordKind = errors.New("record holds another kind")
)

// Kind tags every record so an address pointing at one kind of record can
// never be decoded as another.
type Kind string

const (
	ListingKind      Kind = "listing"
	MarketConfigKind Kind = "market_config"
	TreasuryKind     Kind = "treasury"
)

type record struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func readRecord(tx ledger.Tx, address solana.PublicKey, kind Kind, v interface{}) (bool, error) {
	data, found := tx.Record(address)
	if !found {
		return false, nil
	}

	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		zap.L().With(zap.Error(err), zap.String("address", address.String())).Error("Repository: Corrupt record")
		return true, fmt.Errorf("record %s: %w", address, err)
	}
	if r.Kind != kind {
		return true, fmt.Errorf("record %s is %q, want %q: %w", address, r.Kind, kind, ErrRecordKind)
	}

	if err := json.Unmarshal(r.Data, v); err != nil {
		zap.L().With(zap.Error(err), zap.String("address", address.String())).Error("Repository: Corrupt record")
		return true, fmt.Errorf("record %s: %w", address, err)
	}

	return true, nil
}

func writeRecord(tx ledger.Tx, address solana.PublicKey, kind Kind, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	data, err = json.Marshal(record{kind, data})
	if err != nil {
		return err
	}
	tx.PutRecord(address, data)

	return nil
}
