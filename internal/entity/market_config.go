package entity

import "github.com/gagliardetto/solana-go"

type MarketConfig struct {
	Admin             solana.PublicKey   `json:"admin"`
	MintFeeBps        uint16             `json:"mintFeeBps"`
	TradeFeeBps       uint16             `json:"tradeFeeBps"`
	RelistFeeBps      uint16             `json:"relistFeeBps"`
	Treasury          solana.PublicKey   `json:"treasury"`
	TreasuryBump      uint8              `json:"treasuryBump"`
	MultisigAdmins    []solana.PublicKey `json:"multisigAdmins"`
	MultisigThreshold uint8              `json:"multisigThreshold"`
}

// Treasury marker record, written once by InitializeTreasury.
type Treasury struct {
	Address     solana.PublicKey `json:"address"`
	Bump        uint8            `json:"bump"`
	Initializer solana.PublicKey `json:"initializer"`
}
