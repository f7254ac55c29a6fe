package entity

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gosimple/slug"
)

// Action is one committed marketplace operation, as recorded in the activity
// trail. Sequence is the ledger version the operation committed at; it rises
// with commit order but is not contiguous.
type Action struct {
	ID       string     `json:"id"`
	Type     ActionType `json:"type"`
	Sequence uint64     `json:"sequence"`
	Asset    string     `json:"asset,omitempty"`
	From     string     `json:"from,omitempty"`
	To       string     `json:"to,omitempty"`
	Mint     string     `json:"mint,omitempty"`
	Rail     Rail       `json:"rail,omitempty"`
	Amount   uint64     `json:"amount"`
	Fee      uint64     `json:"fee"`
	Time     time.Time  `json:"time"`
}

type ActionType string

const (
	InitializeMarketAction   ActionType = "initialize_market"
	InitializeTreasuryAction ActionType = "initialize_treasury"
	MintAndListAction        ActionType = "mint_and_list"
	BuyAction                ActionType = "buy"
	RelistAction             ActionType = "relist"
	WithdrawTreasuryAction   ActionType = "withdraw_treasury"
	SendAction               ActionType = "send"
	SwapAction               ActionType = "swap"
)

func (a Action) Slug() string {
	return CreateActionSlug(a.Type, a.ID)
}

func CreateActionSlug(actionType ActionType, id string) string {
	return slug.Make(fmt.Sprintf("action-%s-%s", actionType, id))
}

// KeyString renders k, or nothing for the zero key.
func KeyString(k solana.PublicKey) string {
	if k == (solana.PublicKey{}) {
		return ""
	}
	return k.String()
}
