package entity

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Listing is the escrow record of one asset. PaymentMint is set only for
// token-rail listings made with a seller payment account, and then pins the
// mint a token-rail buyer must pay in.
type Listing struct {
	Seller      solana.PublicKey  `json:"seller"`
	Asset       solana.PublicKey  `json:"asset"`
	Price       uint64            `json:"price"`
	Rail        Rail              `json:"rail"`
	PaymentMint *solana.PublicKey `json:"paymentMint,omitempty"`
	Bump        uint8             `json:"bump"`
	ListedAt    time.Time         `json:"listedAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Slug keeps the base58 case intact; slug.Make would fold it.
func (l Listing) Slug() string {
	return "listing-" + l.Asset.String()
}
