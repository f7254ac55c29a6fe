package entity

import "github.com/gagliardetto/solana-go"

// Rail is the value-transfer mechanism a payment moves on.
type Rail string

const (
	RailUnspecified Rail = ""
	RailNative      Rail = "native"
	RailToken       Rail = "token"
)

func (r Rail) Valid() bool {
	return r == RailNative || r == RailToken
}

// RailForMint picks the rail a mint settles on. The native currency is
// addressed by its wrapped mint.
func RailForMint(mint solana.PublicKey) Rail {
	if mint.Equals(solana.SolMint) {
		return RailNative
	}
	return RailToken
}
