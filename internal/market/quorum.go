package market

import "github.com/gagliardetto/solana-go"

// MinQuorum is the floor on co-signers for any treasury release.
const MinQuorum = 2

// Quorum counts the distinct candidates that appear in roster.
func Quorum(roster, candidates []solana.PublicKey) int {
	members := make(map[solana.PublicKey]struct{}, len(roster))
	for _, k := range roster {
		members[k] = struct{}{}
	}

	seen := make(map[solana.PublicKey]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := members[c]; ok {
			seen[c] = struct{}{}
		}
	}

	return len(seen)
}

// RequiredQuorum is MinQuorum, or max(MinQuorum, threshold) when the
// configured threshold is enforced.
func RequiredQuorum(threshold uint8, enforce bool) int {
	if enforce && int(threshold) > MinQuorum {
		return int(threshold)
	}
	return MinQuorum
}
