package elastic_search

import (
	"fmt"

	"github.com/ZilDuck/marketplace-settlement/internal/config"
)

type Indices string

var (
	ActionIndex  Indices = "action"
	ListingIndex Indices = "listing"
)

// Sets the network and returns the full string
func (i *Indices) Get() string {
	return fmt.Sprintf("%s.%s.%s", config.Get().Network, config.Get().Index, string(*i))
}

func All() []Indices {
	return []Indices{
		ActionIndex,
		ListingIndex,
	}
}
