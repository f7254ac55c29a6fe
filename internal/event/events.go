package event

type Type string

const (
	ActionCommittedEvent Type = "ActionCommittedEvent"
	ListingUpdatedEvent  Type = "ListingUpdatedEvent"
)
