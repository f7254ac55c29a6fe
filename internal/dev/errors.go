package dev

import (
	"time"

	"github.com/nu7hatch/gouuid"
)

type Error struct {
	ID        string                 `json:"id"`
	Time      time.Time              `json:"time"`
	Component string                 `json:"component"`
	Name      string                 `json:"name"`
	Error     string                 `json:"error"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

func (e Error) Slug() string {
	return e.ID
}

func NewError(component, name string, err error, extra map[string]interface{}) Error {
	id := ""
	if u, uerr := uuid.NewV4(); uerr == nil {
		id = u.String()
	}

	return Error{
		ID:        id,
		Time:      time.Now(),
		Component: component,
		Name:      name,
		Error:     err.Error(),
		Extra:     extra,
	}
}
