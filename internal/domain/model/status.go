package model

import "fmt"

// Status is the lifecycle state of an application record.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusImporting    Status = "importing"
	StatusImported     Status = "imported"
	StatusBuilding     Status = "building"
	StatusInstalling   Status = "installing"
	StatusSuccess      Status = "success"
	StatusStarting     Status = "starting"
	StatusStopping     Status = "stopping"
	StatusUninstalling Status = "uninstalling"
	StatusError        Status = "error"
)

// transitions lists the legal successors of each state. Uninstalling is
// reachable from every state and is handled in CanTransition.
var transitions = map[Status][]Status{
	StatusIdle:         {StatusImporting},
	StatusImporting:    {StatusImported, StatusError},
	StatusImported:     {StatusImporting, StatusBuilding, StatusInstalling},
	StatusBuilding:     {StatusInstalling, StatusError},
	StatusInstalling:   {StatusSuccess, StatusError},
	StatusSuccess:      {StatusBuilding, StatusInstalling, StatusStarting, StatusStopping},
	StatusStarting:     {StatusSuccess, StatusError},
	StatusStopping:     {StatusSuccess, StatusError},
	StatusUninstalling: {StatusError},
	StatusError:        {StatusImporting, StatusBuilding, StatusInstalling, StatusStarting, StatusStopping},
}

// Valid reports whether s is a known state.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Transient reports whether s may only exist while an operation is in flight.
func (s Status) Transient() bool {
	switch s {
	case StatusImporting, StatusBuilding, StatusInstalling, StatusStarting, StatusStopping, StatusUninstalling:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if to == StatusUninstalling {
		return from != StatusUninstalling
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition when from -> to is not legal.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
