package rox

import (
	"github.com/alextanhongpin/rox/types/states"
)

// StateCode is every value Setup (and the client's internal lifecycle)
// can be in or report (spec §4.C10). Uninitialized, SettingUp,
// Initialized, and ShuttingDown are real states the client's state
// machine transitions through; EmptyApiKey, InvalidApiKey, and
// GenericSetupFailure are error terminals returned by Setup. EmptyApiKey
// and InvalidApiKey are returned before the machine leaves
// Uninitialized; GenericSetupFailure can also be returned after it has
// moved to SettingUp.
type StateCode int

const (
	Uninitialized StateCode = iota
	SettingUp
	Initialized
	ShuttingDown
	EmptyApiKey
	InvalidApiKey
	GenericSetupFailure
)

func (s StateCode) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case SettingUp:
		return "setting_up"
	case Initialized:
		return "initialized"
	case ShuttingDown:
		return "shutting_down"
	case EmptyApiKey:
		return "empty_api_key"
	case InvalidApiKey:
		return "invalid_api_key"
	case GenericSetupFailure:
		return "generic_setup_failure"
	default:
		return "unknown"
	}
}

// newLifecycle builds the 4-state machine Setup/Shutdown drive (spec
// §4.C10's real states only; the error terminals are return values, not
// machine states).
func newLifecycle() *states.StateMachine[StateCode] {
	return states.NewStateMachine(Uninitialized,
		states.NewTransition("setup", Uninitialized, SettingUp),
		states.NewTransition("initial-fetch-completed", SettingUp, Initialized),
		states.NewTransition("shutdown", Initialized, ShuttingDown),
		states.NewTransition("teardown-complete", ShuttingDown, Uninitialized),
	)
}
