// Package roxerrors carries the typed error-kind taxonomy used across
// fetch, verification, and setup failures (spec §4.C7, §4.C9, §4.C10),
// following the teacher's types/errors pattern: kinds registered once,
// messages loaded from an embedded TOML table, errors created by kind
// rather than by ad hoc strings.
package roxerrors

import (
	_ "embed"

	"github.com/BurntSushi/toml"
	"github.com/alextanhongpin/errors"
)

type (
	Error = errors.Error
	Kind  = errors.Kind
)

// Kinds mirror spec.md §4.C7's FetcherError enum plus setup/API-key
// failures named across §4.C9/§4.C10.
const (
	CorruptedJSON              Kind = "corrupted_json"
	EmptyJSON                  Kind = "empty_json"
	SignatureVerificationError Kind = "signature_verification_error"
	NetworkError               Kind = "network_error"
	MismatchAppKey             Kind = "mismatch_app_key"
	UnknownError               Kind = "unknown_error"
	EmptyAPIKey                Kind = "empty_api_key"
	InvalidAPIKey              Kind = "invalid_api_key"
	GenericSetupFailure        Kind = "generic_setup_failure"
)

var (
	//go:embed roxerrors.toml
	messageBytes []byte
	_            = errors.MustAddKinds(
		CorruptedJSON,
		EmptyJSON,
		SignatureVerificationError,
		NetworkError,
		MismatchAppKey,
		UnknownError,
		EmptyAPIKey,
		InvalidAPIKey,
		GenericSetupFailure,
	)
	_ = errors.MustLoad(messageBytes, toml.Unmarshal)

	ErrCorruptedJSON              = errors.Get("errors.corrupted_json")
	ErrEmptyJSON                  = errors.Get("errors.empty_json")
	ErrSignatureVerificationError = errors.Get("errors.signature_verification_error")
	ErrNetworkError               = errors.Get("errors.network_error")
	ErrMismatchAppKey             = errors.Get("errors.mismatch_app_key")
	ErrUnknownError                = errors.Get("errors.unknown_error")
	ErrEmptyAPIKey                = errors.Get("errors.empty_api_key")
	ErrInvalidAPIKey              = errors.Get("errors.invalid_api_key")
	ErrGenericSetupFailure        = errors.Get("errors.generic_setup_failure")
)
