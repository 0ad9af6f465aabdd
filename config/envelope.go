// Package config implements the configuration parser and fetcher (spec
// §4.C7): the signed envelope format, source precedence (Roxy >
// network > persisted local storage > embedded), the periodic fetch
// loop, and the circuit breaker guarding the network source.
package config

import (
	"crypto/md5"
	"encoding/json"
	"fmt"

	"github.com/alextanhongpin/rox/model"
	"github.com/alextanhongpin/rox/roxerrors"
	"github.com/alextanhongpin/rox/security"
)

// envelope is the outer signed document: {data, signature_v0,
// signed_date}. Unknown fields are permitted by json.Unmarshal's
// default behavior.
type envelope struct {
	Data        json.RawMessage `json:"data"`
	SignatureV0 string          `json:"signature_v0"`
	SignedDate  int64           `json:"signed_date"`
}

// payload is the inner {application, targetGroups[], experiments[]}
// document that envelope.Data decodes into.
type payload struct {
	Application  string            `json:"application"`
	TargetGroups []targetGroupWire `json:"targetGroups"`
	Experiments  []experimentWire  `json:"experiments"`
	SignedDate   int64             `json:"signed_date"`
}

type targetGroupWire struct {
	ID        string `json:"id"`
	Condition string `json:"condition"`
}

type experimentWire struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	Archived               bool     `json:"archived"`
	StickinessPropertyName string   `json:"stickinessProperty"`
	Labels                 []string `json:"labels"`
	FlagNames              []string `json:"flags"`
	Condition              string   `json:"condition"`
}

// Parsed is the result of successfully parsing and verifying one
// configuration envelope.
type Parsed struct {
	Application  string
	TargetGroups []model.TargetGroup
	Experiments  []model.Experiment
	SignedDate   int64
	ContentHash  [md5.Size]byte
}

// Parser validates and decodes configuration envelopes (spec §4.C7,
// §4.C9). A nil Verifier is invalid; use security.NewDisabledVerifier
// for `disable_signature_verification` mode.
type Parser struct {
	Verifier *security.Verifier
	APIKey   string
}

// Parse decodes raw, verifies its signature and API key, and returns
// the resulting target groups and experiments. It never mutates any
// shared state; callers decide whether to apply the result.
func (p *Parser) Parse(raw []byte) (Parsed, error) {
	if len(raw) == 0 {
		return Parsed{}, roxerrors.ErrEmptyJSON
	}
	if !json.Valid(raw) {
		return Parsed{}, roxerrors.ErrCorruptedJSON
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Parsed{}, fmt.Errorf("%w: %v", roxerrors.ErrCorruptedJSON, err)
	}
	if len(env.Data) == 0 {
		return Parsed{}, roxerrors.ErrEmptyJSON
	}

	if err := p.Verifier.Verify(env.Data, env.SignatureV0); err != nil {
		return Parsed{}, fmt.Errorf("%w: %v", roxerrors.ErrSignatureVerificationError, err)
	}

	var pl payload
	if err := json.Unmarshal(env.Data, &pl); err != nil {
		return Parsed{}, fmt.Errorf("%w: %v", roxerrors.ErrCorruptedJSON, err)
	}
	if !security.CheckAPIKey(p.APIKey, pl.Application) {
		return Parsed{}, roxerrors.ErrMismatchAppKey
	}

	groups := make([]model.TargetGroup, len(pl.TargetGroups))
	for i, g := range pl.TargetGroups {
		groups[i] = model.TargetGroup{ID: g.ID, Condition: g.Condition}
	}
	experiments := make([]model.Experiment, len(pl.Experiments))
	for i, e := range pl.Experiments {
		experiments[i] = model.Experiment{
			ID:                     e.ID,
			Name:                   e.Name,
			Archived:               e.Archived,
			StickinessPropertyName: e.StickinessPropertyName,
			Labels:                 e.Labels,
			FlagNames:              e.FlagNames,
			Condition:              e.Condition,
		}
	}

	signedDate := env.SignedDate
	if signedDate == 0 {
		signedDate = pl.SignedDate
	}

	return Parsed{
		Application:  pl.Application,
		TargetGroups: groups,
		Experiments:  experiments,
		SignedDate:   signedDate,
		ContentHash:  md5.Sum(env.Data),
	}, nil
}
