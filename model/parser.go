package model

import "encoding/json"

// rawTargetGroup and rawExperiment mirror the wire shape of the `data`
// object's targetGroups[]/experiments[] arrays (spec §4.C7 envelope).
type rawTargetGroup struct {
	ID        string `json:"id"`
	Condition string `json:"condition"`
}

type rawExperiment struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	Archived               bool     `json:"archived"`
	StickinessPropertyName string   `json:"stickinessProperty"`
	Labels                 []string `json:"labels"`
	FlagNames              []string `json:"flags"`
	Condition              string   `json:"condition"`
}

// Data is the parsed `data` sub-object of the signed envelope.
type Data struct {
	Application     string           `json:"application"`
	SignatureDate   string           `json:"signature_date"`
	RawTargetGroups []rawTargetGroup `json:"targetGroups"`
	RawExperiments  []rawExperiment  `json:"experiments"`
}

// ParseData unmarshals the `data` object's raw bytes into a Data value.
func ParseData(raw []byte) (Data, error) {
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return Data{}, err
	}
	return d, nil
}

// TargetGroups converts the parsed wire representation into the model's
// TargetGroup slice.
func (d Data) TargetGroups() []TargetGroup {
	out := make([]TargetGroup, len(d.RawTargetGroups))
	for i, tg := range d.RawTargetGroups {
		out[i] = TargetGroup{ID: tg.ID, Condition: tg.Condition}
	}
	return out
}

// Experiments converts the parsed wire representation into the model's
// Experiment slice.
func (d Data) Experiments() []Experiment {
	out := make([]Experiment, len(d.RawExperiments))
	for i, e := range d.RawExperiments {
		out[i] = Experiment{
			ID:                     e.ID,
			Name:                   e.Name,
			Archived:               e.Archived,
			StickinessPropertyName: e.StickinessPropertyName,
			Labels:                 e.Labels,
			FlagNames:              e.FlagNames,
			Condition:              e.Condition,
		}
	}
	return out
}
