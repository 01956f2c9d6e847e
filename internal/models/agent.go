package models

import (
	"encoding/json"
	"time"
)

// AgentType distinguishes personal agents from project agents
type AgentType string

const (
	AgentTypeUser    AgentType = "USER"
	AgentTypeProject AgentType = "PROJECT"
)

// Agent is the persona acting on behalf of a user or a project
type Agent struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         AgentType    `json:"type"`
	Personality  string       `json:"personality,omitempty"`
	Capabilities Capabilities `json:"capabilities"`
	UserID       string       `json:"userId,omitempty"`
	ProjectID    string       `json:"projectId,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`

	// PerformanceHistory is ordered newest first
	PerformanceHistory []PerformanceRecord `json:"performanceHistory,omitempty"`
}

// Capabilities is the structured form of an agent's capabilities document.
// Known keys are typed; anything else is preserved in Extra so the document
// round-trips without loss.
type Capabilities struct {
	Skills         []string `json:"skills,omitempty"`
	Industries     []string `json:"industries,omitempty"`
	RequiredSkills []string `json:"requiredSkills,omitempty"`
	Domain         string   `json:"domain,omitempty"`
	Focus          []string `json:"focus,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var capabilityKeys = []string{"skills", "industries", "requiredSkills", "domain", "focus"}

// MarshalJSON merges typed fields with the extension map
func (c Capabilities) MarshalJSON() ([]byte, error) {
	type known Capabilities
	return marshalWithExtra(known(c), c.Extra)
}

// UnmarshalJSON splits the document into typed fields and the extension map
func (c *Capabilities) UnmarshalJSON(data []byte) error {
	type known Capabilities
	var k known
	extra, err := unmarshalWithExtra(data, &k, capabilityKeys)
	if err != nil {
		return err
	}
	*c = Capabilities(k)
	c.Extra = extra
	return nil
}

// Preferences holds a user's working preferences
type Preferences struct {
	TeamSize  string `json:"teamSize,omitempty"`
	WorkStyle string `json:"workStyle,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var preferenceKeys = []string{"teamSize", "workStyle"}

// MarshalJSON merges typed fields with the extension map
func (p Preferences) MarshalJSON() ([]byte, error) {
	type known Preferences
	return marshalWithExtra(known(p), p.Extra)
}

// UnmarshalJSON splits the document into typed fields and the extension map
func (p *Preferences) UnmarshalJSON(data []byte) error {
	type known Preferences
	var k known
	extra, err := unmarshalWithExtra(data, &k, preferenceKeys)
	if err != nil {
		return err
	}
	*p = Preferences(k)
	p.Extra = extra
	return nil
}

func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}

	merged := make(map[string]json.RawMessage, len(extra)+4)
	for k, raw := range extra {
		merged[k] = raw
	}
	var typed map[string]json.RawMessage
	if err := json.Unmarshal(base, &typed); err != nil {
		return nil, err
	}
	for k, raw := range typed {
		merged[k] = raw
	}
	return json.Marshal(merged)
}

func unmarshalWithExtra(data []byte, v any, known []string) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}
