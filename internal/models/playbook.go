package models

// Playbook is the sequence of mock steps executed for tasks whose name
// contains one of its keywords
type Playbook struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Keywords    []string        `json:"keywords,omitempty"`
	Priority    int             `json:"priority"`
	Fallback    bool            `json:"fallback,omitempty"`
	Steps       []ExecutionStep `json:"steps"`
}

// CloneSteps returns a copy of the steps with completion flags cleared
func (p *Playbook) CloneSteps() []ExecutionStep {
	steps := make([]ExecutionStep, len(p.Steps))
	for i, s := range p.Steps {
		s.Completed = false
		steps[i] = s
	}
	return steps
}
