package models

import "encoding/json"

// Mission is the fixed-length sequence of exchange steps attached to a Match.
// CurrentStep is the highest contiguous confirmed step; steps complete
// strictly in order 1..TotalSteps.
type Mission struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	MatchID string `gorm:"uniqueIndex;not null" json:"match_id"`

	TotalSteps  int `json:"total_steps" gorm:"not null"`
	CurrentStep int `json:"current_step" gorm:"default:0"`

	// JSON-encoded []bool, one flag per step (same trick the pairing
	// tables use for their pair lists).
	CompletedJSON string `json:"-" gorm:"type:text"`

	IsCompleted bool `json:"is_completed" gorm:"default:false"`
	IsCancelled bool `json:"is_cancelled" gorm:"default:false"`

	Timestamps
}

// CompletedSteps decodes CompletedJSON, padded/truncated to TotalSteps.
func (m *Mission) CompletedSteps() []bool {
	out := make([]bool, m.TotalSteps)
	if m.CompletedJSON == "" {
		return out
	}
	var decoded []bool
	if err := json.Unmarshal([]byte(m.CompletedJSON), &decoded); err != nil {
		return out
	}
	copy(out, decoded)
	return out
}

// MarkStepDone sets the flag for a 1-based step number and re-encodes.
func (m *Mission) MarkStepDone(step int) {
	if step < 1 || step > m.TotalSteps {
		return
	}
	steps := m.CompletedSteps()
	steps[step-1] = true
	encoded, err := json.Marshal(steps)
	if err != nil {
		return
	}
	m.CompletedJSON = string(encoded)
}
