// Package ordermode manages the single settings record that switches quick
// and scheduled ordering on or off.
package ordermode

import "time"

// SingletonKey is the fixed key the settings record is stored under. A
// unique constraint on it keeps concurrent first reads from creating two
// records.
const SingletonKey = "global"

type OrderMode struct {
	IsQuickActive     bool      `json:"isQuickActive"`
	IsScheduledActive bool      `json:"isScheduledActive"`
	UpdatedBy         *string   `json:"updatedBy,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Default is the record created on first access: both modes on.
func Default(now time.Time) OrderMode {
	return OrderMode{IsQuickActive: true, IsScheduledActive: true, CreatedAt: now, UpdatedAt: now}
}

// Patch carries the fields an admin toggles. Nil fields are left untouched.
type Patch struct {
	IsQuickActive     *bool
	IsScheduledActive *bool
	UpdatedBy         string
}

func (p Patch) Empty() bool {
	return p.IsQuickActive == nil && p.IsScheduledActive == nil
}

func (p Patch) apply(m OrderMode, now time.Time) OrderMode {
	if p.IsQuickActive != nil {
		m.IsQuickActive = *p.IsQuickActive
	}
	if p.IsScheduledActive != nil {
		m.IsScheduledActive = *p.IsScheduledActive
	}
	if p.UpdatedBy != "" {
		by := p.UpdatedBy
		m.UpdatedBy = &by
	}
	m.UpdatedAt = now
	return m
}
