package conflict

import "time"

// Type classifies why an edit could not be applied directly.
type Type string

const (
	// TypeLockedElement means the element is locked by someone other than
	// the edit's author.
	TypeLockedElement Type = "locked_element"

	// TypeConcurrentEdit means another user edited the element within the
	// conflict window.
	TypeConcurrentEdit Type = "concurrent_edit"

	// TypeRemoteReported means a peer reported the conflict over the wire.
	TypeRemoteReported Type = "remote_reported"
)

// ResolutionType selects what to do with a queued conflict.
type ResolutionType string

const (
	ResolutionAccept ResolutionType = "accept_changes"
	ResolutionReject ResolutionType = "reject_changes"
	ResolutionMerge  ResolutionType = "merge_changes"
)

// IsValid reports whether r is a known resolution type.
func (r ResolutionType) IsValid() bool {
	switch r {
	case ResolutionAccept, ResolutionReject, ResolutionMerge:
		return true
	}
	return false
}

// Resolution is the caller's decision for one conflict.
type Resolution struct {
	Type ResolutionType `json:"type"`
	// Strategy optionally names the merge strategy for ResolutionMerge.
	// Empty means the coordinator's configured strategy.
	Strategy string `json:"strategy,omitempty"`
}

// Edit is an incoming element change checked by the Detector.
type Edit struct {
	EditType  string         `json:"editType"`
	ElementID string         `json:"elementId"`
	Changes   map[string]any `json:"changes"`
	UserID    string         `json:"userId"`
	Timestamp time.Time      `json:"-"`
}

// Conflict is a queued edit awaiting resolution.
type Conflict struct {
	ID        string         `json:"id"`
	ElementID string         `json:"elementId"`
	EditType  string         `json:"editType"`
	Changes   map[string]any `json:"changes"`
	UserID    string         `json:"userId"`
	Timestamp time.Time      `json:"timestamp"`
	Type      Type           `json:"conflictType"`
	// With is the user whose lock or earlier edit caused the conflict.
	With       string      `json:"with,omitempty"`
	Resolution *Resolution `json:"resolution,omitempty"`
}

// FromEdit builds an unqueued Conflict for e.
func FromEdit(e Edit, t Type, with string) Conflict {
	return Conflict{
		ElementID: e.ElementID,
		EditType:  e.EditType,
		Changes:   e.Changes,
		UserID:    e.UserID,
		Timestamp: e.Timestamp,
		Type:      t,
		With:      with,
	}
}
