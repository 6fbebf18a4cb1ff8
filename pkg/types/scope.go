package types

// Scope partitions memories, entities, and intentions by caller identity.
// Any field may be empty, meaning "unscoped" along that axis. A node with an
// empty value on a given axis is treated as global and matches any filter
// value for that axis (see MatchesFilter).
type Scope struct {
	UserID string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	RunID  string `json:"run_id,omitempty"`
}

// IsEmpty reports whether none of the scope axes are set.
func (s Scope) IsEmpty() bool {
	return s.UserID == "" && s.AgentID == "" && s.RunID == ""
}

// Matches reports whether the receiver (a node's scope) satisfies a filter
// scope. For each axis: the filter being empty always matches; otherwise the
// node's value must equal the filter's value, or the node's value must be
// empty (global).
func (s Scope) Matches(filter Scope) bool {
	return matchAxis(s.UserID, filter.UserID) &&
		matchAxis(s.AgentID, filter.AgentID) &&
		matchAxis(s.RunID, filter.RunID)
}

func matchAxis(value, filter string) bool {
	if filter == "" {
		return true
	}
	return value == "" || value == filter
}
