// Package credit defines the shared identity types of the social credit
// economy. A community is an isolated namespace (one server); a member holds
// at most one account per community. Both are opaque stable string
// identifiers supplied by the caller.
package credit

import (
	"fmt"
	"strings"
)

// ActionKind names a player-initiated probabilistic action.
type ActionKind string

const (
	// ActionSteal transfers credit from a target to the initiator on success.
	ActionSteal ActionKind = "steal"
	// ActionSabotage destroys a target's credit without enriching the initiator.
	ActionSabotage ActionKind = "sabotage"
)

// PlayerActionKinds lists every kind subject to cooldown and lockout state.
func PlayerActionKinds() []ActionKind {
	return []ActionKind{ActionSteal, ActionSabotage}
}

// Valid reports whether the kind is a known player action.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionSteal, ActionSabotage:
		return true
	}
	return false
}

// AccountKey identifies one account as a (community, member) pair.
// It is a struct on purpose: concatenated string keys invite collisions.
type AccountKey struct {
	Community string
	Member    string
}

// NewAccountKey builds a key from trimmed identifiers.
func NewAccountKey(community, member string) (AccountKey, error) {
	community = strings.TrimSpace(community)
	member = strings.TrimSpace(member)
	if community == "" {
		return AccountKey{}, fmt.Errorf("community id is required")
	}
	if member == "" {
		return AccountKey{}, fmt.Errorf("member id is required")
	}
	return AccountKey{Community: community, Member: member}, nil
}
