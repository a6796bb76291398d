package policy

import (
	"strings"

	"poll-voting/internal/config"
	"poll-voting/internal/model"
)

// Entry binds a role to the canonical URL of its voter group.
type Entry struct {
	Role           model.Role `yaml:"role"`
	GroupURLPrefix string     `yaml:"groupUrl"`
}

// RolePolicy resolves roles from group URLs and tells which ballot categories a role sees.
type RolePolicy struct {
	entries []Entry
}

var visibility = map[model.Role][]model.BallotCategory{
	model.RoleParticipant:  {model.CategoryAdvisoryVote, model.CategoryStrawPoll},
	model.RoleOrganizer:    {model.CategoryAdvisoryVote, model.CategoryStrawPoll, model.CategoryOrganizerOnly},
	model.RoleExternalUser: {model.CategoryExternalUser},
}

// New keeps the order of entries, the first match wins. Entries without a
// group URL are not configured and never match.
func New(entries []Entry) RolePolicy {
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.GroupURLPrefix == "" || !e.Role.IsValid() {
			continue
		}
		kept = append(kept, e)
	}

	return RolePolicy{entries: kept}
}

// FromConfig builds the policy from the configured group URLs.
func FromConfig() RolePolicy {
	return New([]Entry{
		{Role: model.RoleParticipant, GroupURLPrefix: config.GetParticipantsGroupURL()},
		{Role: model.RoleOrganizer, GroupURLPrefix: config.GetOrganizersGroupURL()},
		{Role: model.RoleExternalUser, GroupURLPrefix: config.GetExternalUsersGroupURL()},
	})
}

func (p RolePolicy) Entries() []Entry {
	return append([]Entry(nil), p.entries...)
}

// ResolveRole returns the role of the first entry whose group URL prefixes groupURL.
// The configured URL may be followed by a path, query or fragment, but not by
// more characters of the same path segment: groups/4 does not match groups/42.
func (p RolePolicy) ResolveRole(groupURL string) (model.Role, bool) {
	for _, e := range p.entries {
		if matchesPrefix(groupURL, e.GroupURLPrefix) {
			return e.Role, true
		}
	}

	return model.RoleNone, false
}

// VisibleCategories returns the categories a role can see. No role, no categories.
func (p RolePolicy) VisibleCategories(role model.Role) []model.BallotCategory {
	return append([]model.BallotCategory(nil), visibility[role]...)
}

func (p RolePolicy) CanView(role model.Role, category model.BallotCategory) bool {
	for _, c := range visibility[role] {
		if c == category {
			return true
		}
	}
	return false
}

// FilterBallots drops the ballots the role is not allowed to see.
func (p RolePolicy) FilterBallots(role model.Role, ballots []model.Ballot) []model.Ballot {
	visible := make([]model.Ballot, 0, len(ballots))
	for _, b := range ballots {
		if p.CanView(role, b.Category) {
			visible = append(visible, b)
		}
	}
	return visible
}

func matchesPrefix(groupURL, prefix string) bool {
	if prefix == "" || !strings.HasPrefix(groupURL, prefix) {
		return false
	}

	if len(groupURL) == len(prefix) || strings.HasSuffix(prefix, "/") {
		return true
	}

	switch groupURL[len(prefix)] {
	case '/', '?', '#':
		return true
	}
	return false
}
