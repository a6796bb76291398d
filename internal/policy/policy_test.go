package policy_test

import (
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"poll-voting/internal/model"
	"poll-voting/internal/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() policy.RolePolicy {
	return policy.New([]policy.Entry{
		{Role: model.RoleParticipant, GroupURLPrefix: "https://server/groups/1"},
		{Role: model.RoleOrganizer, GroupURLPrefix: "https://server/groups/4"},
		{Role: model.RoleExternalUser, GroupURLPrefix: "https://server/groups/5"},
	})
}

func TestResolveRole(t *testing.T) {
	p := testPolicy()

	tests := []struct {
		groupURL string
		role     model.Role
		ok       bool
	}{
		{"https://server/groups/1", model.RoleParticipant, true},
		{"https://server/groups/4", model.RoleOrganizer, true},
		{"https://server/groups/5", model.RoleExternalUser, true},
		// environment specific suffixes are tolerated
		{"https://server/groups/4/", model.RoleOrganizer, true},
		{"https://server/groups/4/v2", model.RoleOrganizer, true},
		{"https://server/groups/4?root=abc", model.RoleOrganizer, true},
		{"https://server/groups/4#latest", model.RoleOrganizer, true},
		// same leading characters, different group
		{"https://server/groups/42", model.RoleNone, false},
		{"https://server/groups/10", model.RoleNone, false},
		{"https://server/groups/4a", model.RoleNone, false},
		{"https://server/groups", model.RoleNone, false},
		{"https://server/groups/", model.RoleNone, false},
		{"https://other/groups/4", model.RoleNone, false},
		{"", model.RoleNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.groupURL, func(t *testing.T) {
			role, ok := p.ResolveRole(tt.groupURL)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.role, role)
		})
	}
}

func TestResolveRoleRejectsSharedLeadingCharacters(t *testing.T) {
	p := testPolicy()
	rnd := rand.New(rand.NewSource(1))
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789-_.~"

	for i := 0; i < 500; i++ {
		// append at least one character that is not a boundary to a configured URL
		suffix := []byte{alphabet[rnd.Intn(len(alphabet))]}
		for j := rnd.Intn(8); j > 0; j-- {
			suffix = append(suffix, alphabet[rnd.Intn(len(alphabet))])
		}

		for _, e := range p.Entries() {
			groupURL := e.GroupURLPrefix + string(suffix)
			role, ok := p.ResolveRole(groupURL)
			assert.False(t, ok, groupURL)
			assert.Equal(t, model.RoleNone, role, groupURL)
		}
	}
}

func TestResolveRoleFirstMatchWins(t *testing.T) {
	p := policy.New([]policy.Entry{
		{Role: model.RoleParticipant, GroupURLPrefix: "https://server/groups"},
		{Role: model.RoleOrganizer, GroupURLPrefix: "https://server/groups/4"},
	})

	role, ok := p.ResolveRole("https://server/groups/4")
	assert.True(t, ok)
	assert.Equal(t, model.RoleParticipant, role)
}

func TestUnconfiguredEntriesAreSkipped(t *testing.T) {
	p := policy.New([]policy.Entry{
		{Role: model.RoleParticipant, GroupURLPrefix: ""},
		{Role: model.Role("admin"), GroupURLPrefix: "https://server/groups/9"},
		{Role: model.RoleOrganizer, GroupURLPrefix: "https://server/groups/4"},
	})

	assert.Len(t, p.Entries(), 1)
	_, ok := p.ResolveRole("https://server/groups/9")
	assert.False(t, ok)
	_, ok = p.ResolveRole("anything")
	assert.False(t, ok)
}

func TestVisibleCategories(t *testing.T) {
	p := testPolicy()

	tests := []struct {
		role       model.Role
		categories []model.BallotCategory
	}{
		{model.RoleParticipant, []model.BallotCategory{model.CategoryAdvisoryVote, model.CategoryStrawPoll}},
		{model.RoleOrganizer, []model.BallotCategory{model.CategoryAdvisoryVote, model.CategoryStrawPoll, model.CategoryOrganizerOnly}},
		{model.RoleExternalUser, []model.BallotCategory{model.CategoryExternalUser}},
	}

	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			visible := p.VisibleCategories(tt.role)
			assert.NotEmpty(t, visible)
			assert.Equal(t, tt.categories, visible)
		})
	}

	assert.Empty(t, p.VisibleCategories(model.RoleNone))
	assert.Empty(t, p.VisibleCategories(model.Role("superuser")))
}

func TestVisibleCategoriesIsACopy(t *testing.T) {
	p := testPolicy()
	visible := p.VisibleCategories(model.RoleOrganizer)
	visible[0] = model.CategoryExternalUser

	assert.Equal(t, model.CategoryAdvisoryVote, p.VisibleCategories(model.RoleOrganizer)[0])
}

func TestOrganizerScenario(t *testing.T) {
	p := policy.New([]policy.Entry{
		{Role: model.RoleOrganizer, GroupURLPrefix: "https://server/groups/4"},
	})

	role, ok := p.ResolveRole("https://server/groups/4")
	require.True(t, ok)
	assert.Equal(t, model.RoleOrganizer, role)
	assert.ElementsMatch(t,
		[]model.BallotCategory{model.CategoryAdvisoryVote, model.CategoryStrawPoll, model.CategoryOrganizerOnly},
		p.VisibleCategories(role))

	role, ok = p.ResolveRole("https://server/groups")
	assert.False(t, ok)
	assert.Empty(t, p.VisibleCategories(role))
}

func TestFilterBallots(t *testing.T) {
	p := testPolicy()
	var ballots []model.Ballot
	for i, c := range []model.BallotCategory{
		model.CategoryAdvisoryVote, model.CategoryOrganizerOnly, model.CategoryExternalUser, model.CategoryStrawPoll,
	} {
		ballots = append(ballots, model.Ballot{ID: strconv.Itoa(i), Category: c})
	}

	visible := p.FilterBallots(model.RoleParticipant, ballots)
	require.Len(t, visible, 2)
	assert.Equal(t, "0", visible[0].ID)
	assert.Equal(t, "3", visible[1].ID)

	assert.Len(t, p.FilterBallots(model.RoleOrganizer, ballots), 3)
	assert.Len(t, p.FilterBallots(model.RoleExternalUser, ballots), 1)
	assert.Empty(t, p.FilterBallots(model.RoleNone, ballots))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `groups:
  - role: organizer
    groupUrl: https://server/groups/4
  - role: participant
    groupUrl: https://server/groups/1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	p, err := policy.LoadFile(path)
	require.NoError(t, err)
	require.Len(t, p.Entries(), 2)
	assert.Equal(t, model.RoleOrganizer, p.Entries()[0].Role)

	role, ok := p.ResolveRole("https://server/groups/1")
	assert.True(t, ok)
	assert.Equal(t, model.RoleParticipant, role)
}

func TestParseRejectsUnknownRole(t *testing.T) {
	_, err := policy.Parse([]byte("groups:\n  - role: admin\n    groupUrl: https://server/groups/9\n"))
	assert.Error(t, err)

	_, err = policy.Parse([]byte("groups: ["))
	assert.Error(t, err)

	_, err = policy.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
