package model

// Role of a voter, derived from the group of a verified credential. Never persisted.
type Role string

const (
	RoleNone         Role = ""
	RoleParticipant  Role = "participant"
	RoleOrganizer    Role = "organizer"
	RoleExternalUser Role = "external-user"
)

func (role Role) IsValid() bool {
	return role == RoleParticipant || role == RoleOrganizer || role == RoleExternalUser
}

func (role Role) String() string {
	return string(role)
}

// BallotCategory is the kind of a ballot, it decides which roles can see it.
type BallotCategory string

const (
	CategoryAdvisoryVote  BallotCategory = "advisory-vote"
	CategoryStrawPoll     BallotCategory = "straw-poll"
	CategoryOrganizerOnly BallotCategory = "organizer-only"
	CategoryExternalUser  BallotCategory = "external-user"
)

func (category BallotCategory) IsValid() bool {
	switch category {
	case CategoryAdvisoryVote, CategoryStrawPoll, CategoryOrganizerOnly, CategoryExternalUser:
		return true
	}
	return false
}

func (category BallotCategory) String() string {
	return string(category)
}
