package types

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultBoardName is used when a board is created without a name.
	DefaultBoardName = "Untitled board"

	// MaxBoardNameLength is the maximum length of a trimmed board name, in characters.
	MaxBoardNameLength = 120

	// MaxTeamNameLength is the maximum length of a trimmed team name, in characters.
	MaxTeamNameLength = 80
)

// BoardStatus is the lifecycle status of a board.
type BoardStatus string

const (
	BoardStatusActive  BoardStatus = "ACTIVE"
	BoardStatusDeleted BoardStatus = "DELETED"
)

// Board is a named canvas owned by a team.
type Board struct {
	TeamID      string      `json:"teamId"`
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Status      BoardStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	OwnerUserID string      `json:"ownerUserId,omitempty"`
}

// IsActive reports whether the board can be read, written and connected to.
func (b *Board) IsActive() bool {
	return b.Status == BoardStatusActive
}

// TrashedBoard is the shadow of a soft-deleted board, as listed in a team's trash.
type TrashedBoard struct {
	TeamID    string    `json:"teamId"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	DeletedAt time.Time `json:"deletedAt"`
}

// Team owns boards and members.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Role is a team member's role.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleMember
}

// Member is a user's membership of a team.
type Member struct {
	TeamID   string    `json:"teamId"`
	UserID   string    `json:"userId"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// NormalizeBoardName trims name and checks it is between 1 and
// [MaxBoardNameLength] characters. The error wraps [ErrInvalidInput].
func NormalizeBoardName(name string) (string, error) {
	return normalizeName("board", name, MaxBoardNameLength)
}

// NormalizeTeamName trims name and checks it is between 1 and
// [MaxTeamNameLength] characters. The error wraps [ErrInvalidInput].
func NormalizeTeamName(name string) (string, error) {
	return normalizeName("team", name, MaxTeamNameLength)
}

func normalizeName(kind, name string, maxLength int) (string, error) {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return "", fmt.Errorf("%w: %s name cannot be empty", ErrInvalidInput, kind)
	}

	if utf8.RuneCountInString(trimmed) > maxLength {
		return "", fmt.Errorf("%w: %s name must be %d characters or fewer", ErrInvalidInput, kind, maxLength)
	}

	return trimmed, nil
}
