// Package keys maps logical identifiers to the physical keys of the single
// DynamoDB table: partition keys, sort keys and the values of the three
// secondary indexes. Every entity kind is encoded with its own prefix so
// records sharing a partition never collide.
//
//	Team            pk=TEAM#<team>   sk=METADATA
//	Team member     pk=TEAM#<team>   sk=USER#<user>          gsi2=USER#<user> / TEAM#<team>
//	Board           pk=TEAM#<team>   sk=BOARD#<board>
//	Board trash     pk=TEAM#<team>   sk=BOARD#<board>#TRASH  gsi3=TEAM#<team>#TRASH / <deletedAt>#<board>
//	Element         pk=BOARD#<board> sk=ELEMENT#<element>    gsi1=BOARD#<board> / ELEMENT#<index:08d>
//	Session         pk=BOARD#<board> sk=SESSION#<conn>       gsi2=CONNECTION#<conn> / BOARD#<board>
//
// These formats are the durable contract of the table and must not change.
package keys

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	TeamPrefix       = "TEAM#"
	BoardPrefix      = "BOARD#"
	UserPrefix       = "USER#"
	ElementPrefix    = "ELEMENT#"
	SessionPrefix    = "SESSION#"
	ConnectionPrefix = "CONNECTION#"

	// TeamMetadataSK is the sort key of a team's metadata record.
	TeamMetadataSK = "METADATA"

	trashSuffix = "#TRASH"

	// elementIndexWidth is the zero padding of GSI1 sort keys, wide enough
	// for any index below MaxElementsPerBoard with room to spare.
	elementIndexWidth = 8
)

// TeamPK returns the partition key holding a team's metadata, members and boards.
func TeamPK(teamID string) string {
	return TeamPrefix + teamID
}

// TeamUserSK returns the sort key of a team member record.
func TeamUserSK(userID string) string {
	return UserPrefix + userID
}

// BoardSK returns the sort key of a board record within its team partition.
func BoardSK(boardID string) string {
	return BoardPrefix + boardID
}

// BoardTrashSK returns the sort key of a board's trash shadow record.
func BoardTrashSK(boardID string) string {
	return BoardPrefix + boardID + trashSuffix
}

// BoardPK returns the partition key holding a board's elements and sessions.
func BoardPK(boardID string) string {
	return BoardPrefix + boardID
}

// ElementSK returns the sort key of an element record.
func ElementSK(elementID string) string {
	return ElementPrefix + elementID
}

// SessionSK returns the sort key of a session record.
func SessionSK(connectionID string) string {
	return SessionPrefix + connectionID
}

// GSI1PK returns the GSI1 partition value of a board's elements.
func GSI1PK(boardID string) string {
	return BoardPrefix + boardID
}

// GSI1SK returns the GSI1 sort value for the element at position index.
// Zero padding makes lexicographic order equal numeric order.
func GSI1SK(index int) string {
	return fmt.Sprintf("%s%0*d", ElementPrefix, elementIndexWidth, index)
}

// GSI2PKUser returns the GSI2 partition value listing a user's teams.
func GSI2PKUser(userID string) string {
	return UserPrefix + userID
}

// GSI2SKTeam returns the GSI2 sort value of a membership.
func GSI2SKTeam(teamID string) string {
	return TeamPrefix + teamID
}

// GSI2PKConnection returns the GSI2 partition value locating a connection's session.
func GSI2PKConnection(connectionID string) string {
	return ConnectionPrefix + connectionID
}

// GSI2SKBoard returns the GSI2 sort value of a session.
func GSI2SKBoard(boardID string) string {
	return BoardPrefix + boardID
}

// GSI3PK returns the GSI3 partition value listing a team's trashed boards.
func GSI3PK(teamID string) string {
	return TeamPrefix + teamID + trashSuffix
}

// GSI3SK returns the GSI3 sort value of a trash record. Leading with the
// deletion time lets a descending query return the most recently trashed
// boards first.
func GSI3SK(deletedAt time.Time, boardID string) string {
	return FormatTime(deletedAt) + "#" + boardID
}

// FormatTime renders t the way every timestamp attribute is stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ValidateID checks that an identifier can be embedded in a key without
// breaking the prefix scheme.
func ValidateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s ID cannot be empty", kind)
	}

	if strings.Contains(id, "#") {
		return fmt.Errorf("%s ID cannot contain '#'", kind)
	}

	return nil
}

// BoardIDFromPK extracts the board id from a board partition key.
func BoardIDFromPK(pk string) (string, error) {
	boardID, ok := strings.CutPrefix(pk, BoardPrefix)
	if !ok || boardID == "" {
		return "", fmt.Errorf("%q is not a board partition key", pk)
	}

	return boardID, nil
}

// IsElementSK reports whether sk belongs to an element record.
func IsElementSK(sk string) bool {
	return strings.HasPrefix(sk, ElementPrefix)
}

// IsSessionSK reports whether sk belongs to a session record.
func IsSessionSK(sk string) bool {
	return strings.HasPrefix(sk, SessionPrefix)
}

// ElementIDFromSK extracts the element id from an element sort key.
func ElementIDFromSK(sk string) (string, error) {
	id, ok := strings.CutPrefix(sk, ElementPrefix)
	if !ok || id == "" {
		return "", errors.New("not an element sort key: " + sk)
	}

	return id, nil
}

// ConnectionIDFromSK extracts the connection id from a session sort key.
func ConnectionIDFromSK(sk string) (string, error) {
	id, ok := strings.CutPrefix(sk, SessionPrefix)
	if !ok || id == "" {
		return "", errors.New("not a session sort key: " + sk)
	}

	return id, nil
}
