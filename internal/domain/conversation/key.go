package conversation

import (
	"errors"
	"strings"
)

// Separator joins the two participant ids of a key. Participant ids must never contain it.
const Separator = "_"

var (
	ErrParticipantRequired = errors.New("conversation: participant id is required")
	ErrInvalidParticipant  = errors.New("conversation: participant id contains separator")
	ErrSelfConversation    = errors.New("conversation: participants must differ")
	ErrInvalidKey          = errors.New("conversation: malformed key")
)

// Key identifies the conversation between an unordered pair of participants.
type Key string

// DeriveKey returns the canonical key for a and b. DeriveKey(a, b) == DeriveKey(b, a).
func DeriveKey(a, b string) (Key, error) {
	if err := ValidateParticipant(a); err != nil {
		return "", err
	}
	if err := ValidateParticipant(b); err != nil {
		return "", err
	}
	if a == b {
		return "", ErrSelfConversation
	}
	if b < a {
		a, b = b, a
	}
	return Key(a + Separator + b), nil
}

// ValidateParticipant reports whether id can take part in a key.
func ValidateParticipant(id string) error {
	if id == "" {
		return ErrParticipantRequired
	}
	if strings.Contains(id, Separator) {
		return ErrInvalidParticipant
	}
	return nil
}

// Participants splits the key back into its two ids, smaller first.
func (k Key) Participants() (string, string, error) {
	first, second, ok := strings.Cut(string(k), Separator)
	if !ok || first == "" || second == "" || strings.Contains(second, Separator) || first >= second {
		return "", "", ErrInvalidKey
	}
	return first, second, nil
}

// Has reports whether id is one of the key's participants.
func (k Key) Has(id string) bool {
	a, b, err := k.Participants()
	if err != nil {
		return false
	}
	return id == a || id == b
}

func (k Key) String() string {
	return string(k)
}
