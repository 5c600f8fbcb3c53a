package directory

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound    = errors.New("directory: actor not found")
	ErrUIDRequired = errors.New("directory: actor has no uid")
)

// FallbackName is shown for participants without any profile data.
const FallbackName = "User"

// Actor is the signed-in identity issuing reads and writes.
type Actor struct {
	ID          string
	DisplayName string
	PhotoURL    string
}

// Entry is a directory record. ID addresses the record, UID is the identity used in conversation keys.
type Entry struct {
	ID          string
	UID         string
	Name        string
	DisplayName string
	Email       string
	PhotoURL    string
}

// Label returns the name shown for the entry: profile name, then display name, then email, then FallbackName.
func (e Entry) Label() string {
	for _, candidate := range []string{e.Name, e.DisplayName, e.Email} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v
		}
	}
	return FallbackName
}

// Directory lists the actors a signed-in actor can message.
type Directory interface {
	ListOthers(ctx context.Context, excludingUID string) ([]Entry, error)
	ByID(ctx context.Context, id string) (Entry, error)
}

// Identity resolves an access token to the actor it belongs to.
type Identity interface {
	CurrentActor(ctx context.Context, token string) (Actor, bool)
}

// Roster indexes directory entries by UID.
type Roster map[string]Entry

// NewRoster builds a Roster from entries, skipping those without a UID.
func NewRoster(entries []Entry) Roster {
	r := make(Roster, len(entries))
	for _, e := range entries {
		if e.UID == "" {
			continue
		}
		r[e.UID] = e
	}
	return r
}

// NameOf returns the label of uid, or FallbackName when uid is unknown.
func (r Roster) NameOf(uid string) string {
	if e, ok := r[uid]; ok {
		return e.Label()
	}
	return FallbackName
}
