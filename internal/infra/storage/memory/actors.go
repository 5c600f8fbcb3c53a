package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"direct-messaging/internal/domain/conversation"
	"direct-messaging/internal/domain/directory"
)

// ActorRegistry is an in-memory directory and token table.
type ActorRegistry struct {
	mu      sync.RWMutex
	byID    map[string]directory.Entry
	byToken map[string]string
}

func NewActorRegistry() *ActorRegistry {
	return &ActorRegistry{
		byID:    make(map[string]directory.Entry),
		byToken: make(map[string]string),
	}
}

// Save adds or replaces entry. A non-empty token signs the entry in.
func (r *ActorRegistry) Save(entry directory.Entry, token string) error {
	entry.ID = strings.TrimSpace(entry.ID)
	entry.UID = strings.TrimSpace(entry.UID)
	if entry.ID == "" {
		return errors.New("directory: id is required")
	}
	if entry.UID != "" {
		if err := conversation.ValidateParticipant(entry.UID); err != nil {
			return fmt.Errorf("directory entry %s: %w", entry.ID, err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[entry.ID] = entry
	if token = strings.TrimSpace(token); token != "" {
		r.byToken[token] = entry.ID
	}
	return nil
}

func (r *ActorRegistry) ListOthers(ctx context.Context, excludingUID string) ([]directory.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]directory.Entry, 0, len(r.byID))
	for _, e := range r.byID {
		if excludingUID != "" && e.UID == excludingUID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *ActorRegistry) ByID(ctx context.Context, id string) (directory.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return directory.Entry{}, directory.ErrNotFound
	}
	return e, nil
}

func (r *ActorRegistry) CurrentActor(ctx context.Context, token string) (directory.Actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byToken[token]
	if !ok {
		return directory.Actor{}, false
	}
	e := r.byID[id]
	if e.UID == "" {
		return directory.Actor{}, false
	}
	return directory.Actor{ID: e.UID, DisplayName: e.DisplayName, PhotoURL: e.PhotoURL}, true
}

type actorFixture struct {
	ID          string `json:"id"`
	UID         string `json:"uid"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photo_url"`
	Token       string `json:"token"`
}

// LoadFixtures imports actors from a JSON file. A missing file is not an error.
func (r *ActorRegistry) LoadFixtures(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		return 0, nil
	}
	var fixtures []actorFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return 0, fmt.Errorf("decode fixtures: %w", err)
	}
	loaded := 0
	for _, fx := range fixtures {
		entry := directory.Entry{
			ID:          fx.ID,
			UID:         fx.UID,
			Name:        fx.Name,
			DisplayName: fx.DisplayName,
			Email:       fx.Email,
			PhotoURL:    fx.PhotoURL,
		}
		if err := r.Save(entry, fx.Token); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

var (
	_ directory.Directory = (*ActorRegistry)(nil)
	_ directory.Identity  = (*ActorRegistry)(nil)
)
