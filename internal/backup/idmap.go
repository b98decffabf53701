// Package backup holds backup-local building blocks: the per-restore
// identifier map and the signed manifest representation.
package backup

import "github.com/gofrs/uuid/v5"

// IDMap translates backup-local identifier strings to freshly minted
// platform identifiers. One instance is scoped to a single restore
// invocation and discarded afterwards; it is never shared across requests.
// The three mappings are independent: a category, a role and a channel may
// legally carry the same backup-local id.
type IDMap struct {
	categories map[string]uuid.UUID
	roles      map[string]uuid.UUID
	channels   map[string]uuid.UUID
}

// NewIDMap returns an empty identifier map.
func NewIDMap() *IDMap {
	return &IDMap{
		categories: make(map[string]uuid.UUID),
		roles:      make(map[string]uuid.UUID),
		channels:   make(map[string]uuid.UUID),
	}
}

// SetCategory records a category mapping.
func (m *IDMap) SetCategory(localID string, id uuid.UUID) { m.categories[localID] = id }

// SetRole records a role mapping.
func (m *IDMap) SetRole(localID string, id uuid.UUID) { m.roles[localID] = id }

// SetChannel records a channel mapping.
func (m *IDMap) SetChannel(localID string, id uuid.UUID) { m.channels[localID] = id }

// Category resolves a backup-local category id. A missing entry means the
// source category was dropped or invalid; dependents degrade, not error.
func (m *IDMap) Category(localID string) (uuid.UUID, bool) {
	id, ok := m.categories[localID]
	return id, ok
}

// Role resolves a backup-local role id.
func (m *IDMap) Role(localID string) (uuid.UUID, bool) {
	id, ok := m.roles[localID]
	return id, ok
}

// Channel resolves a backup-local channel id.
func (m *IDMap) Channel(localID string) (uuid.UUID, bool) {
	id, ok := m.channels[localID]
	return id, ok
}

// Channels returns a copy of the channel mapping for the restore response.
func (m *IDMap) Channels() map[string]uuid.UUID {
	out := make(map[string]uuid.UUID, len(m.channels))
	for k, v := range m.channels {
		out[k] = v
	}
	return out
}
