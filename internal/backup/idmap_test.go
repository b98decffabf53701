package backup

import (
	"testing"

	"github.com/gofrs/uuid/v5"
)

func TestIDMap_NamespacesAreIndependent(t *testing.T) {
	t.Parallel()
	m := NewIDMap()

	catID := uuid.Must(uuid.NewV4())
	roleID := uuid.Must(uuid.NewV4())
	chanID := uuid.Must(uuid.NewV4())

	// The same backup-local id may appear in all three namespaces.
	m.SetCategory("local-1", catID)
	m.SetRole("local-1", roleID)
	m.SetChannel("local-1", chanID)

	if id, ok := m.Category("local-1"); !ok || id != catID {
		t.Fatalf("category: got %v %v", id, ok)
	}
	if id, ok := m.Role("local-1"); !ok || id != roleID {
		t.Fatalf("role: got %v %v", id, ok)
	}
	if id, ok := m.Channel("local-1"); !ok || id != chanID {
		t.Fatalf("channel: got %v %v", id, ok)
	}
}

func TestIDMap_MissingEntries(t *testing.T) {
	t.Parallel()
	m := NewIDMap()
	if _, ok := m.Category("nope"); ok {
		t.Fatalf("unset category resolved")
	}
	if _, ok := m.Role("nope"); ok {
		t.Fatalf("unset role resolved")
	}
	if _, ok := m.Channel("nope"); ok {
		t.Fatalf("unset channel resolved")
	}
}

func TestIDMap_ChannelsReturnsCopy(t *testing.T) {
	t.Parallel()
	m := NewIDMap()
	id := uuid.Must(uuid.NewV4())
	m.SetChannel("c1", id)

	out := m.Channels()
	out["c1"] = uuid.Must(uuid.NewV4())
	out["c2"] = uuid.Must(uuid.NewV4())

	if got, _ := m.Channel("c1"); got != id {
		t.Fatalf("mutating the copy leaked into the map")
	}
	if _, ok := m.Channel("c2"); ok {
		t.Fatalf("mutating the copy leaked into the map")
	}
}
