package armature

import (
	"sort"

	"github.com/google/uuid"
)

// RoleKind names the part a generated entity plays for its owner.
type RoleKind string

// Registry role kinds.
const (
	RoleIKTarget          RoleKind = "ik_target"
	RolePoleTarget        RoleKind = "pole_target"
	RoleIKConstraint      RoleKind = "ik_constraint"
	RoleTwist             RoleKind = "twist"
	RoleTwistCopyLocation RoleKind = "twist_copy_location"
	RoleTwistCopyRotation RoleKind = "twist_copy_rotation"
	RoleTwistDampedTrack  RoleKind = "twist_damped_track"
)

// Role keys a generated entity by kind, owner and index.
type Role struct {
	Kind  RoleKind
	Owner uuid.UUID
	Index int
}

// Entry is one registry binding.
type Entry struct {
	Role   Role
	Entity uuid.UUID
}

// Registry maps roles to entity ids so re-running a generator finds what it
// made before without relying on names.
type Registry struct {
	entries map[Role]uuid.UUID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Role]uuid.UUID)}
}

// Lookup returns the entity bound to role.
func (r *Registry) Lookup(role Role) (uuid.UUID, bool) {
	id, ok := r.entries[role]
	return id, ok
}

// Bind binds role to entity, replacing any previous binding.
func (r *Registry) Bind(role Role, entity uuid.UUID) {
	r.entries[role] = entity
}

// Forget removes the binding for role.
func (r *Registry) Forget(role Role) {
	delete(r.entries, role)
}

// Len returns the number of bindings.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Entries returns all bindings in a stable order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for role, id := range r.entries {
		out = append(out, Entry{Role: role, Entity: id})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Role, out[j].Role
		if a.Owner != b.Owner {
			return a.Owner.String() < b.Owner.String()
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Index < b.Index
	})
	return out
}
