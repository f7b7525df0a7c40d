package domain

// MigrationWildcard matches every event type when used in
// Migration.EventTypes.
const MigrationWildcard = "*"

// Migration is a destructive, batch rewrite of stored event data to a new
// schema. Unlike an upcaster it does change storage, and is the one
// sanctioned exception to store immutability.
type Migration struct {
	// EventTypes lists the event types the migration applies to. A single
	// MigrationWildcard entry applies it to all types.
	EventTypes []string
	// Transform rewrites the event's data and metadata. Returning an error
	// skips the event and records it in the batch result.
	Transform func(event StoredEvent) (StoredEvent, error)
}

// Matches reports whether the migration applies to eventType.
func (m Migration) Matches(eventType string) bool {
	for _, t := range m.EventTypes {
		if t == MigrationWildcard || t == eventType {
			return true
		}
	}
	return false
}

// MigrationFilter narrows which stored events a MigrateEvents run rewrites.
// Zero values leave the corresponding dimension unconstrained.
type MigrationFilter struct {
	AggregateID   string
	AggregateType string
	BeforeVersion uint
}

// MigrationError records a single event that could not be migrated.
type MigrationError struct {
	EventID string
	Err     error
}

// MigrationResult summarizes a best-effort migration batch: how many events
// were rewritten and which ones failed. Per-event failures never abort the
// batch.
type MigrationResult struct {
	Migrated int
	Errors   []MigrationError
}
