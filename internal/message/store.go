package message

import "context"

// Store owns the canonical message collection. Exactly one message exists
// per id, ids are never reused, and no caller mutates a stored message in
// place.
//
// MemoryStore and PostgresStore satisfy the same contract; they differ only
// in persistence, List ordering (insertion order vs store-determined) and
// whether ErrStoreUnavailable can occur.
type Store interface {
	// Create assigns a fresh id, inserts the message and returns the
	// stored snapshot. Fails with a ValidationError if name or content is
	// empty.
	Create(ctx context.Context, name, content string) (Message, error)

	// Get returns the current snapshot for id, or ErrNotFound.
	Get(ctx context.Context, id string) (Message, error)

	// List returns snapshots of all current messages.
	List(ctx context.Context) ([]Message, error)

	// Update replaces the content of the message with the given id, and
	// its name too when name is non-empty. Returns the new snapshot, or
	// ErrNotFound.
	Update(ctx context.Context, id, content, name string) (Message, error)

	// Delete removes the message and returns its id for confirmation, or
	// ErrNotFound.
	Delete(ctx context.Context, id string) (string, error)
}

// validateNew checks the required fields for a new message.
func validateNew(name, content string) error {
	if name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if content == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	return nil
}
