package models

import "github.com/google/uuid"

// ensureID assigns a v4 id before insert. Postgres also defaults to gen_random_uuid(),
// but assigning it here keeps ids available to the caller before commit and on sqlite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
