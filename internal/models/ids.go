package models

import "github.com/google/uuid"

// ensureID assigns a random UUID when the record has none yet.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
