package models

import "github.com/google/uuid"

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID           uuid.UUID
	Name         string
	Role         UserRole
	DepartmentID *uuid.UUID
	IsActive     bool
}

func (a Actor) IsManager() bool {
	return a.Role == RoleManager
}
