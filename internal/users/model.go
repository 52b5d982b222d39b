package users

import "time"

// Roles an account can carry. Doctors review scored analyses, patients
// submit them.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

// User is an account keyed by email.
type User struct {
	Email        string
	Name         string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
}
