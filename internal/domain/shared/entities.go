package shared

import (
	"github.com/google/uuid"
)

// User is the read-only view of a marketplace user. Account management
// lives outside this service; only lookups are performed here.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
}
