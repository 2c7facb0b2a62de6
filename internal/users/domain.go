package users

import (
	"time"

	"github.com/hrconnect/hrconnect/internal/rbac"
)

// User is an account as seen by role administration.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      rbac.Role `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assignment is the outcome of changing a user's stored role.
type Assignment struct {
	UserID int64     `json:"user_id"`
	From   rbac.Role `json:"from"`
	To     rbac.Role `json:"to"`
}

// Changed reports whether the assignment altered the stored role.
func (a Assignment) Changed() bool {
	return a.From != a.To
}
