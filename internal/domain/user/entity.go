package user

import (
	"time"

	"github.com/google/uuid"
)

// User is the part of an account the transfer flow needs.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	PinHash   string    `db:"pin_hash" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// HasPin reports whether a transaction PIN has been set.
func (u *User) HasPin() bool {
	return u.PinHash != ""
}
