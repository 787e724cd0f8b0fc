package user

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// HasEmail and HasPhone report whether the user can be reached on that channel.
func (u *User) HasEmail() bool { return u != nil && u.Email != "" }

func (u *User) HasPhone() bool { return u != nil && u.Phone != "" }
