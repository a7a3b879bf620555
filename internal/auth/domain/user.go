package domain

import "time"

type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string // argon2 encoded
	TFAEnabled   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
