// Package model defines domain entities for the application.
package model

import "time"

// UserAccount is a locally registered credential.
// Identity is the lookup key and is compared byte-for-byte.
type UserAccount struct {
	ID           string    `json:"id"`
	Identity     string    `json:"identity"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
