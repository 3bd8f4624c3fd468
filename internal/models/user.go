package models

import "time"

// User mirrors an identity-provider account and carries the freeze balance.
type User struct {
	ID            string    `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"`
	StreakFreezes int       `json:"streak_freezes" db:"streak_freezes"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
