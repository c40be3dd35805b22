// Package reward defines one-time task claims and storage purchases.
package reward

import "time"

// TaskClaim marks a task reward as consumed for a user. A (user, task) pair
// can be claimed at most once.
type TaskClaim struct {
	ID        string
	UserID    int64
	Task      string
	Amount    int64
	CreatedAt time.Time
}

// Storage tracks purchased storage capacity per user.
type Storage struct {
	UserID    int64
	Capacity  int64
	UpdatedAt time.Time
}
