package model

import "time"

// TagCount is the number of todos carrying one tag on a given day.
type TagCount struct {
	TagID   string `json:"tag_id"`
	TagName string `json:"tag_name,omitempty"`
	Count   int    `json:"count"`
}

// DailyStat is the server-computed aggregate for one user and one day.
// It is never created locally, only cached.
type DailyStat struct {
	UserID            string     `json:"user_id"`
	Date              string     `json:"date"`
	ProductivityScore float64    `json:"productivity_score"`
	BalanceScore      float64    `json:"balance_score"`
	BalanceNarrative  string     `json:"balance_narrative"`
	TagCounts         []TagCount `json:"tag_counts"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
