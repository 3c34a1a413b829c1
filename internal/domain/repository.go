package domain

import "time"

// Repository represents a registered public GitHub repository.
type Repository struct {
	ID            string     `json:"id"            db:"id"`
	UserID        string     `json:"user_id"       db:"user_id"`
	URL           string     `json:"url"           db:"url"`
	Owner         string     `json:"owner"         db:"owner"`
	Name          string     `json:"name"          db:"name"`
	DefaultBranch string     `json:"default_branch" db:"default_branch"`
	LastScannedAt *time.Time `json:"last_scanned_at" db:"last_scanned_at"`
	CreatedAt     time.Time  `json:"created_at"    db:"created_at"`
}
