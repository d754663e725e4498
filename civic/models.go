// Package civic defines the wire models shared by the civicsync stores.
//
// Field names mirror the JSON produced by the reporting service; the client
// treats responses as opaque beyond the fields it reads.
package civic

import "time"

// User identifies an authenticated reporter.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Issue statuses as reported by the service. New issues always start
// as StatusPending.
const (
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusResolved   = "Resolved"
	StatusRejected   = "Rejected"
)

// Categories accepted by the service for new issues.
var Categories = []string{"Road", "Water", "Sanitation", "Electricity", "Other"}

// Issue is a reported civic issue. List, detail, and map responses all use
// this shape; map items additionally carry Latitude/Longitude.
type Issue struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	Location    string    `json:"location"`
	Latitude    float64   `json:"latitude,omitempty"`
	Longitude   float64   `json:"longitude,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	VoteCount   int       `json:"voteCount"`
	Author      *User     `json:"author,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OwnedBy reports whether the issue was created by the given user.
func (i Issue) OwnedBy(u *User) bool {
	return u != nil && i.Author != nil && i.Author.ID == u.ID
}

// CategoryCount is one row of the per-category issue count aggregate.
// The service emits the grouping key as "_id".
type CategoryCount struct {
	Category string `json:"_id"`
	Count    int    `json:"count"`
}

// DailyCount is one row of the daily submissions aggregate. Date is the
// grouping key formatted as YYYY-MM-DD.
type DailyCount struct {
	Date  string `json:"_id"`
	Count int    `json:"count"`
}

// CategoryMax is one row of the most-voted-per-category aggregate.
type CategoryMax struct {
	Category string `json:"_id"`
	MaxVotes int    `json:"maxVotes"`
}
