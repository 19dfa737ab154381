package models

import "time"

// ResponseChoice is the answer an invitee gives to an event.
type ResponseChoice string

const (
	ResponseRegistered ResponseChoice = "registered"
	ResponseDeclined   ResponseChoice = "declined"
)

// Valid reports whether c is a known choice.
func (c ResponseChoice) Valid() bool {
	return c == ResponseRegistered || c == ResponseDeclined
}

// ResponseCounts holds the three RSVP buckets of an event.
type ResponseCounts struct {
	Registered int `db:"registered" json:"registered"`
	Declined   int `db:"declined" json:"declined"`
	NoResponse int `db:"no_response" json:"noResponse"`
}

// Total is the number of invitees accounted for by the buckets.
func (c ResponseCounts) Total() int {
	return c.Registered + c.Declined + c.NoResponse
}

// Move returns the counts after an invitee changes from prior (nil meaning no
// response yet) to next. It reports false when the source bucket is empty,
// which would indicate corrupted counts.
func (c ResponseCounts) Move(prior *ResponseChoice, next ResponseChoice) (ResponseCounts, bool) {
	out := c
	switch {
	case prior == nil:
		out.NoResponse--
	case *prior == ResponseRegistered:
		out.Registered--
	case *prior == ResponseDeclined:
		out.Declined--
	}
	switch next {
	case ResponseRegistered:
		out.Registered++
	case ResponseDeclined:
		out.Declined++
	}
	if out.Registered < 0 || out.Declined < 0 || out.NoResponse < 0 {
		return c, false
	}
	return out, true
}

// EventItem is a class event collecting RSVP responses.
type EventItem struct {
	ID                  string          `db:"id" json:"id"`
	ClassID             string          `db:"class_id" json:"classId"`
	Title               string          `db:"title" json:"title"`
	Description         string          `db:"description" json:"description"`
	Location            string          `db:"location" json:"location"`
	StartsAt            time.Time       `db:"starts_at" json:"startsAt"`
	SignupEndsAt        *time.Time      `db:"signup_ends_at" json:"signupEndsAt,omitempty"`
	Capacity            *int            `db:"capacity" json:"capacity,omitempty"`
	Closed              bool            `db:"closed" json:"closed"`
	ResponseCounts      ResponseCounts  `db:"-" json:"responseCounts"`
	TotalInvitees       int             `db:"total_invitees" json:"totalInvitees"`
	CheckedIn           int             `db:"checked_in" json:"checkedIn"`
	CurrentUserResponse *ResponseChoice `db:"-" json:"currentUserResponse"`
	CreatedBy           string          `db:"created_by" json:"createdBy"`
	Version             int64           `db:"version" json:"version"`
	CreatedAt           time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updatedAt"`
}

// AcceptsResponses reports whether the event is still open for RSVPs at now.
func (e EventItem) AcceptsResponses(now time.Time) bool {
	if e.Closed {
		return false
	}
	if e.SignupEndsAt != nil && now.After(*e.SignupEndsAt) {
		return false
	}
	return true
}

// EventResponse stores one invitee's current answer.
type EventResponse struct {
	EventID     string         `db:"event_id" json:"eventId"`
	UserID      string         `db:"user_id" json:"userId"`
	Choice      ResponseChoice `db:"choice" json:"choice"`
	RespondedAt time.Time      `db:"responded_at" json:"respondedAt"`
}

// EventAttendance records a registered invitee checking in at the event.
type EventAttendance struct {
	EventID     string    `db:"event_id" json:"eventId"`
	UserID      string    `db:"user_id" json:"userId"`
	CheckedInAt time.Time `db:"checked_in_at" json:"checkedInAt"`
}
