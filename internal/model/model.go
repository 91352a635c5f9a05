package model

import "time"

type Role string

const (
	RoleUser       Role = "user"
	RoleSuperAdmin Role = "superadmin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleSuperAdmin
}

type Origin string

const (
	OriginManual Origin = "manual"
	OriginGoogle Origin = "google"
)

// Account is a user or superadmin credential record. Email is unique per role.
type Account struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	SchoolName   string    `json:"schoolName"`
	Suspended    bool      `json:"isSuspended"`
	Origin       Origin    `json:"authType"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Identity is the numeric role marker the frontend routes on: 0 user, 1 admin.
func (a Account) Identity() int {
	if a.Role == RoleSuperAdmin {
		return 1
	}
	return 0
}

// AccountPatch lists the mutable profile fields; nil means unchanged.
type AccountPatch struct {
	PasswordHash *string
	Name         *string
	SchoolName   *string
	Suspended    *bool
}

func (p AccountPatch) Apply(a *Account) {
	if p.PasswordHash != nil {
		a.PasswordHash = *p.PasswordHash
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.SchoolName != nil {
		a.SchoolName = *p.SchoolName
	}
	if p.Suspended != nil {
		a.Suspended = *p.Suspended
	}
}

type Record struct {
	ID        string    `json:"_id"`
	OwnerID   string    `json:"userId"`
	Entries   []Entry   `json:"data"`
	FileName  string    `json:"fileName,omitempty"`
	SourceKey string    `json:"sourceKey,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type RecordSummary struct {
	ID        string    `json:"_id"`
	OwnerID   string    `json:"userId"`
	FileName  string    `json:"fileName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type TicketStatus string

const (
	TicketPending  TicketStatus = "Pending"
	TicketResolved TicketStatus = "Resolved"
	TicketRejected TicketStatus = "Rejected"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketPending, TicketResolved, TicketRejected:
		return true
	default:
		return false
	}
}

type Ticket struct {
	ID          string       `json:"_id"`
	SubmitterID string       `json:"userId"`
	Message     string       `json:"message"`
	Status      TicketStatus `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
}

type TrafficDay struct {
	Day   time.Time `json:"date"`
	Count int64     `json:"count"`
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
