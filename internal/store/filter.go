package store

import "time"

// TaskFilter selects tasks for a single owner. OwnerID is mandatory:
// every task query is scoped by it, which is what makes cross-user
// access impossible at this layer. Nil pointers mean "filter not
// applied"; time bounds are inclusive.
type TaskFilter struct {
	OwnerID   string
	ID        string
	Completed *bool
	StartFrom *time.Time
	EndTo     *time.Time
}

// UserFilter selects users by identifier, mobile, or email. Empty
// fields are ignored; multiple set fields are combined with AND.
type UserFilter struct {
	ID     string
	Mobile string
	Email  string
}

// IsZero reports whether no user criteria were supplied.
func (f UserFilter) IsZero() bool {
	return f.ID == "" && f.Mobile == "" && f.Email == ""
}
