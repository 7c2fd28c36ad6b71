// Package tenant defines the scope triple that partitions all ingested and
// retrieved data. Organization and widget identities are resolved upstream
// (API layer); the core only carries them through ingestion and retrieval.
package tenant

import "strconv"

// Scope identifies the owner of knowledge data: the organization, the widget
// within it, and optionally an end user. OrgID is mandatory for every
// mutation; WidgetID and UserID narrow queries further when set.
type Scope struct {
	OrgID    int64
	WidgetID string
	UserID   int64
}

// Valid reports whether the scope carries the mandatory organization id.
func (s Scope) Valid() bool {
	return s.OrgID > 0
}

// OrgKey returns the organization id in the string form used for vector
// index metadata.
func (s Scope) OrgKey() string {
	return strconv.FormatInt(s.OrgID, 10)
}

// UserKey returns the user id in string form, or "" when no user is set.
func (s Scope) UserKey() string {
	if s.UserID <= 0 {
		return ""
	}
	return strconv.FormatInt(s.UserID, 10)
}
