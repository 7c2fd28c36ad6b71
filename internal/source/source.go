// Package source persists the registry of knowledge sources: which sites,
// documents and snippets each organization has ingested, together with the
// crawl bookkeeping needed for incremental re-ingestion.
//
// The registry is the system of record; vectors in the index always belong
// to exactly one registered source and are removed before the source is
// marked deleted.
package source

import (
	"errors"
	"time"

	"github.com/beaconchat/beacon/internal/tenant"
)

// Kind of a knowledge source, matching the CHECK constraint on the table.
type Kind string

const (
	KindWeb  Kind = "web"
	KindPDF  Kind = "pdf"
	KindDocx Kind = "docx"
	KindXlsx Kind = "xlsx"
	KindText Kind = "text"
)

// Status of a knowledge source. Deleted sources stay in the table for
// auditability; their vectors are gone.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// ErrNotFound is returned when no source matches the lookup.
var ErrNotFound = errors.New("source not found")

// Source is one registered knowledge source.
type Source struct {
	ID       int64
	Scope    tenant.Scope
	Kind     Kind
	Name     string
	URL      string // web sources: normalized start URL
	Filename string // document sources: original filename

	Status Status

	// Crawl bookkeeping, meaningful for web sources only.
	CrawlCache   []byte // JSON page cache from the last crawl
	PagesScanned int
	PagesChanged int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsWeb reports whether the source is re-crawlable.
func (s *Source) IsWeb() bool {
	return s.Kind == KindWeb
}

// OwnedBy reports whether the source belongs to the given scope's
// organization. Deletion and re-ingestion require ownership.
func (s *Source) OwnedBy(scope tenant.Scope) bool {
	return s.Scope.OrgID == scope.OrgID
}
