// Package store provides the per-type inverted indexes (Bleve) and the
// document store (SQLite) backing cross-module search.
//
// The document store is the source of truth for searchable projections;
// inverted-index entries that have no matching document row are orphans and
// are filtered out during result enrichment.
package store

import (
	"context"
	"time"
)

// ContentType identifies which kind of personal content a document belongs to.
type ContentType string

const (
	TypeNote          ContentType = "note"
	TypeDocument      ContentType = "document"
	TypeTask          ContentType = "task"
	TypeJournalEntry  ContentType = "journal_entry"
	TypeArchiveItem   ContentType = "archive_item"
	TypeArchiveFolder ContentType = "archive_folder"
	TypeProject       ContentType = "project"
)

// AllTypes returns every indexable content type in stable order.
func AllTypes() []ContentType {
	return []ContentType{
		TypeNote,
		TypeDocument,
		TypeTask,
		TypeJournalEntry,
		TypeArchiveItem,
		TypeArchiveFolder,
		TypeProject,
	}
}

// Valid reports whether t is a known content type.
func (t ContentType) Valid() bool {
	switch t {
	case TypeNote, TypeDocument, TypeTask, TypeJournalEntry,
		TypeArchiveItem, TypeArchiveFolder, TypeProject:
		return true
	}
	return false
}

// IndexFields is the full replacement payload a CRUD collaborator supplies
// on create/update. Tags are deliberately absent: the synchronizer fetches
// the current tag set itself, since tag changes can be concurrent with
// content changes.
type IndexFields struct {
	Title    string
	Body     string
	Filename string
	Location string
	// Extra carries additional type-specific searchable text.
	Extra []string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	IsFavorite bool
	IsArchived bool

	// Post-filter attributes; never used for relevance scoring.
	MimeFamily string
	Status     string
	Priority   int
	SizeBytes  int64
}

// Document is the searchable projection of one primary record, as held by
// the document store. Exactly one Document exists per (Type, ID).
type Document struct {
	Type  ContentType
	ID    string
	Owner string

	Title    string
	Preview  string
	TagsText string
	Filename string
	Location string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	IsFavorite bool
	IsArchived bool

	MimeFamily string
	Status     string
	Priority   int
	SizeBytes  int64
}

// Tags returns the document's tag names, derived from the space-joined
// TagsText the synchronizer maintains.
func (d *Document) Tags() []string {
	return splitTags(d.TagsText)
}

// IndexEntry is what gets written into a type's inverted index.
type IndexEntry struct {
	ID       string
	Owner    string
	Title    string
	Body     string
	TagsText string
	// ExtraText joins filename, location, and any extra searchable fields.
	ExtraText string
	UpdatedAt time.Time
}

// RankedHit is one candidate from a type index query. RawScore is always
// higher-is-better: backends whose native scale is lower-is-better (such as
// SQLite FTS5 bm25()) must invert before returning.
type RankedHit struct {
	ID       string
	RawScore float64
}

// Suggestion is one typeahead completion with its index score.
type Suggestion struct {
	Text  string
	Score float64
}

// TypeIndex is one content type's inverted index. Only the synchronizer
// mutates it; queries are owner-scoped reads.
type TypeIndex interface {
	// Index fully replaces the entry for entry.ID.
	Index(ctx context.Context, entry *IndexEntry) error

	// Delete removes the entry for id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// Rank returns up to limit owner-scoped candidates ordered best-first,
	// ties broken by updated_at descending then id ascending.
	Rank(ctx context.Context, owner, query string, limit int) ([]*RankedHit, error)

	// SuggestTitles returns title completions for the given prefix.
	SuggestTitles(ctx context.Context, owner, prefix string, limit int) ([]*Suggestion, error)

	// DocCount returns the number of indexed entries.
	DocCount() (uint64, error)

	// Close releases index resources.
	Close() error
}

// TagSource yields the current, canonical tag set for a record. The
// synchronizer consults it on every replacement rather than trusting a
// caller-supplied snapshot.
type TagSource interface {
	// TagsFor returns the record's tag names sorted by name.
	TagsFor(ctx context.Context, owner string, typ ContentType, id string) ([]string, error)
}
