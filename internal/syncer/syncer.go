// Package syncer keeps the per-type inverted indexes and the document
// store consistent with primary content mutations.
//
// CRUD modules call NotifyChange inside their own transaction boundary:
// an error return means the index replacement did not happen and the
// caller must roll its mutation back. There is no partial success.
package syncer

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	pkmserr "github.com/ashishacharya123/PKMS-sub000/internal/errors"
	"github.com/ashishacharya123/PKMS-sub000/internal/store"
)

// previewMaxRunes bounds the stored result snippet.
const previewMaxRunes = 200

// lockStripes is the number of per-record mutex stripes. Concurrent
// notifications for different records proceed in parallel; notifications
// for the same (type, id) serialize.
const lockStripes = 64

// Stores is the subset of the index set the synchronizer mutates.
type Stores interface {
	Index(typ store.ContentType) (store.TypeIndex, error)
	Documents() *store.SQLiteStore
}

// Syncer applies full-replacement index updates for primary mutations.
type Syncer struct {
	stores Stores
	tags   store.TagSource
	logger *slog.Logger

	locks [lockStripes]sync.Mutex
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger used for sync telemetry.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) { s.logger = logger }
}

// New creates a Syncer over the given stores. Tags are always fetched from
// tagSource at notification time, never taken from the caller's payload,
// since tag edits can race content edits.
func New(stores Stores, tagSource store.TagSource, opts ...Option) *Syncer {
	s := &Syncer{
		stores: stores,
		tags:   tagSource,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotifyChange fully replaces the searchable projection of one record.
// A nil fields payload means the record was deleted. The update is
// all-or-nothing: on error the document row is rolled back and the caller
// must abort its own mutation.
func (s *Syncer) NotifyChange(ctx context.Context, typ store.ContentType, id, owner string, fields *store.IndexFields) error {
	if !typ.Valid() {
		return pkmserr.New(pkmserr.ErrCodeSyncUnknownType,
			fmt.Sprintf("unknown content type %q", typ), nil)
	}
	if id == "" || owner == "" {
		return pkmserr.SyncFailure("record id and owner are required", nil)
	}

	lock := &s.locks[stripeFor(typ, id)]
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	var err error
	if fields == nil {
		err = s.remove(ctx, typ, id)
	} else {
		err = s.replace(ctx, typ, id, owner, fields)
	}
	if err != nil {
		s.logger.Warn("sync_failed",
			slog.String("type", string(typ)),
			slog.String("id", id),
			slog.String("error", err.Error()))
		return err
	}

	s.logger.Debug("sync_applied",
		slog.String("type", string(typ)),
		slog.String("id", id),
		slog.Bool("deleted", fields == nil),
		slog.Duration("took", time.Since(start)))
	return nil
}

func (s *Syncer) replace(ctx context.Context, typ store.ContentType, id, owner string, fields *store.IndexFields) error {
	tagNames, err := s.tags.TagsFor(ctx, owner, typ, id)
	if err != nil {
		return pkmserr.New(pkmserr.ErrCodeTagFetchFailure,
			fmt.Sprintf("fetch tags for %s/%s", typ, id), err)
	}
	tagsText := store.JoinTags(tagNames)

	idx, err := s.stores.Index(typ)
	if err != nil {
		return err
	}

	tx, err := s.stores.Documents().BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	doc := &store.Document{
		Type:       typ,
		ID:         id,
		Owner:      owner,
		Title:      fields.Title,
		Preview:    store.Preview(fields.Body, previewMaxRunes),
		TagsText:   tagsText,
		Filename:   fields.Filename,
		Location:   fields.Location,
		CreatedAt:  fields.CreatedAt,
		UpdatedAt:  fields.UpdatedAt,
		IsFavorite: fields.IsFavorite,
		IsArchived: fields.IsArchived,
		MimeFamily: fields.MimeFamily,
		Status:     fields.Status,
		Priority:   fields.Priority,
		SizeBytes:  fields.SizeBytes,
	}
	if err := tx.Put(ctx, doc); err != nil {
		return err
	}

	entry := &store.IndexEntry{
		ID:        id,
		Owner:     owner,
		Title:     fields.Title,
		Body:      fields.Body,
		TagsText:  tagsText,
		ExtraText: extraText(fields),
		UpdatedAt: fields.UpdatedAt,
	}
	if err := idx.Index(ctx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Syncer) remove(ctx context.Context, typ store.ContentType, id string) error {
	idx, err := s.stores.Index(typ)
	if err != nil {
		return err
	}

	tx, err := s.stores.Documents().BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.Delete(ctx, typ, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	// After the commit the worst a failed index delete can leave is an
	// orphaned entry, which search enrichment filters out.
	return idx.Delete(ctx, id)
}

// extraText folds filename, location, and type-specific extras into the
// low-boost searchable field.
func extraText(fields *store.IndexFields) string {
	parts := make([]string, 0, len(fields.Extra)+2)
	if fields.Filename != "" {
		parts = append(parts, fields.Filename)
	}
	if fields.Location != "" {
		parts = append(parts, fields.Location)
	}
	for _, e := range fields.Extra {
		if e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, " ")
}

func stripeFor(typ store.ContentType, id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(typ))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % lockStripes)
}
