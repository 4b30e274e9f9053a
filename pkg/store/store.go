// Package store persists project documents.
//
// This package defines the [Store] interface with implementations for
// different backends:
//   - [MemoryStore]: in-process storage for tests and one-shot commands
//   - [FileStore]: one file per project in a directory (CLI default)
//   - store/redis: Redis-backed storage shared between instances
//   - store/mongo: MongoDB-backed storage
//
// All backends report a missing project as a NOT_FOUND error and validate
// project names with errors.ValidateProjectName before touching storage.
// [Instrument] wraps any store so its operations reach the registered
// observability hooks.
package store

import (
	"context"
	"time"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
	"github.com/matzehuels/framegraph/pkg/observability"
	"github.com/matzehuels/framegraph/pkg/project"
)

// Store persists project documents by name.
type Store interface {
	// Load returns the document stored under name.
	Load(ctx context.Context, name string) (*project.Document, error)

	// Save stores doc under doc.Name, replacing any previous version.
	Save(ctx context.Context, doc *project.Document) error

	// Delete removes the project called name.
	Delete(ctx context.Context, name string) error

	// List returns the names of all stored projects, sorted.
	List(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// NotFound returns the error every backend reports for a missing project.
func NotFound(name string) error {
	return fgerrors.New(fgerrors.ErrCodeNotFound, "project %q not found", name)
}

// CheckDocument validates a document before it is saved.
func CheckDocument(doc *project.Document) error {
	if doc == nil {
		return fgerrors.New(fgerrors.ErrCodeInvalidInput, "document must not be nil")
	}
	if err := fgerrors.ValidateProjectName(doc.Name); err != nil {
		return err
	}
	return doc.Validate()
}

// =============================================================================
// Instrumentation
// =============================================================================

type instrumented struct {
	Store
	backend string
}

// Instrument wraps s so each operation is reported to observability.Store()
// under the given backend name.
func Instrument(s Store, backend string) Store {
	return &instrumented{Store: s, backend: backend}
}

func (s *instrumented) observe(ctx context.Context, op string, start time.Time, err error) {
	observability.Store().OnStoreOp(ctx, s.backend, op, time.Since(start), err)
}

func (s *instrumented) Load(ctx context.Context, name string) (doc *project.Document, err error) {
	defer func(start time.Time) { s.observe(ctx, "load", start, err) }(time.Now())
	doc, err = s.Store.Load(ctx, name)
	return doc, err
}

func (s *instrumented) Save(ctx context.Context, doc *project.Document) (err error) {
	defer func(start time.Time) { s.observe(ctx, "save", start, err) }(time.Now())
	err = s.Store.Save(ctx, doc)
	return err
}

func (s *instrumented) Delete(ctx context.Context, name string) (err error) {
	defer func(start time.Time) { s.observe(ctx, "delete", start, err) }(time.Now())
	err = s.Store.Delete(ctx, name)
	return err
}

func (s *instrumented) List(ctx context.Context) (names []string, err error) {
	defer func(start time.Time) { s.observe(ctx, "list", start, err) }(time.Now())
	names, err = s.Store.List(ctx)
	return names, err
}
