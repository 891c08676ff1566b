// Package catalog persists view definition records and guards schema
// changes; records live under <base>/<schema>/<name>.frm on any afs scheme.
package catalog

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/viewly/checksum"
	"github.com/viant/viewly/verror"
	"github.com/viant/viewly/view"
)

// Extension is the record file extension.
const Extension = ".frm"

// Mode selects the registration semantic.
type Mode int

const (
	//ModeCreate fails when a record already exists.
	ModeCreate Mode = iota
	//ModeAlter fails when no record exists.
	ModeAlter
	//ModeCreateOrReplace accepts both.
	ModeCreateOrReplace
)

// Kind classifies a catalog object without a full record parse.
type Kind int

const (
	KindNone Kind = iota
	KindTable
	KindView
)

// Service is the definition record codec bound to a storage location.
type Service struct {
	fs      afs.Service
	baseURL string
	lock    *SchemaLock
}

// New creates a catalog service.
func New(baseURL string, options ...Option) *Service {
	result := &Service{baseURL: baseURL, lock: &SchemaLock{}}
	for _, option := range options {
		option(result)
	}
	if result.fs == nil {
		result.fs = afs.New()
	}
	return result
}

// Option customizes a catalog service.
type Option func(*Service)

// WithFS supplies a storage service.
func WithFS(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// SchemaLock returns the process wide schema change lock; creation, replace
// and drop serialize on it.
func (s *Service) SchemaLock() *SchemaLock {
	return s.lock
}

// URL returns the record location of schema qualified name.
func (s *Service) URL(schema, name string) string {
	return url.Join(s.baseURL, schema, name+Extension)
}

// Store registers a definition under (schema, name). The revision counter is
// set to the reserved first value on initial registration, otherwise the
// prior record's revision is peeked and incremented. The write is atomic
// from a reader's perspective: content goes to a transient object first and
// is moved over the destination.
func (s *Service) Store(ctx context.Context, schema, name string, definition *view.Definition, mode Mode) error {
	recordURL := s.URL(schema, name)
	exists, err := s.fs.Exists(ctx, recordURL)
	if err != nil {
		return errors.Wrapf(err, "failed to check record %v", recordURL)
	}
	switch {
	case exists && mode == ModeCreate:
		return verror.New(verror.KindAlreadyExists, schema, name)
	case !exists && mode == ModeAlter:
		return verror.New(verror.KindNotFound, schema, name)
	}
	definition.Revision = view.FirstRevision
	if exists {
		prior, err := s.fs.DownloadWithURL(ctx, recordURL)
		if err != nil {
			return errors.Wrapf(err, "failed to read prior record %v", recordURL)
		}
		if !bytes.HasPrefix(prior, []byte(TypeMarker)) {
			return verror.New(verror.KindTypeMismatch, schema, name)
		}
		if revision, ok := PeekRevision(prior); ok {
			definition.Revision = revision + 1
		} else {
			//a legacy record without a readable revision still replaced an
			//existing definition; never masquerade as a first registration
			definition.Revision = view.FirstRevision + 1
		}
	}
	if definition.FileVersion == 0 {
		definition.FileVersion = view.FileVersion
	}
	if definition.Timestamp.IsZero() {
		definition.Timestamp = time.Now().UTC().Truncate(time.Second)
	}
	//the transient object carries the destination file name under a hidden
	//sibling folder so the move targets the object itself, not a folder
	transientURL := url.Join(s.baseURL, schema, "."+uuid.New().String(), name+Extension)
	if err = s.fs.Upload(ctx, transientURL, file.DefaultFileOsMode, bytes.NewReader(Encode(definition))); err != nil {
		return errors.Wrapf(err, "failed to upload record %v", transientURL)
	}
	if err = s.fs.Move(ctx, transientURL, recordURL); err != nil {
		_ = s.fs.Delete(ctx, transientURL)
		return errors.Wrapf(err, "failed to move record to %v", recordURL)
	}
	return nil
}

// Load reads and decodes the record of (schema, name); a missing record
// reports NotFound, a non view record TypeMismatch.
func (s *Service) Load(ctx context.Context, schema, name string) (*view.Definition, error) {
	recordURL := s.URL(schema, name)
	exists, err := s.fs.Exists(ctx, recordURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to check record %v", recordURL)
	}
	if !exists {
		return nil, verror.New(verror.KindNotFound, schema, name)
	}
	data, err := s.fs.DownloadWithURL(ctx, recordURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read record %v", recordURL)
	}
	return Decode(data, schema, name)
}

// Audit re-verifies the stored digest of (schema, name) the way CHECK TABLE
// does. A digest that no longer matches the stored text reports
// DigestMismatch; a record without a comparable digest passes, legacy and
// externally produced records must not spuriously fail the audit.
func (s *Service) Audit(ctx context.Context, schema, name string) error {
	definition, err := s.Load(ctx, schema, name)
	if err != nil {
		return err
	}
	if checksum.Verify(definition) == checksum.Mismatch {
		return verror.New(verror.KindDigestMismatch, schema, name)
	}
	return nil
}

// KindOf classifies the record by its first ten bytes only.
func (s *Service) KindOf(ctx context.Context, schema, name string) (Kind, error) {
	recordURL := s.URL(schema, name)
	exists, err := s.fs.Exists(ctx, recordURL)
	if err != nil {
		return KindNone, errors.Wrapf(err, "failed to check record %v", recordURL)
	}
	if !exists {
		return KindNone, nil
	}
	data, err := s.fs.DownloadWithURL(ctx, recordURL)
	if err != nil {
		return KindNone, errors.Wrapf(err, "failed to read record %v", recordURL)
	}
	if len(data) >= len(TypeMarker) && string(data[:len(TypeMarker)]) == TypeMarker {
		return KindView, nil
	}
	return KindTable, nil
}

// Delete removes the record of (schema, name).
func (s *Service) Delete(ctx context.Context, schema, name string) error {
	recordURL := s.URL(schema, name)
	if err := s.fs.Delete(ctx, recordURL); err != nil {
		return errors.Wrapf(err, "failed to delete record %v", recordURL)
	}
	return nil
}
