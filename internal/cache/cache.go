// Package cache adapts an external store of long→short link records.
//
// Any store can act as a cache model as long as it exposes a record shape
// (LongLink/ShortLink accessors) and the two operations FindByLongLink and
// Create. The shape is validated once, when the model is configured.
package cache

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/leonardomso/shortener/internal/metrics"
)

// ErrNoRecord is returned by CachedShortLink when no record exists.
var ErrNoRecord = errors.New("no cached record")

// Record is a single cached long→short link pair.
type Record interface {
	LongLink() string
	ShortLink() string
	SetLongLink(string)
	SetShortLink(string)
}

// Finder looks up every record stored for a long link.
// Zero, one, or many records are all legal answers.
type Finder interface {
	FindByLongLink(ctx context.Context, longLink string) ([]Record, error)
}

// Creator inserts a new record.
type Creator interface {
	Create(ctx context.Context, longLink, shortLink string) (Record, error)
}

// Schema exposes a blank record so the record shape can be checked.
type Schema interface {
	NewRecord() any
}

// Model is a store that satisfies the full cache contract.
type Model interface {
	Schema
	Finder
	Creator
}

// Entry is a plain Record used by the bundled stores.
type Entry struct {
	Long  string `json:"long_link"`
	Short string `json:"short_link"`
}

// LongLink implements Record.
func (e *Entry) LongLink() string { return e.Long }

// ShortLink implements Record.
func (e *Entry) ShortLink() string { return e.Short }

// SetLongLink implements Record.
func (e *Entry) SetLongLink(s string) { e.Long = s }

// SetShortLink implements Record.
func (e *Entry) SetShortLink(s string) { e.Short = s }

// AttributesError reports which parts of the cache contract a model is missing.
// Both parts are always checked.
type AttributesError struct {
	MissingFields  bool
	MissingMethods bool
}

// attributesBaseMessage prefixes every AttributesError message.
const attributesBaseMessage = "cache model is not valid, it must be a store"

func (e *AttributesError) Error() string {
	var missing []string
	if e.MissingFields {
		missing = append(missing, "a record exposing `LongLink` and `ShortLink`")
	}
	if e.MissingMethods {
		missing = append(missing, "`FindByLongLink(ctx, longLink)` and `Create(ctx, longLink, shortLink)` methods")
	}
	return attributesBaseMessage + " with " + strings.Join(missing, "; ")
}

// Validate checks that model satisfies the cache contract.
// It returns an *AttributesError naming every missing part.
func Validate(model any) error {
	fieldsOK := false
	if s, ok := model.(Schema); ok {
		_, fieldsOK = s.NewRecord().(Record)
	}

	_, canFind := model.(Finder)
	_, canCreate := model.(Creator)
	methodsOK := canFind && canCreate

	if fieldsOK && methodsOK {
		return nil
	}
	return &AttributesError{
		MissingFields:  !fieldsOK,
		MissingMethods: !methodsOK,
	}
}

// Adapter wraps a validated Model. A zero or nil-model Adapter is disabled:
// nothing is ever cached and Save is a no-op.
type Adapter struct {
	model  Model
	logger zerolog.Logger
}

// NewAdapter validates model and wraps it. A nil model yields a disabled adapter.
func NewAdapter(model any, logger zerolog.Logger) (*Adapter, error) {
	if model == nil {
		return &Adapter{logger: logger}, nil
	}
	if err := Validate(model); err != nil {
		return nil, err
	}
	return &Adapter{model: model.(Model), logger: logger}, nil
}

// Enabled reports whether a cache model is configured.
func (a *Adapter) Enabled() bool {
	return a != nil && a.model != nil
}

// HasCached reports whether at least one record exists for longLink.
// More than one record is logged as an anomaly; the first one wins.
func (a *Adapter) HasCached(ctx context.Context, longLink string) (bool, error) {
	_, ok, err := a.Lookup(ctx, longLink)
	return ok, err
}

// CachedShortLink returns the short link of the first record for longLink,
// or ErrNoRecord.
func (a *Adapter) CachedShortLink(ctx context.Context, longLink string) (string, error) {
	short, ok, err := a.Lookup(ctx, longLink)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoRecord
	}
	return short, nil
}

// Lookup combines HasCached and CachedShortLink in a single store query.
func (a *Adapter) Lookup(ctx context.Context, longLink string) (string, bool, error) {
	if !a.Enabled() {
		return "", false, nil
	}

	records, err := a.model.FindByLongLink(ctx, longLink)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return "", false, err
	}

	switch len(records) {
	case 0:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return "", false, nil
	case 1:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("ambiguous").Inc()
		a.logger.Warn().
			Str("long_link", longLink).
			Int("records", len(records)).
			Msg("found more than one shortened link, using the first one")
	}

	return records[0].ShortLink(), true, nil
}

// Save inserts a new record. No de-duplication is performed.
func (a *Adapter) Save(ctx context.Context, longLink, shortLink string) error {
	if !a.Enabled() {
		return nil
	}
	_, err := a.model.Create(ctx, longLink, shortLink)
	return err
}
