package cache

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModel is an in-test Model returning canned records.
type fakeModel struct {
	records map[string][]Record
	created []Entry
	findErr error
	finds   int
}

func newFakeModel() *fakeModel {
	return &fakeModel{records: map[string][]Record{}}
}

func (*fakeModel) NewRecord() any { return &Entry{} }

func (m *fakeModel) FindByLongLink(_ context.Context, longLink string) ([]Record, error) {
	m.finds++
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.records[longLink], nil
}

func (m *fakeModel) Create(_ context.Context, longLink, shortLink string) (Record, error) {
	e := &Entry{Long: longLink, Short: shortLink}
	m.created = append(m.created, *e)
	m.records[longLink] = append(m.records[longLink], e)
	return e, nil
}

// fieldlessModel has the methods but a record without accessors.
type fieldlessModel struct{ fakeModel }

func (*fieldlessModel) NewRecord() any { return struct{ URL string }{} }

// methodlessModel exposes a record shape but no operations.
type methodlessModel struct{}

func (methodlessModel) NewRecord() any { return &Entry{} }

// finderOnly can look up but not create.
type finderOnly struct{}

func (finderOnly) NewRecord() any { return &Entry{} }

func (finderOnly) FindByLongLink(context.Context, string) ([]Record, error) { return nil, nil }

// =============================================================================
// Validate Tests
// =============================================================================

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		model          any
		missingFields  bool
		missingMethods bool
	}{
		{"ValidModel", newFakeModel(), false, false},
		{"MissingFields", &fieldlessModel{}, true, false},
		{"MissingMethods", methodlessModel{}, false, true},
		{"PartialMethods", finderOnly{}, false, true},
		{"MissingBoth", struct{}{}, true, true},
		{"String", "not a model", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.model)
			if !tt.missingFields && !tt.missingMethods {
				assert.NoError(t, err)
				return
			}

			var aerr *AttributesError
			require.ErrorAs(t, err, &aerr)
			assert.Equal(t, tt.missingFields, aerr.MissingFields)
			assert.Equal(t, tt.missingMethods, aerr.MissingMethods)
		})
	}
}

func TestAttributesError_Message(t *testing.T) {
	t.Parallel()

	t.Run("ReportsBoth", func(t *testing.T) {
		t.Parallel()
		msg := (&AttributesError{MissingFields: true, MissingMethods: true}).Error()
		assert.Contains(t, msg, attributesBaseMessage)
		assert.Contains(t, msg, "`LongLink` and `ShortLink`")
		assert.Contains(t, msg, "`FindByLongLink(ctx, longLink)`")
		assert.Contains(t, msg, "; ")
	})

	t.Run("FieldsOnly", func(t *testing.T) {
		t.Parallel()
		msg := (&AttributesError{MissingFields: true}).Error()
		assert.Contains(t, msg, "`LongLink` and `ShortLink`")
		assert.NotContains(t, msg, "FindByLongLink")
	})

	t.Run("MethodsOnly", func(t *testing.T) {
		t.Parallel()
		msg := (&AttributesError{MissingMethods: true}).Error()
		assert.NotContains(t, msg, "`LongLink` and `ShortLink`")
		assert.Contains(t, msg, "`Create(ctx, longLink, shortLink)`")
	})
}

// =============================================================================
// Adapter Tests
// =============================================================================

func TestNewAdapter(t *testing.T) {
	t.Parallel()

	t.Run("NilModelDisablesCache", func(t *testing.T) {
		t.Parallel()
		a, err := NewAdapter(nil, zerolog.Nop())
		require.NoError(t, err)
		assert.False(t, a.Enabled())

		ok, err := a.HasCached(context.Background(), "https://example.com")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, a.Save(context.Background(), "https://example.com", "https://s.io/x"))
	})

	t.Run("InvalidModel", func(t *testing.T) {
		t.Parallel()
		a, err := NewAdapter(struct{}{}, zerolog.Nop())
		assert.Nil(t, a)

		var aerr *AttributesError
		assert.ErrorAs(t, err, &aerr)
	})
}

func TestAdapter_Lookup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("ZeroRecords", func(t *testing.T) {
		t.Parallel()
		a, err := NewAdapter(newFakeModel(), zerolog.Nop())
		require.NoError(t, err)

		ok, err := a.HasCached(ctx, "https://leafly.com")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = a.CachedShortLink(ctx, "https://leafly.com")
		assert.ErrorIs(t, err, ErrNoRecord)
	})

	t.Run("OneRecord", func(t *testing.T) {
		t.Parallel()
		m := newFakeModel()
		m.records["https://leafly.com"] = []Record{&Entry{Long: "https://leafly.com", Short: "https://leafly.info/1"}}
		a, err := NewAdapter(m, zerolog.Nop())
		require.NoError(t, err)

		ok, err := a.HasCached(ctx, "https://leafly.com")
		require.NoError(t, err)
		assert.True(t, ok)

		short, err := a.CachedShortLink(ctx, "https://leafly.com")
		require.NoError(t, err)
		assert.Equal(t, "https://leafly.info/1", short)
	})

	t.Run("ManyRecordsUsesFirstAndWarns", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		m := newFakeModel()
		m.records["https://leafly.com"] = []Record{
			&Entry{Long: "https://leafly.com", Short: "https://leafly.info/first"},
			&Entry{Long: "https://leafly.com", Short: "https://leafly.info/second"},
		}
		a, err := NewAdapter(m, zerolog.New(&buf))
		require.NoError(t, err)

		short, ok, err := a.Lookup(ctx, "https://leafly.com")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "https://leafly.info/first", short)
		assert.Equal(t, 1, m.finds)

		assert.Contains(t, buf.String(), `"level":"warn"`)
		assert.Contains(t, buf.String(), "more than one shortened link")
		assert.Contains(t, buf.String(), `"records":2`)
	})

	t.Run("StoreError", func(t *testing.T) {
		t.Parallel()
		m := newFakeModel()
		m.findErr = errors.New("connection reset")
		a, err := NewAdapter(m, zerolog.Nop())
		require.NoError(t, err)

		ok, err := a.HasCached(ctx, "https://leafly.com")
		assert.Error(t, err)
		assert.False(t, ok)
	})
}

func TestAdapter_Save(t *testing.T) {
	t.Parallel()

	m := newFakeModel()
	a, err := NewAdapter(m, zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.Save(ctx, "https://leafly.com", "https://leafly.info/1"))
	require.NoError(t, a.Save(ctx, "https://leafly.com", "https://leafly.info/1"))

	// No de-duplication in the adapter.
	assert.Len(t, m.created, 2)
}
