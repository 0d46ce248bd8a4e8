// Package sqidsgen is an offline provider.Provider that mints short codes
// locally with sqids. It never fails on its own and is handy for tests,
// demos, and self-hosted redirectors.
package sqidsgen

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/sqids/sqids-go"

	"github.com/leonardomso/shortener/internal/provider"
)

// DefaultAlphabet is a shuffled base62 alphabet.
const DefaultAlphabet = "k3G7QAe51FCsiWrNOYBUwM6XzZvdLT4j9JhyHKg2cVbxfERq0mSoI8lDpunPat"

// Generator encodes a monotonically increasing counter onto BaseURL.
type Generator struct {
	baseURL string
	sq      *sqids.Sqids
	next    atomic.Uint64
}

// New creates a Generator producing links like "<baseURL>/<code>".
// start seeds the counter so restarted generators do not reuse codes.
func New(baseURL string, start uint64) (*Generator, error) {
	sq, err := sqids.New(sqids.Options{
		Alphabet:  DefaultAlphabet,
		MinLength: 5,
	})
	if err != nil {
		return nil, err
	}

	g := &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		sq:      sq,
	}
	g.next.Store(start)
	return g, nil
}

// Shorten implements provider.Provider. Tags and group are ignored.
func (g *Generator) Shorten(ctx context.Context, req provider.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.LongURL == "" {
		return "", &provider.Error{StatusCode: 400, Message: "long url is empty"}
	}

	id := g.next.Add(1)
	code, err := g.sq.Encode([]uint64{id})
	if err != nil {
		return "", &provider.Error{StatusCode: 500, Message: err.Error()}
	}
	return g.baseURL + "/" + code, nil
}
