package headers

import (
	"github.com/indigo-web/iter"
	"github.com/indigo-web/utils/strcomp"
)

type Pair struct {
	Key, Value string
}

// Headers is an ordered storage for header pairs. Insertion order is
// preserved and duplicates are kept as separate entries, so headers like
// Set-Cookie survive intact. Lookup is linear, which on the usual amount of
// headers beats a map.
//
// The parser normalizes keys to lowercase before insertion, however lookups
// stay case-insensitive for caller convenience.
type Headers struct {
	pairs      []Pair
	valuesBuff []string
}

func New() *Headers {
	return new(Headers)
}

// NewPrealloc returns an instance of Headers with pre-allocated underlying storage.
func NewPrealloc(n int) *Headers {
	return &Headers{
		pairs: make([]Pair, 0, n),
	}
}

// Add appends a new pair, keeping all the previously added values of the key.
func (h *Headers) Add(key, value string) *Headers {
	h.pairs = append(h.pairs, Pair{
		Key:   key,
		Value: value,
	})
	return h
}

// Value returns the first value, corresponding to the key. Otherwise, empty
// string is returned.
func (h *Headers) Value(key string) string {
	value, _ := h.Get(key)
	return value
}

// Get returns a value and a bool, indicating whether the key is present at all.
func (h *Headers) Get(key string) (value string, found bool) {
	for _, pair := range h.pairs {
		if strcomp.EqualFold(key, pair.Key) {
			return pair.Value, true
		}
	}

	return "", false
}

// Has indicates, whether there's an entry of the key.
func (h *Headers) Has(key string) bool {
	_, found := h.Get(key)
	return found
}

// Values returns all values by the key in insertion order. Returns nil if the
// key doesn't exist.
//
// WARNING: calling it twice will override values, returned by the first call.
// Consider copying the returned slice for safe use.
func (h *Headers) Values(key string) []string {
	h.valuesBuff = h.valuesBuff[:0]

	for _, pair := range h.pairs {
		if strcomp.EqualFold(pair.Key, key) {
			h.valuesBuff = append(h.valuesBuff, pair.Value)
		}
	}

	if len(h.valuesBuff) == 0 {
		return nil
	}

	return h.valuesBuff
}

// Iter returns an iterator over the pairs in insertion order.
func (h *Headers) Iter() iter.Iterator[Pair] {
	return iter.Slice(h.pairs)
}

// Len returns the total number of stored pairs, duplicates included.
func (h *Headers) Len() int {
	return len(h.pairs)
}

// Unwrap reveals the underlying pairs slice.
func (h *Headers) Unwrap() []Pair {
	return h.pairs
}

// AppendToLast extends the value of the most recently added pair. Used for
// line folding, when a continuation line belongs to the previous header.
func (h *Headers) AppendToLast(continuation string) {
	if len(h.pairs) == 0 {
		return
	}

	last := &h.pairs[len(h.pairs)-1]
	last.Value += continuation
}

// Clear all the entries. The allocated space is kept for the next request.
func (h *Headers) Clear() {
	h.pairs = h.pairs[:0]
}
