// Package mapconfig implements the Map Configuration Tree: the
// heterogeneous entity graph (map, layers, classes, styles, ...) that the
// WMS frontend reads and mutates per request, along with its clone graph.
package mapconfig

// HashTable is a case-insensitive, insertion-order-preserving string to
// string map. It backs metadata bags, configoptions, and other WMS-facing
// attribute containers. Capabilities emission depends on the insertion
// order being stable across clones.
type HashTable struct {
	order []string          // normalized (lowercase) keys, insertion order
	orig  map[string]string // normalized key -> original-case key
	vals  map[string]string // normalized key -> value
}

// NewHashTable returns an empty HashTable ready for use.
func NewHashTable() *HashTable {
	return &HashTable{
		orig: make(map[string]string),
		vals: make(map[string]string),
	}
}

func normalizeKey(key string) string {
	// Metadata and configoptions keys are matched byte-for-byte
	// case-insensitively; a simple ASCII lowercase covers every key this
	// package ever sees (namespace-prefixed metadata like "wms_title").
	out := make([]byte, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// Set inserts or replaces a value, preserving the original insertion
// position on replacement and the caller-supplied case of a new key.
func (h *HashTable) Set(key, value string) {
	nk := normalizeKey(key)
	if _, exists := h.vals[nk]; !exists {
		h.order = append(h.order, nk)
	}
	h.orig[nk] = key
	h.vals[nk] = value
}

// Get performs a case-insensitive lookup.
func (h *HashTable) Get(key string) (string, bool) {
	v, ok := h.vals[normalizeKey(key)]
	return v, ok
}

// GetDefault returns the value for key, or def if absent.
func (h *HashTable) GetDefault(key, def string) string {
	if v, ok := h.Get(key); ok {
		return v
	}
	return def
}

// Remove deletes a key, if present.
func (h *HashTable) Remove(key string) {
	nk := normalizeKey(key)
	if _, ok := h.vals[nk]; !ok {
		return
	}
	delete(h.vals, nk)
	delete(h.orig, nk)
	for i, k := range h.order {
		if k == nk {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of entries.
func (h *HashTable) Len() int {
	if h == nil {
		return 0
	}
	return len(h.order)
}

// Keys returns original-case keys in insertion order.
func (h *HashTable) Keys() []string {
	if h == nil {
		return nil
	}
	keys := make([]string, len(h.order))
	for i, nk := range h.order {
		keys[i] = h.orig[nk]
	}
	return keys
}

// Range calls fn for every entry in insertion order, with the
// original-case key.
func (h *HashTable) Range(fn func(key, value string)) {
	if h == nil {
		return
	}
	for _, nk := range h.order {
		fn(h.orig[nk], h.vals[nk])
	}
}

// Clone returns a deep, independent copy preserving insertion order.
func (h *HashTable) Clone() *HashTable {
	if h == nil {
		return nil
	}
	c := NewHashTable()
	h.Range(func(k, v string) { c.Set(k, v) })
	return c
}
