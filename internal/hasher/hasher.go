// Package hasher implements the per-document string hasher.
//
// Durable element names can grow without bound as generation records stack
// up, so long names are interned here and stored as compact #<id> handles.
// Interning is deterministic: the id of a string is derived from its blake2b
// digest, so two documents built from the same inputs allocate the same
// handles in the same order.
package hasher

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// HandlePrefix marks an interned durable name.
const HandlePrefix = "#"

// ID is an integer-backed handle for an interned string.
type ID uint64

// Hasher converts strings into compact integer-backed handles and back.
// One instance is shared per document.
type Hasher struct {
	byID  map[ID]string
	byStr map[string]ID
}

// New creates an empty hasher.
func New() *Hasher {
	return &Hasher{
		byID:  make(map[ID]string),
		byStr: make(map[string]ID),
	}
}

// Digest returns the content digest an id is derived from.
func Digest(s string) ID {
	sum := blake2b.Sum256([]byte(s))
	return ID(binary.BigEndian.Uint64(sum[:8]))
}

// Intern registers s and returns its handle. Interning the same string
// twice returns the same handle.
func (h *Hasher) Intern(s string) ID {
	if id, ok := h.byStr[s]; ok {
		return id
	}
	id := Digest(s)
	// Resolve the (unlikely) digest collision by probing forward; the probe
	// order is itself deterministic.
	for {
		prev, taken := h.byID[id]
		if !taken {
			break
		}
		if prev == s {
			break
		}
		id++
	}
	h.byID[id] = s
	h.byStr[s] = id
	return id
}

// Lookup returns the string behind a handle.
func (h *Hasher) Lookup(id ID) (string, bool) {
	s, ok := h.byID[id]
	return s, ok
}

// Handle formats an id as a durable-name fragment.
func Handle(id ID) string {
	return HandlePrefix + strconv.FormatUint(uint64(id), 16)
}

// IsHandle reports whether a durable name is an interned handle.
func IsHandle(s string) bool {
	return strings.HasPrefix(s, HandlePrefix)
}

// Expand resolves a #<id> handle back to the full string. A non-handle
// input is returned unchanged.
func (h *Hasher) Expand(s string) (string, error) {
	if !IsHandle(s) {
		return s, nil
	}
	raw, err := strconv.ParseUint(s[len(HandlePrefix):], 16, 64)
	if err != nil {
		return "", fmt.Errorf("malformed hasher handle %q: %w", s, err)
	}
	full, ok := h.Lookup(ID(raw))
	if !ok {
		return "", fmt.Errorf("unknown hasher handle %q", s)
	}
	return full, nil
}

// Shorten interns s and returns its handle if s is longer than threshold,
// otherwise returns s unchanged. A nil hasher never shortens.
func (h *Hasher) Shorten(s string, threshold int) string {
	if h == nil || threshold <= 0 || len(s) <= threshold {
		return s
	}
	return Handle(h.Intern(s))
}

// Entries returns all interned (id, string) pairs, for persistence.
func (h *Hasher) Entries() map[ID]string {
	out := make(map[ID]string, len(h.byID))
	for id, s := range h.byID {
		out[id] = s
	}
	return out
}

// Restore registers a persisted (id, string) pair.
func (h *Hasher) Restore(id ID, s string) {
	h.byID[id] = s
	h.byStr[s] = id
}

// Len returns the number of interned strings.
func (h *Hasher) Len() int {
	return len(h.byID)
}
