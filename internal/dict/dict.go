// Package dict interns repeated strings into dense integer IDs.
package dict

import "slices"

// Dictionary assigns IDs 0, 1, 2, ... to distinct values in order of first
// appearance. It is not safe for concurrent use; each worker owns its own.
type Dictionary struct {
	ids    map[string]uint32
	values []string
}

func New() *Dictionary {
	return &Dictionary{ids: make(map[string]uint32)}
}

// FromValues rebuilds a dictionary whose IDs are the indexes of values.
// Duplicate values keep the first index.
func FromValues(values []string) *Dictionary {
	d := &Dictionary{
		ids:    make(map[string]uint32, len(values)),
		values: slices.Clip(values),
	}
	for i, v := range values {
		if _, ok := d.ids[v]; !ok {
			d.ids[v] = uint32(i)
		}
	}
	return d
}

// Intern returns the ID of b, assigning the next free one on first sight.
// b is copied, so the caller may reuse its buffer.
func (d *Dictionary) Intern(b []byte) uint32 {
	// the compiler avoids allocating for the string(b) lookup
	if id, ok := d.ids[string(b)]; ok {
		return id
	}
	v := string(b)
	id := uint32(len(d.values))
	d.ids[v] = id
	d.values = append(d.values, v)
	return id
}

// ID looks up the ID of v without assigning one.
func (d *Dictionary) ID(v string) (uint32, bool) {
	id, ok := d.ids[v]
	return id, ok
}

// Value returns the string for id.
func (d *Dictionary) Value(id uint32) (string, bool) {
	if int(id) >= len(d.values) {
		return "", false
	}
	return d.values[id], true
}

func (d *Dictionary) Len() int { return len(d.values) }

// Values returns every value indexed by ID. The slice is shared with the
// dictionary and must not be modified.
func (d *Dictionary) Values() []string { return d.values }
