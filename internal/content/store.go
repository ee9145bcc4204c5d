// Package content holds the tag-indexed image library: entries keyed by
// name, wm_class tag buckets, and tag-intersection resolution.
//
// A Store is not safe for concurrent use. The dispatch loop is its only
// writer; everything else sees it through a Snapshot or ContentInfo.
//
// Iteration order is ascending byte order of entry names. It does not
// depend on insertion history, so it is stable across calls and survives
// a save/load round trip unchanged.
package content

import (
	"maps"
	"slices"
)

// Store maps entry names to entries and wm_classes to tag sets.
type Store struct {
	entries map[string]*Entry
	names   []string // sorted
	wmClass map[string]TagSet
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*Entry),
		wmClass: make(map[string]TagSet),
	}
}

// Insert creates or replaces the entry called name. When an entry was
// replaced it is returned with replaced=true.
func (s *Store) Insert(name string, image RawBitmap, tags TagSet) (prev Entry, replaced bool) {
	e := &Entry{Name: name, Tags: tags.Clone(), Image: image}
	if old, ok := s.entries[name]; ok {
		s.entries[name] = e
		return *old, true
	}
	s.entries[name] = e
	i, _ := slices.BinarySearch(s.names, name)
	s.names = slices.Insert(s.names, i, name)
	return Entry{}, false
}

// Remove deletes the entry called name. Removing an unknown name is a no-op.
func (s *Store) Remove(name string) (Entry, bool) {
	old, ok := s.entries[name]
	if !ok {
		return Entry{}, false
	}
	delete(s.entries, name)
	if i, found := slices.BinarySearch(s.names, name); found {
		s.names = slices.Delete(s.names, i, i+1)
	}
	return *old, true
}

// Get returns a copy of the entry called name.
func (s *Store) Get(name string) (Entry, bool) {
	e, ok := s.entries[name]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.names)
}

// At returns the i-th entry in iteration order.
func (s *Store) At(i int) (Entry, bool) {
	if i < 0 || i >= len(s.names) {
		return Entry{}, false
	}
	return *s.entries[s.names[i]], true
}

// Names returns entry names in iteration order.
func (s *Store) Names() []string {
	return slices.Clone(s.names)
}

// AddTag adds tag to the entry called name and reports whether it was new.
func (s *Store) AddTag(name, tag string) (bool, error) {
	e, ok := s.entries[name]
	if !ok {
		return false, entryNotFound(name)
	}
	return e.Tags.Add(tag), nil
}

// RemoveTag removes tag from the entry called name and reports whether it
// was present.
func (s *Store) RemoveTag(name, tag string) (bool, error) {
	e, ok := s.entries[name]
	if !ok {
		return false, entryNotFound(name)
	}
	return e.Tags.Remove(tag), nil
}

// Tags returns a copy of the entry's tags.
func (s *Store) Tags(name string) (TagSet, error) {
	e, ok := s.entries[name]
	if !ok {
		return nil, entryNotFound(name)
	}
	return e.Tags.Clone(), nil
}

// AddWmClassTag adds tag to wmClass, creating the bucket on first use.
// Reports whether the tag was new.
func (s *Store) AddWmClassTag(wmClass, tag string) bool {
	tags, ok := s.wmClass[wmClass]
	if !ok {
		tags = make(TagSet)
		s.wmClass[wmClass] = tags
	}
	return tags.Add(tag)
}

// RemoveWmClassTag removes tag from wmClass and reports whether it was
// present. The bucket itself is kept even when it becomes empty.
func (s *Store) RemoveWmClassTag(wmClass, tag string) (bool, error) {
	tags, ok := s.wmClass[wmClass]
	if !ok {
		return false, wmClassNotFound(wmClass)
	}
	return tags.Remove(tag), nil
}

// WmClassTags returns a copy of the tags attached to wmClass.
func (s *Store) WmClassTags(wmClass string) (TagSet, error) {
	tags, ok := s.wmClass[wmClass]
	if !ok {
		return nil, wmClassNotFound(wmClass)
	}
	return tags.Clone(), nil
}

// Resolve returns the entries whose tags intersect the tags of wmClass, in
// iteration order. All matches rank equally.
func (s *Store) Resolve(wmClass string) []Entry {
	want, ok := s.wmClass[wmClass]
	if !ok || len(want) == 0 {
		return nil
	}
	var out []Entry
	for _, name := range s.names {
		e := s.entries[name]
		if e.Tags.Intersects(want) {
			out = append(out, *e)
		}
	}
	return out
}

// CountForWmClass is len(Resolve(wmClass)) without building the slice.
func (s *Store) CountForWmClass(wmClass string) int {
	want, ok := s.wmClass[wmClass]
	if !ok || len(want) == 0 {
		return 0
	}
	n := 0
	for _, e := range s.entries {
		if e.Tags.Intersects(want) {
			n++
		}
	}
	return n
}

// Snapshot is an immutable read view of a Store.
type Snapshot struct {
	// Entries in iteration order.
	Entries []Entry
	// WmClassTags maps each wm_class bucket to its tags.
	WmClassTags map[string]TagSet
}

// Snapshot copies the store's tag sets. Pixel data is shared read-only.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		Entries:     make([]Entry, 0, len(s.names)),
		WmClassTags: make(map[string]TagSet, len(s.wmClass)),
	}
	for _, name := range s.names {
		snap.Entries = append(snap.Entries, s.entries[name].clone())
	}
	for wm, tags := range s.wmClass {
		snap.WmClassTags[wm] = tags.Clone()
	}
	return snap
}

// WmClasses returns the wm_class bucket names in ascending order.
func (snap Snapshot) WmClasses() []string {
	return slices.Sorted(maps.Keys(snap.WmClassTags))
}

// FromSnapshot rebuilds a store from a snapshot.
func FromSnapshot(snap Snapshot) *Store {
	s := NewStore()
	for _, e := range snap.Entries {
		s.Insert(e.Name, e.Image, e.Tags)
	}
	for wm, tags := range snap.WmClassTags {
		s.wmClass[wm] = tags.Clone()
	}
	return s
}
