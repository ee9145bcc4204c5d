package content

// EntryTags reports one entry's tags.
type EntryTags struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// WmClassTags reports one wm_class bucket.
type WmClassTags struct {
	WmClass string   `json:"wm_class"`
	Tags    []string `json:"tags"`
}

// ContentInfo is the reporting view returned to GetContentInfo callers.
// Entries and wm_classes are sorted by name; tags are sorted.
type ContentInfo struct {
	Entries   []EntryTags   `json:"entries"`
	WmClasses []WmClassTags `json:"wm_classes"`
}

// Info builds the reporting view.
func (s *Store) Info() ContentInfo {
	info := ContentInfo{
		Entries:   make([]EntryTags, 0, len(s.names)),
		WmClasses: make([]WmClassTags, 0, len(s.wmClass)),
	}
	for _, name := range s.names {
		info.Entries = append(info.Entries, EntryTags{Name: name, Tags: s.entries[name].Tags.Sorted()})
	}
	snap := Snapshot{WmClassTags: s.wmClass}
	for _, wm := range snap.WmClasses() {
		info.WmClasses = append(info.WmClasses, WmClassTags{WmClass: wm, Tags: s.wmClass[wm].Sorted()})
	}
	return info
}
