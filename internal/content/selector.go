package content

// TagSelector names the tags a remove operation applies to: either an
// explicit list or every tag the target currently has.
type TagSelector struct {
	Tags []string `json:"tags,omitempty"`
	All  bool     `json:"all,omitempty"`
}

// AllTags selects every tag.
func AllTags() TagSelector { return TagSelector{All: true} }

// Only selects the given tags.
func Only(tags ...string) TagSelector { return TagSelector{Tags: tags} }

// Resolve returns the selected tags given the target's current set.
// An explicit list is returned as given, duplicates included.
func (s TagSelector) Resolve(current TagSet) []string {
	if s.All {
		return current.Sorted()
	}
	return s.Tags
}
