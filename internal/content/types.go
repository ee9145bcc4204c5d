package content

import (
	"fmt"
	"slices"
)

// ImageFormat identifies the pixel encoding of a RawBitmap.
type ImageFormat uint8

const (
	// FormatGray8 is one byte per pixel, 0x00 black to 0xff white.
	FormatGray8 ImageFormat = iota
)

// String implements fmt.Stringer.
func (f ImageFormat) String() string {
	switch f {
	case FormatGray8:
		return "Gray8"
	default:
		return fmt.Sprintf("ImageFormat(%d)", uint8(f))
	}
}

// Valid reports whether f is a known format.
func (f ImageFormat) Valid() bool {
	return f == FormatGray8
}

// BytesPerPixel returns the storage size of one pixel.
func (f ImageFormat) BytesPerPixel() int {
	switch f {
	case FormatGray8:
		return 1
	default:
		return 0
	}
}

// ParseImageFormat is the inverse of String.
func ParseImageFormat(s string) (ImageFormat, error) {
	if s == "Gray8" {
		return FormatGray8, nil
	}
	return 0, fmt.Errorf("unknown image format %q", s)
}

// ByteOrder is the byte order of multi-byte pixel data.
type ByteOrder uint8

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

// String implements fmt.Stringer.
func (o ByteOrder) String() string {
	switch o {
	case LittleEndian:
		return "LE"
	case BigEndian:
		return "BE"
	default:
		return fmt.Sprintf("ByteOrder(%d)", uint8(o))
	}
}

// Valid reports whether o is a known byte order.
func (o ByteOrder) Valid() bool {
	return o == LittleEndian || o == BigEndian
}

// ParseByteOrder is the inverse of String.
func ParseByteOrder(s string) (ByteOrder, error) {
	switch s {
	case "LE":
		return LittleEndian, nil
	case "BE":
		return BigEndian, nil
	default:
		return 0, fmt.Errorf("unknown byte order %q", s)
	}
}

// RawBitmap is an opaque fixed-geometry image. The core never looks at
// Pixels beyond its length.
type RawBitmap struct {
	Format ImageFormat
	Order  ByteOrder
	Width  uint32
	Height uint32
	Pixels []byte
}

// String omits pixel data.
func (b RawBitmap) String() string {
	return fmt.Sprintf("%s/%s %dx%d (%d bytes)", b.Format, b.Order, b.Width, b.Height, len(b.Pixels))
}

// ExpectedLen is the pixel byte count the geometry implies.
func (b RawBitmap) ExpectedLen() uint64 {
	return uint64(b.Width) * uint64(b.Height) * uint64(b.Format.BytesPerPixel())
}

// TagSet is a set of exact-match, case-sensitive tags.
type TagSet map[string]struct{}

// NewTagSet builds a set from tags, dropping duplicates.
func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Add inserts tag and reports whether it was new.
func (s TagSet) Add(tag string) bool {
	if _, ok := s[tag]; ok {
		return false
	}
	s[tag] = struct{}{}
	return true
}

// Remove deletes tag and reports whether it was present.
func (s TagSet) Remove(tag string) bool {
	if _, ok := s[tag]; !ok {
		return false
	}
	delete(s, tag)
	return true
}

// Has reports membership.
func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Sorted returns the tags in ascending order. Never nil.
func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Clone returns an independent copy. A nil set clones to an empty set.
func (s TagSet) Clone() TagSet {
	out := make(TagSet, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	return out
}

// Intersects reports whether s and other share at least one tag.
func (s TagSet) Intersects(other TagSet) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for t := range small {
		if _, ok := large[t]; ok {
			return true
		}
	}
	return false
}

// Entry is a named, tagged image.
type Entry struct {
	Name  string
	Tags  TagSet
	Image RawBitmap
}

// clone copies the tag set; pixel data is shared because entries are
// replaced wholesale, never edited in place.
func (e Entry) clone() Entry {
	return Entry{Name: e.Name, Tags: e.Tags.Clone(), Image: e.Image}
}
