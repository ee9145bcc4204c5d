package persist

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/roach88/sheetsync/internal/content"
)

// File naming under the data directory.
const (
	// BlobExt is the extension of entry image files.
	BlobExt = ".bin"
	// MetadataSuffix is appended to the entry name for its tag file.
	MetadataSuffix = "-metadata.json"
	// WmClassFile holds the whole wm_class -> tags mapping.
	WmClassFile = "wm_class_tags.json"
)

var blobMagic = [4]byte{'S', 'S', 'B', '1'}

// blobHeader precedes the pixel bytes in a blob file.
type blobHeader struct {
	Magic  [4]byte
	Format uint8
	Order  uint8
	Width  uint32
	Height uint32
	Length uint32
}

// BlobPath is the image file of entry name.
func BlobPath(dir, name string) string {
	return filepath.Join(dir, name+BlobExt)
}

// MetadataPath is the tag file of entry name.
func MetadataPath(dir, name string) string {
	return filepath.Join(dir, name+MetadataSuffix)
}

// EntryName derives the entry name from a blob file name, or reports
// false for any other file.
func EntryName(fileName string) (string, bool) {
	if !strings.HasSuffix(fileName, BlobExt) {
		return "", false
	}
	name := strings.TrimSuffix(fileName, BlobExt)
	return name, name != ""
}

// EncodeBitmap serializes a bitmap as header plus pixels.
func EncodeBitmap(b content.RawBitmap) ([]byte, error) {
	if uint64(len(b.Pixels)) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("encode bitmap: %d pixel bytes exceed format limit", len(b.Pixels))
	}
	var buf bytes.Buffer
	buf.Grow(binary.Size(blobHeader{}) + len(b.Pixels))
	h := blobHeader{
		Magic:  blobMagic,
		Format: uint8(b.Format),
		Order:  uint8(b.Order),
		Width:  b.Width,
		Height: b.Height,
		Length: uint32(len(b.Pixels)),
	}
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("encode bitmap: %w", err)
	}
	buf.Write(b.Pixels)
	return buf.Bytes(), nil
}

// DecodeBitmap is the inverse of EncodeBitmap.
func DecodeBitmap(data []byte) (content.RawBitmap, error) {
	r := bytes.NewReader(data)
	var h blobHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return content.RawBitmap{}, fmt.Errorf("decode bitmap header: %w", err)
	}
	if h.Magic != blobMagic {
		return content.RawBitmap{}, errors.New("decode bitmap: bad magic")
	}
	b := content.RawBitmap{
		Format: content.ImageFormat(h.Format),
		Order:  content.ByteOrder(h.Order),
		Width:  h.Width,
		Height: h.Height,
	}
	if !b.Format.Valid() || !b.Order.Valid() {
		return content.RawBitmap{}, fmt.Errorf("decode bitmap: unknown format %d or order %d", h.Format, h.Order)
	}
	if int64(h.Length) != int64(r.Len()) {
		return content.RawBitmap{}, fmt.Errorf("decode bitmap: header says %d bytes, file has %d", h.Length, r.Len())
	}
	b.Pixels = make([]byte, h.Length)
	if _, err := io.ReadFull(r, b.Pixels); err != nil {
		return content.RawBitmap{}, fmt.Errorf("decode bitmap pixels: %w", err)
	}
	return b, nil
}

type metadata struct {
	Tags []string `json:"tags"`
}

// EncodeMetadata serializes an entry's tags, sorted.
func EncodeMetadata(tags content.TagSet) ([]byte, error) {
	return json.Marshal(metadata{Tags: tags.Sorted()})
}

// DecodeMetadata is the inverse of EncodeMetadata.
func DecodeMetadata(data []byte) (content.TagSet, error) {
	var m metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return content.NewTagSet(m.Tags...), nil
}

// EncodeWmClassTags serializes the wm_class mapping with sorted tags.
func EncodeWmClassTags(m map[string]content.TagSet) ([]byte, error) {
	out := make(map[string][]string, len(m))
	for wm, tags := range m {
		out[wm] = tags.Sorted()
	}
	return json.Marshal(out)
}

// DecodeWmClassTags is the inverse of EncodeWmClassTags.
func DecodeWmClassTags(data []byte) (map[string]content.TagSet, error) {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode wm_class tags: %w", err)
	}
	out := make(map[string]content.TagSet, len(raw))
	for wm, tags := range raw {
		out[wm] = content.NewTagSet(tags...)
	}
	return out, nil
}
