// Package persist writes the content library to disk and reads it back.
//
// Saving is split in two. EncodeSave turns a content.Snapshot into an
// ordered list of Jobs on the dispatch loop, so the bytes reflect the store
// at that instant. A Persister executes those jobs on its own goroutine, in
// order, one at a time. A failed job is logged and skipped; it never stops
// the jobs after it.
//
// Directory layout:
//
//	<dir>/<name>.bin             image blob (see EncodeBitmap)
//	<dir>/<name>-metadata.json   {"tags":[...]}
//	<dir>/wm_class_tags.json     {"<wm_class>":[...]}
//
// Files are overwritten in place. A crash mid-write can leave a truncated
// file, which Load then reports as a LoadError.
package persist
