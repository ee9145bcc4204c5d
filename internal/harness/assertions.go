package harness

import (
	"fmt"
	"slices"

	"github.com/roach88/sheetsync/internal/content"
)

// EvaluateAssertions checks every assertion against result and returns a
// message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d] (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceCount:
		return assertTraceCount(r.Trace, a.Kind, a.Count)
	case AssertTraceOrder:
		return assertTraceOrder(r.Trace, a.Kinds)
	case AssertFinalFrame:
		return assertFinalFrame(r, a)
	case AssertFinalMode:
		if r.State == nil {
			return fmt.Errorf("no final state")
		}
		if got := r.State.Mode.String(); got != a.Mode {
			return fmt.Errorf("mode = %s, want %s", got, a.Mode)
		}
		return nil
	case AssertEntries:
		return assertEntries(r.Store, a.Entries)
	case AssertEntryTags:
		if r.Store == nil {
			return fmt.Errorf("no final store")
		}
		tags, err := r.Store.Tags(a.Name)
		if err != nil {
			return err
		}
		return sameTags(tags, a.Tags)
	case AssertWmClassTags:
		if r.Store == nil {
			return fmt.Errorf("no final store")
		}
		tags, err := r.Store.WmClassTags(a.WmClass)
		if err != nil {
			return err
		}
		return sameTags(tags, a.Tags)
	case AssertSaves:
		n := 0
		for _, ev := range r.Trace {
			if ev.Persisted {
				n++
			}
		}
		if n != a.Count {
			return fmt.Errorf("%d messages saved, want %d", n, a.Count)
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceCount verifies that a kind appears exactly count times.
func assertTraceCount(trace []TraceEvent, kind string, count int) error {
	n := 0
	for _, ev := range trace {
		if ev.Kind == kind {
			n++
		}
	}
	if n != count {
		return fmt.Errorf("%s appears %d times, want %d", kind, n, count)
	}
	return nil
}

// assertTraceOrder verifies kinds appear in order. Other kinds may be
// interleaved.
func assertTraceOrder(trace []TraceEvent, kinds []string) error {
	next := 0
	for _, ev := range trace {
		if next < len(kinds) && ev.Kind == kinds[next] {
			next++
		}
	}
	if next < len(kinds) {
		return fmt.Errorf("%s not found after position %d", kinds[next], next)
	}
	return nil
}

func assertFinalFrame(r *Result, a Assertion) error {
	if len(r.Frames) == 0 {
		return fmt.Errorf("no frame was drawn")
	}
	f := r.Frames[len(r.Frames)-1]
	if a.Badge != "" && f.Badge() != a.Badge {
		return fmt.Errorf("badge = %s, want %s", f.Badge(), a.Badge)
	}
	if a.Name != "" && f.Name != a.Name {
		return fmt.Errorf("name = %q, want %q", f.Name, a.Name)
	}
	if a.Placeholder != "" && f.Placeholder != a.Placeholder {
		return fmt.Errorf("placeholder = %q, want %q", f.Placeholder, a.Placeholder)
	}
	if a.Overlay != nil && (f.Overlay != nil) != *a.Overlay {
		return fmt.Errorf("overlay = %t, want %t", f.Overlay != nil, *a.Overlay)
	}
	return nil
}

func assertEntries(store *content.Store, want []string) error {
	if store == nil {
		return fmt.Errorf("no final store")
	}
	got := store.Names()
	if len(got) == 0 && len(want) == 0 {
		return nil
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("entries = %v, want %v", got, want)
	}
	return nil
}

func sameTags(got content.TagSet, want []string) error {
	w := content.NewTagSet(want...).Sorted()
	g := got.Sorted()
	if !slices.Equal(g, w) {
		return fmt.Errorf("tags = %v, want %v", g, w)
	}
	return nil
}
