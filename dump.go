package fixmap

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes one line per bucket in the form
//
//	[index] -> (key,value) -> (key,value)
//
// with chains rendered most-recently-inserted first. It takes no locks:
// the walk is a non-consistent snapshot intended for offline debugging,
// never for use under concurrent mutation. Dump does not count toward Ops.
func (m *Map) Dump(w io.Writer) error {
	m.checkOpen()
	var sb strings.Builder
	for i := range m.buckets {
		sb.Reset()
		fmt.Fprintf(&sb, "[%d] -> ", i)
		for e := m.buckets[i].head; e != nil; e = e.next {
			fmt.Fprintf(&sb, "(%d,%d)", e.key, e.value)
			if e.next != nil {
				sb.WriteString(" -> ")
			}
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// String renders the map in Dump format.
func (m *Map) String() string {
	var sb strings.Builder
	m.Dump(&sb)
	return sb.String()
}
