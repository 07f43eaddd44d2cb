package event

// IndexedTagNames lists the nine single-letter tag names that get dedicated
// denormalized columns on the events table. Every other tag name is served
// by the generic event_tags index instead.
//
// The order here matches the column order in the schema.
var IndexedTagNames = []string{"p", "e", "a", "t", "d", "r", "L", "s", "u"}

// IsIndexedTag reports whether name has a dedicated denormalized column.
func IsIndexedTag(name string) bool {
	for _, n := range IndexedTagNames {
		if n == name {
			return true
		}
	}
	return false
}

// IndexableTags returns the event's single-character tag occurrences as
// (name, value) pairs, in tag order. These are the rows written to the tag
// index alongside the event itself.
func (ev *Event) IndexableTags() [][2]string {
	var pairs [][2]string
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && len(tag[0]) == 1 {
			pairs = append(pairs, [2]string{tag[0], tag[1]})
		}
	}
	return pairs
}
