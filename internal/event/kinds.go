package event

// Well-known kinds the engine treats specially.
const (
	KindProfile  = 0
	KindContacts = 3
	KindDeletion = 5
)

// IsReplaceable reports whether only the newest event per (pubkey, kind)
// is retained for this kind.
func IsReplaceable(kind int) bool {
	return kind == KindProfile || kind == KindContacts ||
		(kind >= 10000 && kind < 20000)
}

// IsAddressable reports whether only the newest event per
// (pubkey, kind, d-tag) is retained for this kind. Also known as
// parameterized-replaceable.
func IsAddressable(kind int) bool {
	return kind >= 30000 && kind < 40000
}
