package catalog

// Tag names one recognized low-level behaviour. The set is closed: catalogs
// referencing any other name fail to load.
type Tag string

const (
	RawPointerDeref         Tag = "RawPointerDeref"
	UnguardedPointerDeref   Tag = "UnguardedPointerDeref"
	PointerOffsetArithmetic Tag = "PointerOffsetArithmetic"
	UncheckedCast           Tag = "UncheckedCast"
	InlineAssembly          Tag = "InlineAssembly"
	UnsafeBlockEntry        Tag = "UnsafeBlockEntry"
	ManualMemoryManagement  Tag = "ManualMemoryManagement"
	ConcurrencySpawn        Tag = "ConcurrencySpawn"
	HotLoop                 Tag = "HotLoop"
	UnsafeCall              Tag = "UnsafeCall"
)

var tagInfo = []struct {
	tag         Tag
	description string
}{
	{RawPointerDeref, "raw pointer dereference inside an unsafe context"},
	{UnguardedPointerDeref, "pointer dereference with no enclosing unsafe context"},
	{PointerOffsetArithmetic, "pointer offset computed by arithmetic or an offset call"},
	{UncheckedCast, "reinterpreting cast between pointer or integer types"},
	{InlineAssembly, "inline assembly"},
	{UnsafeBlockEntry, "entry into an unsafe region"},
	{ManualMemoryManagement, "explicit allocation or deallocation"},
	{ConcurrencySpawn, "spawns a concurrent task"},
	{HotLoop, "loop body, a candidate for vectorization"},
	{UnsafeCall, "call to an operation that is only legal in an unsafe context"},
}

// Tags returns every tag in declaration order.
func Tags() []Tag {
	out := make([]Tag, 0, len(tagInfo))
	for _, ti := range tagInfo {
		out = append(out, ti.tag)
	}
	return out
}

// Known reports whether t is part of the closed enumeration.
func (t Tag) Known() bool {
	for _, ti := range tagInfo {
		if ti.tag == t {
			return true
		}
	}
	return false
}

// Description returns a one-line explanation of t, or "" for unknown tags.
func (t Tag) Description() string {
	for _, ti := range tagInfo {
		if ti.tag == t {
			return ti.description
		}
	}
	return ""
}
