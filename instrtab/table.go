// Package instrtab implements the pattern-matched instruction table
// described in spec.md §4.2: a hash-bucketed set of opcode descriptors,
// each matched by (word & CareMask) == OpcodeBits, with registration
// order fixing tie-breaking among deliberately overlapping patterns.
//
// spec.md §9 calls for replacing the source's virtual-dispatch base
// class with "a tagged variant whose tag is the opcode-ID ... dispatch
// through a table of function pointers." This package is that table; it
// is generic over the opcode-word type (uint16 for Thumb/compressed,
// uint32 for ARM/RISC-V) and over the descriptor payload so armcore and
// riscv can each plug in their own decoded-instruction type without
// duplicating the bucket/lookup machinery.
package instrtab

// Word is the integer family a decoder matches against.
type Word interface {
	~uint16 | ~uint32
}

// Descriptor is one entry in the table: name plus the opcode bits and
// care mask that define its encoding, per spec.md §3.
type Descriptor[W Word] struct {
	Name       string
	OpcodeBits W
	CareMask   W
	// Decode is invoked once a word matches; it returns the ISA-specific
	// decoded-instruction payload. Kept generic (any) because armcore
	// and riscv have unrelated decoded-instruction shapes.
	Decode func(word W) any
}

// matches reports whether word satisfies this descriptor's pattern.
func (d *Descriptor[W]) matches(word W) bool {
	return word&d.CareMask == d.OpcodeBits
}

// Table is a hash-bucketed collection of Descriptors. Buckets are keyed
// by the top nibble of the care-masked opcode bits as described in
// spec.md §3/§4.2 (16 buckets for ARM's 32-bit space keyed on bits
// [31:28], 32 buckets for RISC-V keyed on the low 5 opcode bits); the
// bucket function is supplied by the caller so each ISA can choose the
// split that actually discriminates its encoding space.
type Table[W Word] struct {
	bucketOf func(opcodeBits, careMask W) int
	buckets  [][]*Descriptor[W]
}

// New creates an empty Table with nBuckets buckets, using bucketOf to
// assign each registered Descriptor to a bucket based on its opcode
// bits and care mask.
func New[W Word](nBuckets int, bucketOf func(opcodeBits, careMask W) int) *Table[W] {
	return &Table[W]{
		bucketOf: bucketOf,
		buckets:  make([][]*Descriptor[W], nBuckets),
	}
}

// Register inserts d into the bucket computed from its opcode bits and
// care mask. Within a bucket, registration order is preserved and is the
// tie-break used by Lookup — callers must register more specific
// patterns (e.g. a narrow MOVT encoding) before more general ones they
// overlap with (e.g. a wide TST variant), per spec.md §4.2.
func (t *Table[W]) Register(d *Descriptor[W]) {
	b := t.bucketOf(d.OpcodeBits, d.CareMask)
	t.buckets[b] = append(t.buckets[b], d)
}

// candidateBucket returns the bucket that could possibly match word: the
// table's own bucketOf applied to word under a full care mask. Because a descriptor's bucket is derived from bits that are masked
// fully (care-mask 1) in both the descriptor and every word tested
// against it whenever bucketOf is chosen consistently by the ISA
// decoder, a single bucket lookup suffices; decoders that bucket on
// bits not present in every descriptor's care mask should register
// those descriptors into every bucket they could fall into.
func (t *Table[W]) candidateBucket(word W) int {
	return t.bucketOf(word, ^W(0))
}

// Lookup scans the bucket for word and returns the first matching
// Descriptor, or nil if none match. Bucket size is expected to stay
// O(1) (spec.md target: <= 8 entries), so this is effectively constant
// time regardless of total table size.
func (t *Table[W]) Lookup(word W) *Descriptor[W] {
	b := t.candidateBucket(word)
	for _, d := range t.buckets[b] {
		if d.matches(word) {
			return d
		}
	}
	return nil
}

// LookupAllBuckets scans every bucket, for tables whose bucket key is
// not derivable purely from a fixed bit range of the word being decoded
// without first partially decoding it — it trades the O(1) bucket
// property for simplicity at table-build time. riscv.Decode uses the
// single-bucket Lookup.
func (t *Table[W]) LookupAllBuckets(word W) *Descriptor[W] {
	for _, bucket := range t.buckets {
		for _, d := range bucket {
			if d.matches(word) {
				return d
			}
		}
	}
	return nil
}

// Len returns the total number of registered descriptors, used by
// tests asserting round-trip coverage (spec.md §8).
func (t *Table[W]) Len() int {
	n := 0
	for _, b := range t.buckets {
		n += len(b)
	}
	return n
}
