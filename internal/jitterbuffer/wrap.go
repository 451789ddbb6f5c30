package jitterbuffer

// seqAfter reports whether sequence number a is wrap-aware later than b.
// Bit-exact with spec: SEQ_AFTER(a,b) := (uint16)(a-b) != 0 && (uint16)(a-b) < 0x8000.
func seqAfter(a, b uint16) bool {
	d := a - b
	return d != 0 && d < 0x8000
}

// seqGEQ reports whether a is wrap-aware at-or-after b.
func seqGEQ(a, b uint16) bool {
	return a == b || seqAfter(a, b)
}

// tsGEQWrap implements TS_GEQ_WRAP bit-exact with the source's
// USHORT_TS_ROUND_COMPARE macro, quard zone tsRoundGuard: the wrap boundary
// is the literal 0xFFFF, not the 32-bit timestamp's own wraparound point.
// Step O's separate "playoutTs > 0xFFFF" check shares that same 0xFFFF
// literal for the same reason; see DESIGN.md.
func tsGEQWrap(a, b uint32) bool {
	return (a >= b && (b >= tsRoundGuard || a <= 0xFFFF-tsRoundGuard)) ||
		(a <= tsRoundGuard && b >= 0xFFFF-tsRoundGuard)
}

// seqGap returns the wrap-aware forward distance from b to a, i.e. how many
// sequence numbers a is ahead of b. Used for loss-gap reporting.
func seqGap(a, b uint16) uint16 {
	return a - b
}
