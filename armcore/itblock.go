package armcore

// ITState is the Thumb-2 "If-Then" predication state described in
// spec.md §3: a 5-bit mask plus a 4-bit base condition and a 4-bit
// current condition. When Mask is non-zero, up to four following
// instructions execute conditionally.
type ITState struct {
	Mask byte // IT-block mask (bits [4:0] of the IT hint byte)
	Base byte // base condition code, 4 bits
	Cur  byte // current condition for the instruction about to execute
}

// Active reports whether the core is currently inside an IT block.
func (it *ITState) Active() bool {
	return it.Mask != 0
}

// Enter installs a new IT block from the 8-bit IT instruction operand
// (cond[7:4], mask[3:0]) per the Thumb-2 IT encoding. Length is
// mask's count of instructions, 1..4, derived from the position of the
// lowest set bit in mask[3:0] (spec.md §3 invariant: length in {1..4}).
func (it *ITState) Enter(cond, mask byte) {
	it.Base = cond
	it.Cur = cond
	// Mask holds mask[3:0] in its low four bits plus a marker at bit 4
	// (set below). Each Advance shifts the field left, so bit 4 then holds
	// the mask bit that selects the next slot's condition.
	it.Mask = (mask & 0xF) | 0x00
	if it.Mask == 0 {
		// mask==0 together with mostly-zero cond is the encoding for
		// "no IT block" / reserved; treat as inactive.
		it.Mask = 0
		it.Base = 0
		it.Cur = 0
		return
	}
	it.Mask |= 0x10 // set bit 4 marker so Mask!=0 while any sub-bit survives shifting
}

// Length reports how many instructions (1..4) remain predicated,
// counting the one about to execute, derived from the position of the
// lowest set bit below bit 4 in Mask.
func (it *ITState) Length() int {
	if !it.Active() {
		return 0
	}
	for i := 0; i < 4; i++ {
		if it.Mask&(1<<uint(i)) != 0 {
			return 4 - i
		}
	}
	return 1 // only the marker bit (0x10) remains: last instruction
}

// ConditionPassed evaluates the current instruction's predicate and
// returns whether it should execute, per spec.md §4.4 IT-block
// evaluation ("ConditionPassed = checkCond(currentITCond)").
func (it *ITState) ConditionPassed(psr *CPSR) bool {
	if !it.Active() {
		return true
	}
	return psr.EvaluateCondition(ConditionCode(it.Cur))
}

// Advance shifts the mask left by one slot after a non-IT Thumb-2
// instruction executes (or is squashed), per spec.md §4.5: "shift
// mask <<= 1 within its 5-bit field; if the last-in-block bit (0x8) was
// set, clear the block and restore AL as current condition." It also
// recomputes Cur from the new mask's top condition bit, since each
// slot in an IT block may carry an inverted condition (cond^1) per the
// Thumb-2 IT instruction definition.
func (it *ITState) Advance() {
	if !it.Active() {
		return
	}
	lastInBlock := it.Mask&0x8 != 0 && it.Mask&0x7 == 0
	it.Mask = (it.Mask << 1) & 0x1F
	if lastInBlock || it.Mask&0x1F == 0x10 || it.Mask == 0 {
		it.Mask = 0
		it.Base = 0
		it.Cur = 0
		return
	}
	// The next slot's condition is Base[3:1] followed by the mask bit
	// just shifted into bit 4: a "T" slot repeats the base condition, an
	// "E" slot uses its inverse.
	it.Cur = (it.Base &^ 1) | ((it.Mask >> 4) & 1)
}
