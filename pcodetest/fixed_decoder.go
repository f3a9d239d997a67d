// Package pcodetest provides the decoder stub and flat-memory interpreter
// used to exercise the core end to end without a real SLEIGH-backed
// disassembler or machine-code backend.
package pcodetest

import "github.com/Colton1skees/remill/pcode"

// FixedDecoder implements pcode.Decoder by returning a pre-built p-code
// sequence regardless of the bytes given, letting tests author a literal
// end-to-end scenario directly as a []pcode.Op.
type FixedDecoder struct {
	Ops []pcode.Op
}

// Decode ignores pc and bytes and returns the fixed op sequence.
func (d FixedDecoder) Decode(pc uint64, bytes []byte) ([]pcode.Op, error) {
	return d.Ops, nil
}
