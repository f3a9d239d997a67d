package pcode_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Colton1skees/remill/archdesc"
	"github.com/Colton1skees/remill/intrinsics"
	"github.com/Colton1skees/remill/ir"
	"github.com/Colton1skees/remill/pcode"
	"github.com/Colton1skees/remill/pcodetest"
)

func newHarness() (*archdesc.X86_64, intrinsics.Memory, *pcode.UserOpTable) {
	return archdesc.NewX86_64(), intrinsics.Memory{MemoryType: ir.TypeI64}, pcode.NewUserOpTable(nil)
}

func putU64(s *pcodetest.State, offset int, v uint64) {
	for i := 0; i < 8; i++ {
		s.Cells[offset+i] = byte(v >> (8 * i))
	}
}

func getU64(s *pcodetest.State, offset int) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(s.Cells[offset+i]) << (8 * i)
	}
	return v
}

func TestLift_Copy(t *testing.T) {
	arch, mem, userOps := newHarness()
	ops := []pcode.Op{
		{Opcode: pcode.OpCopy, Seq: 0,
			Output: &pcode.Varnode{Space: pcode.SpaceRegister, Offset: 0, Size: 8},
			Inputs: []pcode.Varnode{{Space: pcode.SpaceRegister, Offset: 8, Size: 8}}},
	}
	module := ir.NewModule()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: []byte{0x90}, Length: 4},
		pcodetest.FixedDecoder{Ops: ops}, module, arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Lifted, status)

	state := pcodetest.NewState()
	putU64(state, 8, 0xdeadbeefcafebabe)
	result, err := pcodetest.Interpret(fn, state)
	require.NoError(t, err)
	require.Equal(t, uint64(0xdeadbeefcafebabe), getU64(state, 0))
	require.Equal(t, uint64(0x1004), result.NextPC)
}

func TestLift_IntAdd(t *testing.T) {
	arch, mem, userOps := newHarness()
	ops := []pcode.Op{
		{Opcode: pcode.OpIntAdd, Seq: 0,
			Output: &pcode.Varnode{Space: pcode.SpaceRegister, Offset: 0, Size: 8},
			Inputs: []pcode.Varnode{
				{Space: pcode.SpaceRegister, Offset: 8, Size: 8},
				{Space: pcode.SpaceConst, Offset: 5, Size: 8},
			}},
	}
	module := ir.NewModule()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		pcodetest.FixedDecoder{Ops: ops}, module, arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Lifted, status)

	state := pcodetest.NewState()
	putU64(state, 8, 37)
	_, err := pcodetest.Interpret(fn, state)
	require.NoError(t, err)
	require.Equal(t, uint64(42), getU64(state, 0))
}

func cbranchOps() []pcode.Op {
	return []pcode.Op{
		{Opcode: pcode.OpCBranch, Seq: 0,
			Inputs: []pcode.Varnode{
				// A direct CBRANCH target carries its literal destination
				// address directly (ram space); an unclaimed constant-space
				// target is rejected by lowerCBranch as Unsupported.
				{Space: pcode.SpaceRAM, Offset: 0x2000, Size: 8},
				{Space: pcode.SpaceRegister, Offset: 72, Size: 1},
			}},
	}
}

func TestLift_CBranch_Taken(t *testing.T) {
	arch, mem, userOps := newHarness()
	module := ir.NewModule()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		pcodetest.FixedDecoder{Ops: cbranchOps()}, module, arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Lifted, status)

	state := pcodetest.NewState()
	state.Cells[72] = 1
	result, err := pcodetest.Interpret(fn, state)
	require.NoError(t, err)
	require.Equal(t, uint8(1), result.BranchTaken)
	require.Equal(t, uint64(0x2000), result.NextPC)
}

func TestLift_CBranch_NotTaken(t *testing.T) {
	arch, mem, userOps := newHarness()
	module := ir.NewModule()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		pcodetest.FixedDecoder{Ops: cbranchOps()}, module, arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Lifted, status)

	state := pcodetest.NewState()
	state.Cells[72] = 0
	result, err := pcodetest.Interpret(fn, state)
	require.NoError(t, err)
	require.Equal(t, uint8(0), result.BranchTaken)
	require.Equal(t, uint64(0x1004), result.NextPC)
}

func TestLift_ClaimEq_BranchIndirect(t *testing.T) {
	arch, mem, userOps := newHarness()
	claimed := pcode.Varnode{Space: pcode.SpaceConst, Offset: 0xdead, Size: 8}
	actual := pcode.Varnode{Space: pcode.SpaceRegister, Offset: 16, Size: 8} // RCX
	ops := []pcode.Op{
		{Opcode: pcode.OpCallOther, Seq: 0,
			Inputs: []pcode.Varnode{
				{Space: pcode.SpaceConst, Offset: 0, Size: 4}, // index of "claim_eq"
				claimed,
				actual,
			}},
		{Opcode: pcode.OpBranchInd, Seq: 1, Inputs: []pcode.Varnode{claimed}},
	}
	userOps.Names = []string{pcode.ClaimEqName}

	module := ir.NewModule()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		pcodetest.FixedDecoder{Ops: ops}, module, arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Lifted, status)

	state := pcodetest.NewState()
	putU64(state, 16, 0x3000)
	result, err := pcodetest.Interpret(fn, state)
	require.NoError(t, err)
	require.Equal(t, uint64(0x3000), result.NextPC)
}

// TestLift_ClaimEq_BranchDirect is literal end-to-end scenario 5 (spec.md
// §9): claim_eq(const=0xDEAD, r1); BRANCH target=const(0xDEAD) with
// r1=0x4000 must yield next-PC==0x4000, not the literal 0xDEAD.
func TestLift_ClaimEq_BranchDirect(t *testing.T) {
	arch, mem, userOps := newHarness()
	claimed := pcode.Varnode{Space: pcode.SpaceConst, Offset: 0xdead, Size: 8}
	actual := pcode.Varnode{Space: pcode.SpaceRegister, Offset: 8, Size: 8} // RBX
	ops := []pcode.Op{
		{Opcode: pcode.OpCallOther, Seq: 0,
			Inputs: []pcode.Varnode{
				{Space: pcode.SpaceConst, Offset: 0, Size: 4},
				claimed,
				actual,
			}},
		{Opcode: pcode.OpBranch, Seq: 1, Inputs: []pcode.Varnode{claimed}},
	}
	userOps.Names = []string{pcode.ClaimEqName}

	module := ir.NewModule()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		pcodetest.FixedDecoder{Ops: ops}, module, arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Lifted, status)

	state := pcodetest.NewState()
	putU64(state, 8, 0x4000)
	result, err := pcodetest.Interpret(fn, state)
	require.NoError(t, err)
	require.Equal(t, uint64(0x4000), result.NextPC)
}

// TestLift_Branch_UnclaimedConstTarget_IsUnsupported covers the other half
// of spec.md §5.5.1: a direct branch/call whose target is still in constant
// space after claim resolution (i.e. never claimed) is Unsupported.
func TestLift_Branch_UnclaimedConstTarget_IsUnsupported(t *testing.T) {
	arch, mem, userOps := newHarness()
	ops := []pcode.Op{
		{Opcode: pcode.OpBranch, Seq: 0,
			Inputs: []pcode.Varnode{{Space: pcode.SpaceConst, Offset: 0x2000, Size: 8}}},
	}
	status, _ := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		pcodetest.FixedDecoder{Ops: ops}, ir.NewModule(), arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Unsupported, status)
}

// TestLift_ClaimContext_ClearedAfterConsumingOp guards against a claim
// leaking past the op that consumes it: only the op immediately following
// claim_eq may see the substitution (spec.md §4.3); a later op referencing
// the same constant offset must see the literal constant again.
func TestLift_ClaimContext_ClearedAfterConsumingOp(t *testing.T) {
	arch, mem, userOps := newHarness()
	claimed := pcode.Varnode{Space: pcode.SpaceConst, Offset: 0xdead, Size: 8}
	actual := pcode.Varnode{Space: pcode.SpaceRegister, Offset: 16, Size: 8} // RCX
	ops := []pcode.Op{
		{Opcode: pcode.OpCallOther, Seq: 0,
			Inputs: []pcode.Varnode{
				{Space: pcode.SpaceConst, Offset: 0, Size: 4},
				claimed,
				actual,
			}},
		{Opcode: pcode.OpCopy, Seq: 1, // consumes the claim
			Output: &pcode.Varnode{Space: pcode.SpaceRegister, Offset: 0, Size: 8},
			Inputs: []pcode.Varnode{claimed}},
		{Opcode: pcode.OpCopy, Seq: 2, // claim already cleared: sees the literal
			Output: &pcode.Varnode{Space: pcode.SpaceRegister, Offset: 24, Size: 8},
			Inputs: []pcode.Varnode{claimed}},
	}
	userOps.Names = []string{pcode.ClaimEqName}

	module := ir.NewModule()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		pcodetest.FixedDecoder{Ops: ops}, module, arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Lifted, status)

	state := pcodetest.NewState()
	putU64(state, 16, 0x3000)
	_, err := pcodetest.Interpret(fn, state)
	require.NoError(t, err)
	require.Equal(t, uint64(0x3000), getU64(state, 0))
	require.Equal(t, uint64(0xdead), getU64(state, 24))
}

func TestLift_Piece(t *testing.T) {
	arch, mem, userOps := newHarness()
	ops := []pcode.Op{
		{Opcode: pcode.OpPiece, Seq: 0,
			Output: &pcode.Varnode{Space: pcode.SpaceRegister, Offset: 0, Size: 8},
			Inputs: []pcode.Varnode{
				{Space: pcode.SpaceRegister, Offset: 8, Size: 4},  // hi: EBX
				{Space: pcode.SpaceRegister, Offset: 16, Size: 4}, // lo: ECX
			}},
	}
	module := ir.NewModule()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		pcodetest.FixedDecoder{Ops: ops}, module, arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Lifted, status)

	state := pcodetest.NewState()
	for i := 0; i < 4; i++ {
		state.Cells[8+i] = byte(uint32(0x12345678) >> (8 * i))
		state.Cells[16+i] = byte(uint32(0x9abcdef0) >> (8 * i))
	}
	_, err := pcodetest.Interpret(fn, state)
	require.NoError(t, err)
	require.Equal(t, uint64(0x123456789abcdef0), getU64(state, 0))
}

func TestLift_IntCarry(t *testing.T) {
	arch, mem, userOps := newHarness()
	ops := []pcode.Op{
		{Opcode: pcode.OpIntCarry, Seq: 0,
			Output: &pcode.Varnode{Space: pcode.SpaceUnique, Offset: 0x10, Size: 1},
			Inputs: []pcode.Varnode{
				{Space: pcode.SpaceRegister, Offset: 0, Size: 8},
				{Space: pcode.SpaceRegister, Offset: 8, Size: 8},
			}},
		{Opcode: pcode.OpCopy, Seq: 1,
			Output: &pcode.Varnode{Space: pcode.SpaceRegister, Offset: 72, Size: 1},
			Inputs: []pcode.Varnode{{Space: pcode.SpaceUnique, Offset: 0x10, Size: 1}}},
	}
	module := ir.NewModule()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		pcodetest.FixedDecoder{Ops: ops}, module, arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Lifted, status)

	state := pcodetest.NewState()
	putU64(state, 0, 0xffffffffffffffff)
	putU64(state, 8, 1)
	_, err := pcodetest.Interpret(fn, state)
	require.NoError(t, err)
	require.Equal(t, byte(1), state.Cells[72])
}

func TestLift_BranchTakenSideChannel(t *testing.T) {
	arch, mem, userOps := newHarness()
	ops := []pcode.Op{
		{Opcode: pcode.OpCopy, Seq: 0,
			Output: &pcode.Varnode{Space: pcode.SpaceRegister, Offset: 0, Size: 8},
			Inputs: []pcode.Varnode{{Space: pcode.SpaceRegister, Offset: 8, Size: 8}}},
	}
	bt := &pcode.BranchTakenDescriptor{Index: 0, Varnode: pcode.Varnode{Space: pcode.SpaceConst, Offset: 1, Size: 1}}
	module := ir.NewModule()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		pcodetest.FixedDecoder{Ops: ops}, module, arch, mem, userOps, bt,
	)
	require.Equal(t, pcode.Lifted, status)

	state := pcodetest.NewState()
	result, err := pcodetest.Interpret(fn, state)
	require.NoError(t, err)
	require.Equal(t, uint8(1), result.BranchTaken)
}

func TestLift_DecodeFailure_IsInvalid(t *testing.T) {
	arch, mem, userOps := newHarness()
	status, fn := pcode.Lift(
		pcode.Instruction{PC: 0x1000, Bytes: nil, Length: 4},
		failingDecoder{}, ir.NewModule(), arch, mem, userOps, nil,
	)
	require.Equal(t, pcode.Invalid, status)
	require.Nil(t, fn)
}

type failingDecoder struct{}

func (failingDecoder) Decode(pc uint64, bytes []byte) ([]pcode.Op, error) {
	return nil, errDecode
}

var errDecode = decodeError("bad instruction bytes")

type decodeError string

func (e decodeError) Error() string { return string(e) }
