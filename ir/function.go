package ir

// Signature describes a Function's parameter and result types.
type Signature struct {
	Params  []Type
	Results []Type
}

// Linkage mirrors the subset of LLVM-style linkage the emitted instruction
// functions need: always-inline, internal to the enclosing Module.
type Linkage byte

const (
	LinkageExternal Linkage = iota
	LinkageInternal
)

// Function is a single compiled unit of the target IR: a Builder plus the
// declared Signature and the emitted-function attributes from spec.md §6.
type Function struct {
	Name        string
	Sig         Signature
	AlwaysInline bool
	Linkage     Linkage

	b *builder
}

// NewFunction allocates a Function and its Builder.
func NewFunction(name string, sig Signature) *Function {
	return &Function{Name: name, Sig: sig, b: newBuilder()}
}

// Builder returns the Builder used to construct this function's body.
func (f *Function) Builder() Builder { return f.b }

// Param returns a Value referencing the i-th function parameter. Parameters
// are conceptually defined at function entry; callers read them directly
// as Values rather than through a load, matching how CFGEmitter hands the
// state/memory/branch-taken/next-pc pointers to the lowering code.
func (f *Function) Param(i int) Value {
	return Value(ValueID(paramValueIDBase + i)).setType(f.Sig.Params[i])
}

// paramValueIDBase keeps parameter Value IDs out of the range the Builder's
// allocateValue counter produces, so they never collide with an
// instruction-produced Value.
const paramValueIDBase = 1 << 20

// EntryBlock returns the function's first basic block. NewFunction does not
// allocate it automatically: InstructionLifter allocates the entry block
// itself, and CFGEmitter allocates the exit block on first use.
func (f *Function) EntryBlock() BasicBlock {
	blocks := f.b.Blocks()
	if len(blocks) == 0 {
		return nil
	}
	return blocks[0]
}

// Blocks returns every basic block allocated in this function.
func (f *Function) Blocks() []BasicBlock { return f.b.Blocks() }

// String returns a debug dump of the function.
func (f *Function) String() string {
	return f.Name + "\n" + f.b.Format()
}
