package pcode

import (
	"fmt"

	"github.com/Colton1skees/remill/pcode/pcodeapi"
)

// claimContext records claim_eq substitutions made by CALLOTHER within one
// instruction lift, per spec.md §3/§4.3: "this constant varnode's value
// really equals this other (usually computed) varnode". Every varnode read
// (readVarnode) and the BRANCH/CALL/CBRANCH target resolution consult it,
// recovering the value SLEIGH's optimizer would otherwise have obscured
// behind a folded constant.
type claimContext struct {
	// claims maps a constant varnode's (offset, size) to the varnode it
	// stands in for, keyed by offset since SLEIGH only ever claims
	// constants.
	claims map[uint64]Varnode
}

func newClaimContext() *claimContext {
	return &claimContext{claims: map[uint64]Varnode{}}
}

// addClaim records that constVarnode's value equals actual, per the
// claim_eq user-op's two inputs.
func (c *claimContext) addClaim(constVarnode, actual Varnode) {
	if pcodeapi.TraceClaims {
		fmt.Printf("claim_eq: %s == %s\n", constVarnode, actual)
	}
	c.claims[constVarnode.Offset] = actual
}

// clear discards every recorded claim. Lift calls it after every op that
// is not itself a claim_eq CALLOTHER, so a claim is visible only to the op
// that immediately follows it.
func (c *claimContext) clear() {
	for k := range c.claims {
		delete(c.claims, k)
	}
}

// resolveOffset returns the varnode claimed for a constant varnode at the
// given offset, if any. CBRANCH's condition varnode is looked up here
// before falling back to its own literal value.
func (c *claimContext) resolveOffset(offset uint64) (Varnode, bool) {
	v, ok := c.claims[offset]
	if ok && pcodeapi.TraceClaims {
		fmt.Printf("claim_eq: resolved offset %#x to %s\n", offset, v)
	}
	return v, ok
}

// resolve returns the varnode claimed in place of v, if v is a constant
// with a recorded claim; otherwise it returns v unchanged.
func (c *claimContext) resolve(v Varnode) Varnode {
	if v.Space != SpaceConst {
		return v
	}
	if claimed, ok := c.resolveOffset(v.Offset); ok {
		return claimed
	}
	return v
}
