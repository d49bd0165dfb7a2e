package bytecode

import (
	"github.com/chazu/jitcalc/compiler"
)

// Compiler translates an expression AST into a bytecode program,
// tracking the peak operand stack depth as it goes.
type Compiler struct {
	program *Program
	depth   int // current shadow stack depth, in values
	peak    int // running maximum of depth
}

// Compile translates an AST into a bytecode program. The tree is walked
// post-order: a Value emits Push, a Binary emits its left subtree, its
// right subtree, then the operator opcode. Post-order emission
// guarantees a well-formed program, and compiling the same tree twice
// yields identical byte sequences.
func Compile(root *compiler.Node) *Program {
	c := &Compiler{
		program: &Program{Code: make([]byte, 0, 64)},
	}
	c.emit(root)
	c.program.Emit(OpRet)
	c.program.StackSize = c.peak * 8
	return c.program
}

var opcodeForBinOp = map[compiler.BinOp]Opcode{
	compiler.OpAdd: OpAdd,
	compiler.OpSub: OpSub,
	compiler.OpMul: OpMul,
	compiler.OpDiv: OpDiv,
	compiler.OpPow: OpPow,
}

// emit walks one node.
func (c *Compiler) emit(n *compiler.Node) {
	switch n.Kind {
	case compiler.NodeValue:
		c.program.EmitPush(n.Value)
		c.push()
	case compiler.NodeBinary:
		c.emit(n.Left)
		c.emit(n.Right)
		c.program.Emit(opcodeForBinOp[n.Op])
		c.pop()
	}
}

func (c *Compiler) push() {
	c.depth++
	if c.depth > c.peak {
		c.peak = c.depth
	}
}

func (c *Compiler) pop() {
	c.depth--
}
