// Package jit translates bytecode programs into 32-bit x86 machine
// code and materializes them as callable native functions.
//
// The emitted function is a zero-argument cdecl routine returning a
// double in ST0. Translation is pure and runs on any host; executing
// the result requires a 386 process (see Supported).
package jit

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/jitcalc/pkg/bytecode"
	"github.com/chazu/jitcalc/pkg/x86"
)

var log = commonlog.GetLogger("jitcalc.jit")

// Symbols resolved at load time.
const (
	// symData is the absolute address of the constant pool base.
	symData = "data"
	// symStackSize is the frame size subtracted from ESP in the
	// prologue.
	symStackSize = "stackSize"
	// symPow is the address of the external cdecl pow routine.
	symPow = "pow"
)

// Compiled is a translated but not yet loaded program: assembled
// instruction bytes, the constant pool, pending relocations, and the
// computed frame size.
type Compiled struct {
	asm   *x86.Assembler
	frame int
}

// Translate compiles a bytecode program to x86.
//
// Operand handling uses a compile-time shadow stack pointer sp measured
// in bytes below EBP. Exactly one live operand resides in ST0 at any
// opcode boundary; pending left-hand operands are spilled to
// [EBP-8 .. EBP-sp] in push order. The binary operators use the reverse
// x87 forms where needed because the spilled memory operand is the left
// operand while ST0 holds the right.
func Translate(p *bytecode.Program) (*Compiled, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	a := x86.New()

	// Prologue. The frame size is only known after the walk, so the
	// subtraction takes a symbolic immediate.
	a.Push(x86.R(x86.EBP))
	a.Mov(x86.R(x86.EBP), x86.R(x86.ESP))
	a.Sub(x86.R(x86.ESP), x86.SymImm(symStackSize))

	sp := 0       // shadow stack pointer, bytes below EBP
	peak := 0     // high-water mark of sp
	frameMin := 0 // extra frame demanded by pow argument slots

	ip := 0
	code := p.Code
	for ip < len(code) {
		op := bytecode.Opcode(code[ip])
		switch op {
		case bytecode.OpPush:
			// Spill the live value before loading the next one.
			if sp > 0 {
				a.Fstpl(x86.Ref(x86.EBP, int32(-sp)))
			}
			sp += 8
			if sp > peak {
				peak = sp
			}
			k := a.Constant(p.ReadPush(ip))
			a.Fldl(x86.Abs(symData, int32(k*8)))
			ip += 9

		case bytecode.OpAdd:
			sp -= 8
			a.Faddl(x86.Ref(x86.EBP, int32(-sp)))
			ip++

		case bytecode.OpSub:
			// mem - ST0: the spilled value is the left operand.
			sp -= 8
			a.Fsubrl(x86.Ref(x86.EBP, int32(-sp)))
			ip++

		case bytecode.OpMul:
			sp -= 8
			a.Fmull(x86.Ref(x86.EBP, int32(-sp)))
			ip++

		case bytecode.OpDiv:
			// mem / ST0, same reversal as subtraction.
			sp -= 8
			a.Fdivrl(x86.Ref(x86.EBP, int32(-sp)))
			ip++

		case bytecode.OpPow:
			// No x87 pow instruction: call the external routine.
			// Reload the spilled left operand, stage both operands in
			// the cdecl argument slots at [ESP] and [ESP+8], and make
			// sure the prologue leaves room for them.
			a.Fldl(x86.Ref(x86.EBP, int32(-(sp - 8))))
			a.Fstpl(x86.Ref(x86.ESP, 0))
			a.Fstpl(x86.Ref(x86.ESP, 8))
			a.Call(symPow)
			if sp+16 > frameMin {
				frameMin = sp + 16
			}
			sp -= 8
			ip++

		case bytecode.OpRet:
			a.Leave()
			a.Ret()
			ip++

		default:
			return nil, bytecode.ErrInvalidBytecode
		}
	}

	// One live value always rides in ST0, so the spill area can be one
	// slot smaller than the peak depth.
	frame := peak - 8
	if frameMin > frame {
		frame = frameMin
	}

	log.Debugf("translated %d bytecode bytes to %d code bytes, %d constants, frame %d",
		len(p.Code), a.CodeSize(), a.PoolSize()/8, frame)

	return &Compiled{asm: a, frame: frame}, nil
}

// CodeSize returns the size of the instruction stream, excluding the
// constant pool.
func (c *Compiled) CodeSize() int {
	return c.asm.CodeSize()
}

// Size returns the total image size: instructions plus constant pool.
func (c *Compiled) Size() int {
	return c.asm.CodeSize() + c.asm.PoolSize()
}

// FrameSize returns the stack frame size the prologue will allocate.
func (c *Compiled) FrameSize() int {
	return c.frame
}

// finalize fixes the load address, resolves every symbol, and returns
// the final image. The constant pool base is the load address plus the
// code size. An unresolved symbol after patching is a programming
// error, not an input error, and panics.
func (c *Compiled) finalize(base, pow uint32) ([]byte, error) {
	c.asm.SetBase(base)
	c.asm.Relocate(symData, base+uint32(c.asm.CodeSize()))
	c.asm.Relocate(symStackSize, uint32(c.frame))
	c.asm.Relocate(symPow, pow)

	if syms := c.asm.Unresolved(); len(syms) > 0 {
		panic(fmt.Sprintf("jit: unresolved relocations: %v", syms))
	}

	return c.asm.Image(), nil
}
