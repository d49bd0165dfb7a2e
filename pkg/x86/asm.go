package x86

import (
	"encoding/binary"
	"fmt"
	"math"
)

// RelocKind tells Relocate how to compute the final value of a pending
// 32-bit field.
type RelocKind int

const (
	// Absolute32: the field receives symbol value + addend, where the
	// addend is whatever the emitter wrote into the field.
	Absolute32 RelocKind = iota
	// RelNext32: the field receives symbol value − address of the next
	// instruction (base + offset + 4), the displacement form used by
	// near-relative call.
	RelNext32
)

func (k RelocKind) String() string {
	switch k {
	case Absolute32:
		return "abs32"
	case RelNext32:
		return "rel32"
	}
	return fmt.Sprintf("RelocKind(%d)", int(k))
}

// Relocation is a pending 32-bit field at Offset within the code buffer
// whose final value depends on Symbol.
type Relocation struct {
	Offset int
	Symbol string
	Kind   RelocKind
}

// Assembler accumulates x86 instruction bytes, a trailing constant pool
// of doubles, and pending relocations.
//
// Typical protocol: emit instructions (registering constants as you
// go), fix the buffer's load address with SetBase, resolve every symbol
// with Relocate, check Unresolved is empty, then copy Image to the
// destination.
type Assembler struct {
	code   []byte
	pool   []float64
	relocs []Relocation
	base   uint32 // load address of code[0]
}

// New creates an empty assembler.
func New() *Assembler {
	return &Assembler{code: make([]byte, 0, 256)}
}

// CodeSize returns the number of instruction bytes emitted so far,
// which is also the offset of the constant pool within the image.
func (a *Assembler) CodeSize() int {
	return len(a.code)
}

// Constant registers a double in the constant pool and returns its slot
// index. The pool is laid out contiguously after the last instruction
// byte in the final image.
func (a *Assembler) Constant(v float64) int {
	a.pool = append(a.pool, v)
	return len(a.pool) - 1
}

// PoolSize returns the size of the constant pool in bytes.
func (a *Assembler) PoolSize() int {
	return len(a.pool) * 8
}

// Image assembles the final byte image: code followed by the constant
// pool.
func (a *Assembler) Image() []byte {
	img := make([]byte, 0, len(a.code)+len(a.pool)*8)
	img = append(img, a.code...)
	var buf [8]byte
	for _, v := range a.pool {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		img = append(img, buf[:]...)
	}
	return img
}

// SetBase fixes the load address of the first code byte. RelNext32
// relocations are computed against it.
func (a *Assembler) SetBase(base uint32) {
	a.base = base
}

// Relocate resolves every pending reference to the named symbol.
func (a *Assembler) Relocate(symbol string, value uint32) {
	remaining := a.relocs[:0]
	for _, rel := range a.relocs {
		if rel.Symbol != symbol {
			remaining = append(remaining, rel)
			continue
		}
		slot := a.code[rel.Offset : rel.Offset+4]
		switch rel.Kind {
		case Absolute32:
			addend := binary.LittleEndian.Uint32(slot)
			binary.LittleEndian.PutUint32(slot, value+addend)
		case RelNext32:
			next := a.base + uint32(rel.Offset) + 4
			binary.LittleEndian.PutUint32(slot, value-next)
		}
	}
	a.relocs = remaining
}

// Unresolved returns the symbols with pending relocations. A non-empty
// result after all Relocate calls is a programming error in the caller.
func (a *Assembler) Unresolved() []string {
	seen := make(map[string]bool)
	var syms []string
	for _, rel := range a.relocs {
		if !seen[rel.Symbol] {
			seen[rel.Symbol] = true
			syms = append(syms, rel.Symbol)
		}
	}
	return syms
}

// ------------------------------------------------------------------------
// Raw emission
// ------------------------------------------------------------------------

func (a *Assembler) emitByte(b byte) {
	a.code = append(a.code, b)
}

func (a *Assembler) emitBytes(bs ...byte) {
	a.code = append(a.code, bs...)
}

func (a *Assembler) emitU32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	a.code = append(a.code, buf[:]...)
}

// emitImm32 emits a 32-bit immediate, recording a relocation when the
// operand is symbolic. The addend written into the slot is the
// operand's numeric part.
func (a *Assembler) emitImm32(op Operand, kind RelocKind) {
	if op.Sym != "" {
		a.relocs = append(a.relocs, Relocation{Offset: len(a.code), Symbol: op.Sym, Kind: kind})
	}
	a.emitU32(uint32(op.Imm))
}

// modRM synthesizes the ModR/M byte (and SIB and displacement) for a
// memory or register operand, with reg holding the /digit sub-opcode or
// the register number of the other operand.
//
// Displacement size is minimal: none when disp==0 and the base is not
// EBP, disp8 when the displacement fits signed 8-bit, else disp32.
// Symbolic operands always use the disp32 form so the 4-byte slot can
// be patched.
func (a *Assembler) modRM(reg byte, rm Operand) {
	switch rm.Kind {
	case KindReg:
		a.emitByte(0xC0 | reg<<3 | byte(rm.Reg))

	case KindMem:
		if !rm.HasBase {
			// Absolute: mod=00, rm=101 means disp32 with no base in
			// 32-bit mode.
			a.emitByte(0x00 | reg<<3 | 0x05)
			if rm.Sym != "" {
				a.relocs = append(a.relocs, Relocation{Offset: len(a.code), Symbol: rm.Sym, Kind: Absolute32})
			}
			a.emitU32(uint32(rm.Disp))
			return
		}

		base := byte(rm.Base)
		needSIB := rm.Base == ESP

		switch {
		case rm.Sym != "":
			// Symbolic displacement: force disp32.
			a.emitByte(0x80 | reg<<3 | base)
			if needSIB {
				a.emitByte(0x24)
			}
			a.relocs = append(a.relocs, Relocation{Offset: len(a.code), Symbol: rm.Sym, Kind: Absolute32})
			a.emitU32(uint32(rm.Disp))

		case rm.Disp == 0 && rm.Base != EBP:
			a.emitByte(0x00 | reg<<3 | base)
			if needSIB {
				a.emitByte(0x24)
			}

		case rm.Disp >= -128 && rm.Disp <= 127:
			a.emitByte(0x40 | reg<<3 | base)
			if needSIB {
				a.emitByte(0x24)
			}
			a.emitByte(byte(int8(rm.Disp)))

		default:
			a.emitByte(0x80 | reg<<3 | base)
			if needSIB {
				a.emitByte(0x24)
			}
			a.emitU32(uint32(rm.Disp))
		}

	default:
		panic(fmt.Sprintf("x86: bad r/m operand %s", rm))
	}
}

// ------------------------------------------------------------------------
// Integer instructions
// ------------------------------------------------------------------------

// Push emits push r32 (50+r), push imm8 (6A ib) or push imm32 (68 id).
func (a *Assembler) Push(src Operand) {
	switch src.Kind {
	case KindReg:
		a.emitByte(0x50 + byte(src.Reg))
	case KindImm:
		if src.Sym == "" && src.Imm >= -128 && src.Imm <= 127 {
			a.emitBytes(0x6A, byte(int8(src.Imm)))
			return
		}
		a.emitByte(0x68)
		a.emitImm32(src, Absolute32)
	default:
		panic(fmt.Sprintf("x86: push %s not supported", src))
	}
}

// Mov emits a 32-bit move. Supported forms: reg←reg, mem←reg (89 /r),
// reg←mem (8B /r), reg←imm32 (B8+r id).
func (a *Assembler) Mov(dst, src Operand) {
	switch {
	case src.Kind == KindReg && (dst.Kind == KindReg || dst.Kind == KindMem):
		a.emitByte(0x89)
		a.modRM(byte(src.Reg), dst)
	case dst.Kind == KindReg && src.Kind == KindMem:
		a.emitByte(0x8B)
		a.modRM(byte(dst.Reg), src)
	case dst.Kind == KindReg && src.Kind == KindImm:
		a.emitByte(0xB8 + byte(dst.Reg))
		a.emitImm32(src, Absolute32)
	default:
		panic(fmt.Sprintf("x86: mov %s, %s not supported", dst, src))
	}
}

// Add emits a 32-bit add: reg/mem += reg (01 /r), or reg/mem += imm
// (83 /0 ib, 81 /0 id). Symbolic immediates always take the imm32 form.
func (a *Assembler) Add(dst, src Operand) {
	a.arith(0x01, 0, dst, src)
}

// Sub emits a 32-bit subtract: reg/mem -= reg (29 /r), or reg/mem -=
// imm (83 /5 ib, 81 /5 id). Symbolic immediates always take the imm32
// form so the slot can be relocated.
func (a *Assembler) Sub(dst, src Operand) {
	a.arith(0x29, 5, dst, src)
}

// arith is the shared encoder for add/sub group instructions:
// regOpcode is the r/m←reg form, digit the /digit of the immediate
// group (81/83).
func (a *Assembler) arith(regOpcode byte, digit byte, dst, src Operand) {
	switch src.Kind {
	case KindReg:
		a.emitByte(regOpcode)
		a.modRM(byte(src.Reg), dst)
	case KindImm:
		if src.Sym == "" && src.Imm >= -128 && src.Imm <= 127 {
			a.emitByte(0x83)
			a.modRM(digit, dst)
			a.emitByte(byte(int8(src.Imm)))
			return
		}
		a.emitByte(0x81)
		a.modRM(digit, dst)
		a.emitImm32(src, Absolute32)
	default:
		panic(fmt.Sprintf("x86: arith source %s not supported", src))
	}
}

// ------------------------------------------------------------------------
// x87 floating point instructions
//
// The memory-operand forms all use the DC/DD opcodes of the D8..DF
// escape group with the ModR/M reg field selecting the sub-operation.
// ------------------------------------------------------------------------

// Fldl emits fld m64: load a double onto the x87 stack (DD /0).
func (a *Assembler) Fldl(src Operand) {
	a.emitByte(0xDD)
	a.modRM(0, src)
}

// Fstpl emits fstp m64: store ST0 as a double and pop (DD /3).
func (a *Assembler) Fstpl(dst Operand) {
	a.emitByte(0xDD)
	a.modRM(3, dst)
}

// Faddl emits fadd m64: ST0 += m64 (DC /0).
func (a *Assembler) Faddl(src Operand) {
	a.emitByte(0xDC)
	a.modRM(0, src)
}

// Fmull emits fmul m64: ST0 *= m64 (DC /1).
func (a *Assembler) Fmull(src Operand) {
	a.emitByte(0xDC)
	a.modRM(1, src)
}

// Fsubl emits fsub m64: ST0 = ST0 − m64 (DC /4).
func (a *Assembler) Fsubl(src Operand) {
	a.emitByte(0xDC)
	a.modRM(4, src)
}

// Fsubrl emits fsubr m64: ST0 = m64 − ST0 (DC /5). The reverse form is
// what a stack machine wants when the memory operand is the left-hand
// value and ST0 holds the right.
func (a *Assembler) Fsubrl(src Operand) {
	a.emitByte(0xDC)
	a.modRM(5, src)
}

// Fdivl emits fdiv m64: ST0 = ST0 / m64 (DC /6).
func (a *Assembler) Fdivl(src Operand) {
	a.emitByte(0xDC)
	a.modRM(6, src)
}

// Fdivrl emits fdivr m64: ST0 = m64 / ST0 (DC /7).
func (a *Assembler) Fdivrl(src Operand) {
	a.emitByte(0xDC)
	a.modRM(7, src)
}

// ------------------------------------------------------------------------
// Control
// ------------------------------------------------------------------------

// Call emits a near-relative call (E8 rel32) to a symbolic target,
// recording a RelNext32 relocation.
func (a *Assembler) Call(symbol string) {
	a.emitByte(0xE8)
	a.relocs = append(a.relocs, Relocation{Offset: len(a.code), Symbol: symbol, Kind: RelNext32})
	a.emitU32(0)
}

// Leave emits leave (C9): mov esp, ebp; pop ebp.
func (a *Assembler) Leave() {
	a.emitByte(0xC9)
}

// Ret emits a near return (C3).
func (a *Assembler) Ret() {
	a.emitByte(0xC3)
}
