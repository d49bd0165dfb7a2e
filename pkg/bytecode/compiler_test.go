package bytecode

import (
	"bytes"
	"testing"

	"github.com/chazu/jitcalc/compiler"
)

func mustParse(t *testing.T, input string) *compiler.Node {
	t.Helper()
	n, err := compiler.Parse(input)
	if err != nil {
		t.Fatalf("parse %q: %v", input, err)
	}
	return n
}

func TestCompileValue(t *testing.T) {
	p := Compile(compiler.NewValue(2.5))

	// PUSH 2.5, RET
	if len(p.Code) != 10 {
		t.Fatalf("got %d bytes, want 10", len(p.Code))
	}
	if Opcode(p.Code[0]) != OpPush {
		t.Errorf("first opcode is %v, want PUSH", Opcode(p.Code[0]))
	}
	if v := p.ReadPush(0); v != 2.5 {
		t.Errorf("push immediate is %g, want 2.5", v)
	}
	if Opcode(p.Code[9]) != OpRet {
		t.Errorf("last opcode is %v, want RET", Opcode(p.Code[9]))
	}
	if p.StackSize != 8 {
		t.Errorf("stack size is %d, want 8", p.StackSize)
	}
}

func TestCompilePostOrder(t *testing.T) {
	// 2 + 3 * 4 compiles to: PUSH 2, PUSH 3, PUSH 4, MUL, ADD, RET
	p := Compile(mustParse(t, "2 + 3 * 4"))

	wantOps := []Opcode{OpPush, OpPush, OpPush, OpMul, OpAdd, OpRet}
	var gotOps []Opcode
	for ip := 0; ip < len(p.Code); ip += Opcode(p.Code[ip]).InstructionLen() {
		gotOps = append(gotOps, Opcode(p.Code[ip]))
	}

	if len(gotOps) != len(wantOps) {
		t.Fatalf("got %d instructions, want %d", len(gotOps), len(wantOps))
	}
	for i := range wantOps {
		if gotOps[i] != wantOps[i] {
			t.Errorf("instruction %d: got %v, want %v", i, gotOps[i], wantOps[i])
		}
	}
}

func TestCompileStackSize(t *testing.T) {
	tests := []struct {
		input string
		want  int // bytes
	}{
		{"1", 8},
		{"1 + 2", 16},
		{"1 + 2 + 3", 16},         // left-deep: depth never exceeds 2
		{"1 + (2 + (3 + 4))", 32}, // right-deep: one pending value per level
		{"(1 + 2) * (3 + 4)", 24},
	}

	for _, tt := range tests {
		p := Compile(mustParse(t, tt.input))
		if p.StackSize != tt.want {
			t.Errorf("%q: stack size %d, want %d", tt.input, p.StackSize, tt.want)
		}
	}
}

// Compiling the same AST twice yields identical bytes and stack size.
func TestCompileIdempotent(t *testing.T) {
	n := mustParse(t, "2 * (3 + 1/2) - 6 ^ 2")

	p1 := Compile(n)
	p2 := Compile(n)

	if !bytes.Equal(p1.Code, p2.Code) {
		t.Errorf("byte sequences differ:\n%x\n%x", p1.Code, p2.Code)
	}
	if p1.StackSize != p2.StackSize {
		t.Errorf("stack sizes differ: %d vs %d", p1.StackSize, p2.StackSize)
	}
}

func TestCompiledProgramsValidate(t *testing.T) {
	inputs := []string{
		"1",
		"-2 ^ 2",
		"2 + 3 * 4",
		"2 * (3 + 1/2) - 6",
		"1 + (2 + (3 + (4 + 5)))",
		"2 ^ 3 ^ 2",
	}

	for _, input := range inputs {
		p := Compile(mustParse(t, input))
		if err := p.Validate(); err != nil {
			t.Errorf("%q: validate: %v", input, err)
		}
	}
}

func TestValidateRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		p    *Program
	}{
		{"empty", &Program{}},
		{"underflow", &Program{Code: []byte{byte(OpAdd)}, StackSize: 8}},
		{"no ret", func() *Program {
			p := &Program{StackSize: 8}
			p.EmitPush(1)
			return p
		}()},
		{"truncated push", &Program{Code: []byte{byte(OpPush), 1, 2}, StackSize: 8}},
		{"unknown opcode", &Program{Code: []byte{0x7F}, StackSize: 8}},
		{"stack size too small", func() *Program {
			p := &Program{StackSize: 8}
			p.EmitPush(1)
			p.EmitPush(2)
			p.Emit(OpAdd)
			p.Emit(OpRet)
			return p
		}()},
	}

	for _, tt := range tests {
		if err := tt.p.Validate(); err == nil {
			t.Errorf("%s: expected validation error, got none", tt.name)
		}
	}
}
