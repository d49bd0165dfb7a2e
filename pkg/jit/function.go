package jit

import (
	"errors"
	"fmt"
	"math"
	"unsafe"

	"github.com/chazu/jitcalc/pkg/bytecode"
)

// ErrUnsupported is returned by Compile when JIT-compiled code cannot
// execute in this process. The emitter targets 32-bit x86, so native
// execution requires a 386 build.
var ErrUnsupported = errors.New("jit: native execution requires a 386 build")

// Function is an owning handle over a page-aligned executable mapping
// populated with a compiled program. The mapping is readable+executable
// and never writable once Call becomes reachable. The handle must
// outlive every Call; Close returns the pages to the OS.
type Function struct {
	mem   []byte
	entry uintptr
}

// Compile translates a bytecode program and loads it into executable
// memory. The image is assembled and patched in ordinary memory, copied
// into a fresh read-write mapping, and only then flipped to
// read+execute, so the mapping is never writable and executable at
// once.
func Compile(p *bytecode.Program) (*Function, error) {
	if !Supported {
		return nil, ErrUnsupported
	}

	c, err := Translate(p)
	if err != nil {
		return nil, err
	}

	mem, err := mapExec(c.Size())
	if err != nil {
		return nil, fmt.Errorf("jit: allocating executable memory: %w", err)
	}

	base := uintptr(unsafe.Pointer(&mem[0]))
	if uint64(base)+uint64(c.Size()) > math.MaxUint32 {
		unmapExec(mem)
		return nil, errors.New("jit: executable mapping outside the 32-bit address space")
	}

	img, err := c.finalize(uint32(base), uint32(powaddr()))
	if err != nil {
		unmapExec(mem)
		return nil, err
	}
	copy(mem, img)

	if err := protectExec(mem); err != nil {
		unmapExec(mem)
		return nil, fmt.Errorf("jit: marking memory executable: %w", err)
	}

	log.Debugf("loaded %d byte function at %#x", len(img), base)

	return &Function{mem: mem, entry: base}, nil
}

// Call invokes the compiled function and returns its result.
func (f *Function) Call() float64 {
	return callraw(f.entry)
}

// Close unmaps the executable region. The function pointer must not be
// called afterwards.
func (f *Function) Close() error {
	if f.mem == nil {
		return nil
	}
	err := unmapExec(f.mem)
	f.mem = nil
	f.entry = 0
	return err
}
