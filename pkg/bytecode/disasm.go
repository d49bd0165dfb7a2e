package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the program.
func (p *Program) Disassemble() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; %d bytes, stack %d values\n", len(p.Code), p.StackSize/8))

	ip := 0
	for ip < len(p.Code) {
		op := Opcode(p.Code[ip])
		info, ok := GetOpcodeInfo(op)
		if !ok {
			sb.WriteString(fmt.Sprintf("%04d  %s\n", ip, info.Name))
			ip++
			continue
		}
		if ip+op.InstructionLen() > len(p.Code) {
			sb.WriteString(fmt.Sprintf("%04d  %s <truncated>\n", ip, info.Name))
			break
		}

		if op == OpPush {
			sb.WriteString(fmt.Sprintf("%04d  PUSH %.17g\n", ip, p.ReadPush(ip)))
		} else {
			sb.WriteString(fmt.Sprintf("%04d  %s\n", ip, info.Name))
		}
		ip += op.InstructionLen()
	}

	return sb.String()
}
