package interpose

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"golang.org/x/arch/x86/x86asm"
)

const (
	// OpcodeCall is CALL rel32
	OpcodeCall byte = 0xE8
	// OpcodeJump is JMP rel32
	OpcodeJump byte = 0xE9
	// JumpSize is the length of a rel32 CALL or JMP
	JumpSize = 5
)

// decoder mode for the host's code
var codeMode = int(unsafe.Sizeof(uintptr(0))) * 8

// CallSite is the patched instruction of a hook record.
type CallSite [JumpSize]byte

// Displacement returns target - (site + JumpSize) as a rel32 operand.
func Displacement(site, target uintptr) (int32, error) {
	diff := target - (site + JumpSize)
	if codeMode == 32 {
		// every 32-bit address is reachable
		return int32(diff), nil
	}
	d := int64(diff)
	if d < math.MinInt32 || d > math.MaxInt32 {
		return 0, fmt.Errorf("%w: 0x%X -> 0x%X", ErrDisplacementRange, site, target)
	}
	return int32(d), nil
}

// EncodeJump returns the bytes that make the instruction at site transfer
// control to target with the given opcode. Nothing is written.
func EncodeJump(site, target uintptr, opcode byte) (CallSite, error) {
	var seq CallSite
	if !supportedOpcode(opcode) {
		return seq, fmt.Errorf("unsupported opcode 0x%02X", opcode)
	}
	rel, err := Displacement(site, target)
	if err != nil {
		return seq, err
	}
	seq[0] = opcode
	binary.LittleEndian.PutUint32(seq[1:], uint32(rel))
	return seq, nil
}

// JumpTarget decodes the destination of a rel32 CALL or JMP at site.
func JumpTarget(site uintptr, code []byte) (uintptr, error) {
	if len(code) < JumpSize || !supportedOpcode(code[0]) {
		return 0, fmt.Errorf("no rel32 transfer at 0x%08X", site)
	}
	rel := int32(binary.LittleEndian.Uint32(code[1:JumpSize]))
	return site + JumpSize + uintptr(int64(rel)), nil
}

// VerifySite checks that code, read from site, starts with a rel32
// transfer using opcode.
func VerifySite(name string, site uintptr, code []byte, opcode byte) error {
	mismatch := func(found string) error {
		return fmt.Errorf("%w for hook %s at 0x%08X (expected 0x%02X, found %s)",
			ErrOpcodeMismatch, name, site, opcode, found)
	}
	if len(code) == 0 {
		return mismatch("nothing")
	}
	if code[0] != opcode {
		return mismatch(fmt.Sprintf("0x%02X", code[0]))
	}
	inst, err := x86asm.Decode(code, codeMode)
	if err != nil {
		return mismatch(err.Error())
	}
	if inst.Len != JumpSize {
		return mismatch(fmt.Sprintf("%d-byte %s", inst.Len, inst.Op))
	}
	if _, ok := inst.Args[0].(x86asm.Rel); !ok {
		return mismatch(inst.String())
	}
	return nil
}

func supportedOpcode(op byte) bool {
	return op == OpcodeCall || op == OpcodeJump
}
