// Package disasm renders compiled units as human-readable opcode listings.
//
// Each instruction is decoded through the bytecode instruction table into a
// Row of typed operands, then laid out either as padded columns or as
// separator-joined fields. The listing is framed by a header describing the
// unit and followed by the live ranges of its compiled variables.
//
// Bad data never aborts a dump. Unknown opcodes and out-of-range references
// render as sentinel text and are counted in the Report returned by Dump.
package disasm
