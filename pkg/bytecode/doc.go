// Package bytecode models the compiled form of programs for a register-style
// dynamic-language VM: units of instructions with three tagged operand slots
// (result, op1, op2) and an extended value, plus the constant pool and the
// compiled-variable table each unit carries.
//
// # Instruction Table
//
// Every opcode has a mnemonic and a Signature that says, per operand slot,
// how the raw operand is to be read:
//
//   - Var slots are read through the operand's type tag (constant, temporary
//     or compiled variable), restricted to a TypeMask
//   - Jump, Arg and Literal slots carry an untagged number
//   - Infer slots are polymorphic: the tag decides, and an unused tag falls
//     back to a fixed kind
//
// Some opcodes are families whose mnemonic depends on the extended value,
// such as ASSIGN_OP (ASSIGN_ADD, ASSIGN_CONCAT, ...) and INCLUDE_OR_EVAL.
// Lookup resolves both. The table is built once at start-up and never
// changes.
//
// # Program files
//
// Programs are stored as canonical CBOR wrapped in a small versioned
// envelope, see MarshalProgram. Canonical encoding makes equal units encode
// to equal bytes, which the store relies on for content addressing.
//
// # Building units
//
// Builder assembles units by hand the way a compiler back end would. It is
// used by tests and by tools that synthesize programs.
package bytecode
