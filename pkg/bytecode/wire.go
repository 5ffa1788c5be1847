package bytecode

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// FormatVersion is the current program file format version.
// Increment when making incompatible changes to the format.
const FormatVersion uint16 = 1

// Magic identifies program files: "OPDP".
const Magic = "OPDP"

// ErrBadVersion is returned when a program file was written by an
// incompatible version or is not a program file at all.
var ErrBadVersion = errors.New("bytecode: unsupported program file")

// fileEnvelope is the top-level object of a program file.
type fileEnvelope struct {
	Magic   string   `cbor:"1,keyasint"`
	Version uint16   `cbor:"2,keyasint"`
	Program *Program `cbor:"3,keyasint"`
}

// cborEncMode uses canonical encoding so equal units encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalProgram serializes a Program into a versioned program file.
func MarshalProgram(p *Program) ([]byte, error) {
	if p == nil {
		return nil, errors.New("bytecode: marshal nil program")
	}
	return cborEncMode.Marshal(fileEnvelope{Magic: Magic, Version: FormatVersion, Program: p})
}

// UnmarshalProgram deserializes a program file.
func UnmarshalProgram(data []byte) (*Program, error) {
	var env fileEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal program: %w", err)
	}
	if env.Magic != Magic || env.Version != FormatVersion {
		return nil, fmt.Errorf("%w: magic %q version %d", ErrBadVersion, env.Magic, env.Version)
	}
	if env.Program == nil {
		return nil, fmt.Errorf("bytecode: unmarshal program: empty envelope")
	}
	return env.Program, nil
}

// MarshalUnit serializes a single Unit to canonical CBOR bytes.
func MarshalUnit(u *Unit) ([]byte, error) {
	return cborEncMode.Marshal(u)
}

// UnmarshalUnit deserializes a Unit from CBOR bytes.
func UnmarshalUnit(data []byte) (*Unit, error) {
	var u Unit
	if err := cbor.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal unit: %w", err)
	}
	return &u, nil
}
