// Package container defines the PLTO v3 binary object container (spec.md
// §6, "Binary AST container") — the versioned, deterministic encoding the
// code generator emits and the runtime loads.
//
// Layout: the fixed 20-byte header spec.md §6 specifies verbatim (magic,
// little-endian version, then the three section offsets), followed by the
// source section (the original source bytes), the AST section (the
// gob-encoded codegen/ir.Module — the payload encoding itself is the one
// piece §9 leaves implementation-defined, chosen and recorded as this
// repo's canonical serializer in DESIGN.md), and the derived section (a
// JSON index of every top-level declaration, schema-validated against
// DerivedSchema so external tooling — the SDK, the MCP server, both out of
// scope here — can consume it without understanding the payload encoding).
// Each section is framed by its own 4-byte little-endian length prefix.
package container

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/plutolang/pluto/codegen/ir"
)

// Magic identifies a PLTO container file.
const Magic = "PLTO"

// Version is the container format version this package writes, and the
// highest version it reads (spec.md §6: "a reader supports lower-equal
// versions... rejects higher versions").
const Version = 3

// HeaderSize is the fixed byte size of Header (spec.md §6: "Fixed 20-byte
// header").
const HeaderSize = 20

// Header is the fixed 20-byte leading section of a container file:
//
//	offset 0:  4 bytes  magic "PLTO"
//	offset 4:  4 bytes  schema version, little-endian uint32
//	offset 8:  4 bytes  source-section offset, little-endian uint32
//	offset 12: 4 bytes  AST-section offset, little-endian uint32
//	offset 16: 4 bytes  derived-section offset, little-endian uint32
type Header struct {
	Magic         [4]byte
	Version       uint32
	SourceOffset  uint32
	ASTOffset     uint32
	DerivedOffset uint32
}

// DeclEntry is one row of the derived-section index: every top-level
// declaration's UUID, kind, and name (SPEC_FULL.md §3, "container
// derived-section index").
type DeclEntry struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// Derived is the full derived-section document.
type Derived struct {
	Decls []DeclEntry `json:"decls"`
}

// DerivedSchema is the published JSON Schema every Derived document emitted
// by this package must validate against.
const DerivedSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["decls"],
  "properties": {
    "decls": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "kind", "name"],
        "properties": {
          "id": {"type": "string"},
          "kind": {"type": "string"},
          "name": {"type": "string"}
        }
      }
    }
  }
}`

// Container is an in-memory PLTO v3 object: the original source, the
// lowered IR module, and the module's derived-section index.
type Container struct {
	Source  []byte
	Module  *ir.Module
	Derived Derived
}

// Write encodes c to w: the 20-byte header, then the source, AST, and
// derived sections in that order, each framed by a 4-byte little-endian
// length prefix. Section offsets in the header are computed from the
// actual encoded lengths, so they always describe this writer's
// sections-packed-immediately-after-the-header layout.
func Write(w io.Writer, c *Container) error {
	if err := ValidateDerived(c.Derived); err != nil {
		return fmt.Errorf("container: derived section failed schema validation: %w", err)
	}

	var astBuf bytes.Buffer
	if err := gob.NewEncoder(&astBuf).Encode(c.Module); err != nil {
		return fmt.Errorf("container: encode module: %w", err)
	}

	derivedBytes, err := json.Marshal(c.Derived)
	if err != nil {
		return fmt.Errorf("container: encode derived section: %w", err)
	}

	sourceOffset := uint32(HeaderSize)
	astOffset := sourceOffset + 4 + uint32(len(c.Source))
	derivedOffset := astOffset + 4 + uint32(astBuf.Len())

	hdr := Header{
		Version:       Version,
		SourceOffset:  sourceOffset,
		ASTOffset:     astOffset,
		DerivedOffset: derivedOffset,
	}
	copy(hdr.Magic[:], Magic)
	if err := writeHeader(w, hdr); err != nil {
		return fmt.Errorf("container: write header: %w", err)
	}

	if err := writeSection(w, c.Source); err != nil {
		return fmt.Errorf("container: write source section: %w", err)
	}
	if err := writeSection(w, astBuf.Bytes()); err != nil {
		return fmt.Errorf("container: write AST section: %w", err)
	}
	if err := writeSection(w, derivedBytes); err != nil {
		return fmt.Errorf("container: write derived section: %w", err)
	}
	return nil
}

// Read decodes a Container previously written by Write. It accepts any
// header version up to and including Version and rejects anything higher,
// per spec.md §6's forward-compatibility contract; this repo has only ever
// emitted Version, so there is no lower-version migration to perform yet.
func Read(r io.Reader) (*Container, error) {
	hdr, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("container: read header: %w", err)
	}
	if string(hdr.Magic[:]) != Magic {
		return nil, fmt.Errorf("container: bad magic %q", hdr.Magic[:])
	}
	if hdr.Version > Version {
		return nil, fmt.Errorf("container: unsupported version %d (max supported %d)", hdr.Version, Version)
	}

	pos := uint32(HeaderSize)
	if hdr.SourceOffset != pos {
		return nil, fmt.Errorf("container: source section offset %d does not match expected %d", hdr.SourceOffset, pos)
	}
	source, n, err := readSection(r)
	if err != nil {
		return nil, fmt.Errorf("container: read source section: %w", err)
	}
	pos += n

	if hdr.ASTOffset != pos {
		return nil, fmt.Errorf("container: AST section offset %d does not match expected %d", hdr.ASTOffset, pos)
	}
	astBytes, n, err := readSection(r)
	if err != nil {
		return nil, fmt.Errorf("container: read AST section: %w", err)
	}
	pos += n

	if hdr.DerivedOffset != pos {
		return nil, fmt.Errorf("container: derived section offset %d does not match expected %d", hdr.DerivedOffset, pos)
	}
	derivedBytes, _, err := readSection(r)
	if err != nil {
		return nil, fmt.Errorf("container: read derived section: %w", err)
	}

	var mod ir.Module
	if err := gob.NewDecoder(bytes.NewReader(astBytes)).Decode(&mod); err != nil {
		return nil, fmt.Errorf("container: decode AST section: %w", err)
	}

	var derived Derived
	if err := json.Unmarshal(derivedBytes, &derived); err != nil {
		return nil, fmt.Errorf("container: decode derived section: %w", err)
	}
	if err := ValidateDerived(derived); err != nil {
		return nil, fmt.Errorf("container: derived section failed schema validation: %w", err)
	}

	return &Container{Source: source, Module: &mod, Derived: derived}, nil
}

func writeHeader(w io.Writer, hdr Header) error {
	var buf [HeaderSize]byte
	copy(buf[0:4], hdr.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], hdr.Version)
	binary.LittleEndian.PutUint32(buf[8:12], hdr.SourceOffset)
	binary.LittleEndian.PutUint32(buf[12:16], hdr.ASTOffset)
	binary.LittleEndian.PutUint32(buf[16:20], hdr.DerivedOffset)
	_, err := w.Write(buf[:])
	return err
}

func readHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	var hdr Header
	copy(hdr.Magic[:], buf[0:4])
	hdr.Version = binary.LittleEndian.Uint32(buf[4:8])
	hdr.SourceOffset = binary.LittleEndian.Uint32(buf[8:12])
	hdr.ASTOffset = binary.LittleEndian.Uint32(buf[12:16])
	hdr.DerivedOffset = binary.LittleEndian.Uint32(buf[16:20])
	return hdr, nil
}

// writeSection frames b with its 4-byte little-endian length and writes
// both to w (spec.md §6: "Each referenced section begins with a 4-byte
// little-endian length followed by its payload").
func writeSection(w io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// readSection reads one length-prefixed section from r, returning its
// payload and the total number of bytes consumed (prefix included, so
// callers can track their cumulative position against header offsets).
func readSection(r io.Reader) ([]byte, uint32, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, 0, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, 0, err
	}
	return buf, 4 + n, nil
}

// ValidateDerived validates d's JSON encoding against DerivedSchema.
func ValidateDerived(d Derived) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	var schemaDoc any
	if err := json.Unmarshal([]byte(DerivedSchema), &schemaDoc); err != nil {
		return err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("derived-section.json", schemaDoc); err != nil {
		return err
	}
	schema, err := c.Compile("derived-section.json")
	if err != nil {
		return err
	}
	return schema.Validate(doc)
}

// BuildDerived walks every top-level declaration in prog and builds the
// Derived index container/Write validates and emits.
func BuildDerived(decls []DeclEntry) Derived {
	return Derived{Decls: decls}
}
