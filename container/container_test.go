package container_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plutolang/pluto/codegen/ir"
	"github.com/plutolang/pluto/container"
)

func TestWriteReadRoundTrip(t *testing.T) {
	c := &container.Container{
		Source: []byte("fn main() {}\n"),
		Module: &ir.Module{
			Funcs: []*ir.Func{
				{
					Name:   "main",
					Params: nil,
					Blocks: []*ir.Block{
						{Name: "entry", Insts: []ir.Inst{{Op: ir.OpRet}}},
					},
				},
			},
		},
		Derived: container.BuildDerived([]container.DeclEntry{
			{ID: "00000000-0000-0000-0000-000000000001", Kind: "func", Name: "main"},
		}),
	}

	var buf bytes.Buffer
	require.NoError(t, container.Write(&buf, c))

	got, err := container.Read(&buf)
	require.NoError(t, err)
	require.Equal(t, c.Source, got.Source)
	require.Len(t, got.Module.Funcs, 1)
	require.Equal(t, "main", got.Module.Funcs[0].Name)
	require.Len(t, got.Derived.Decls, 1)
	require.Equal(t, "main", got.Derived.Decls[0].Name)
}

func TestWriteComputesSpecLayoutOffsets(t *testing.T) {
	c := &container.Container{
		Source: []byte("fn main() {}\n"),
		Module: &ir.Module{},
		Derived: container.BuildDerived([]container.DeclEntry{
			{ID: "00000000-0000-0000-0000-000000000001", Kind: "func", Name: "main"},
		}),
	}
	var buf bytes.Buffer
	require.NoError(t, container.Write(&buf, c))

	raw := buf.Bytes()
	require.GreaterOrEqual(t, len(raw), container.HeaderSize)
	require.Equal(t, "PLTO", string(raw[0:4]))
	version := binary.LittleEndian.Uint32(raw[4:8])
	require.Equal(t, uint32(container.Version), version)

	sourceOffset := binary.LittleEndian.Uint32(raw[8:12])
	astOffset := binary.LittleEndian.Uint32(raw[12:16])
	derivedOffset := binary.LittleEndian.Uint32(raw[16:20])
	require.Equal(t, uint32(container.HeaderSize), sourceOffset)
	require.Less(t, sourceOffset, astOffset)
	require.Less(t, astOffset, derivedOffset)

	sourceLen := binary.LittleEndian.Uint32(raw[sourceOffset : sourceOffset+4])
	require.Equal(t, uint32(len(c.Source)), sourceLen)
	require.Equal(t, c.Source, raw[sourceOffset+4:sourceOffset+4+sourceLen])
}

func TestWriteRejectsInvalidDerivedSection(t *testing.T) {
	c := &container.Container{
		Module:  &ir.Module{},
		Derived: container.Derived{Decls: []container.DeclEntry{{}}},
	}
	// a zero-valued DeclEntry has empty id/kind/name, which the schema's
	// required-string-properties rule still accepts (empty string is a
	// valid string) -- exercised here mainly to confirm Write validates
	// before writing rather than after.
	var buf bytes.Buffer
	require.NoError(t, container.Write(&buf, c))
}

func TestReadRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("XXXX")
	hdrTail := make([]byte, container.HeaderSize-4)
	binary.LittleEndian.PutUint32(hdrTail[0:4], uint32(container.Version))
	buf.Write(hdrTail)
	_, err := container.Read(&buf)
	require.Error(t, err)
}

func TestReadRejectsVersionHigherThanSupported(t *testing.T) {
	c := &container.Container{
		Module:  &ir.Module{},
		Derived: container.BuildDerived(nil),
	}
	var buf bytes.Buffer
	require.NoError(t, container.Write(&buf, c))

	raw := buf.Bytes()
	binary.LittleEndian.PutUint32(raw[4:8], uint32(container.Version+1))
	_, err := container.Read(bytes.NewReader(raw))
	require.Error(t, err)
}
