package artifact

import (
	"bytes"
	"encoding/binary"
	"io"

	"adn/errors"
	"adn/jsonx"
	"adn/types"
)

// Feed payload framing. Little-endian, magic first, one type byte, then the
// type specific body. Anything that does not parse is a malformed payload,
// never a panic.
const (
	PayloadMagic      uint16 = 0xAD00
	payloadTypeInit   byte   = 1
	payloadTypeUpdate byte   = 2

	maxStatements = 1 << 12
	maxFieldLen   = 1 << 24
)

// PayloadInit announces a new AD: its id, kind, and the hash of the predicate
// catalog it is created under.
type PayloadInit struct {
	ID          types.AdID
	Kind        types.AdKind
	CatalogHash [32]byte
}

// PayloadUpdate carries one proof artifact.
type PayloadUpdate struct {
	Artifact Artifact
}

// Payload is the decoded content of one feed entry.
type Payload struct {
	Init   *PayloadInit
	Update *PayloadUpdate
}

func EncodeInit(p *PayloadInit) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, PayloadMagic)
	buf.WriteByte(payloadTypeInit)
	buf.Write(p.ID[:])
	buf.WriteByte(byte(p.Kind))
	buf.Write(p.CatalogHash[:])
	return buf.Bytes()
}

func EncodeUpdate(p *PayloadUpdate) ([]byte, error) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, PayloadMagic)
	buf.WriteByte(payloadTypeUpdate)
	buf.Write(p.Artifact.ADID[:])
	if len(p.Artifact.Statements) == 0 || len(p.Artifact.Statements) > maxStatements {
		return nil, errors.New(errors.ErrCodeInvalidRequest,
			"artifact must carry between 1 and %d statements", maxStatements)
	}
	binary.Write(&buf, binary.LittleEndian, uint16(len(p.Artifact.Statements)))
	for _, st := range p.Artifact.Statements {
		data, err := jsonx.Marshal(st)
		if err != nil {
			return nil, err
		}
		binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
		buf.Write(data)
	}
	binary.Write(&buf, binary.LittleEndian, uint32(len(p.Artifact.Proof)))
	buf.Write(p.Artifact.Proof)
	return buf.Bytes(), nil
}

// Decode parses one feed payload. All errors carry ErrCodeMalformedPayload so
// the synchronizer can discard the entry and move on.
func Decode(data []byte) (*Payload, error) {
	r := bytes.NewReader(data)
	var magic uint16
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, malformed("payload too short for magic")
	}
	if magic != PayloadMagic {
		return nil, malformed("invalid payload magic %#04x", magic)
	}
	typ, err := r.ReadByte()
	if err != nil {
		return nil, malformed("payload too short for type")
	}
	switch typ {
	case payloadTypeInit:
		return decodeInit(r)
	case payloadTypeUpdate:
		return decodeUpdate(r)
	}
	return nil, malformed("invalid payload type %d", typ)
}

func decodeInit(r *bytes.Reader) (*Payload, error) {
	var p PayloadInit
	if _, err := io.ReadFull(r, p.ID[:]); err != nil {
		return nil, malformed("init payload truncated at id")
	}
	kind, err := r.ReadByte()
	if err != nil {
		return nil, malformed("init payload truncated at kind")
	}
	p.Kind = types.AdKind(kind)
	if _, err := types.AdKindFromString(p.Kind.String()); err != nil {
		return nil, malformed("init payload has unknown kind %d", kind)
	}
	if _, err := io.ReadFull(r, p.CatalogHash[:]); err != nil {
		return nil, malformed("init payload truncated at catalog hash")
	}
	return &Payload{Init: &p}, nil
}

func decodeUpdate(r *bytes.Reader) (*Payload, error) {
	var p PayloadUpdate
	if _, err := io.ReadFull(r, p.Artifact.ADID[:]); err != nil {
		return nil, malformed("update payload truncated at ad id")
	}
	var count uint16
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, malformed("update payload truncated at statement count")
	}
	if count == 0 || count > maxStatements {
		return nil, malformed("update payload statement count %d out of range", count)
	}
	p.Artifact.Statements = make([]types.Statement, 0, count)
	for i := 0; i < int(count); i++ {
		data, err := readField(r)
		if err != nil {
			return nil, malformed("update payload truncated at statement %d", i)
		}
		var st types.Statement
		if err := jsonx.Unmarshal(data, &st); err != nil {
			return nil, malformed("update payload statement %d: %v", i, err)
		}
		p.Artifact.Statements = append(p.Artifact.Statements, st)
	}
	proof, err := readField(r)
	if err != nil {
		return nil, malformed("update payload truncated at proof")
	}
	p.Artifact.Proof = proof
	return &Payload{Update: &p}, nil
}

func readField(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n > maxFieldLen {
		return nil, io.ErrUnexpectedEOF
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func canonicalOp(op types.Operation) ([]byte, error) {
	return jsonx.Marshal(op)
}

func malformed(format string, args ...interface{}) error {
	return errors.New(errors.ErrCodeMalformedPayload, format, args...)
}
