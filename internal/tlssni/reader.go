// Package tlssni extracts the SNI hostname from the start of a TLS stream
// without terminating TLS. It reassembles handshake records, parses the
// first message as a ClientHello and stops as soon as the server_name
// extension is found, keeping every consumed byte for replay.
package tlssni

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// TLS record types
const (
	recordTypeHandshake = 22
)

// TLS handshake types
const (
	handshakeTypeClientHello = 1
)

// TLS extension types
const (
	extensionServerName = 0x0000
)

// SNI name types
const (
	sniNameTypeHostname = 0
)

const (
	// maxRecordPayload is the record-layer limit (2^14) on a single
	// plaintext fragment.
	maxRecordPayload = 1 << 14

	// DefaultMaxHandshakeBytes bounds how much reassembled ClientHello the
	// reader will buffer. Real ClientHellos are far below this; anything
	// larger is either broken or hostile.
	DefaultMaxHandshakeBytes = 64 << 10
)

var (
	// ErrNotHandshake is returned when the first record is not a TLS
	// handshake record.
	ErrNotHandshake = errors.New("not a TLS handshake")

	// ErrBadFraming is returned on record or message framing violations:
	// bad lengths, truncation inside a declared length, inconsistent
	// nesting, or a record type change mid-message.
	ErrBadFraming = errors.New("malformed TLS framing")

	// ErrNoSNI is returned when the ClientHello carries no usable
	// server_name extension.
	ErrNoSNI = errors.New("no server name in ClientHello")

	// ErrTooLarge is returned when the ClientHello exceeds the reader's
	// buffering ceiling.
	ErrTooLarge = errors.New("ClientHello too large")
)

// reader accumulates raw bytes from the client socket and the logical
// handshake stream reassembled from consecutive handshake records.
type reader struct {
	src    io.Reader
	limit  int
	prefix []byte // every byte consumed from src, in order
	hs     []byte // concatenated handshake-record payloads
	seen   bool   // at least one record header consumed
}

// ReadClientHello consumes bytes from src until the SNI hostname of the
// initial ClientHello is known. It returns the raw host_name octets and the
// exact byte sequence consumed so far (the prefix to replay to a backend).
// limit bounds the reassembled handshake stream; zero selects
// DefaultMaxHandshakeBytes. The raw name is not canonicalized here.
func ReadClientHello(src io.Reader, limit int) (serverName, prefix []byte, err error) {
	if limit <= 0 {
		limit = DefaultMaxHandshakeBytes
	}
	r := &reader{src: src, limit: limit}
	name, err := r.parse()
	return name, r.prefix, err
}

// pull reads exactly n bytes from the socket, appending them to the prefix,
// and returns the freshly read slice.
func (r *reader) pull(n int) ([]byte, error) {
	off := len(r.prefix)
	r.prefix = append(r.prefix, make([]byte, n)...)
	if _, err := io.ReadFull(r.src, r.prefix[off:]); err != nil {
		r.prefix = r.prefix[:off]
		return nil, fmt.Errorf("reading client hello: %w", err)
	}
	return r.prefix[off:], nil
}

// need grows the handshake stream to at least n bytes by consuming whole
// records. Records must stay type handshake and non-empty until the
// ClientHello parse completes.
func (r *reader) need(n int) error {
	if n > r.limit {
		return ErrTooLarge
	}
	for len(r.hs) < n {
		hdr, err := r.pull(5)
		if err != nil {
			return err
		}
		if hdr[0] != recordTypeHandshake {
			if !r.seen {
				return ErrNotHandshake
			}
			return ErrBadFraming
		}
		r.seen = true
		payloadLen := int(binary.BigEndian.Uint16(hdr[3:5]))
		if payloadLen == 0 || payloadLen > maxRecordPayload {
			return ErrBadFraming
		}
		if len(r.hs)+payloadLen > r.limit {
			return ErrTooLarge
		}
		payload, err := r.pull(payloadLen)
		if err != nil {
			return err
		}
		r.hs = append(r.hs, payload...)
	}
	return nil
}

// parse walks the ClientHello up to the first host_name entry of the
// server_name extension. Every embedded length is checked against its
// parent before the bytes behind it are requested.
func (r *reader) parse() ([]byte, error) {
	// Handshake header: msg_type (1) + length (3).
	if err := r.need(4); err != nil {
		return nil, err
	}
	if r.hs[0] != handshakeTypeClientHello {
		return nil, ErrBadFraming
	}
	bodyLen := int(r.hs[1])<<16 | int(r.hs[2])<<8 | int(r.hs[3])
	if 4+bodyLen > r.limit {
		return nil, ErrTooLarge
	}
	body := cursor{r: r, pos: 4, end: 4 + bodyLen}

	// legacy_version (2) + random (32)
	if err := body.skip(2 + 32); err != nil {
		return nil, err
	}
	// session_id
	sessLen, err := body.u8()
	if err != nil {
		return nil, err
	}
	if err := body.skip(int(sessLen)); err != nil {
		return nil, err
	}
	// cipher_suites
	csLen, err := body.u16()
	if err != nil {
		return nil, err
	}
	if err := body.skip(int(csLen)); err != nil {
		return nil, err
	}
	// legacy_compression_methods
	compLen, err := body.u8()
	if err != nil {
		return nil, err
	}
	if err := body.skip(int(compLen)); err != nil {
		return nil, err
	}

	if body.pos == body.end {
		// Extensionless ClientHello. Legal TLS, but nothing to route on.
		return nil, ErrNoSNI
	}
	extLen, err := body.u16()
	if err != nil {
		return nil, err
	}
	// The extensions block is the final field; it must fill the rest of
	// the message exactly.
	if body.pos+int(extLen) != body.end {
		return nil, ErrBadFraming
	}

	for body.pos < body.end {
		extType, err := body.u16()
		if err != nil {
			return nil, err
		}
		extDataLen, err := body.u16()
		if err != nil {
			return nil, err
		}
		if extType != extensionServerName {
			if err := body.skip(int(extDataLen)); err != nil {
				return nil, err
			}
			continue
		}
		data, err := body.bytes(int(extDataLen))
		if err != nil {
			return nil, err
		}
		return serverNameFromExtension(data)
	}
	return nil, ErrNoSNI
}

// serverNameFromExtension picks the first host_name entry out of a
// ServerNameList. A malformed list yields ErrNoSNI: the hello framed
// correctly, it just carries nothing we can route on.
func serverNameFromExtension(data []byte) ([]byte, error) {
	if len(data) < 2 {
		return nil, ErrNoSNI
	}
	listLen := int(binary.BigEndian.Uint16(data[:2]))
	if listLen != len(data)-2 {
		return nil, ErrNoSNI
	}
	rest := data[2:]
	for len(rest) >= 3 {
		nameType := rest[0]
		nameLen := int(binary.BigEndian.Uint16(rest[1:3]))
		rest = rest[3:]
		if nameLen > len(rest) {
			return nil, ErrNoSNI
		}
		if nameType == sniNameTypeHostname {
			if nameLen == 0 {
				return nil, ErrNoSNI
			}
			return rest[:nameLen], nil
		}
		rest = rest[nameLen:]
	}
	return nil, ErrNoSNI
}

// cursor walks the handshake stream inside the declared ClientHello body,
// pulling more records on demand and refusing to cross the body boundary.
type cursor struct {
	r   *reader
	pos int
	end int
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if c.pos+n > c.end {
		return nil, ErrBadFraming
	}
	if err := c.r.need(c.pos + n); err != nil {
		return nil, err
	}
	b := c.r.hs[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) skip(n int) error {
	if c.pos+n > c.end {
		return ErrBadFraming
	}
	if err := c.r.need(c.pos + n); err != nil {
		return err
	}
	c.pos += n
	return nil
}

func (c *cursor) u8() (byte, error) {
	b, err := c.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) u16() (uint16, error) {
	b, err := c.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}
