package block

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrInvalidPayload is returned when a payload can't be stored in a chain.
var ErrInvalidPayload = errors.New("invalid payload")

// Payload represents the opaque content carried by a block. The only thing
// the chain needs from a payload is a canonical JSON encoding to hash. The
// same logical value must always produce the same bytes.
type Payload interface {
	CanonicalBytes() []byte
}

// =============================================================================

// Text is a plain string payload.
type Text string

// CanonicalBytes returns the string as a JSON string literal. HTML characters
// are not escaped so "A->B" stays readable and stable. Bytes that are not
// valid UTF-8 are written as \u0080 to \u00ff escapes, a form the encoder
// never produces for valid text, so distinct strings never share a hash.
func (t Text) CanonicalBytes() []byte {
	s := string(t)

	buf := []byte{'"'}
	for len(s) > 0 {
		n := validPrefix(s)
		if n > 0 {
			buf = append(buf, quote(s[:n])...)
			s = s[n:]
			continue
		}

		buf = fmt.Appendf(buf, `\u00%02x`, s[0])
		s = s[1:]
	}

	return append(buf, '"')
}

// Check reports if the text can be stored in a chain. Stored payloads are
// JSON and JSON text must be valid UTF-8.
func (t Text) Check() error {
	if !utf8.ValidString(string(t)) {
		return fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidPayload)
	}
	return nil
}

// String implements the fmt.Stringer interface.
func (t Text) String() string {
	return string(t)
}

// =============================================================================

// Record is a structured payload. The value is canonicalized when the record
// is constructed, so later changes to the caller's value have no effect on
// the hash.
type Record struct {
	raw []byte
}

// NewRecord canonicalizes any JSON encodable value into a Record. Object keys
// are sorted and numbers keep their literal form.
func NewRecord(v any) (Record, error) {
	raw, err := canonicalJSON(v)
	if err != nil {
		return Record{}, fmt.Errorf("canonicalize record: %w", err)
	}

	return Record{raw: raw}, nil
}

// Empty returns the payload used when none is provided, an empty list.
func Empty() Record {
	return Record{raw: []byte("[]")}
}

// CanonicalBytes returns a copy of the canonical JSON for the record.
func (r Record) CanonicalBytes() []byte {
	if len(r.raw) == 0 {
		return []byte("null")
	}

	return bytes.Clone(r.raw)
}

// MarshalJSON implements the json.Marshaler interface.
func (r Record) MarshalJSON() ([]byte, error) {
	return r.CanonicalBytes(), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (r *Record) UnmarshalJSON(data []byte) error {
	rec, err := NewRecord(json.RawMessage(data))
	if err != nil {
		return err
	}

	*r = rec
	return nil
}

// String implements the fmt.Stringer interface.
func (r Record) String() string {
	return string(r.CanonicalBytes())
}

// =============================================================================

// DecodePayload converts stored JSON back into a payload. A JSON string
// becomes Text and every other value becomes a Record, which reverses the
// encoding CanonicalBytes produced.
func DecodePayload(raw json.RawMessage) (Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("payload is empty")
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode text payload: %w", err)
		}
		return Text(s), nil
	}

	return NewRecord(raw)
}

// CheckPayload reports if the payload can be stored in a chain and read back
// with the same canonical bytes.
func CheckPayload(p Payload) error {
	if t, ok := p.(Text); ok {
		return t.Check()
	}
	return nil
}

// =============================================================================

// validPrefix returns the length of the leading run of valid UTF-8 in s.
func validPrefix(s string) int {
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				return i
			}
		}
	}
	return len(s)
}

// quote returns the JSON string encoding of valid UTF-8 without the
// surrounding quotes.
func quote(s string) []byte {
	data, err := encode(s)
	if err != nil {
		// Encoding a string value can't fail.
		panic(err)
	}
	return data[1 : len(data)-1]
}

// =============================================================================

// canonicalJSON performs a round trip through a generic value so struct field
// order and whitespace do not leak into the encoding.
func canonicalJSON(v any) ([]byte, error) {
	data, err := encode(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	return encode(generic)
}

// encode marshals the value without HTML escaping and without the trailing
// newline the encoder adds.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
