package fixgate

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SOH is the FIX field delimiter.
const SOH = '\x01'

// Codec encodes and decodes field values according to a Dictionary.
// A Codec holds no mutable state and is safe for concurrent use.
type Codec struct {
	dict *Dictionary
}

// NewCodec returns a codec for dict. A nil dict selects StandardDictionary.
func NewCodec(dict *Dictionary) *Codec {
	if dict == nil {
		dict = StandardDictionary()
	}
	return &Codec{dict: dict}
}

// Dictionary returns the dictionary the codec validates against.
func (c *Codec) Dictionary() *Dictionary { return c.dict }

// Encode returns the wire form of v for tag. It fails with *FieldError when
// tag is undeclared, v is not of the tag's declared kind, or v cannot be
// represented on the wire.
func (c *Codec) Encode(tag Tag, v Value) ([]byte, error) {
	def, ok := c.dict.Field(tag)
	if !ok {
		return nil, fieldErrorf(tag, "undeclared tag")
	}
	if v.kind != def.Kind {
		if v.IsZero() {
			return nil, fieldErrorf(tag, "value is not set")
		}
		return nil, fieldErrorf(tag, "%s value for %s field %s", v.kind, def.Kind, def.Name)
	}
	if err := validate(tag, v); err != nil {
		return nil, err
	}
	return []byte(v.String()), nil
}

func validate(tag Tag, v Value) error {
	switch v.kind {
	case KindString:
		if v.str == "" {
			return fieldErrorf(tag, "empty string")
		}
		if i := strings.IndexByte(v.str, SOH); i >= 0 {
			return fieldErrorf(tag, "string contains SOH at offset %d", i)
		}
	case KindChar:
		if !printable(v.char) {
			return fieldErrorf(tag, "char %q is not printable", v.char)
		}
	case KindTimestamp:
		if v.ts.IsZero() {
			return fieldErrorf(tag, "zero timestamp")
		}
		if y := v.ts.Year(); y < 0 || y > 9999 {
			return fieldErrorf(tag, "year %d out of range", y)
		}
	}
	return nil
}

func printable(c byte) bool { return c > ' ' && c < 0x7f }

// Decode parses raw as the declared kind of tag.
func (c *Codec) Decode(tag Tag, raw []byte) (Value, error) {
	def, ok := c.dict.Field(tag)
	if !ok {
		return Value{}, fieldErrorf(tag, "undeclared tag")
	}
	return decodeKind(tag, def.Kind, string(raw))
}

func decodeKind(tag Tag, kind Kind, s string) (Value, error) {
	switch kind {
	case KindString:
		v := String(s)
		return v, validate(tag, v)
	case KindInt:
		return parseInt(tag, s)
	case KindFloat:
		return parseFloat(tag, s)
	case KindChar:
		if len(s) != 1 {
			return Value{}, fieldErrorf(tag, "char field has %d bytes", len(s))
		}
		v := Char(s[0])
		return v, validate(tag, v)
	case KindTimestamp:
		if len(s) != len(TimestampFormat) {
			return Value{}, fieldErrorf(tag, "timestamp %q is not %s", s, TimestampFormat)
		}
		t, err := time.ParseInLocation(TimestampFormat, s, time.UTC)
		if err != nil {
			return Value{}, fieldErrorf(tag, "timestamp %q: %v", s, err)
		}
		return Timestamp(t), nil
	default:
		return Value{}, fieldErrorf(tag, "invalid kind %v", kind)
	}
}

func parseInt(tag Tag, s string) (Value, error) {
	if s == "" || s[0] == '+' {
		return Value{}, fieldErrorf(tag, "%q is not an integer", s)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Value{}, fieldErrorf(tag, "%q is not an integer", s)
	}
	return Int(n), nil
}

// parseFloat accepts an optional leading '-', at least one digit and an
// optional fractional part. The scale is the number of fractional digits.
func parseFloat(tag Tag, s string) (Value, error) {
	digits, dot := 0, -1
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '-' && i == 0:
		case c == '.' && dot < 0 && digits > 0:
			dot = i
		default:
			return Value{}, fieldErrorf(tag, "%q is not a decimal", s)
		}
	}
	if digits == 0 || dot == len(s)-1 {
		return Value{}, fieldErrorf(tag, "%q is not a decimal", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Value{}, fieldErrorf(tag, "%q: %v", s, err)
	}
	scale := int32(0)
	if dot >= 0 {
		scale = int32(len(s) - dot - 1)
	}
	return Value{kind: KindFloat, dec: d, scale: scale}, nil
}

// EncodeMessage renders m as a complete FIX frame: BeginString, BodyLength,
// MsgType, the routing header, extra header fields, body fields and groups in
// tag order, and the CheckSum trailer.
func (c *Codec) EncodeMessage(m *Message) ([]byte, error) {
	h := &m.Header
	if h.BeginString == "" {
		return nil, fieldErrorf(TagBeginString, "missing")
	}
	if h.MsgType == "" {
		return nil, fieldErrorf(TagMsgType, "missing")
	}

	var body []byte
	var err error
	add := func(tag Tag, v Value) {
		if err != nil {
			return
		}
		body, err = c.appendField(body, tag, v)
	}

	add(TagMsgType, String(h.MsgType))
	if h.SenderCompID != "" {
		add(TagSenderCompID, String(h.SenderCompID))
	}
	if h.TargetCompID != "" {
		add(TagTargetCompID, String(h.TargetCompID))
	}
	if h.MsgSeqNum > 0 {
		add(TagMsgSeqNum, Int(int64(h.MsgSeqNum)))
	}
	if !h.SendingTime.IsZero() {
		add(TagSendingTime, Timestamp(h.SendingTime))
	}
	for _, f := range h.extra.sorted() {
		add(f.Tag, f.Value)
	}

	// Body fields and group count tags share one tag-ordered sequence.
	tags := slices.Clone(m.body.tags)
	for t := range m.groups {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	for _, t := range tags {
		if g, ok := m.groups[t]; ok {
			if err == nil {
				body, err = c.appendGroup(body, g.spec, g.instances)
			}
			continue
		}
		add(t, m.body.values[t])
	}
	if err != nil {
		return nil, err
	}

	var out []byte
	if out, err = c.appendField(out, TagBeginString, String(h.BeginString)); err != nil {
		return nil, err
	}
	out = appendRaw(out, TagBodyLength, strconv.Itoa(len(body)))
	out = append(out, body...)
	out = appendRaw(out, TagCheckSum, fmt.Sprintf("%03d", checksum(out)))
	return out, nil
}

func (c *Codec) appendGroup(buf []byte, spec *GroupSpec, insts []GroupInstance) ([]byte, error) {
	if len(insts) == 0 {
		return buf, nil
	}
	buf, err := c.appendField(buf, spec.count, Int(int64(len(insts))))
	if err != nil {
		return nil, err
	}
	for _, inst := range insts {
		for _, f := range inst.Fields() {
			if buf, err = c.appendField(buf, f.Tag, f.Value); err != nil {
				return nil, err
			}
		}
		for _, n := range spec.nested {
			if buf, err = c.appendGroup(buf, n, inst.nested[n.count]); err != nil {
				return nil, err
			}
		}
	}
	return buf, nil
}

func (c *Codec) appendField(buf []byte, tag Tag, v Value) ([]byte, error) {
	raw, err := c.Encode(tag, v)
	if err != nil {
		return nil, err
	}
	buf = strconv.AppendInt(buf, int64(tag), 10)
	buf = append(buf, '=')
	buf = append(buf, raw...)
	return append(buf, SOH), nil
}

func appendRaw(buf []byte, tag Tag, s string) []byte {
	buf = strconv.AppendInt(buf, int64(tag), 10)
	buf = append(buf, '=')
	buf = append(buf, s...)
	return append(buf, SOH)
}

func checksum(b []byte) int {
	sum := 0
	for _, c := range b {
		sum += int(c)
	}
	return sum % 256
}

type token struct {
	tag   Tag
	value string
	start int
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}

func tokenize(raw []byte) ([]token, error) {
	if len(raw) == 0 || raw[len(raw)-1] != SOH {
		return nil, malformed("frame does not end with SOH")
	}
	var toks []token
	for pos := 0; pos < len(raw); {
		end := pos + bytes.IndexByte(raw[pos:], SOH)
		eq := bytes.IndexByte(raw[pos:end], '=')
		if eq <= 0 {
			return nil, malformed("field at offset %d is not tag=value", pos)
		}
		n, err := strconv.Atoi(string(raw[pos : pos+eq]))
		if err != nil || n <= 0 {
			return nil, malformed("bad tag %q at offset %d", raw[pos:pos+eq], pos)
		}
		if pos+eq+1 == end {
			return nil, malformed("tag %d has an empty value", n)
		}
		toks = append(toks, token{tag: Tag(n), value: string(raw[pos+eq+1 : end]), start: pos})
		pos = end + 1
	}
	return toks, nil
}

// DecodeMessage parses a complete FIX frame. BodyLength and CheckSum are
// verified. Repeating groups are recognized by the top-level specs given;
// a declared count that differs from the instances present fails with
// ErrMalformedMessage.
func (c *Codec) DecodeMessage(raw []byte, specs ...*GroupSpec) (*Message, error) {
	toks, err := tokenize(raw)
	if err != nil {
		return nil, err
	}
	if len(toks) < 4 || toks[0].tag != TagBeginString || toks[1].tag != TagBodyLength || toks[2].tag != TagMsgType {
		return nil, malformed("frame must start with 8, 9, 35")
	}
	last := toks[len(toks)-1]
	if last.tag != TagCheckSum {
		return nil, malformed("frame must end with 10")
	}
	length, err := strconv.Atoi(toks[1].value)
	if err != nil || length != last.start-toks[2].start {
		return nil, malformed("body length %q, counted %d", toks[1].value, last.start-toks[2].start)
	}
	if want := fmt.Sprintf("%03d", checksum(raw[:last.start])); last.value != want {
		return nil, malformed("checksum %s, computed %s", last.value, want)
	}

	groups := make(map[Tag]*GroupSpec, len(specs))
	for _, s := range specs {
		groups[s.count] = s
	}

	m := NewMessage(toks[2].value)
	m.Header.BeginString = toks[0].value
	body := toks[3 : len(toks)-1]
	for i := 0; i < len(body); {
		t := body[i]
		if spec, ok := groups[t.tag]; ok {
			n, err := groupCount(t)
			if err != nil {
				return nil, err
			}
			insts, next, err := c.decodeGroup(body, i+1, spec, n)
			if err != nil {
				return nil, err
			}
			for _, inst := range insts {
				if err := m.AppendGroup(inst); err != nil {
					return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
				}
			}
			i = next
			continue
		}
		if err := c.decodeField(m, t); err != nil {
			return nil, err
		}
		i++
	}
	return m, nil
}

func (c *Codec) decodeField(m *Message, t token) error {
	v, err := c.Decode(t.tag, []byte(t.value))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	h := &m.Header
	switch t.tag {
	case TagSenderCompID:
		h.SenderCompID = v.str
	case TagTargetCompID:
		h.TargetCompID = v.str
	case TagMsgSeqNum:
		h.MsgSeqNum = int(v.num)
	case TagSendingTime:
		h.SendingTime = v.ts
	case TagBeginString, TagBodyLength, TagMsgType, TagCheckSum:
		return malformed("tag %d out of place", t.tag)
	default:
		if def, _ := c.dict.Field(t.tag); def.Header {
			if _, dup := h.extra.get(t.tag); dup {
				return malformed("duplicate header tag %d", t.tag)
			}
			return h.extra.set(t.tag, v)
		}
		if m.Has(t.tag) {
			return malformed("duplicate tag %d", t.tag)
		}
		if err := m.Set(t.tag, v); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
		}
	}
	return nil
}

func groupCount(t token) (int, error) {
	n, err := strconv.Atoi(t.value)
	if err != nil || n < 0 {
		return 0, malformed("group count %d=%q", t.tag, t.value)
	}
	return n, nil
}

// decodeGroup reads n instances of spec starting at toks[i] and returns the
// index of the first token after the group.
func (c *Codec) decodeGroup(toks []token, i int, spec *GroupSpec, n int) ([]GroupInstance, int, error) {
	insts := make([]GroupInstance, 0, n)
	for k := 0; k < n; k++ {
		if i >= len(toks) || toks[i].tag != spec.Delimiter() {
			return nil, 0, malformed("group %s declares %d instances, found %d", spec.name, n, k)
		}
		b := spec.New()
		for first := true; i < len(toks); first = false {
			t := toks[i]
			if t.tag == spec.Delimiter() && !first {
				break
			}
			if spec.has(t.tag) {
				if _, dup := b.fields.get(t.tag); dup {
					return nil, 0, malformed("group %s: duplicate tag %d in instance %d", spec.name, t.tag, k+1)
				}
				v, err := c.Decode(t.tag, []byte(t.value))
				if err != nil {
					return nil, 0, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
				}
				b.Set(t.tag, v)
				i++
				continue
			}
			nested := spec.nestedByCount(t.tag)
			if nested == nil {
				break
			}
			cnt, err := groupCount(t)
			if err != nil {
				return nil, 0, err
			}
			sub, next, err := c.decodeGroup(toks, i+1, nested, cnt)
			if err != nil {
				return nil, 0, err
			}
			for _, s := range sub {
				b.Append(s)
			}
			i = next
		}
		inst, err := b.Build()
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
		}
		insts = append(insts, inst)
	}
	if i < len(toks) && toks[i].tag == spec.Delimiter() {
		return nil, 0, malformed("group %s declares %d instances, found more", spec.name, n)
	}
	return insts, i, nil
}
