package fixgate

import (
	"maps"
	"slices"
	"time"
)

// Header carries the routing fields of a message. BeginString and MsgType
// come from the template; SenderCompID, TargetCompID, MsgSeqNum and
// SendingTime are stamped by the Router on every send. Other header fields
// (OnBehalfOfCompID, DeliverToCompID) are set with Message.SetHeader.
type Header struct {
	BeginString  string
	MsgType      string
	SenderCompID string
	TargetCompID string
	MsgSeqNum    int
	SendingTime  time.Time

	extra fieldMap
}

// Get returns an extra header field.
func (h *Header) Get(tag Tag) (Value, bool) { return h.extra.get(tag) }

// Fields returns the extra header fields in tag order.
func (h *Header) Fields() []Field { return h.extra.sorted() }

// Message is a FIX application message: a header, top-level body fields and
// repeating groups. The trailer is computed at encode time.
//
// A Message is built fresh for every send and is not safe for concurrent
// mutation. Once handed to a transport it is frozen and every mutator
// returns ErrFrozen.
type Message struct {
	Header Header

	body   fieldMap
	groups map[Tag]*groupList
	frozen bool
}

type groupList struct {
	spec      *GroupSpec
	instances []GroupInstance
}

// NewMessage returns an empty message of the given MsgType (35).
func NewMessage(msgType string) *Message {
	return &Message{Header: Header{MsgType: msgType}}
}

// Set assigns a top-level body field. Within one message a tag keeps the
// kind it was first set with. Group count tags and tags owned by an attached
// group fail with *GroupScopeError.
func (m *Message) Set(tag Tag, v Value) error {
	if m.frozen {
		return ErrFrozen
	}
	if sessionTags[tag] {
		return fieldErrorf(tag, "session field is derived per send")
	}
	if s, ok := countOwner(tag); ok {
		return &GroupScopeError{Tag: tag, Owner: s.name, OwnerDepth: s.depth}
	}
	for _, g := range m.groups {
		if o := g.spec.find(tag); o != nil {
			return &GroupScopeError{Tag: tag, Owner: o.name, OwnerDepth: o.depth}
		}
	}
	return m.body.set(tag, v)
}

// SetHeader assigns an extra header field such as OnBehalfOfCompID. Group
// count tags fail with *GroupScopeError.
func (m *Message) SetHeader(tag Tag, v Value) error {
	if m.frozen {
		return ErrFrozen
	}
	if sessionTags[tag] {
		return fieldErrorf(tag, "session field is derived per send")
	}
	if s, ok := countOwner(tag); ok {
		return &GroupScopeError{Tag: tag, Owner: s.name, OwnerDepth: s.depth}
	}
	return m.Header.extra.set(tag, v)
}

// Get returns a top-level body field.
func (m *Message) Get(tag Tag) (Value, bool) { return m.body.get(tag) }

// Has reports whether a top-level body field is set.
func (m *Message) Has(tag Tag) bool {
	_, ok := m.body.get(tag)
	return ok
}

// Fields returns the top-level body fields in tag order. Groups are not
// included; see GroupSpecs and Group.
func (m *Message) Fields() []Field { return m.body.sorted() }

// AppendGroup appends an instance of a top-level group. The group's count
// field is maintained automatically and instance order is preserved.
func (m *Message) AppendGroup(inst GroupInstance) error {
	if m.frozen {
		return ErrFrozen
	}
	if inst.spec == nil {
		return &GroupScopeError{}
	}
	if inst.spec.depth != 1 {
		return &GroupScopeError{Tag: inst.spec.count, Owner: inst.spec.parent.name, OwnerDepth: inst.spec.parent.depth}
	}
	for _, t := range m.body.tags {
		if t == inst.spec.count {
			return &GroupScopeError{Tag: t, Owner: inst.spec.name, OwnerDepth: inst.spec.depth}
		}
		if o := inst.spec.find(t); o != nil {
			return &GroupScopeError{Tag: t, Owner: o.name, OwnerDepth: o.depth}
		}
	}
	if m.groups == nil {
		m.groups = make(map[Tag]*groupList)
	}
	g, ok := m.groups[inst.spec.count]
	if !ok {
		g = &groupList{spec: inst.spec}
		m.groups[inst.spec.count] = g
	} else if g.spec != inst.spec {
		return &GroupScopeError{Group: inst.spec.name, Depth: inst.spec.depth, Tag: inst.spec.count, Owner: g.spec.name, OwnerDepth: g.spec.depth}
	}
	g.instances = append(g.instances, inst)
	return nil
}

// Group returns the instances of the top-level group announced by count.
func (m *Message) Group(count Tag) []GroupInstance {
	g, ok := m.groups[count]
	if !ok {
		return nil
	}
	return slices.Clone(g.instances)
}

// GroupCount returns the number of instances of the group announced by
// count, i.e. the value its count field encodes to.
func (m *Message) GroupCount(count Tag) int {
	if g, ok := m.groups[count]; ok {
		return len(g.instances)
	}
	return 0
}

// GroupSpecs returns the attached top-level groups ordered by count tag.
func (m *Message) GroupSpecs() []*GroupSpec {
	out := make([]*GroupSpec, 0, len(m.groups))
	for _, t := range slices.Sorted(maps.Keys(m.groups)) {
		out = append(out, m.groups[t].spec)
	}
	return out
}

// Frozen reports whether the message has been handed to a transport.
func (m *Message) Frozen() bool { return m.frozen }

// Clone returns an unfrozen deep copy. Group instances are immutable and are
// shared.
func (m *Message) Clone() *Message {
	c := &Message{Header: m.Header, body: m.body.clone()}
	c.Header.extra = m.Header.extra.clone()
	if len(m.groups) > 0 {
		c.groups = make(map[Tag]*groupList, len(m.groups))
		for t, g := range m.groups {
			c.groups[t] = &groupList{spec: g.spec, instances: slices.Clone(g.instances)}
		}
	}
	return c
}

func (m *Message) freeze() { m.frozen = true }

// fieldMap is an insertion-tracking tag -> value map.
type fieldMap struct {
	tags   []Tag
	values map[Tag]Value
}

func (f *fieldMap) set(tag Tag, v Value) error {
	if v.IsZero() {
		return fieldErrorf(tag, "value is not set")
	}
	if old, ok := f.values[tag]; ok {
		if old.kind != v.kind {
			return fieldErrorf(tag, "%s value conflicts with %s already set", v.kind, old.kind)
		}
		f.values[tag] = v
		return nil
	}
	if f.values == nil {
		f.values = make(map[Tag]Value)
	}
	f.tags = append(f.tags, tag)
	f.values[tag] = v
	return nil
}

func (f fieldMap) get(tag Tag) (Value, bool) {
	v, ok := f.values[tag]
	return v, ok
}

func (f fieldMap) clone() fieldMap {
	if len(f.tags) == 0 {
		return fieldMap{}
	}
	return fieldMap{tags: slices.Clone(f.tags), values: maps.Clone(f.values)}
}

func (f fieldMap) sorted() []Field {
	tags := slices.Sorted(slices.Values(f.tags))
	out := make([]Field, 0, len(tags))
	for _, t := range tags {
		out = append(out, Field{Tag: t, Value: f.values[t]})
	}
	return out
}
