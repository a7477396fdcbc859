package fixgate

import (
	"fmt"
	"slices"
	"sync"
)

// GroupSpec describes a repeating group: the count tag that announces it,
// the member tags of one instance (the first member is the delimiter that
// opens every instance) and any nested groups. Specs form a tree; depth 1 is
// a group that sits directly in a message body.
type GroupSpec struct {
	name   string
	count  Tag
	fields []Tag
	nested []*GroupSpec
	parent *GroupSpec
	depth  int
}

// NewGroupSpec declares a group. It panics if fields is empty or a nested
// spec already belongs to another parent; both are programming errors that
// surface at startup.
func NewGroupSpec(name string, count Tag, fields []Tag, nested ...*GroupSpec) *GroupSpec {
	if len(fields) == 0 {
		panic(fmt.Sprintf("fixgate: group %s has no member fields", name))
	}
	s := &GroupSpec{
		name:   name,
		count:  count,
		fields: slices.Clone(fields),
		nested: slices.Clone(nested),
		depth:  1,
	}
	for _, n := range nested {
		if n.parent != nil {
			panic(fmt.Sprintf("fixgate: group %s is already nested in %s", n.name, n.parent.name))
		}
		n.parent = s
	}
	s.setDepth(1)
	countTags.LoadOrStore(count, s)
	return s
}

// countTags maps the count tag of every declared group to the first spec
// declaring it. A count tag is never a plain field.
var countTags sync.Map // Tag -> *GroupSpec

func countOwner(tag Tag) (*GroupSpec, bool) {
	v, ok := countTags.Load(tag)
	if !ok {
		return nil, false
	}
	return v.(*GroupSpec), true
}

func (s *GroupSpec) setDepth(d int) {
	s.depth = d
	for _, n := range s.nested {
		n.setDepth(d + 1)
	}
}

// Name returns the group name.
func (s *GroupSpec) Name() string { return s.name }

// Count returns the tag carrying the number of instances.
func (s *GroupSpec) Count() Tag { return s.count }

// Delimiter returns the first member tag.
func (s *GroupSpec) Delimiter() Tag { return s.fields[0] }

// Fields returns the member tags in encode order.
func (s *GroupSpec) Fields() []Tag { return slices.Clone(s.fields) }

// Nested returns the nested group specs in encode order.
func (s *GroupSpec) Nested() []*GroupSpec { return slices.Clone(s.nested) }

// Depth returns the nesting depth (1 for a top-level group).
func (s *GroupSpec) Depth() int { return s.depth }

func (s *GroupSpec) has(tag Tag) bool { return slices.Contains(s.fields, tag) }

func (s *GroupSpec) nestedByCount(tag Tag) *GroupSpec {
	for _, n := range s.nested {
		if n.count == tag {
			return n
		}
	}
	return nil
}

// owner finds the spec in s's tree that declares tag as a member or count.
func (s *GroupSpec) owner(tag Tag) *GroupSpec {
	root := s
	for root.parent != nil {
		root = root.parent
	}
	return root.find(tag)
}

func (s *GroupSpec) find(tag Tag) *GroupSpec {
	if s.has(tag) {
		return s
	}
	for _, n := range s.nested {
		if n.count == tag {
			return s
		}
		if o := n.find(tag); o != nil {
			return o
		}
	}
	return nil
}

func (s *GroupSpec) scopeError(tag Tag) error {
	e := &GroupScopeError{Group: s.name, Depth: s.depth, Tag: tag}
	if o := s.owner(tag); o != nil {
		e.Owner, e.OwnerDepth = o.name, o.depth
	}
	return e
}

// New opens a builder for one instance of the group.
func (s *GroupSpec) New() *GroupBuilder {
	return &GroupBuilder{spec: s, nested: make(map[Tag][]GroupInstance)}
}

// GroupBuilder assembles one group instance. Calls chain; the first error
// sticks and is returned by Build.
//
//	inst, err := parties.New().
//	    Set(TagPartyID, String("SCOTT")).
//	    Set(TagPartyRole, Int(1)).
//	    Build()
type GroupBuilder struct {
	spec   *GroupSpec
	fields fieldMap
	nested map[Tag][]GroupInstance
	err    error
}

// Set assigns a member field of this instance. A tag owned by another
// nesting level fails with *GroupScopeError.
func (b *GroupBuilder) Set(tag Tag, v Value) *GroupBuilder {
	if b.err != nil {
		return b
	}
	if !b.spec.has(tag) {
		b.err = b.spec.scopeError(tag)
		return b
	}
	b.err = b.fields.set(tag, v)
	return b
}

// Append adds an instance of a directly nested group. Order is preserved.
func (b *GroupBuilder) Append(inst GroupInstance) *GroupBuilder {
	if b.err != nil {
		return b
	}
	if inst.spec == nil || inst.spec.parent != b.spec {
		tag := Tag(0)
		if inst.spec != nil {
			tag = inst.spec.count
		}
		b.err = b.spec.scopeError(tag)
		return b
	}
	b.nested[inst.spec.count] = append(b.nested[inst.spec.count], inst)
	return b
}

// Err returns the sticky error, if any.
func (b *GroupBuilder) Err() error { return b.err }

// Build snapshots the builder into an immutable instance. The builder can
// keep being modified without affecting instances already built.
func (b *GroupBuilder) Build() (GroupInstance, error) {
	if b.err != nil {
		return GroupInstance{}, b.err
	}
	if _, ok := b.fields.get(b.spec.Delimiter()); !ok {
		return GroupInstance{}, &GroupScopeError{
			Group: b.spec.name,
			Depth: b.spec.depth,
			Tag:   b.spec.Delimiter(),
			Owner: b.spec.name, OwnerDepth: b.spec.depth,
		}
	}
	inst := GroupInstance{spec: b.spec, fields: b.fields.clone()}
	if len(b.nested) > 0 {
		inst.nested = make(map[Tag][]GroupInstance, len(b.nested))
		for t, list := range b.nested {
			inst.nested[t] = slices.Clone(list)
		}
	}
	return inst, nil
}

// GroupInstance is one immutable entry of a repeating group.
type GroupInstance struct {
	spec   *GroupSpec
	fields fieldMap
	nested map[Tag][]GroupInstance
}

// Spec returns the group the instance belongs to.
func (g GroupInstance) Spec() *GroupSpec { return g.spec }

// Get returns a member field.
func (g GroupInstance) Get(tag Tag) (Value, bool) { return g.fields.get(tag) }

// Fields returns the member fields in spec order.
func (g GroupInstance) Fields() []Field {
	out := make([]Field, 0, len(g.fields.values))
	for _, t := range g.spec.fields {
		if v, ok := g.fields.get(t); ok {
			out = append(out, Field{Tag: t, Value: v})
		}
	}
	return out
}

// Group returns the nested instances announced by count, in append order.
func (g GroupInstance) Group(count Tag) []GroupInstance {
	return slices.Clone(g.nested[count])
}
