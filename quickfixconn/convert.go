package quickfixconn

import (
	"fmt"

	"github.com/quickfixgo/quickfix"

	"github.com/bjaus/fixgate"
)

// Convert copies m into a quickfix message. BeginString, MsgType and the
// comp ids are copied into the header together with the extra header fields.
// MsgSeqNum and SendingTime are left to the engine, which stamps them on
// send.
func Convert(m *fixgate.Message) (*quickfix.Message, error) {
	qm := quickfix.NewMessage()
	h := &m.Header
	qm.Header.SetField(tagOf(fixgate.TagBeginString), quickfix.FIXString(h.BeginString))
	qm.Header.SetField(tagOf(fixgate.TagMsgType), quickfix.FIXString(h.MsgType))
	if h.SenderCompID != "" {
		qm.Header.SetField(tagOf(fixgate.TagSenderCompID), quickfix.FIXString(h.SenderCompID))
	}
	if h.TargetCompID != "" {
		qm.Header.SetField(tagOf(fixgate.TagTargetCompID), quickfix.FIXString(h.TargetCompID))
	}
	for _, f := range h.Fields() {
		w, err := writer(f)
		if err != nil {
			return nil, err
		}
		qm.Header.SetField(tagOf(f.Tag), w)
	}

	for _, f := range m.Fields() {
		w, err := writer(f)
		if err != nil {
			return nil, err
		}
		qm.Body.SetField(tagOf(f.Tag), w)
	}
	for _, spec := range m.GroupSpecs() {
		rg, err := fillGroup(spec, m.Group(spec.Count()))
		if err != nil {
			return nil, err
		}
		qm.Body.SetGroup(rg)
	}
	return qm, nil
}

// NewRepeatingGroup returns an empty quickfix group shaped like spec,
// including its nested groups. Use it to read groups back out of a
// quickfix message.
func NewRepeatingGroup(spec *fixgate.GroupSpec) *quickfix.RepeatingGroup {
	return quickfix.NewRepeatingGroup(tagOf(spec.Count()), groupTemplate(spec))
}

func groupTemplate(spec *fixgate.GroupSpec) quickfix.GroupTemplate {
	tmpl := make(quickfix.GroupTemplate, 0, len(spec.Fields())+len(spec.Nested()))
	for _, t := range spec.Fields() {
		tmpl = append(tmpl, quickfix.GroupElement(tagOf(t)))
	}
	for _, n := range spec.Nested() {
		tmpl = append(tmpl, NewRepeatingGroup(n))
	}
	return tmpl
}

func fillGroup(spec *fixgate.GroupSpec, insts []fixgate.GroupInstance) (*quickfix.RepeatingGroup, error) {
	rg := NewRepeatingGroup(spec)
	for _, inst := range insts {
		g := rg.Add()
		for _, f := range inst.Fields() {
			w, err := writer(f)
			if err != nil {
				return nil, err
			}
			g.SetField(tagOf(f.Tag), w)
		}
		for _, n := range spec.Nested() {
			sub := inst.Group(n.Count())
			if len(sub) == 0 {
				continue
			}
			nested, err := fillGroup(n, sub)
			if err != nil {
				return nil, err
			}
			g.SetGroup(nested)
		}
	}
	return rg, nil
}

func writer(f fixgate.Field) (quickfix.FieldValueWriter, error) {
	v := f.Value
	switch v.Kind() {
	case fixgate.KindInt:
		n, _ := v.Int64()
		return quickfix.FIXInt(n), nil
	case fixgate.KindFloat:
		d, _ := v.Decimal()
		return quickfix.FIXDecimal{Decimal: d, Scale: v.Scale()}, nil
	case fixgate.KindTimestamp:
		t, _ := v.Time()
		return quickfix.FIXUTCTimestamp{Time: t, Precision: quickfix.Millis}, nil
	case fixgate.KindString, fixgate.KindChar:
		return quickfix.FIXString(v.String()), nil
	default:
		return nil, fmt.Errorf("convert tag %d: %w", f.Tag, fixgate.ErrInvalidFieldValue)
	}
}

func tagOf(t fixgate.Tag) quickfix.Tag { return quickfix.Tag(t) }
