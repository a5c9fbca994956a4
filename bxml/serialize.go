package bxml

import (
	"errors"
	"fmt"
)

var errNilTag = errors.New("bxml: nil tag")

// codeUnit constrains the serializer's target encodings: bytes for UTF-8,
// uint16 code units for UTF-16.
type codeUnit interface{ ~uint8 | ~uint16 }

// encoding bundles the per-value primitives for one target encoding. A single
// generic size/emit pair serves both encodings.
type encoding[U codeUnit] struct {
	size func(Value, int) (int, error)
	copy func(Value, int, []U, *int) error
}

func utf8Encoding() encoding[byte] {
	return encoding[byte]{size: Value.UTF8Size, copy: Value.CopyUTF8}
}

func utf16Encoding() encoding[uint16] {
	return encoding[uint16]{size: Value.UTF16Size, copy: Value.CopyUTF16}
}

// UTF8Size computes the exact UTF-8 output size of the subtree rooted at t,
// rendered at the given indentation level. The size includes the terminating
// end-of-string byte written by WriteUTF8.
func (t *Tag) UTF8Size(level int) (int, error) {
	return xmlSize(utf8Encoding(), t, level)
}

// UTF16Size computes the exact UTF-16 output size in code units, including
// the terminating end-of-string unit.
func (t *Tag) UTF16Size(level int) (int, error) {
	return xmlSize(utf16Encoding(), t, level)
}

// WriteUTF8 renders the subtree rooted at t into dst starting at *idx and
// advances *idx past the written text and its terminating end-of-string
// byte. Emission fails with ErrBufferTooSmall when dst cannot hold the
// output; *idx then reflects the last completed write.
func (t *Tag) WriteUTF8(level int, dst []byte, idx *int) error {
	if err := xmlWrite(utf8Encoding(), t, level, dst, idx); err != nil {
		return err
	}
	return terminate(dst, idx)
}

// WriteUTF16 renders the subtree rooted at t into dst as UTF-16 code units.
func (t *Tag) WriteUTF16(level int, dst []uint16, idx *int) error {
	if err := xmlWrite(utf16Encoding(), t, level, dst, idx); err != nil {
		return err
	}
	return terminate(dst, idx)
}

// XML renders the subtree as a UTF-8 string at indentation level 0. The
// returned string excludes the terminator.
func (t *Tag) XML() (string, error) {
	size, err := t.UTF8Size(0)
	if err != nil {
		return "", err
	}
	dst := make([]byte, size)
	idx := 0
	if err := t.WriteUTF8(0, dst, &idx); err != nil {
		return "", err
	}
	return string(dst[:idx-1]), nil
}

// XMLUTF16 renders the subtree as UTF-16 code units at indentation level 0,
// excluding the terminator.
func (t *Tag) XMLUTF16() ([]uint16, error) {
	size, err := t.UTF16Size(0)
	if err != nil {
		return nil, err
	}
	dst := make([]uint16, size)
	idx := 0
	if err := t.WriteUTF16(0, dst, &idx); err != nil {
		return nil, err
	}
	return dst[:idx-1], nil
}

func terminate[U codeUnit](dst []U, idx *int) error {
	if *idx < 0 || *idx >= len(dst) {
		return ErrBufferTooSmall
	}
	dst[*idx] = 0
	*idx++
	return nil
}

// xmlSize walks the subtree and accumulates the output size. The arithmetic
// folds each per-value terminator slot into the structural character that
// overwrites it (a closing quote, a following '<'), so every size call
// contributes its full value and fixed characters are added separately.
func xmlSize[U codeUnit](enc encoding[U], t *Tag, level int) (int, error) {
	if t == nil {
		return 0, errNilTag
	}

	// Two indent spaces per level plus the opening '<'.
	n := 2*level + 1

	switch t.Kind {
	case KindNode:
		if t.Name == nil {
			return 0, ErrMissingName
		}
		nameSize, err := enc.size(t.Name, 0)
		if err != nil {
			return 0, fmt.Errorf("name size: %w", err)
		}
		n += nameSize - 1

		for i, a := range t.Attributes {
			attrSize, err := attributeSize(enc, a)
			if err != nil {
				return 0, fmt.Errorf("attribute %d: %w", i, err)
			}
			n += attrSize
		}

		switch {
		case t.Value != nil:
			valueSize, err := valueContentSize(enc, t.Value)
			if err != nil {
				return 0, fmt.Errorf("value: %w", err)
			}
			if valueSize > 0 {
				// '>' + content + '<' + '/' + name.
				n += valueSize + nameSize + 2
			} else {
				n++ // self-closing '/'
			}
		case len(t.Children) > 0:
			for i, c := range t.Children {
				childSize, err := xmlSize(enc, c, level+1)
				if err != nil {
					return 0, fmt.Errorf("child %d: %w", i, err)
				}
				n += childSize - 1
			}
			// '>' + '\n' + closing indent + '<' + '/' + name.
			n += 2*level + nameSize + 3
		default:
			n++ // self-closing '/'
		}

	case KindCData:
		if t.Value == nil {
			return 0, ErrMissingValue
		}
		valueSize, err := enc.size(t.Value, 0)
		if err != nil {
			return 0, fmt.Errorf("cdata value size: %w", err)
		}
		// "![CDATA[" + payload + "]]"; the payload's terminator slot is
		// reused by the first ']'.
		n += valueSize + 9

	case KindPI:
		if t.Name == nil {
			return 0, ErrMissingName
		}
		if t.Value == nil {
			return 0, ErrMissingValue
		}
		nameSize, err := enc.size(t.Name, 0)
		if err != nil {
			return 0, fmt.Errorf("pi target size: %w", err)
		}
		valueSize, err := enc.size(t.Value, 0)
		if err != nil {
			return 0, fmt.Errorf("pi body size: %w", err)
		}
		// '?' + target + ' ' + body + '?', with both terminator slots reused.
		n += nameSize + valueSize + 1
	}

	// '>' + '\n' + end-of-string.
	return n + 3, nil
}

// attributeSize computes the contribution of one attribute:
// ' ' name '=' '"' value ['Z'] '"'.
func attributeSize[U codeUnit](enc encoding[U], a *Tag) (int, error) {
	if a == nil || a.Name == nil {
		return 0, ErrMissingName
	}
	if a.Value == nil {
		return 0, ErrMissingValue
	}
	nameSize, err := enc.size(a.Name, 0)
	if err != nil {
		return 0, fmt.Errorf("name size: %w", err)
	}
	valueSize, err := enc.size(a.Value, 0)
	if err != nil {
		return 0, fmt.Errorf("value size: %w", err)
	}
	n := nameSize + 2 + valueSize
	if a.Value.Type().IsTime() {
		n++ // trailing 'Z'
	}
	return n, nil
}

// valueContentSize sums the rendered sizes of all entries, skipping empty
// ones. Each non-empty entry contributes its text length, plus one for the
// UTC marker on time types.
func valueContentSize[U codeUnit](enc encoding[U], v Value) (int, error) {
	isTime := v.Type().IsTime()
	total := 0
	for i := 0; i < v.EntryCount(); i++ {
		entrySize, err := enc.size(v, i)
		if err != nil {
			return 0, fmt.Errorf("entry %d size: %w", i, err)
		}
		if entrySize > 1 {
			total += entrySize - 1
			if isTime {
				total++
			}
		}
	}
	return total, nil
}

// emitter writes code units into a bounded destination buffer. Every write
// checks capacity first; on failure the index stays at the last completed
// position.
type emitter[U codeUnit] struct {
	enc encoding[U]
	dst []U
	idx *int
}

// literal writes an ASCII string one code unit per byte.
func (e *emitter[U]) literal(s string) error {
	if *e.idx < 0 || *e.idx+len(s) > len(e.dst) {
		return ErrBufferTooSmall
	}
	for i := 0; i < len(s); i++ {
		e.dst[*e.idx] = U(s[i])
		*e.idx++
	}
	return nil
}

// indent writes two spaces per level.
func (e *emitter[U]) indent(level int) error {
	need := 2 * level
	if *e.idx < 0 || *e.idx+need > len(e.dst) {
		return ErrBufferTooSmall
	}
	for i := 0; i < need; i++ {
		e.dst[*e.idx] = U(' ')
		*e.idx++
	}
	return nil
}

// value copies the rendering of one value entry.
func (e *emitter[U]) value(v Value, entry int) error {
	return e.enc.copy(v, entry, e.dst, e.idx)
}

// xmlWrite emits the subtree rooted at t without the final end-of-string
// unit; the exported Write* entry points append it once at the top level.
func xmlWrite[U codeUnit](enc encoding[U], t *Tag, level int, dst []U, idx *int) error {
	if t == nil {
		return errNilTag
	}
	if idx == nil {
		return errors.New("bxml: nil index")
	}
	e := emitter[U]{enc: enc, dst: dst, idx: idx}

	if err := e.indent(level); err != nil {
		return err
	}
	if err := e.literal("<"); err != nil {
		return err
	}

	switch t.Kind {
	case KindNode:
		if err := writeNode(enc, &e, t, level, dst, idx); err != nil {
			return err
		}

	case KindCData:
		if t.Value == nil {
			return ErrMissingValue
		}
		if err := e.literal("![CDATA["); err != nil {
			return err
		}
		if err := e.value(t.Value, 0); err != nil {
			return fmt.Errorf("cdata value: %w", err)
		}
		if err := e.literal("]]"); err != nil {
			return err
		}

	case KindPI:
		if t.Name == nil {
			return ErrMissingName
		}
		if t.Value == nil {
			return ErrMissingValue
		}
		if err := e.literal("?"); err != nil {
			return err
		}
		if err := e.value(t.Name, 0); err != nil {
			return fmt.Errorf("pi target: %w", err)
		}
		if err := e.literal(" "); err != nil {
			return err
		}
		if err := e.value(t.Value, 0); err != nil {
			return fmt.Errorf("pi body: %w", err)
		}
		if err := e.literal("?"); err != nil {
			return err
		}
	}

	return e.literal(">\n")
}

func writeNode[U codeUnit](enc encoding[U], e *emitter[U], t *Tag, level int, dst []U, idx *int) error {
	if t.Name == nil {
		return ErrMissingName
	}
	if err := e.value(t.Name, 0); err != nil {
		return fmt.Errorf("name: %w", err)
	}

	for i, a := range t.Attributes {
		if a == nil || a.Name == nil {
			return fmt.Errorf("attribute %d: %w", i, ErrMissingName)
		}
		if a.Value == nil {
			return fmt.Errorf("attribute %d: %w", i, ErrMissingValue)
		}
		if err := e.literal(" "); err != nil {
			return err
		}
		if err := e.value(a.Name, 0); err != nil {
			return fmt.Errorf("attribute %d name: %w", i, err)
		}
		if err := e.literal(`="`); err != nil {
			return err
		}
		if err := e.value(a.Value, 0); err != nil {
			return fmt.Errorf("attribute %d value: %w", i, err)
		}
		if a.Value.Type().IsTime() {
			if err := e.literal("Z"); err != nil {
				return err
			}
		}
		if err := e.literal(`"`); err != nil {
			return err
		}
	}

	switch {
	case t.Value != nil:
		valueSize, err := valueContentSize(enc, t.Value)
		if err != nil {
			return fmt.Errorf("value: %w", err)
		}
		if valueSize == 0 {
			return e.literal("/")
		}
		if err := e.literal(">"); err != nil {
			return err
		}
		isTime := t.Value.Type().IsTime()
		for i := 0; i < t.Value.EntryCount(); i++ {
			entrySize, err := enc.size(t.Value, i)
			if err != nil {
				return fmt.Errorf("value entry %d size: %w", i, err)
			}
			if entrySize <= 1 {
				continue
			}
			if err := e.value(t.Value, i); err != nil {
				return fmt.Errorf("value entry %d: %w", i, err)
			}
			if isTime {
				if err := e.literal("Z"); err != nil {
					return err
				}
			}
		}
		if err := e.literal("</"); err != nil {
			return err
		}
		if err := e.value(t.Name, 0); err != nil {
			return fmt.Errorf("closing name: %w", err)
		}
		return nil

	case len(t.Children) > 0:
		if err := e.literal(">\n"); err != nil {
			return err
		}
		for i, c := range t.Children {
			if err := xmlWrite(enc, c, level+1, dst, idx); err != nil {
				return fmt.Errorf("child %d: %w", i, err)
			}
		}
		if err := e.indent(level); err != nil {
			return err
		}
		if err := e.literal("</"); err != nil {
			return err
		}
		if err := e.value(t.Name, 0); err != nil {
			return fmt.Errorf("closing name: %w", err)
		}
		return nil

	default:
		return e.literal("/")
	}
}
