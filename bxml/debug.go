package bxml

import (
	"fmt"
	"io"
)

// DebugPrint writes the subtree rooted at t to w in the same layout as the
// XML serializer, without a size pass or terminator. It is intended for
// diagnostics; any write or value failure aborts the print.
func (t *Tag) DebugPrint(w io.Writer, level int) error {
	if t == nil {
		return errNilTag
	}
	for i := 0; i < level; i++ {
		if _, err := io.WriteString(w, "  "); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "<"); err != nil {
		return err
	}

	switch t.Kind {
	case KindNode:
		if err := t.debugPrintNode(w, level); err != nil {
			return err
		}
	case KindCData:
		if t.Value == nil {
			return ErrMissingValue
		}
		s, err := valueText(t.Value, 0)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "![CDATA[%s]]", s); err != nil {
			return err
		}
	case KindPI:
		if t.Name == nil {
			return ErrMissingName
		}
		if t.Value == nil {
			return ErrMissingValue
		}
		name, err := valueText(t.Name, 0)
		if err != nil {
			return err
		}
		body, err := valueText(t.Value, 0)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "?%s %s?", name, body); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, ">\n")
	return err
}

func (t *Tag) debugPrintNode(w io.Writer, level int) error {
	if t.Name == nil {
		return ErrMissingName
	}
	name, err := valueText(t.Name, 0)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, name); err != nil {
		return err
	}

	for i, a := range t.Attributes {
		if a == nil || a.Name == nil {
			return fmt.Errorf("attribute %d: %w", i, ErrMissingName)
		}
		if a.Value == nil {
			return fmt.Errorf("attribute %d: %w", i, ErrMissingValue)
		}
		attrName, err := valueText(a.Name, 0)
		if err != nil {
			return err
		}
		attrValue, err := valueText(a.Value, 0)
		if err != nil {
			return err
		}
		marker := ""
		if a.Value.Type().IsTime() {
			marker = "Z"
		}
		if _, err := fmt.Fprintf(w, " %s=\"%s%s\"", attrName, attrValue, marker); err != nil {
			return err
		}
	}

	switch {
	case t.Value != nil:
		content := ""
		isTime := t.Value.Type().IsTime()
		for i := 0; i < t.Value.EntryCount(); i++ {
			s, err := valueText(t.Value, i)
			if err != nil {
				return err
			}
			if s == "" {
				continue
			}
			content += s
			if isTime {
				content += "Z"
			}
		}
		if content == "" {
			_, err := io.WriteString(w, "/")
			return err
		}
		_, err := fmt.Fprintf(w, ">%s</%s", content, name)
		return err

	case len(t.Children) > 0:
		if _, err := io.WriteString(w, ">\n"); err != nil {
			return err
		}
		for i, c := range t.Children {
			if err := c.DebugPrint(w, level+1); err != nil {
				return fmt.Errorf("child %d: %w", i, err)
			}
		}
		for i := 0; i < level; i++ {
			if _, err := io.WriteString(w, "  "); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "</%s", name)
		return err

	default:
		_, err := io.WriteString(w, "/")
		return err
	}
}

// valueText renders one entry of any Value through its copy primitive.
func valueText(v Value, entry int) (string, error) {
	size, err := v.UTF8Size(entry)
	if err != nil {
		return "", err
	}
	if size <= 1 {
		return "", nil
	}
	dst := make([]byte, size-1)
	idx := 0
	if err := v.CopyUTF8(entry, dst, &idx); err != nil {
		return "", err
	}
	return string(dst[:idx]), nil
}
