package bxml

import (
	"encoding/binary"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// filetime2020 renders as "2020-01-02 03:04:05.000000000".
const filetime2020 = uint64(132224078450000000)

func stringTag(name string) *Tag {
	t := New()
	t.Name = NewStringValue(name)
	return t
}

func attribute(t *testing.T, name string, value Value) *Tag {
	t.Helper()
	a := New()
	a.Name = NewStringValue(name)
	a.Value = value
	return a
}

func filetimeValue(t *testing.T, ft uint64) *BinaryValue {
	t.Helper()
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, ft)
	v, err := NewValue(ValueTypeFiletime, data)
	require.NoError(t, err)
	return v
}

// render checks the size/write contract in both encodings and returns the
// UTF-8 text (terminator stripped).
func render(t *testing.T, tag *Tag, level int) string {
	t.Helper()

	size, err := tag.UTF8Size(level)
	require.NoError(t, err)

	dst := make([]byte, size)
	idx := 0
	require.NoError(t, tag.WriteUTF8(level, dst, &idx))
	require.Equal(t, size, idx, "write must advance the index by the computed size")
	require.Equal(t, byte(0), dst[idx-1], "output must be NUL terminated")
	text := string(dst[:idx-1])

	// The UTF-16 pass renders the same text.
	size16, err := tag.UTF16Size(level)
	require.NoError(t, err)
	dst16 := make([]uint16, size16)
	idx = 0
	require.NoError(t, tag.WriteUTF16(level, dst16, &idx))
	require.Equal(t, size16, idx)
	require.Equal(t, utf16.Encode([]rune(text)), dst16[:idx-1])

	return text
}

func TestEmptyNode(t *testing.T) {
	tag := stringTag("Event")

	size, err := tag.UTF8Size(0)
	require.NoError(t, err)
	assert.Equal(t, 10, size)
	assert.Equal(t, "<Event/>\n", render(t, tag, 0))
}

func TestNodeWithAttributeAndText(t *testing.T) {
	tag := stringTag("Data")
	tag.AppendAttribute(attribute(t, "Name", NewStringValue("Id")))
	tag.Value = NewStringValue("42")

	assert.Equal(t, `<Data Name="Id">42</Data>`+"\n", render(t, tag, 0))

	size, err := tag.UTF8Size(0)
	require.NoError(t, err)
	assert.Equal(t, 27, size)
}

func TestNodeWithChildrenIndented(t *testing.T) {
	tag := stringTag("A")
	tag.AppendChild(stringTag("B"))
	tag.AppendChild(stringTag("C"))

	want := "  <A>\n" +
		"    <B/>\n" +
		"    <C/>\n" +
		"  </A>\n"
	assert.Equal(t, want, render(t, tag, 1))
}

func TestFiletimeAttributeMarker(t *testing.T) {
	tag := stringTag("T")
	tag.AppendAttribute(attribute(t, "Time", filetimeValue(t, filetime2020)))

	assert.Equal(t, `<T Time="2020-01-02 03:04:05.000000000Z"/>`+"\n", render(t, tag, 0))
}

func TestFiletimeContentMarker(t *testing.T) {
	tag := stringTag("TimeCreated")
	tag.Value = filetimeValue(t, filetime2020)

	assert.Equal(t,
		"<TimeCreated>2020-01-02 03:04:05.000000000Z</TimeCreated>\n",
		render(t, tag, 0))
}

func TestCDataVerbatim(t *testing.T) {
	tag := &Tag{Kind: KindCData, Value: NewStringValue("x<y&z]")}

	size, err := tag.UTF8Size(0)
	require.NoError(t, err)
	assert.Equal(t, 20, size)
	assert.Equal(t, "<![CDATA[x<y&z]]]>\n", render(t, tag, 0))
}

func TestProcessingInstruction(t *testing.T) {
	tag := &Tag{
		Kind:  KindPI,
		Name:  NewStringValue("xml"),
		Value: NewStringValue(`version="1.0"`),
	}

	size, err := tag.UTF8Size(0)
	require.NoError(t, err)
	assert.Equal(t, 23, size)
	assert.Equal(t, `<?xml version="1.0"?>`+"\n", render(t, tag, 0))
}

func TestMultiEntryValueConcatenates(t *testing.T) {
	// Two entries rendered back to back with no separator.
	data := []byte{'a', 0, 'b', 0, 0, 0, 'c', 0, 'd', 0, 0, 0}
	v, err := NewValue(ValueTypeString|ValueTypeArrayBit, data)
	require.NoError(t, err)
	require.Equal(t, 2, v.EntryCount())

	tag := stringTag("Data")
	tag.Value = v
	assert.Equal(t, "<Data>abcd</Data>\n", render(t, tag, 0))
}

func TestEmptyValueEntriesSelfClose(t *testing.T) {
	// A value whose every entry renders empty behaves like no value.
	v, err := NewValue(ValueTypeNull, nil)
	require.NoError(t, err)

	tag := stringTag("Data")
	tag.Value = v
	assert.Equal(t, "<Data/>\n", render(t, tag, 0))
}

func TestValueWinsOverChildren(t *testing.T) {
	tag := stringTag("Data")
	tag.Value = NewStringValue("text")
	tag.AppendChild(stringTag("Ignored"))

	assert.Equal(t, "<Data>text</Data>\n", render(t, tag, 0))
}

func TestWriteBufferTooSmall(t *testing.T) {
	tag := stringTag("Event")
	tag.AppendAttribute(attribute(t, "Qualifiers", NewStringValue("16384")))

	size, err := tag.UTF8Size(0)
	require.NoError(t, err)

	for cap := 0; cap < size; cap++ {
		dst := make([]byte, cap)
		idx := 0
		err := tag.WriteUTF8(0, dst, &idx)
		require.ErrorIs(t, err, ErrBufferTooSmall, "cap %d", cap)
		require.LessOrEqual(t, idx, cap, "cap %d: index ran past capacity", cap)
	}

	// Exactly-sized buffer succeeds.
	dst := make([]byte, size)
	idx := 0
	require.NoError(t, tag.WriteUTF8(0, dst, &idx))
}

func TestSerializationDeterministic(t *testing.T) {
	tag := stringTag("Root")
	tag.AppendAttribute(attribute(t, "A", NewStringValue("1")))
	tag.AppendChild(stringTag("Child"))

	first, err := tag.XML()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := tag.XML()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestOrderPreserved(t *testing.T) {
	tag := stringTag("Root")
	names := []string{"Delta", "alpha", "Charlie", "bravo"}
	for _, n := range names {
		tag.AppendAttribute(attribute(t, n, NewStringValue("v")))
		tag.AppendChild(stringTag(n))
	}

	out := render(t, tag, 0)
	last := -1
	for _, n := range names {
		pos := strings.Index(out, n)
		require.Greater(t, pos, last, "name %q out of insertion order", n)
		last = pos
	}
}

func TestMissingPiecesAreErrors(t *testing.T) {
	t.Run("node without name", func(t *testing.T) {
		_, err := New().UTF8Size(0)
		assert.ErrorIs(t, err, ErrMissingName)
	})
	t.Run("cdata without value", func(t *testing.T) {
		_, err := (&Tag{Kind: KindCData}).UTF8Size(0)
		assert.ErrorIs(t, err, ErrMissingValue)
	})
	t.Run("attribute without value", func(t *testing.T) {
		tag := stringTag("E")
		a := New()
		a.Name = NewStringValue("x")
		tag.AppendAttribute(a)
		_, err := tag.UTF8Size(0)
		assert.ErrorIs(t, err, ErrMissingValue)
	})
	t.Run("nil tag", func(t *testing.T) {
		var tag *Tag
		_, err := tag.UTF8Size(0)
		assert.Error(t, err)
	})
}

// randomTree builds a bounded random tree exercising every kind and a few
// value types.
func randomTree(t *testing.T, rng *rand.Rand, depth int) *Tag {
	t.Helper()

	if depth > 0 && rng.Intn(8) == 0 {
		return &Tag{Kind: KindCData, Value: NewStringValue(randomName(rng))}
	}
	tag := stringTag(randomName(rng))
	for i, n := 0, rng.Intn(3); i < n; i++ {
		tag.AppendAttribute(attribute(t, randomName(rng), randomValue(t, rng)))
	}
	switch {
	case rng.Intn(3) == 0:
		tag.Value = randomValue(t, rng)
	case depth < 3:
		for i, n := 0, rng.Intn(3); i < n; i++ {
			tag.AppendChild(randomTree(t, rng, depth+1))
		}
	}
	return tag
}

func randomName(rng *rand.Rand) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	n := 1 + rng.Intn(10)
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(letters[rng.Intn(len(letters))])
	}
	return b.String()
}

func randomValue(t *testing.T, rng *rand.Rand) Value {
	t.Helper()
	switch rng.Intn(4) {
	case 0:
		data := make([]byte, 4)
		binary.LittleEndian.PutUint32(data, rng.Uint32())
		v, err := NewValue(ValueTypeUint32, data)
		require.NoError(t, err)
		return v
	case 1:
		return filetimeValue(t, filetime2020+uint64(rng.Intn(1_000_000)))
	case 2:
		data := make([]byte, 8)
		rng.Read(data)
		v, err := NewValue(ValueTypeBinary, data)
		require.NoError(t, err)
		return v
	default:
		return NewStringValue(randomName(rng))
	}
}

func TestRandomTreesHoldInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		tag := randomTree(t, rng, 0)
		level := rng.Intn(4)

		size, err := tag.UTF8Size(level)
		require.NoError(t, err, "tree %d", i)

		// Exact-size write succeeds and fills the buffer.
		out := render(t, tag, level)
		require.Len(t, out, size-1, "tree %d", i)

		// One code unit short must fail without a panic.
		if size > 1 {
			short := make([]byte, size-1)
			idx := 0
			require.ErrorIs(t, tag.WriteUTF8(level, short, &idx), ErrBufferTooSmall, "tree %d", i)
		}

		// Time-typed values always carry the UTC marker.
		for _, a := range tag.Attributes {
			if a.Value.Type().IsTime() {
				name, err := valueText(a.Name, 0)
				require.NoError(t, err)
				require.Contains(t, out, name+`="2020-01-02`)
				require.Contains(t, out, `Z"`)
			}
		}
	}
}
