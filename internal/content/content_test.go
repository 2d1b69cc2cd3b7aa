package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		expected  []Segment
		malformed bool
	}{
		{name: "blank", raw: "  ", expected: []Segment{}},
		{name: "empty array", raw: "[]", expected: []Segment{}},
		{
			name: "ordered segments",
			raw:  `[{"type":"text","value":"a"},{"type":"image","value":"/postimage/x.png"}]`,
			expected: []Segment{
				{Type: TypeText, Value: "a"},
				{Type: TypeImage, Value: "/postimage/x.png"},
			},
		},
		{name: "not json", raw: "hello", malformed: true},
		{name: "object instead of array", raw: `{"type":"text"}`, malformed: true},
		{name: "null", raw: "null", malformed: true},
		{name: "value wrong type", raw: `[{"type":"text","value":3}]`, malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.raw)
			if tt.malformed {
				assert.ErrorIs(t, err, ErrMalformedContent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	sequences := [][]Segment{
		{{Type: TypeText, Value: "hi"}},
		{
			{Type: TypeVideo, Value: `<iframe src="https://www.youtube.com/embed/x"></iframe>`},
			{Type: TypeText, Value: "line one\nline \"two\""},
			{Type: TypeImage, Value: "/postimage/a.png"},
			{Type: TypeText, Value: "ünïcode ✓"},
		},
	}

	for _, s := range sequences {
		raw, err := Serialize(s)
		require.NoError(t, err)
		got, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	raw, err := Serialize([]Segment{{Type: TypeVideo, Value: `<iframe src="https://v.test/?a=1&b=2"></iframe>`}})
	require.NoError(t, err)
	assert.Equal(t, `[{"type":"video","value":"<iframe src=\"https://v.test/?a=1&b=2\"></iframe>"}]`, raw)

	raw, err = Serialize(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
	got, err := Parse(raw)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFilterEmpty(t *testing.T) {
	t.Parallel()

	got := FilterEmpty([]Segment{
		{Type: TypeText, Value: "  "},
		{Type: TypeText, Value: "hi"},
		{Type: "", Value: "orphan"},
		{Type: TypeImage, Value: "\t\n"},
	})
	assert.Equal(t, []Segment{{Type: TypeText, Value: "hi"}}, got)
}

func TestFirstImage(t *testing.T) {
	t.Parallel()

	segments := []Segment{
		{Type: TypeText, Value: "a"},
		{Type: TypeImage, Value: "/x.png"},
		{Type: TypeImage, Value: "/y.png"},
	}
	img, ok := FirstImage(segments)
	require.True(t, ok)
	assert.Equal(t, "/x.png", img.Value)

	_, ok = FirstImage([]Segment{{Type: TypeText, Value: "only text"}})
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	got, err := Normalize(`[{"type":"text","value":" "},{"type":"video","value":"https://v"}]`)
	require.NoError(t, err)
	assert.Equal(t, []Segment{{Type: TypeVideo, Value: "https://v"}}, got)

	_, err = Normalize(`[{"type":"audio","value":"x.mp3"}]`)
	assert.ErrorIs(t, err, ErrMalformedContent)

	_, err = Normalize(`not-json`)
	assert.ErrorIs(t, err, ErrMalformedContent)
}

func TestImageValues(t *testing.T) {
	t.Parallel()

	got := ImageValues([]Segment{
		{Type: TypeImage, Value: "/postimage/a.png"},
		{Type: TypeText, Value: "/postimage/not-an-image-segment.png"},
		{Type: TypeImage, Value: "/postimage/b.png"},
	})
	assert.Equal(t, []string{"/postimage/a.png", "/postimage/b.png"}, got)
}

func TestParseLenient(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, []Segment{}, ParseLenient(ctx, "{broken"))
	assert.Equal(t, []Segment{}, ParseLenient(ctx, "null"))
	assert.Equal(t, []Segment{{Type: TypeText, Value: "hi"}}, ParseLenient(ctx, `[{"type":"text","value":"hi"}]`))
}
