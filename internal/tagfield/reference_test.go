package tagfield

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		source string
		want   int64
		ok     bool
	}{
		{"taggroup:3", 3, true},
		{" taggroup:12 ", 12, true},
		{"taggroup:", 0, false},
		{"taggroup:0", 0, false},
		{"taggroup:-4", 0, false},
		{"taggroup:3x", 0, false},
		{"TagGroup:3", 0, false},
		{"section:3", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got, ok := ParseSource(tt.source)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatSource(t *testing.T) {
	assert.Equal(t, "taggroup:5", FormatSource(5))
	id, ok := ParseSource(FormatSource(5))
	assert.True(t, ok)
	assert.Equal(t, int64(5), id)
}

func TestParseReferences(t *testing.T) {
	refs := ParseReferences([]string{"12", "", "new:Go Lang", " ", "new:", "x1"})

	want := []Reference{
		{Kind: Existing, ID: 12, Raw: "12"},
		{Kind: Pending, Name: "Go Lang", Raw: "new:Go Lang"},
		{Kind: Invalid, Raw: "new:"},
		{Kind: Invalid, Raw: "x1"},
	}
	assert.Equal(t, want, refs)
}

func TestParseReference_NameKeepsColons(t *testing.T) {
	ref := ParseReference("new:a:b")
	assert.Equal(t, Pending, ref.Kind)
	assert.Equal(t, "a:b", ref.Name)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "existing", Existing.String())
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "invalid", Invalid.String())
}
