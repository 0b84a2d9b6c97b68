package htmlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "plain text",
			input:    "A fast, lightweight browser",
			expected: "A fast, lightweight browser",
		},
		{
			name:     "appstream description",
			input:    "<p>GIMP is an image editor.</p><p>Features:</p><ul><li>Layers</li><li>Filters &amp; plug-ins</li></ul>",
			expected: "GIMP is an image editor.\nFeatures:\nLayers\nFilters & plug-ins",
		},
		{
			name:     "br variants",
			input:    "Line one<br>Line two<br/>Line three<BR />Line four",
			expected: "Line one\nLine two\nLine three\nLine four",
		},
		{
			name:     "attributes and inline tags",
			input:    `<p style="font-weight: 600">This is <strong>very</strong> <em>important</em></p>`,
			expected: "This is very important",
		},
		{
			name:     "script and style are dropped",
			input:    "<style>p{color:red}</style><p>Visible</p><script>alert(1)</script>",
			expected: "Visible",
		},
		{
			name:     "nbsp and collapsed spaces",
			input:    "Too&nbsp;&nbsp;many    spaces",
			expected: "Too many spaces",
		},
		{
			name:     "self-closing img",
			input:    "Text <img src='icon.png'/> more text",
			expected: "Text more text",
		},
		{
			name:     "headings",
			input:    "<h1>VLC</h1><p>Media player</p>",
			expected: "VLC\nMedia player",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, StripTags(tt.input))
		})
	}
}

func TestDecodeHTMLEntities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"Tom &amp; Jerry", "Tom & Jerry"},
		{"&lt;tag&gt;", "<tag>"},
		{"it&#39;s &apos;quoted&apos;", "it's 'quoted'"},
		{"em&mdash;dash and en&#8211;dash", "em—dash and en–dash"},
		{"&copy; 2026 Brand&trade;", "© 2026 Brand™"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, decodeHTMLEntities(tt.input), tt.input)
	}
}
