package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testHeader struct {
	Name string            `yaml:"name"`
	Tags []string          `yaml:"tags,omitempty"`
	Env  map[string]string `yaml:"env,omitempty"`
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		header testHeader
		body   string
	}{
		{"simple", testHeader{Name: "a"}, "hello world\n"},
		{"with tags and env", testHeader{Name: "b", Tags: []string{"x", "y"}, Env: map[string]string{"K": "V"}}, "multi\nline\nbody\n"},
		{"empty body", testHeader{Name: "c"}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := Stringify(tc.header, tc.body)
			require.NoError(t, err)

			var got testHeader
			body, err := Parse(raw, &got)
			require.NoError(t, err)

			require.Equal(t, tc.header, got)
			require.Equal(t, tc.body, body)
		})
	}
}

func TestParseNoHeader(t *testing.T) {
	var h testHeader
	body, err := Parse([]byte("just a body, no header\n"), &h)
	require.NoError(t, err)
	require.Equal(t, "just a body, no header\n", body)
	require.Equal(t, testHeader{}, h)
}

func TestParseUnterminatedHeader(t *testing.T) {
	var h testHeader
	raw := "---\nname: a\nno closing delimiter\n"
	body, err := Parse([]byte(raw), &h)
	require.NoError(t, err)
	require.Equal(t, raw, body)
}
