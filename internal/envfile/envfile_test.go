package envfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_EmptyContent(t *testing.T) {
	result, err := Parse("")
	assert.NoError(t, err)
	assert.Empty(t, result)
}

func TestParse_BasicPairs(t *testing.T) {
	env, err := Parse(`
# engine overrides
SF_INSTALL_ROOT=/opt/demo
export SF_LANG=de

SF_STATE_DIR = /var/lib/setupforge
`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"SF_INSTALL_ROOT": "/opt/demo",
		"SF_LANG":         "de",
		"SF_STATE_DIR":    "/var/lib/setupforge",
	}, env)
}

func TestParse_QuotedValues(t *testing.T) {
	cases := []struct {
		name string
		line string
		want string
	}{
		{"double quoted", `KEY="hello world"`, "hello world"},
		{"double quoted with comment", `KEY="v" # trailing`, "v"},
		{"double quoted escape", `KEY="a\"b"`, `a"b`},
		{"single quoted", `KEY='literal \n'`, `literal \n`},
		{"unquoted trims space", `KEY=  spaced  `, "spaced"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := Parse(tc.line)
			require.NoError(t, err)
			assert.Equal(t, tc.want, env["KEY"])
		})
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name string
		line string
		want string
	}{
		{"missing equals", "JUSTAKEY", "expected KEY=VALUE"},
		{"empty key", "=value", "expected KEY=VALUE"},
		{"unterminated double quote", `KEY="open`, "unterminated quoted value"},
		{"unterminated single quote", "KEY='", "unterminated quoted value"},
		{"trailing garbage", `KEY="v" extra`, "unexpected content after quoted value"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.line)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
			assert.Contains(t, err.Error(), "line 1")
		})
	}
}

func TestParse_ScannerErrorOnOverlongLine(t *testing.T) {
	// bufio.Scanner reports ErrTooLong for tokens larger than its max token size.
	content := strings.Repeat("A", 1024*128)
	_, err := Parse(content)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read")
}

func TestFilterNamespace(t *testing.T) {
	env := map[string]string{
		"SF_INSTALL_ROOT": "/opt/demo",
		"PATH":            "/usr/bin",
		"HOME":            "/root",
		"SF_LANG":         "en",
	}
	filtered := FilterNamespace(env)
	assert.Equal(t, map[string]string{
		"SF_INSTALL_ROOT": "/opt/demo",
		"SF_LANG":         "en",
	}, filtered)
}

func TestFilterNamespace_Empty(t *testing.T) {
	assert.Empty(t, FilterNamespace(nil))
	assert.Empty(t, FilterNamespace(map[string]string{}))
}

func TestUnescapeDoubleQuotedValue(t *testing.T) {
	assert.Equal(t, "line1\nline2", unescapeDoubleQuotedValue(`line1\nline2`))
	assert.Equal(t, "line1\rline2", unescapeDoubleQuotedValue(`line1\rline2`))
	assert.Equal(t, `back\slash`, unescapeDoubleQuotedValue(`back\slash`))
}
