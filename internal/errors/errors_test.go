package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{name: "config error", code: "E100", wantMsg: "Invalid route pattern", wantCat: CategoryConfig},
		{name: "navigation error", code: "E200", wantMsg: "Before-route handler failed", wantCat: CategoryNavigation},
		{name: "protocol error", code: "E301", wantMsg: "Frame too large", wantCat: CategoryProtocol},
		{name: "archive error", code: "E400", wantMsg: "Audit trail upload failed", wantCat: CategoryArchive},
		{name: "unknown error code", code: "E999", wantMsg: "Unknown error", wantCat: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			assert.Equal(t, tt.wantMsg, err.Message)
			assert.Equal(t, tt.wantCat, err.Category)
			assert.Equal(t, tt.code, err.Code)
		})
	}
}

func TestErrorString(t *testing.T) {
	cause := stderrors.New("boom")
	err := New("E200").WithDetail("scope %q", ":s").Wrap(cause)

	assert.Equal(t, `E200: Before-route handler failed: scope ":s": boom`, err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestIsMatchesCode(t *testing.T) {
	err := fmt.Errorf("navigate: %w", New("E201"))

	assert.True(t, HasCode(err, "E201"))
	assert.False(t, HasCode(err, "E200"))
	assert.False(t, HasCode(stderrors.New("x"), "E201"))
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil, "E200"))

	coded := New("E300")
	assert.Same(t, coded, FromError(fmt.Errorf("wrap: %w", coded), "E200"))

	plain := stderrors.New("plain")
	got := FromError(plain, "E202")
	assert.Equal(t, "E202", got.Code)
	assert.ErrorIs(t, got, plain)
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("E100").WithDetail(`pattern "^/(" is not valid`).Wrap(stderrors.New("missing )"))
	out := err.Format()

	assert.Contains(t, out, "ERROR E100: Invalid route pattern")
	assert.Contains(t, out, `pattern "^/(" is not valid`)
	assert.Contains(t, out, "Cause: missing )")
	assert.Contains(t, out, "Hint: Patterns use Go RE2 syntax")
}

func TestFormatJSON(t *testing.T) {
	err := New("E302")
	assert.JSONEq(t,
		`{"code":"E302","category":"protocol","message":"Handshake missing","suggestion":"The client must send a hello frame before any event"}`,
		err.FormatJSON())
}

func TestPrintError(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	PrintError(&buf, New("E101"))
	assert.Contains(t, buf.String(), "E101")

	buf.Reset()
	PrintError(&buf, stderrors.New("plain failure"))
	assert.Contains(t, buf.String(), "ERROR: plain failure")
}

func TestGetAllCodes(t *testing.T) {
	codes := GetAllCodes()
	require.NotEmpty(t, codes)
	for _, c := range codes {
		tmpl, ok := GetTemplate(c)
		require.True(t, ok, c)
		assert.NotEmpty(t, tmpl.Message, c)
		assert.True(t, strings.HasPrefix(c, "E"), c)
	}
	assert.Equal(t, "E100", codes[0])
}

func TestWrapText(t *testing.T) {
	assert.Nil(t, wrapText("", 10))
	assert.Equal(t, []string{"short"}, wrapText("short", 10))
	assert.Equal(t, []string{"one two", "three"}, wrapText("one two three", 8))
}
