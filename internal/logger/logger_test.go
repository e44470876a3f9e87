package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogFormat(t *testing.T) {
	assert.Equal(t, FormatConsole, ParseLogFormat("console"))
	assert.Equal(t, FormatConsole, ParseLogFormat("CONSOLE"))
	assert.Equal(t, FormatJSON, ParseLogFormat("json"))
	assert.Equal(t, FormatJSON, ParseLogFormat("anything else"))
}

func TestSetupJSONOutput(t *testing.T) {
	ResetForTesting()
	defer ResetForTesting()

	var buf bytes.Buffer
	Setup(Config{Level: "debug", Format: FormatJSON, Output: &buf})

	Get().Info().Str("key", "value").Msg("hello")

	out := buf.String()
	assert.Contains(t, out, `"key":"value"`)
	assert.Contains(t, out, `"message":"hello"`)
}

func TestSetupOnlyFirstCallWins(t *testing.T) {
	ResetForTesting()
	defer ResetForTesting()

	var first, second bytes.Buffer
	Setup(Config{Format: FormatJSON, Output: &first})
	Setup(Config{Format: FormatJSON, Output: &second})

	Get().Info().Msg("routed")
	assert.Contains(t, first.String(), "routed")
	assert.Empty(t, second.String())
}

func TestWithComponent(t *testing.T) {
	ResetForTesting()
	defer ResetForTesting()

	var buf bytes.Buffer
	Setup(Config{Format: FormatJSON, Output: &buf})

	Get().WithComponent("collector").Info().Msg("tagged")
	assert.Contains(t, buf.String(), `"component":"collector"`)
}

func TestHTTPMiddleware(t *testing.T) {
	ResetForTesting()
	defer ResetForTesting()

	var buf bytes.Buffer
	Setup(Config{Format: FormatJSON, Output: &buf})

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/books/alice?refresh=true", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	out := buf.String()
	assert.Contains(t, out, `"path":"/api/books/alice"`)
	assert.Contains(t, out, `"status":418`)
	assert.True(t, strings.Contains(out, `"method":"GET"`))
}
