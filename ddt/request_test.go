package ddt

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, content string) Case {
	t.Helper()
	path := filepath.Join(t.TempDir(), "request.properties")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return Case{Index: 3, InputPath: "data/sample.xml", RequestTemplatePath: path}
}

func requireTemplateError(t *testing.T, err error) *RequestTemplateError {
	t.Helper()
	var rte *RequestTemplateError
	require.True(t, errors.As(err, &rte), "expected RequestTemplateError, got %v", err)
	return rte
}

func TestSynthesizeRendersRequestBody(t *testing.T) {
	c := writeTemplate(t, "etsIds=ets-1\narguments.lang=en\narguments.files_to_test=.*\nother=ignored\n")

	r, err := Synthesizer{}.Synthesize(c, "EID42")
	require.NoError(t, err)
	assert.Equal(t,
		`{"label": "Test 3 - sample","executableTestSuiteIds": ["ets-1"],`+
			`"arguments": {"lang": "en","files_to_test": ".*"},"testObject": {"id": "EID42"}}`,
		r.Body)
	assert.Equal(t,
		`{"arguments":{"files_to_test":".*","lang":"en"},"executableTestSuiteIds":["ets-1"],`+
			`"label":"Test 3 - sample","testObject":{"id":"EID42"}}`,
		r.Canonical)
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	c := writeTemplate(t, "arguments.z=1\narguments.a=2\narguments.m=3\netsIds=ets-1\n")
	first, err := Synthesizer{}.Synthesize(c, "EID1")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Synthesizer{}.Synthesize(c, "EID1")
		require.NoError(t, err)
		assert.Equal(t, first.Body, again.Body)
	}
	assert.Contains(t, first.Body, `"arguments": {"z": "1","a": "2","m": "3"}`)
}

func TestSynthesizeWithoutArguments(t *testing.T) {
	r, err := Synthesizer{}.Synthesize(writeTemplate(t, "etsIds = ets-2"), "EID1")
	require.NoError(t, err)
	assert.Contains(t, r.Body, `"arguments": {},`)
}

func TestSynthesizeEscapesValues(t *testing.T) {
	c := writeTemplate(t, "etsIds=ets-1\narguments.regex=\"a\\\\\\\\b\"\n")

	r, err := Synthesizer{}.Synthesize(c, "EID1")
	require.NoError(t, err)
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(r.Body), &parsed))
	assert.Equal(t, map[string]interface{}{"regex": `"a\\b"`}, parsed["arguments"])

	_, err = Synthesizer{RawValues: true}.Synthesize(c, "EID1")
	requireTemplateError(t, err)
}

func TestSynthesizeRawValuesKeepsTextVerbatim(t *testing.T) {
	c := writeTemplate(t, "etsIds=ets-1\narguments.path=C:\\\\\\\\tmp\n")

	r, err := Synthesizer{RawValues: true}.Synthesize(c, "EID1")
	require.NoError(t, err)
	assert.Contains(t, r.Body, `"path": "C:\\tmp"`)

	r, err = Synthesizer{}.Synthesize(c, "EID1")
	require.NoError(t, err)
	assert.Contains(t, r.Body, `"path": "C:\\\\tmp"`)
}

func TestSynthesizeDoesNotExpandProperties(t *testing.T) {
	r, err := Synthesizer{}.Synthesize(writeTemplate(t, "etsIds=ets-1\narguments.x=${undefined}\n"), "EID1")
	require.NoError(t, err)
	assert.Contains(t, r.Body, `"x": "${undefined}"`)
}

func TestSynthesizeTemplateErrors(t *testing.T) {
	t.Run("missing etsIds", func(t *testing.T) {
		_, err := Synthesizer{}.Synthesize(writeTemplate(t, "arguments.lang=en\n"), "EID1")
		rte := requireTemplateError(t, err)
		assert.Contains(t, rte.Message, "etsIds")
	})

	t.Run("empty etsIds", func(t *testing.T) {
		_, err := Synthesizer{}.Synthesize(writeTemplate(t, "etsIds=\n"), "EID1")
		requireTemplateError(t, err)
	})

	t.Run("unreadable file", func(t *testing.T) {
		c := Case{RequestTemplatePath: filepath.Join(t.TempDir(), "missing.properties")}
		_, err := Synthesizer{}.Synthesize(c, "EID1")
		rte := requireTemplateError(t, err)
		assert.Error(t, rte.Err)
	})
}
