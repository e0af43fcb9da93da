package report

import (
	"bytes"
	"encoding/xml"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/etf-validator/etf-contract-tests/ddt"
	"github.com/etf-validator/etf-contract-tests/etf"
	"github.com/etf-validator/etf-contract-tests/framework"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleResults() ddt.SuiteResults {
	newCase := func(i int, name string) ddt.Case {
		return ddt.Case{
			Index:               i,
			InputPath:           "data/" + name + ".xml",
			RequestTemplatePath: "request/" + name + ".properties",
			ExpectedPath:        "expected/" + name + ".xml",
		}
	}
	id := func(name string) framework.TestID { return framework.TestID{}.Plus(ddt.TestNamePrefix + name) }
	failure := &ddt.CaseError{Case: newCase(1, "b"), Stage: etf.StageStart, Err: errors.New("HTTP 500")}

	return ddt.SuiteResults{Cases: []ddt.CaseOutcome{
		{
			Case:      newCase(0, "a"),
			Result:    framework.TestResult{TestID: id("a"), Duration: 1500 * time.Millisecond},
			Execution: &ddt.Execution{TestObjectID: "EID1", TestRunID: "EID2", ResultPath: "out/a/TestRunResult.xml"},
		},
		{
			Case:   newCase(1, "b"),
			Result: framework.TestResult{TestID: id("b"), Errors: []error{failure}},
			Err:    failure,
		},
		{
			Case:   newCase(2, "c"),
			Result: framework.TestResult{TestID: id("c"), Skipped: true},
		},
	}}
}

func TestEntries(t *testing.T) {
	entries := Entries(sampleResults())
	require.Len(t, entries, 3)

	assert.Equal(t, Entry{
		Index:        0,
		Name:         "a",
		TestID:       "Data Test: a",
		Input:        "a.xml",
		Request:      "a.properties",
		Expected:     "a.xml",
		Status:       Passed,
		Duration:     1500 * time.Millisecond,
		TestObjectID: "EID1",
		TestRunID:    "EID2",
		ResultPath:   "out/a/TestRunResult.xml",
	}, entries[0])
	assert.Equal(t, Failed, entries[1].Status)
	assert.Equal(t, "start", entries[1].Stage)
	assert.Contains(t, entries[1].Message, "HTTP 500")
	assert.Equal(t, Skipped, entries[2].Status)
}

func TestJUnit(t *testing.T) {
	file := NewJUnitFile("etf-ddt", Entries(sampleResults()), 3*time.Second, Property{Name: "endpoint", Value: "http://etf"})
	var buf bytes.Buffer
	require.NoError(t, file.Write(&buf))

	var parsed JUnitFile
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &parsed))
	require.Len(t, parsed.Suites, 1)
	s := parsed.Suites[0]
	assert.Equal(t, 3, s.Tests)
	assert.Equal(t, 1, s.Failures)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, "3.000", s.Time)
	require.Len(t, s.Properties, 1)
	assert.Equal(t, "http://etf", s.Properties[0].Value)

	require.Len(t, s.TestCases, 3)
	assert.Equal(t, "Data Test: a", s.TestCases[0].Name)
	assert.Equal(t, "1.500", s.TestCases[0].Time)
	assert.Nil(t, s.TestCases[0].Failure)
	assert.Contains(t, s.TestCases[0].SystemOut, "EID2")
	require.NotNil(t, s.TestCases[1].Failure)
	assert.Equal(t, "start", s.TestCases[1].Failure.Type)
	assert.NotNil(t, s.TestCases[2].SkipMessage)
}

func TestJUnitWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junit.xml")
	require.NoError(t, NewJUnitFile("etf-ddt", nil, 0).WriteFile(path))
	assert.FileExists(t, path)
}

func TestXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteXLSX(path, Entries(sampleResults()), 3*time.Second))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 4)
	assert.Equal(t, xlsxHeaders, rows[0])
	assert.Equal(t, "a", rows[1][1])
	assert.Equal(t, "PASSED", rows[1][5])
	assert.Equal(t, "FAILED", rows[2][5])
	assert.Equal(t, "start", rows[2][9])
	assert.Equal(t, "SKIPPED", rows[3][5])

	summary, err := f.GetCellValue(sheetName, "A8")
	require.NoError(t, err)
	assert.Equal(t, "Cases: 3", summary)
}
