package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"time"
)

// JUnitFile is the root of a JUnit XML report.
type JUnitFile struct {
	XMLName xml.Name `xml:"testsuites"`
	Suites  []*Suite `xml:"testsuite"`
}

type Suite struct {
	XMLName    xml.Name    `xml:"testsuite"`
	Tests      int         `xml:"tests,attr"`
	Failures   int         `xml:"failures,attr"`
	Skipped    int         `xml:"skipped,attr"`
	Time       string      `xml:"time,attr"`
	Name       string      `xml:"name,attr"`
	Properties []*Property `xml:"properties>property,omitempty"`
	TestCases  []*TestCase `xml:"testcase"`
}

type TestCase struct {
	XMLName     xml.Name     `xml:"testcase"`
	Classname   string       `xml:"classname,attr"`
	Name        string       `xml:"name,attr"`
	Time        string       `xml:"time,attr"`
	SkipMessage *SkipMessage `xml:"skipped,omitempty"`
	Failure     *Failure     `xml:"failure,omitempty"`
	SystemOut   string       `xml:"system-out,omitempty"`
}

// SkipMessage contains the reason why a testcase was skipped.
type SkipMessage struct {
	Message string `xml:"message,attr"`
}

type Property struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Failure contains the first line of the error as message and all errors as content.
type Failure struct {
	Message  string `xml:"message,attr"`
	Type     string `xml:"type,attr"`
	Contents string `xml:",chardata"`
}

// NewJUnitFile builds a report with a single suite. Properties are written in the given order.
func NewJUnitFile(suiteName string, entries []Entry, duration time.Duration, properties ...Property) *JUnitFile {
	s := summarize(entries)
	suite := &Suite{
		Name:     suiteName,
		Tests:    s.total,
		Failures: s.failed,
		Skipped:  s.skipped,
		Time:     seconds(duration),
	}
	for i := range properties {
		suite.Properties = append(suite.Properties, &properties[i])
	}
	for _, e := range entries {
		tc := &TestCase{
			Classname: suiteName,
			Name:      e.TestID,
			Time:      seconds(e.Duration),
		}
		switch e.Status {
		case Skipped:
			tc.SkipMessage = &SkipMessage{Message: "excluded by filter parameters"}
		case Failed:
			tc.Failure = &Failure{Message: firstLine(e.Message), Type: e.Stage, Contents: e.Message}
		}
		if e.TestRunID != "" {
			tc.SystemOut = fmt.Sprintf("test object %s, test run %s, result %s", e.TestObjectID, e.TestRunID, e.ResultPath)
		}
		suite.TestCases = append(suite.TestCases, tc)
	}
	return &JUnitFile{Suites: []*Suite{suite}}
}

func (f *JUnitFile) Write(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(f); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func (f *JUnitFile) WriteFile(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	err = f.Write(out)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return err
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
