package ddt

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/magiconair/properties"
)

// Keys of a request property file. Every key starting with ArgumentsPrefix becomes a test run
// argument named after the rest of the key.
const (
	ETSIDsKey       = "etsIds"
	ArgumentsPrefix = "arguments."
)

// Argument is one test run argument, in the order of the property file.
type Argument struct {
	Key   string
	Value string
}

// RequestTemplate is the parsed content of a request property file.
type RequestTemplate struct {
	Path      string
	ETSIDs    string
	Arguments []Argument
}

// LoadRequestTemplate reads a property file. The file must define a non-empty etsIds key.
// Property expansion is disabled, so "${...}" in values is taken literally.
func LoadRequestTemplate(path string) (*RequestTemplate, error) {
	loader := properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	props, err := loader.LoadFile(path)
	if err != nil {
		return nil, &RequestTemplateError{Path: path, Message: "cannot load property file", Err: err}
	}
	ets, ok := props.Get(ETSIDsKey)
	if !ok || strings.TrimSpace(ets) == "" {
		return nil, &RequestTemplateError{Path: path, Message: "required key " + ETSIDsKey + " is missing"}
	}
	t := &RequestTemplate{Path: path, ETSIDs: ets}
	for _, k := range props.Keys() {
		if !strings.HasPrefix(k, ArgumentsPrefix) {
			continue
		}
		v, _ := props.Get(k)
		t.Arguments = append(t.Arguments, Argument{Key: strings.TrimPrefix(k, ArgumentsPrefix), Value: v})
	}
	return t, nil
}

// Synthesizer renders the JSON body that starts a test run.
type Synthesizer struct {
	// RawValues inserts values into the JSON text without escaping them. Property files that
	// rely on writing JSON escapes themselves need this; a value containing a quote then
	// makes the request invalid.
	RawValues bool
}

// Request is a rendered test run request.
type Request struct {
	Body string
	// Canonical is the RFC 8785 form of Body, which is stable regardless of the formatting
	// of Body and is what gets logged.
	Canonical string
}

// Synthesize loads the request template of c and renders the body for the given test object.
func (s Synthesizer) Synthesize(c Case, testObjectID string) (Request, error) {
	t, err := LoadRequestTemplate(c.RequestTemplatePath)
	if err != nil {
		return Request{}, err
	}
	return s.Render(t, c, testObjectID)
}

// Render produces the body from an already loaded template. The output is byte-identical for
// identical inputs.
func (s Synthesizer) Render(t *RequestTemplate, c Case, testObjectID string) (Request, error) {
	str := jsonString
	if s.RawValues {
		str = func(v string) string { return `"` + v + `"` }
	}

	var b strings.Builder
	b.WriteString(`{"label": `)
	b.WriteString(str("Test " + strconv.Itoa(c.Index) + " - " + c.Name()))
	b.WriteString(`,"executableTestSuiteIds": [`)
	b.WriteString(str(t.ETSIDs))
	b.WriteString(`],"arguments": {`)
	for i, a := range t.Arguments {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(str(a.Key))
		b.WriteString(": ")
		b.WriteString(str(a.Value))
	}
	b.WriteString(`},"testObject": {"id": `)
	b.WriteString(str(testObjectID))
	b.WriteString("}}")

	body := b.String()
	canonical, err := jsoncanonicalizer.Transform([]byte(body))
	if err != nil {
		return Request{}, &RequestTemplateError{Path: t.Path, Message: "rendered request is not valid JSON", Err: err}
	}
	return Request{Body: body, Canonical: string(canonical)}, nil
}

func jsonString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
