package ddt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Names of the fixture subdirectories.
const (
	DataDir     = "data"
	RequestDir  = "request"
	ExpectedDir = "expected"
)

var (
	dataExtensions     = []string{".xml", ".gml", ".zip"}
	requestExtensions  = []string{".properties"}
	expectedExtensions = []string{".xml"}

	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// Case is one test scenario: an input document, the request template used to start the
// run, and the expected result. The three files are matched by their position in the
// sorted listings of their directories.
type Case struct {
	Index               int
	InputPath           string
	RequestTemplatePath string
	ExpectedPath        string
}

// Name is the base name of the input file without extension, reduced to characters that are
// safe in a path segment. If nothing usable remains, the index is used instead.
func (c Case) Name() string {
	name := unsafeNameChars.ReplaceAllString(stem(c.InputPath), "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return strconv.Itoa(c.Index)
	}
	return name
}

// StemsAgree reports whether the three files have the same base name. Cases are matched by
// position regardless; a disagreement usually means that a fixture file is missing.
func (c Case) StemsAgree() bool {
	s := stem(c.InputPath)
	return s == stem(c.RequestTemplatePath) && s == stem(c.ExpectedPath)
}

func (c Case) String() string {
	return fmt.Sprintf("#%d %s (%s, %s, %s)", c.Index, c.Name(),
		filepath.Base(c.InputPath), filepath.Base(c.RequestTemplatePath), filepath.Base(c.ExpectedPath))
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Discover lists the cases below root, which must contain the data, request and expected
// directories with the same, non-zero number of matching files each.
func Discover(root string) ([]Case, error) {
	inputs, err := listFiles(root, DataDir, dataExtensions)
	if err != nil {
		return nil, err
	}
	requests, err := listFiles(root, RequestDir, requestExtensions)
	if err != nil {
		return nil, err
	}
	expected, err := listFiles(root, ExpectedDir, expectedExtensions)
	if err != nil {
		return nil, err
	}
	if len(inputs) != len(requests) || len(inputs) != len(expected) {
		return nil, &DiscoveryError{
			Root: root,
			Message: fmt.Sprintf("file counts differ: %d in %s, %d in %s, %d in %s",
				len(inputs), DataDir, len(requests), RequestDir, len(expected), ExpectedDir),
		}
	}

	cases := make([]Case, 0, len(inputs))
	names := make(map[string]int, len(inputs))
	for i := range inputs {
		c := Case{
			Index:               i,
			InputPath:           inputs[i],
			RequestTemplatePath: requests[i],
			ExpectedPath:        expected[i],
		}
		// each case owns the output directory named after it
		if other, found := names[c.Name()]; found {
			return nil, &DiscoveryError{
				Root:    root,
				Message: fmt.Sprintf("cases %d and %d have the same name %q", other, i, c.Name()),
			}
		}
		names[c.Name()] = i
		cases = append(cases, c)
	}
	return cases, nil
}

func listFiles(root, dir string, extensions []string) ([]string, error) {
	path := filepath.Join(root, dir)
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, &DiscoveryError{Root: root, Message: "cannot read " + dir + " directory", Err: err}
	}
	var ret []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !hasExtension(e.Name(), extensions) {
			continue
		}
		ret = append(ret, filepath.Join(path, e.Name()))
	}
	if len(ret) == 0 {
		return nil, &DiscoveryError{
			Root:    root,
			Message: fmt.Sprintf("no %s files in %s directory", strings.Join(extensions, "/"), dir),
		}
	}
	sort.Strings(ret)
	return ret, nil
}

func hasExtension(name string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
