package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etf-validator/etf-contract-tests/config"
	"github.com/etf-validator/etf-contract-tests/framework"

	"github.com/alessio/shellescape"
	"github.com/spf13/viper"
)

type commandParams struct {
	filters     framework.RegexFilters
	debug       bool
	debugAll    bool
	junitFile   string
	xlsxFile    string
	metricsAddr string

	// flags that override configuration keys, applied only if given
	overrides map[string]*string
}

var overridableFlags = []struct {
	name, key, usage string
}{
	{"config", config.KeyConfigFile, "YAML configuration file"},
	{"url", config.KeyEndpoint, "ETF web application endpoint (env API_TEST_ENDPOINT)"},
	{"path", config.KeyPath, "API base path (env API_TEST_PATH)"},
	{"dir", config.KeyDir, "directory with the data, request and expected subdirectories"},
	{"output", config.KeyOutput, "directory for downloaded test run results"},
	{"parallel", config.KeyParallel, "number of cases to run at the same time"},
	{"wait", config.KeyStartupTimeout, "how long to wait for ETF to become healthy, such as 2m"},
}

func (c *commandParams) Read(args []string) bool {
	fs := flag.NewFlagSet("", flag.ExitOnError)
	c.overrides = make(map[string]*string)
	for _, f := range overridableFlags {
		c.overrides[f.name] = fs.String(f.name, "", f.usage)
	}
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.StringVar(&c.junitFile, "junit", "", "write a JUnit XML report to this file")
	fs.StringVar(&c.xlsxFile, "xlsx", "", "write a spreadsheet report to this file")
	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this host:port")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		fs.Usage()
		return false
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for name := range c.overrides {
		if !set[name] {
			delete(c.overrides, name)
		}
	}
	return true
}

// applyOverrides hands the given flags to viper, where they take precedence over the
// environment and the config file.
func (c *commandParams) applyOverrides() {
	for _, f := range overridableFlags {
		if v, ok := c.overrides[f.name]; ok {
			viper.Set(f.key, *v)
		}
	}
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}

// commandLine reconstructs an invocation that runs the same cases, for the failure summary.
func (c *commandParams) commandLine(program string) string {
	var b commandBuilder
	b.add(program)
	for _, f := range overridableFlags {
		if v, ok := c.overrides[f.name]; ok {
			b.add("-"+f.name, *v)
		}
	}
	for _, p := range c.filters.MustMatch.Patterns() {
		b.add("-run", p)
	}
	for _, p := range c.filters.MustNotMatch.Patterns() {
		b.add("-skip", p)
	}
	return b.String()
}
