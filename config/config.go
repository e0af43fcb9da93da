// Package config reads the harness configuration from defaults, an optional YAML file, the
// environment and command line overrides, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Configuration keys. The environment variable of a key is its upper-case form with dots
// replaced by underscores, for instance API_TEST_ENDPOINT.
const (
	KeyConfigFile        = "configFile"
	KeyEndpoint          = "api.test.endpoint"
	KeyPath              = "api.test.path"
	KeyUsername          = "api.test.username"
	KeyPassword          = "api.test.password"
	KeyStartupTimeout    = "api.test.startuptimeout"
	KeyDir               = "ddt.dir"
	KeyOutput            = "ddt.output"
	KeyParallel          = "ddt.parallel"
	KeyPollInterval      = "ddt.poll.interval"
	KeyPollMax           = "ddt.poll.max"
	KeyPollFailOnTimeout = "ddt.poll.failontimeout"
	KeyRawValues         = "ddt.request.rawvalues"
	KeyHTTPTimeout       = "http.timeout"
	KeyLogFormat         = "log.format"
	KeyLogLevel          = "log.level"
)

// Map stores all configuration values.
type Map struct {
	API APIConfig
	DDT DDTConfig
	Log LogConfig
}

type APIConfig struct {
	// Endpoint of the ETF web application.
	// Optional. Default value http://localhost/etf-webapp
	Endpoint string

	// Path of the API below Endpoint.
	// Optional. Default value /v2
	Path string

	// Basic authentication is used if Username is set.
	// Optional.
	Username string
	Password string

	// StartupTimeout is how long to wait for a healthy heartbeat before giving up.
	// Optional. Default value 0, a single check
	StartupTimeout time.Duration

	// Timeout of a single HTTP request.
	// Optional. Default value 60s
	Timeout time.Duration
}

type DDTConfig struct {
	// Dir is the fixture tree with the data, request and expected directories.
	// Optional. Default value testdata/ddt
	Dir string

	// Output receives the downloaded result documents.
	// Optional. Default value build/tmp/ddt
	Output string

	// Parallel is the number of cases run at the same time.
	// Optional. Default value 1
	Parallel int

	// PollInterval is the delay before each progress query.
	// Optional. Default value 10s
	PollInterval time.Duration

	// MaxPolls is the number of progress queries after which a run is considered hung.
	// Optional. Default value 43200
	MaxPolls int

	// FailOnTimeout fails a case whose run is still unfinished after MaxPolls. If false, the
	// result is fetched and compared anyway.
	// Optional. Default value true
	FailOnTimeout bool

	// RawValues inserts request template values into the request JSON without escaping.
	// Optional. Default value false
	RawValues bool
}

type LogConfig struct {
	// Format is text or json.
	Format string
	Level  string
}

func applyDefaults() {
	viper.SetDefault(KeyEndpoint, "http://localhost/etf-webapp")
	viper.SetDefault(KeyPath, "/v2")
	viper.SetDefault(KeyStartupTimeout, time.Duration(0))
	viper.SetDefault(KeyDir, "testdata/ddt")
	viper.SetDefault(KeyOutput, "build/tmp/ddt")
	viper.SetDefault(KeyParallel, 1)
	viper.SetDefault(KeyPollInterval, 10*time.Second)
	viper.SetDefault(KeyPollMax, 43200)
	viper.SetDefault(KeyPollFailOnTimeout, true)
	viper.SetDefault(KeyRawValues, false)
	viper.SetDefault(KeyHTTPTimeout, 60*time.Second)
	viper.SetDefault(KeyLogFormat, "text")
	viper.SetDefault(KeyLogLevel, "info")
}

// NewConfig initializes and validates the configuration. It also applies the log settings to
// the standard logrus logger.
func NewConfig() (*Map, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetConfigType("yaml")
	applyDefaults()

	if viper.IsSet(KeyConfigFile) && viper.GetString(KeyConfigFile) != "" {
		viper.SetConfigFile(viper.GetString(KeyConfigFile))
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("cannot read config file: %w", err)
		}
		log.Debugf("Read configuration from %s", viper.ConfigFileUsed())
	}

	c := &Map{
		API: APIConfig{
			Endpoint:       viper.GetString(KeyEndpoint),
			Path:           viper.GetString(KeyPath),
			Username:       viper.GetString(KeyUsername),
			Password:       viper.GetString(KeyPassword),
			StartupTimeout: viper.GetDuration(KeyStartupTimeout),
			Timeout:        viper.GetDuration(KeyHTTPTimeout),
		},
		DDT: DDTConfig{
			Dir:           viper.GetString(KeyDir),
			Output:        viper.GetString(KeyOutput),
			Parallel:      viper.GetInt(KeyParallel),
			PollInterval:  viper.GetDuration(KeyPollInterval),
			MaxPolls:      viper.GetInt(KeyPollMax),
			FailOnTimeout: viper.GetBool(KeyPollFailOnTimeout),
			RawValues:     viper.GetBool(KeyRawValues),
		},
		Log: LogConfig{
			Format: viper.GetString(KeyLogFormat),
			Level:  viper.GetString(KeyLogLevel),
		},
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	if err := c.configureLog(log.StandardLogger()); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Map) validate() error {
	u, err := url.Parse(c.API.Endpoint)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", KeyEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http or https URL, got %q", KeyEndpoint, c.API.Endpoint)
	}
	if c.API.Password != "" && c.API.Username == "" {
		return fmt.Errorf("%s is set but %s is not", KeyPassword, KeyUsername)
	}
	if c.API.StartupTimeout < 0 {
		return fmt.Errorf("%s must not be negative", KeyStartupTimeout)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", KeyHTTPTimeout)
	}
	if c.DDT.Dir == "" {
		return fmt.Errorf("%s not set", KeyDir)
	}
	if c.DDT.Output == "" {
		return fmt.Errorf("%s not set", KeyOutput)
	}
	if c.DDT.Parallel < 1 {
		return fmt.Errorf("%s must be at least 1", KeyParallel)
	}
	if c.DDT.PollInterval <= 0 {
		return fmt.Errorf("%s must be positive", KeyPollInterval)
	}
	if c.DDT.MaxPolls < 1 {
		return fmt.Errorf("%s must be at least 1", KeyPollMax)
	}
	return nil
}

func (c *Map) configureLog(logger *log.Logger) error {
	switch c.Log.Format {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return errors.New("log.format must be text or json")
	}
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	logger.SetLevel(level)
	return nil
}

// BaseURL is the endpoint joined with the API path.
func (c *Map) BaseURL() string {
	path := strings.Trim(c.API.Path, "/")
	if path == "" {
		return strings.TrimSuffix(c.API.Endpoint, "/")
	}
	return strings.TrimSuffix(c.API.Endpoint, "/") + "/" + path
}
