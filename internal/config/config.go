package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/julianstephens/habitd/internal/constants"
	"github.com/julianstephens/habitd/internal/storage/postgres"
)

// AuthConfig selects how bearer tokens are verified. Exactly one of Secret
// (HS256) or PublicKeyFile (RS256) is expected.
type AuthConfig struct {
	Secret        string        `mapstructure:"secret" yaml:"secret"`
	PublicKeyFile string        `mapstructure:"public_key_file" yaml:"public_key_file"`
	Issuer        string        `mapstructure:"issuer" yaml:"issuer"`
	Audience      string        `mapstructure:"audience" yaml:"audience"`
	Leeway        time.Duration `mapstructure:"leeway" yaml:"leeway"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type LogConfig struct {
	Debug  bool `mapstructure:"debug" yaml:"debug"`
	Stderr bool `mapstructure:"stderr" yaml:"stderr"`
}

// Config is the resolved runtime configuration.
type Config struct {
	ListenAddr string     `mapstructure:"listen_addr" yaml:"listen_addr"`
	Database   string     `mapstructure:"database" yaml:"database"`
	Timezone   string     `mapstructure:"timezone" yaml:"timezone"`
	DataDir    string     `mapstructure:"data_dir" yaml:"data_dir"`
	Auth       AuthConfig `mapstructure:"auth" yaml:"auth"`
	CORS       CORSConfig `mapstructure:"cors" yaml:"cors"`
	Log        LogConfig  `mapstructure:"log" yaml:"log"`
}

// Options controls where Load looks for its inputs. Empty paths are skipped.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Overrides carries command-line flag values. Empty fields leave the loaded
// value alone.
type Overrides struct {
	ListenAddr string
	Database   string
	Timezone   string
	Debug      bool
}

// Load resolves configuration from defaults, the YAML file, the .env file
// and HABITD_* environment variables, in increasing order of precedence.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		// godotenv never overwrites variables that are already set.
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		path := ExpandHome(opts.ConfigFile)
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", constants.DefaultListenAddr)
	v.SetDefault("database", constants.DefaultConfigPath)
	v.SetDefault("timezone", constants.DefaultTimezone)
	v.SetDefault("data_dir", constants.DefaultDataDir)
	// Keys without a meaningful default are still registered so that
	// AutomaticEnv picks them up during Unmarshal.
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.public_key_file", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.leeway", time.Duration(0))
	v.SetDefault("cors.allowed_origins", constants.DefaultAllowedOrigins)
	v.SetDefault("log.debug", false)
	v.SetDefault("log.stderr", false)
}

func (c *Config) normalize() {
	c.ListenAddr = strings.TrimSpace(c.ListenAddr)
	c.Database = strings.TrimSpace(c.Database)
	c.Timezone = strings.TrimSpace(c.Timezone)
	if !postgres.IsConnString(c.Database) {
		c.Database = ExpandHome(c.Database)
	}
	c.DataDir = ExpandHome(c.DataDir)
	c.Auth.PublicKeyFile = ExpandHome(c.Auth.PublicKeyFile)

	origins := make([]string, 0, len(c.CORS.AllowedOrigins))
	for _, o := range c.CORS.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORS.AllowedOrigins = origins
}

// Apply layers command-line flags on top of the loaded values.
func (c *Config) Apply(o Overrides) {
	if o.ListenAddr != "" {
		c.ListenAddr = o.ListenAddr
	}
	if o.Database != "" {
		c.Database = o.Database
	}
	if o.Timezone != "" {
		c.Timezone = o.Timezone
	}
	if o.Debug {
		c.Log.Debug = true
	}
	c.normalize()
}

// Validate checks the values that would otherwise fail late, at first use.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr must not be empty")
	}
	if c.Database == "" {
		return errors.New("database must not be empty")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if postgres.IsConnString(c.Database) {
		if _, err := postgres.ValidateConnString(c.Database); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if c.Auth.Secret != "" && c.Auth.PublicKeyFile != "" {
		return errors.New("auth.secret and auth.public_key_file are mutually exclusive")
	}
	return nil
}

// Location resolves the reference timezone used for "today".
func (c *Config) Location() (*time.Location, error) {
	name := c.Timezone
	if name == "" {
		name = constants.DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
