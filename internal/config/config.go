// Package config resolves the packaging pipeline's configuration: built-in
// defaults, an optional svcpack.yaml at the project root, and SVCPACK_*
// environment overrides, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "svcpack"
	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "SVCPACK"
)

// Config describes one packaging run. All relative paths are resolved
// against the project root.
type Config struct {
	// Product is the distribution name; it names the canonical directory,
	// the executable inside it, and the archive.
	Product string `mapstructure:"product"`
	// PlatformTag is the platform suffix encoded in the archive name.
	PlatformTag string `mapstructure:"platform_tag"`
	// ExecPrefix marks the executable artifact in the build output.
	ExecPrefix string `mapstructure:"exec_prefix"`
	// LibPrefix marks shared-library artifacts in the build output.
	LibPrefix string `mapstructure:"lib_prefix"`
	// LibDir is the library subdirectory under the canonical directory.
	LibDir string `mapstructure:"lib_dir"`
	// BuildOutput is where the build tool deposits its artifacts.
	BuildOutput string `mapstructure:"build_output"`
	// Manifest is the dependency manifest consumed by the provisioner.
	Manifest string `mapstructure:"manifest"`
	// ModulePathVar is the module-search environment variable scrubbed
	// around the build.
	ModulePathVar string `mapstructure:"module_path_var"`
	// ProvisionCmd is the dependency provisioner argv; the manifest path
	// is appended.
	ProvisionCmd []string `mapstructure:"provision_cmd"`
	// BuildCmd is the build tool argv, run in the project root.
	BuildCmd []string `mapstructure:"build_cmd"`
}

// defaults match the mysqltoolsservice macOS packaging conventions.
func defaults() map[string]any {
	return map[string]any{
		"product":         "mysqltoolsservice",
		"platform_tag":    "osx",
		"exec_prefix":     "exe_",
		"lib_prefix":      "lib_",
		"lib_dir":         "lib",
		"build_output":    "build",
		"manifest":        "requirements.txt",
		"module_path_var": "PYTHONPATH",
		"provision_cmd":   []string{"python", "-m", "pip", "install", "-r"},
		"build_cmd":       []string{"python", "setup.py", "build"},
	}
}

// Load resolves the configuration. projectRoot is searched for
// svcpack.yaml; file is an explicit config path that, when non-empty,
// must exist and overrides the search.
func Load(projectRoot, file string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults() {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(projectRoot)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
			// No config file is fine; defaults apply.
		}
	}

	var c Config
	if err := v.Unmarshal(&c, func(dc *mapstructure.DecoderConfig) {
		dc.ErrorUnused = true
	}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch {
	case c.Product == "":
		return errors.New("config: product must not be empty")
	case strings.ContainsAny(c.Product, "/\\"):
		return fmt.Errorf("config: product %q must not contain path separators", c.Product)
	case c.PlatformTag == "":
		return errors.New("config: platform_tag must not be empty")
	case c.ExecPrefix == "":
		return errors.New("config: exec_prefix must not be empty")
	case c.LibPrefix == "":
		return errors.New("config: lib_prefix must not be empty")
	case c.LibDir == "":
		return errors.New("config: lib_dir must not be empty")
	case len(c.ProvisionCmd) == 0:
		return errors.New("config: provision_cmd must not be empty")
	case len(c.BuildCmd) == 0:
		return errors.New("config: build_cmd must not be empty")
	}
	return nil
}

// ArchiveName returns the archive file name for the given release version
// ("" for an unversioned archive), e.g. mysqltoolsservice-osx.tar.gz.
func (c *Config) ArchiveName(release string) string {
	if release != "" {
		return c.Product + "-" + release + "-" + c.PlatformTag + ".tar.gz"
	}
	return c.Product + "-" + c.PlatformTag + ".tar.gz"
}
