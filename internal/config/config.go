// Package config loads run settings from defaults, an optional YAML file,
// a .env file and DEID_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"dicom-deidentifier/internal/identity"
)

// DefaultPath is read when no config path is given. It may be absent.
const DefaultPath = "deidentifier.yaml"

// Well-known directory names, resolved against WorkDir.
const (
	CTSourceName  = "CT original dataset"
	CTOutputName  = "CT anonymized dataset"
	MRISourceName = "MRI original dataset"
	MRIOutputName = "MRI anonymized dataset"
	ReportName    = "deidentification reports"
)

// ReportsOff as report_dir disables errors.log and manifest.json.
const ReportsOff = "off"

// Dataset holds the directory pair of one modality.
type Dataset struct {
	SourceDir string `yaml:"source_dir"`
	OutputDir string `yaml:"output_dir"`
}

// Export configures the optional upload of outputs to an S3-compatible bucket.
type Export struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// Enabled reports whether an export target is configured.
func (e Export) Enabled() bool {
	return e.Endpoint != "" && e.Bucket != ""
}

type Config struct {
	WorkDir       string  `yaml:"work_dir"`
	Extension     string  `yaml:"extension"`
	CT            Dataset `yaml:"ct"`
	MRI           Dataset `yaml:"mri"`
	UIDRoot       string  `yaml:"uid_root"`
	ReportDir     string  `yaml:"report_dir"`
	LogLevel      string  `yaml:"log_level"`
	FailFast      bool    `yaml:"fail_fast"`
	VerifySources bool    `yaml:"verify_sources"`
	Export        Export  `yaml:"export"`
}

// Default returns the built-in settings before any file or environment is applied.
func Default() *Config {
	return &Config{
		WorkDir:       ".",
		Extension:     ".dcm",
		LogLevel:      "info",
		VerifySources: true,
	}
}

// Load builds the configuration. path may be empty, in which case CONFIG_PATH
// and then DefaultPath are tried; only an explicitly named file must exist.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = getEnv("CONFIG_PATH", DefaultPath)
		explicit = path != DefaultPath
	}

	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.resolve()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("could not parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.WorkDir = getEnv("DEID_WORK_DIR", c.WorkDir)
	c.Extension = getEnv("DEID_EXTENSION", c.Extension)
	c.LogLevel = getEnv("DEID_LOG_LEVEL", c.LogLevel)
	c.UIDRoot = getEnv("DEID_UID_ROOT", c.UIDRoot)
	c.ReportDir = getEnv("DEID_REPORT_DIR", c.ReportDir)
	c.FailFast = getBool("DEID_FAIL_FAST", c.FailFast)
	c.VerifySources = getBool("DEID_VERIFY_SOURCES", c.VerifySources)

	c.Export.Endpoint = getEnv("DEID_EXPORT_ENDPOINT", c.Export.Endpoint)
	c.Export.AccessKey = getEnv("DEID_EXPORT_ACCESS_KEY", c.Export.AccessKey)
	c.Export.SecretKey = getEnv("DEID_EXPORT_SECRET_KEY", c.Export.SecretKey)
	c.Export.Bucket = getEnv("DEID_EXPORT_BUCKET", c.Export.Bucket)
	c.Export.Region = getEnv("DEID_EXPORT_REGION", c.Export.Region)
	c.Export.UseSSL = getBool("DEID_EXPORT_USE_SSL", c.Export.UseSSL)
	c.Export.Prefix = getEnv("DEID_EXPORT_PREFIX", c.Export.Prefix)
}

// resolve fills unset directories from WorkDir.
func (c *Config) resolve() {
	fill := func(dst *string, name string) {
		if *dst == "" {
			*dst = filepath.Join(c.WorkDir, name)
		}
	}
	fill(&c.CT.SourceDir, CTSourceName)
	fill(&c.CT.OutputDir, CTOutputName)
	fill(&c.MRI.SourceDir, MRISourceName)
	fill(&c.MRI.OutputDir, MRIOutputName)
	fill(&c.ReportDir, ReportName)
}

// Reports returns the report directory, empty when reports are disabled.
func (c *Config) Reports() string {
	if c.ReportDir == ReportsOff {
		return ""
	}
	return c.ReportDir
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.WorkDir) == "" {
		return fmt.Errorf("work_dir cannot be empty")
	}

	if !strings.HasPrefix(c.Extension, ".") || len(c.Extension) < 2 {
		return fmt.Errorf("extension must start with a dot, got %q", c.Extension)
	}

	for _, d := range []Dataset{c.CT, c.MRI} {
		if d.SourceDir == "" || d.OutputDir == "" {
			continue
		}
		if filepath.Clean(d.SourceDir) == filepath.Clean(d.OutputDir) {
			return fmt.Errorf("output directory %s must differ from its source directory", d.OutputDir)
		}
	}

	if c.UIDRoot != "" && !identity.IsValidRoot(c.UIDRoot) {
		return fmt.Errorf("uid_root %q must be numeric components ending in '.'", c.UIDRoot)
	}

	if c.Export.Endpoint != "" && c.Export.Bucket == "" {
		return fmt.Errorf("export.bucket is required when export.endpoint is set")
	}

	return nil
}

// Dirs returns the source and output directory for "CT", or for "MR"/"MRI".
func (c *Config) Dirs(modality string) (source, output string, err error) {
	switch modality {
	case "CT":
		return c.CT.SourceDir, c.CT.OutputDir, nil
	case "MR", "MRI":
		return c.MRI.SourceDir, c.MRI.OutputDir, nil
	default:
		return "", "", fmt.Errorf("no directories for modality %q", modality)
	}
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}

	return b
}
