package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/identity"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Counter modes for the recognition reducer.
const (
	CounterModeRearm   = "rearm"
	CounterModeLiteral = "literal"
)

// Recognizer modes.
const (
	RecognizerModeRemote  = "remote"
	RecognizerModeGallery = "gallery"
)

type Config struct {
	Paths       PathsConfig
	Recognition RecognitionConfig
	Retention   RetentionConfig
	Capture     CaptureConfig
	Recognizer  RecognizerConfig
	Database    DatabaseConfig
	Roster      RosterConfig
	Web         WebConfig
	Log         LogConfig
}

type PathsConfig struct {
	DataDir   string
	RosterCSV string
	Timetable string
	LogDir    string
	Gallery   string
}

type RecognitionConfig struct {
	ConfirmCount  int           // K, consecutive qualifying hits needed for a confirmation
	MinConfidence float64       // T, observations below are "no identity"
	Window        time.Duration // W, minimum spacing between two confirmations of one identity
	CounterMode   string        // rearm or literal
	OverlapIoU    float64       // 0 disables per-frame overlap suppression
}

type RetentionConfig struct {
	MaxAge        time.Duration
	SweepInterval time.Duration
}

type CaptureConfig struct {
	Interval time.Duration
	Source   string // directory path or http(s) snapshot URL
	MaxWidth int
}

type RecognizerConfig struct {
	URL  string
	Mode string
}

// GalleryMode reports whether faces are labelled against the local gallery.
func (c *RecognizerConfig) GalleryMode() bool {
	return identity.Key(c.Mode) == RecognizerModeGallery
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL, mirror disabled when empty
	MaxOpenConns int
	MaxIdleConns int
}

type RosterConfig struct {
	DatabaseURL  string // MariaDB DSN, CSV roster is used when empty
	MaxOpenConns int
	MaxIdleConns int
}

type WebConfig struct {
	Host           string
	Port           int // 0 disables the status API
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// defaults mirrors the layout of defaults.yaml.
type defaults struct {
	Paths struct {
		DataDir   string `yaml:"data_dir"`
		Roster    string `yaml:"roster"`
		Timetable string `yaml:"timetable"`
		LogDir    string `yaml:"log_dir"`
		Gallery   string `yaml:"gallery"`
	} `yaml:"paths"`
	Recognition struct {
		ConfirmCount  int           `yaml:"confirm_count"`
		MinConfidence float64       `yaml:"min_confidence"`
		Window        time.Duration `yaml:"window"`
		CounterMode   string        `yaml:"counter_mode"`
		OverlapIoU    float64       `yaml:"overlap_iou"`
	} `yaml:"recognition"`
	Retention struct {
		MaxAge        time.Duration `yaml:"max_age"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"retention"`
	Capture struct {
		Interval time.Duration `yaml:"interval"`
		MaxWidth int           `yaml:"max_width"`
	} `yaml:"capture"`
	Recognizer struct {
		URL  string `yaml:"url"`
		Mode string `yaml:"mode"`
	} `yaml:"recognizer"`
	Database struct {
		MaxOpenConns int `yaml:"max_open_conns"`
		MaxIdleConns int `yaml:"max_idle_conns"`
	} `yaml:"database"`
	RosterDatabase struct {
		MaxOpenConns int `yaml:"max_open_conns"`
		MaxIdleConns int `yaml:"max_idle_conns"`
	} `yaml:"roster_database"`
	Web struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"web"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a non-negative float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

// envDuration reads a Go duration string ("2m", "30ms", "0"), falling back to
// defaultVal when unset, invalid or negative. Zero is kept; Validate decides
// where it is allowed.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// underDataDir resolves a default relative path against the data directory.
func underDataDir(dataDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dataDir, path)
}

func Load() *Config {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	dataDir := envString("ATTENDANCE_DATA_DIR", d.Paths.DataDir)

	return &Config{
		Paths: PathsConfig{
			DataDir:   dataDir,
			RosterCSV: envString("ATTENDANCE_ROSTER_CSV", underDataDir(dataDir, d.Paths.Roster)),
			Timetable: envString("ATTENDANCE_TIMETABLE_CSV", underDataDir(dataDir, d.Paths.Timetable)),
			LogDir:    envString("ATTENDANCE_LOG_DIR", underDataDir(dataDir, d.Paths.LogDir)),
			Gallery:   envString("GALLERY_PATH", underDataDir(dataDir, d.Paths.Gallery)),
		},
		Recognition: RecognitionConfig{
			ConfirmCount:  envInt("RECOGNITION_CONFIRM_COUNT", d.Recognition.ConfirmCount),
			MinConfidence: envFloat("RECOGNITION_MIN_CONFIDENCE", d.Recognition.MinConfidence),
			Window:        envDuration("RECOGNITION_WINDOW", d.Recognition.Window),
			CounterMode:   strings.ToLower(envString("RECOGNITION_COUNTER_MODE", d.Recognition.CounterMode)),
			OverlapIoU:    envFloat("RECOGNITION_OVERLAP_IOU", d.Recognition.OverlapIoU),
		},
		Retention: RetentionConfig{
			MaxAge:        envDuration("ATTENDANCE_RETENTION", d.Retention.MaxAge),
			SweepInterval: envDuration("ATTENDANCE_SWEEP_INTERVAL", d.Retention.SweepInterval),
		},
		Capture: CaptureConfig{
			Interval: envDuration("CAPTURE_INTERVAL", d.Capture.Interval),
			Source:   os.Getenv("CAPTURE_SOURCE"),
			MaxWidth: envInt("CAPTURE_MAX_WIDTH", d.Capture.MaxWidth),
		},
		Recognizer: RecognizerConfig{
			URL:  envString("RECOGNIZER_URL", d.Recognizer.URL),
			Mode: strings.ToLower(envString("RECOGNIZER_MODE", d.Recognizer.Mode)),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
		},
		Roster: RosterConfig{
			DatabaseURL:  os.Getenv("ROSTER_DATABASE_URL"),
			MaxOpenConns: envInt("ROSTER_DATABASE_MAX_OPEN_CONNS", d.RosterDatabase.MaxOpenConns),
			MaxIdleConns: envInt("ROSTER_DATABASE_MAX_IDLE_CONNS", d.RosterDatabase.MaxIdleConns),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", d.Web.Host),
			Port:           envInt("WEB_PORT", d.Web.Port),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envString("LOG_LEVEL", d.Log.Level)),
			Format: strings.ToLower(envString("LOG_FORMAT", d.Log.Format)),
		},
	}
}

// Validate reports every knob that is out of range.
func (c *Config) Validate() error {
	var errs []error
	r := c.Recognition
	if r.ConfirmCount < 1 {
		errs = append(errs, fmt.Errorf("confirm count must be >= 1, got %d", r.ConfirmCount))
	}
	if r.MinConfidence < 0 || r.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("min confidence must be in [0,1], got %g", r.MinConfidence))
	}
	if r.Window < 0 {
		errs = append(errs, fmt.Errorf("window must not be negative, got %s", r.Window))
	}
	if mode := identity.Key(r.CounterMode); mode != CounterModeRearm && mode != CounterModeLiteral {
		errs = append(errs, fmt.Errorf("unknown counter mode %q", r.CounterMode))
	}
	if r.OverlapIoU < 0 || r.OverlapIoU > 1 {
		errs = append(errs, fmt.Errorf("overlap IoU must be in [0,1], got %g", r.OverlapIoU))
	}
	if c.Retention.MaxAge <= 0 {
		errs = append(errs, fmt.Errorf("retention must be positive, got %s", c.Retention.MaxAge))
	}
	if c.Capture.Interval <= 0 {
		errs = append(errs, fmt.Errorf("capture interval must be positive, got %s", c.Capture.Interval))
	}
	if mode := identity.Key(c.Recognizer.Mode); mode != RecognizerModeRemote && mode != RecognizerModeGallery {
		errs = append(errs, fmt.Errorf("unknown recognizer mode %q", c.Recognizer.Mode))
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("web port out of range: %d", c.Web.Port))
	}
	return errors.Join(errs...)
}

// RetentionDays returns the retention age in whole days, the unit operators think in.
func (c *RetentionConfig) RetentionDays() int {
	return int(c.MaxAge / (24 * time.Hour))
}
