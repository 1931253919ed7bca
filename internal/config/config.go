package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var ErrInvalid = errors.New("config: invalid value")

type Config struct {
	FFmpeg        string
	FFprobe       string
	StagingDir    string
	OutputDir     string
	FailurePolicy string
	MaxDim        int
	LogLevel      string
	Env           string
}

// Load reads optional .env files then the environment. Variables already set
// in the environment win over file values.
func Load() (Config, error) {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	c := Config{
		FFmpeg:        getenv("REELSYNC_FFMPEG", "ffmpeg"),
		FFprobe:       getenv("REELSYNC_FFPROBE", "ffprobe"),
		StagingDir:    getenv("REELSYNC_STAGING_DIR", ""),
		OutputDir:     getenv("REELSYNC_OUTPUT_DIR", "out"),
		FailurePolicy: getenv("REELSYNC_FAILURE_POLICY", "omit"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		Env:           getenv("APP_ENV", "production"),
	}

	maxDim, err := strconv.Atoi(getenv("REELSYNC_MAX_DIM", "1280"))
	if err != nil {
		return Config{}, fmt.Errorf("%w: REELSYNC_MAX_DIM: %v", ErrInvalid, err)
	}
	c.MaxDim = maxDim

	if c.Development() && os.Getenv("LOG_LEVEL") == "" {
		c.LogLevel = "debug"
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Development() bool {
	return c.Env == "development"
}

func (c Config) Validate() error {
	switch c.FailurePolicy {
	case "omit", "report":
	default:
		return fmt.Errorf("%w: REELSYNC_FAILURE_POLICY %q", ErrInvalid, c.FailurePolicy)
	}
	if c.MaxDim <= 0 {
		return fmt.Errorf("%w: REELSYNC_MAX_DIM must be positive, got %d", ErrInvalid, c.MaxDim)
	}
	if c.FFmpeg == "" || c.FFprobe == "" {
		return fmt.Errorf("%w: ffmpeg and ffprobe paths are required", ErrInvalid)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: REELSYNC_OUTPUT_DIR is empty", ErrInvalid)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
