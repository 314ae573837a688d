package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/molpadia/molpaupload/internal/upload"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type config struct {
	addr          string
	cert          string
	key           string
	uploadDir     string
	bufferSize    int
	sync          bool
	idleTimeout   time.Duration
	sessionTTL    time.Duration
	sweepInterval time.Duration
	logLevel      string
	logFormat     string
	s3Bucket      string
	dynamoTable   string
}

// Parse the command line, taking defaults from the environment.
func loadConfig(args []string) (*config, error) {
	cfg := &config{}
	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	fs.StringVar(&cfg.addr, "addr", env("ADDR", ":4443"), "web server address")
	fs.StringVar(&cfg.cert, "cert", env("CERT_FILE", ""), "path of TLS certificate file")
	fs.StringVar(&cfg.key, "key", env("CERT_KEY", ""), "path of TLS private key file")
	fs.StringVar(&cfg.uploadDir, "upload-dir", env("UPLOAD_DIR", "./uploads"), "directory holding uploaded files")
	fs.IntVar(&cfg.bufferSize, "buffer-size", envInt("UPLOAD_BUFFER_SIZE", upload.DefaultBufferSize), "bytes buffered before each flush")
	fs.BoolVar(&cfg.sync, "sync", envBool("UPLOAD_SYNC", true), "fsync uploaded bytes before acknowledging them")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", envDuration("UPLOAD_IDLE_TIMEOUT", 30*time.Second), "abort uploads silent for this long")
	fs.DurationVar(&cfg.sessionTTL, "session-ttl", envDuration("UPLOAD_SESSION_TTL", 24*time.Hour), "discard uploads not resumed within this period, 0 keeps them")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", envDuration("UPLOAD_SWEEP_INTERVAL", time.Hour), "interval between sweeps of expired uploads")
	fs.StringVar(&cfg.logLevel, "log-level", env("LOG_LEVEL", "info"), "log level")
	fs.StringVar(&cfg.logFormat, "log-format", env("LOG_FORMAT", "json"), "log format, json or text")
	fs.StringVar(&cfg.s3Bucket, "s3-bucket", env("AWS_S3_UPLOAD_BUCKET", ""), "S3 bucket receiving completed uploads")
	fs.StringVar(&cfg.dynamoTable, "dynamodb-table", env("AWS_DB_UPLOAD_TABLE", ""), "DynamoDB table recording completed uploads")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.bufferSize <= 0 {
		return nil, fmt.Errorf("buffer size must be positive, got %d", cfg.bufferSize)
	}
	if cfg.sessionTTL > 0 && cfg.sweepInterval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", cfg.sweepInterval)
	}
	return cfg, nil
}

// Configure the global logger.
func setupLogger(w io.Writer, level, format string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	switch format {
	case "json":
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	case "text":
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}

// Get the value of environment variables.
func env(key string, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return val
	}
	return def
}

func envBool(key string, def bool) bool {
	if val, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return val
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if val, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return val
	}
	return def
}
