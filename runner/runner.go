// Package runner wires configuration, telemetry and the run modes together.
package runner

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/rentdir/bulk-importer/importer"
	"github.com/rentdir/bulk-importer/tlmt"
	"github.com/rentdir/bulk-importer/tlmt/gonoop"
	"github.com/rentdir/bulk-importer/tlmt/goposthog"
)

const (
	RunModeFile = iota + 1
	RunModeWeb
	RunModeWorker
	RunModeMigrate
)

var ErrInvalidRunMode = errors.New("invalid run mode")

type Runner interface {
	Run(context.Context) error
	Close(context.Context) error
}

type Config struct {
	InputFile         string
	ErrorLogFile      string
	ServerURL         string
	APIToken          string
	BatchSize         int
	BatchDelay        time.Duration
	SkipLogos         bool
	DuplicateHandling string
	Dsn               string
	Addr              string
	DataFolder        string
	MigrationsDir     string
	AwsAccessKey      string
	AwsSecretKey      string
	AwsRegion         string
	S3Bucket          string
	Debug             bool
	DisableTelemetry  bool
	UseQueue          bool
	WebRunner         bool
	WorkerRunner      bool
	Migrate           bool
	RunMode           int
}

func ParseConfig() *Config {
	cfg := Config{}

	flag.StringVar(&cfg.InputFile, "input", "", "path to a CSV or JSON file with listings, or 'stdin'")
	flag.StringVar(&cfg.ErrorLogFile, "error-log", "", "path for the error log CSV [default: <input>_errors.csv]")
	flag.StringVar(&cfg.ServerURL, "server", "http://localhost:8080", "base URL of the import API")
	flag.StringVar(&cfg.APIToken, "token", "", "API token for the import API")
	flag.IntVar(&cfg.BatchSize, "batch-size", 0, "rows per batch [default: 50]")
	flag.DurationVar(&cfg.BatchDelay, "batch-delay", 500*time.Millisecond, "pause between consecutive batches")
	flag.BoolVar(&cfg.SkipLogos, "skip-logos", false, "do not fetch or upload logos")
	flag.StringVar(&cfg.DuplicateHandling, "duplicates", importer.DuplicateSkip, "duplicate handling policy: skip or update")
	flag.StringVar(&cfg.Dsn, "dsn", "", "postgres connection string [server modes]")
	flag.StringVar(&cfg.Addr, "addr", ":8080", "address to listen on for the web server")
	flag.StringVar(&cfg.DataFolder, "data-folder", "importdata", "folder for the local run history")
	flag.StringVar(&cfg.MigrationsDir, "migrations", "", "path to the migration scripts [default: scripts/migrations]")
	flag.StringVar(&cfg.AwsAccessKey, "aws-access-key", "", "AWS access key for logo storage")
	flag.StringVar(&cfg.AwsSecretKey, "aws-secret-key", "", "AWS secret key for logo storage")
	flag.StringVar(&cfg.AwsRegion, "aws-region", "", "AWS region for logo storage")
	flag.StringVar(&cfg.S3Bucket, "s3-bucket", "", "S3 bucket for logo storage")
	flag.BoolVar(&cfg.Debug, "debug", false, "enable debug logging")
	flag.BoolVar(&cfg.UseQueue, "queue", false, "let the API server enqueue async batches to Redis [web mode]")
	flag.BoolVar(&cfg.WebRunner, "web", false, "run the import API server")
	flag.BoolVar(&cfg.WorkerRunner, "worker", false, "run the queue worker")
	flag.BoolVar(&cfg.Migrate, "migrate", false, "apply database migrations and exit")

	flag.Parse()

	if cfg.APIToken == "" {
		cfg.APIToken = os.Getenv("IMPORT_API_TOKEN")
	}

	if cfg.Dsn == "" {
		cfg.Dsn = os.Getenv("DATABASE_URL")
	}

	if cfg.AwsAccessKey == "" {
		cfg.AwsAccessKey = os.Getenv("MY_AWS_ACCESS_KEY")
	}

	if cfg.AwsSecretKey == "" {
		cfg.AwsSecretKey = os.Getenv("MY_AWS_SECRET_KEY")
	}

	if cfg.AwsRegion == "" {
		cfg.AwsRegion = os.Getenv("MY_AWS_REGION")
	}

	if cfg.DuplicateHandling != importer.DuplicateSkip && cfg.DuplicateHandling != importer.DuplicateUpdate {
		panic("duplicates must be 'skip' or 'update'")
	}

	if cfg.BatchSize < 0 {
		panic("batch-size must not be negative")
	}

	switch {
	case cfg.Migrate:
		cfg.RunMode = RunModeMigrate
	case cfg.WorkerRunner:
		cfg.RunMode = RunModeWorker
	case cfg.WebRunner || cfg.InputFile == "":
		cfg.RunMode = RunModeWeb
	default:
		cfg.RunMode = RunModeFile
	}

	if cfg.RunMode == RunModeFile && cfg.ServerURL == "" {
		panic("server URL must be provided for file imports")
	}

	if cfg.RunMode != RunModeFile && cfg.Dsn == "" {
		panic("dsn must be provided for server modes")
	}

	return &cfg
}

// NewLogger builds the process logger used by all runners.
func NewLogger(debug bool) *zap.Logger {
	var (
		lg  *zap.Logger
		err error
	)

	if debug {
		lg, err = zap.NewDevelopment()
	} else {
		lg, err = zap.NewProduction()
	}

	if err != nil {
		return zap.NewNop()
	}

	return lg
}

var (
	telemetryOnce sync.Once
	telemetry     tlmt.Telemetry
)

func Telemetry() tlmt.Telemetry {
	telemetryOnce.Do(func() {
		if os.Getenv("DISABLE_TELEMETRY") == "1" {
			telemetry = gonoop.New()

			return
		}

		apiKey := os.Getenv("POSTHOG_API_KEY")
		if apiKey == "" {
			telemetry = gonoop.New()

			return
		}

		val, err := goposthog.New(apiKey, "https://eu.i.posthog.com")
		if err != nil || val == nil {
			telemetry = gonoop.New()

			return
		}

		telemetry = val
	})

	return telemetry
}

func wrapText(text string, width int) []string {
	var lines []string

	currentLine := ""
	currentWidth := 0

	for _, r := range text {
		runeWidth := runewidth.RuneWidth(r)
		if currentWidth+runeWidth > width {
			lines = append(lines, currentLine)
			currentLine = string(r)
			currentWidth = runeWidth
		} else {
			currentLine += string(r)
			currentWidth += runeWidth
		}
	}

	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return lines
}

func banner(messages []string, width int) string {
	if width <= 0 {
		var err error

		width, _, err = term.GetSize(0)
		if err != nil {
			width = 80
		}
	}

	if width < 20 {
		width = 20
	}

	contentWidth := width - 4

	var wrappedLines []string
	for _, message := range messages {
		wrappedLines = append(wrappedLines, wrapText(message, contentWidth)...)
	}

	var builder strings.Builder

	builder.WriteString("╔" + strings.Repeat("═", width-2) + "╗\n")

	for _, line := range wrappedLines {
		lineWidth := runewidth.StringWidth(line)
		paddingRight := contentWidth - lineWidth

		if paddingRight < 0 {
			paddingRight = 0
		}

		builder.WriteString(fmt.Sprintf("║ %s%s ║\n", line, strings.Repeat(" ", paddingRight)))
	}

	builder.WriteString("╚" + strings.Repeat("═", width-2) + "╝\n")

	return builder.String()
}

func Banner() {
	message1 := "📦 Rentdir Bulk Importer"
	message2 := "Import business listings from CSV or JSON files into your directory."

	fmt.Fprintln(os.Stderr, banner([]string{message1, message2}, 0))
}
