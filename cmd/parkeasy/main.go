package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/parkeasy/parkeasy/internal/api"
	"github.com/parkeasy/parkeasy/internal/flow"
	"github.com/parkeasy/parkeasy/internal/genai"
	"github.com/parkeasy/parkeasy/internal/jobs"
	"github.com/parkeasy/parkeasy/internal/lockfile"
	"github.com/parkeasy/parkeasy/internal/messaging"
	"github.com/parkeasy/parkeasy/internal/render"
	"github.com/parkeasy/parkeasy/internal/scheduler"
	"github.com/parkeasy/parkeasy/internal/store"
	"github.com/parkeasy/parkeasy/internal/twiliowhatsapp"
	"github.com/parkeasy/parkeasy/internal/util"
	"github.com/parkeasy/parkeasy/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ParkEasy state data
	DefaultStateDir = "/var/lib/parkeasy"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "parkeasy.db"
	// DefaultWhatsAppDBFileName is the default whatsmeow session database filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// DefaultDailyCron runs the daily tasks at 00:30 lot-local time
	DefaultDailyCron = "30 0 * * *"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping ParkEasy with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "use_twilio", *flags.useTwilio, "daily_cron", *flags.dailyCron)
	if err := run(flags); err != nil {
		slog.Error("ParkEasy failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ParkEasy exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	WhatsAppDSN string
	StateDir    string
	OpenAIKey   string
	AdminPhone  string
	PublicURL   string
	DailyCron   string
	UseTwilio   bool
}

// Flags holds command line flag values
type Flags struct {
	qrOutput   *string
	numeric    *bool
	useTwilio  *bool
	stateDir   *string
	dbDSN      *string
	waDSN      *string
	openaiKey  *string
	adminPhone *string
	publicURL  *string
	mediaDir   *string
	dailyCron  *string
	convTTL    *time.Duration
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		WhatsAppDSN: os.Getenv("WHATSAPP_DB_DSN"),
		StateDir:    os.Getenv("PARKEASY_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		AdminPhone:  os.Getenv("ADMIN_PHONE_NUMBER"),
		PublicURL:   os.Getenv("PUBLIC_URL"),
		DailyCron:   os.Getenv("DAILY_CRON"),
		UseTwilio:   util.ParseBoolEnv("USE_TWILIO", false),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No PARKEASY_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("PARKEASY_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	// The whatsmeow session store gets its own database unless told otherwise
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, DefaultWhatsAppDBFileName)
		slog.Debug("No WhatsApp session DSN provided, defaulting to SQLite", "sqlite_path", config.WhatsAppDSN)
	}

	if config.DailyCron == "" {
		config.DailyCron = DefaultDailyCron
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"PARKEASY_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"ADMIN_PHONE_NUMBER_SET", config.AdminPhone != "",
		"PUBLIC_URL", config.PublicURL,
		"DAILY_CRON", config.DailyCron,
		"USE_TWILIO", config.UseTwilio)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:   flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:    flag.Bool("numeric-code", false, "use numeric WhatsApp login code instead of QR code"),
		useTwilio:  flag.Bool("use-twilio", config.UseTwilio, "send and receive WhatsApp messages through Twilio instead of whatsmeow (overrides $USE_TWILIO)"),
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for ParkEasy data (overrides $PARKEASY_STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", config.DatabaseURL, "database DSN for the application store (overrides $DATABASE_URL)"),
		waDSN:      flag.String("wa-db-dsn", config.WhatsAppDSN, "database DSN for the WhatsApp session store (overrides $WHATSAPP_DB_DSN)"),
		openaiKey:  flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		adminPhone: flag.String("admin-phone", config.AdminPhone, "platform admin WhatsApp number (overrides $ADMIN_PHONE_NUMBER)"),
		publicURL:  flag.String("public-url", config.PublicURL, "public base URL for receipt images (overrides $PUBLIC_URL)"),
		mediaDir:   flag.String("media-dir", "", "directory for generated receipt and pass images (default: <state-dir>/receipts)"),
		dailyCron:  flag.String("daily-cron", config.DailyCron, "cron schedule for the daily tasks (overrides $DAILY_CRON)"),
		convTTL:    flag.Duration("conversation-ttl", 0, "reset in-flight conversations older than this (0 disables)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"useTwilio", *flags.useTwilio,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"waDSN_set", *flags.waDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"adminPhoneSet", *flags.adminPhone != "",
		"publicURL", *flags.publicURL,
		"dailyCron", *flags.dailyCron)

	// Update file-backed defaults if the state directory was overridden
	if *flags.stateDir != config.StateDir {
		if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) {
			*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
			slog.Debug("Updated dbDSN based on state directory", "db_path", *flags.dbDSN)
		}
		if *flags.waDSN == filepath.Join(config.StateDir, DefaultWhatsAppDBFileName) {
			*flags.waDSN = filepath.Join(*flags.stateDir, DefaultWhatsAppDBFileName)
			slog.Debug("Updated waDSN based on state directory", "db_path", *flags.waDSN)
		}
	}
	if *flags.mediaDir == "" {
		*flags.mediaDir = filepath.Join(*flags.stateDir, "receipts")
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	for _, dsn := range []string{*flags.dbDSN, *flags.waDSN} {
		if strings.Contains(dsn, "postgres://") || strings.Contains(dsn, "host=") {
			continue
		}
		dir := filepath.Dir(strings.TrimPrefix(dsn, "file:"))
		slog.Debug("Creating state directory for file-based database", "state_dir", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", dir)
			return err
		}
	}
	return nil
}

// buildMessagingService constructs the outbound and inbound WhatsApp transport.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	if *flags.useTwilio {
		slog.Debug("Using Twilio messaging backend")
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(client), nil
	}

	slog.Debug("Using whatsmeow messaging backend")
	waOpts := []whatsapp.Option{whatsapp.WithDBDSN(*flags.waDSN)}
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	client, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return nil, err
	}
	return messaging.NewWhatsAppService(client), nil
}

// buildRenderer constructs the receipt image renderer. Without a public URL
// there is nowhere to serve images from, so rendering is disabled.
func buildRenderer(flags Flags) (render.Renderer, jobs.Cleaner, string) {
	if *flags.publicURL == "" {
		slog.Warn("No public URL configured, receipt images are disabled")
		return render.NoopRenderer{}, nil, ""
	}
	renderer, err := render.NewFileRenderer(
		render.WithMediaDir(*flags.mediaDir),
		render.WithBaseURL(*flags.publicURL),
	)
	if err != nil {
		slog.Warn("Failed to initialize receipt renderer, receipt images are disabled", "error", err)
		return render.NoopRenderer{}, nil, ""
	}
	return renderer, renderer, renderer.MediaDir()
}

// run wires the modules together and serves until a shutdown signal arrives.
func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := store.NewStore(store.WithDSN(*flags.dbDSN))
	if err != nil {
		return err
	}
	defer st.Close()

	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	classifier, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return err
	}

	renderer, cleaner, mediaDir := buildRenderer(flags)

	messenger, err := buildMessagingService(flags)
	if err != nil {
		return err
	}
	if err := messenger.Start(ctx); err != nil {
		return err
	}
	defer messenger.Stop()

	var flowOpts []flow.Option
	if *flags.adminPhone != "" {
		flowOpts = append(flowOpts, flow.WithAdminPhone(*flags.adminPhone))
	}
	if *flags.convTTL > 0 {
		flowOpts = append(flowOpts, flow.WithConversationTTL(*flags.convTTL))
	}
	engine, err := flow.NewEngine(st, messenger, classifier, renderer, flowOpts...)
	if err != nil {
		return err
	}
	go engine.Run(ctx)

	daily := jobs.NewDaily(st, messenger, cleaner)

	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		slog.Warn("Failed to load Asia/Kolkata timezone, daily tasks run on server time", "error", err)
		loc = time.Local
	}
	sched := scheduler.NewScheduler(loc)
	defer sched.Stop()
	if err := sched.AddJob(*flags.dailyCron, func() {
		if err := daily.Run(context.Background()); err != nil {
			slog.Error("Daily tasks failed", "error", err)
		}
	}); err != nil {
		return err
	}

	server, err := api.NewServer(engine, daily, api.WithMediaDir(mediaDir))
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		slog.Info("Shutdown signal received, draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
