package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/eigensentinel/internal/store"
	"github.com/andresmejia3/eigensentinel/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Options holds shared configuration for train, classify, evaluate and sweep commands
type Options struct {
	TrainDir      string
	TestDir       string
	Threshold     float64
	Components    int
	VarianceRatio float64
	Workers       int
	Steps         int
	MaxThreshold  float64
	ROCPath       string
	JSON          bool
	Save          bool
	ExportDir     string
	ExportCount   int
}

// defaultThreshold is in eigenspace distance units of 8-bit pixel data.
const defaultThreshold = 3000

var (
	// DB is the report store, opened only by commands that persist or read reports
	DB *store.Store
	// dbURL is the connection string
	dbURL string
	// log is the structured logger shared by subcommands
	log = zap.NewNop()

	logLevel  string
	imgWidth  int
	imgHeight int
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "eigensentinel",
	Short:   "Eigenface Recognition & Evaluation Engine",
	Version: Version, // This enables the --version flag

	// Failures are reported once by the error box and once by Execute.
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env has been loaded by now, so the environment can fill unset flags.
		if !cmd.Flags().Changed("log-level") {
			logLevel = envOr("EIGENSENTINEL_LOG_LEVEL", logLevel)
		}
		l, err := utils.NewLogger(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		log = l
		if imgWidth < 0 || imgHeight < 0 {
			return fmt.Errorf("image size must be >= 0, got %dx%d", imgWidth, imgHeight)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
			DB = nil
		}
		_ = log.Sync()
	},
}

// openStore connects to PostgreSQL. If no --db flag was provided, the
// connection string is built from the POSTGRES_* environment.
func openStore(ctx context.Context) (*store.Store, error) {
	if DB != nil {
		return DB, nil
	}
	url := dbURL
	if url == "" {
		if host := os.Getenv("POSTGRES_HOST"); host != "" {
			user := os.Getenv("POSTGRES_USER")
			pass := os.Getenv("POSTGRES_PASSWORD")
			name := os.Getenv("POSTGRES_DB")
			port := os.Getenv("POSTGRES_PORT")
			if port == "" {
				port = "5432"
			}
			url = fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
		} else {
			// Fallback to local default if no env vars are present
			url = "postgres://localhost:5432/eigensentinel"
		}
	}

	s, err := store.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Debug("connected to report store")
	DB = s
	return s, nil
}

func Execute() {
	// Settings may come from a local .env file; a missing file is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to read .env: %v\n", err)
	}

	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string for saved reports (default: postgres://localhost:5432/eigensentinel)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error (env: EIGENSENTINEL_LOG_LEVEL)")
	rootCmd.PersistentFlags().IntVar(&imgWidth, "width", 0, "Resize every image to this width before flattening (0 = native)")
	rootCmd.PersistentFlags().IntVar(&imgHeight, "height", 0, "Resize every image to this height before flattening (0 = native)")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
