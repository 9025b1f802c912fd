package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/maltedev/vprok-price-parser/internal/app"
	"github.com/maltedev/vprok-price-parser/internal/config"
	"github.com/maltedev/vprok-price-parser/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	maxAttempts int
	resultsDir  string
	headful     bool
	logLevel    string
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "vprok-parser <url> <region>",
		Short: "Read price, old price, rating and review count of a vprok.ru product",
		Long: `vprok-parser opens a vprok.ru product page in a headless browser, switches
the delivery region, and appends the product's price, old price, rating and
review count to <results>/<region>/<productId>_product.txt together with a
full-page screenshot.

Example:
  vprok-parser "https://www.vprok.ru/product/moloko--123456" "Москва и область"`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	rootCmd.Flags().IntVarP(&maxAttempts, "attempts", "a", 0, "Maximum parse attempts (default: PARSER_MAX_ATTEMPTS or 3)")
	rootCmd.Flags().StringVarP(&resultsDir, "output", "o", "", "Results directory (default: PARSER_RESULTS_DIR or ./parse_results)")
	rootCmd.Flags().BoolVar(&headful, "headful", false, "Show the browser window")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	rawURL := args[0]
	region := ""
	if len(args) > 1 {
		region = args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	outcome, err := a.Runner.Run(ctx, rawURL, region)
	a.FlushOutbox(ctx)
	if err != nil {
		return err
	}

	if outcome.Observation != nil {
		fmt.Printf("price=%s priceOld=%s rating=%s reviewCount=%s\n",
			outcome.Observation.Properties.Price,
			outcome.Observation.Properties.OldPriceOrNull(),
			outcome.Observation.Properties.Rating,
			outcome.Observation.Properties.ReviewCount)
		fmt.Printf("saved to %s\n", outcome.Observation.TextPath)
	}

	return nil
}

func applyFlags(cfg *config.Config) {
	if maxAttempts > 0 {
		cfg.Parser.MaxAttempts = maxAttempts
	}
	if resultsDir != "" {
		cfg.Parser.ResultsDir = resultsDir
	}
	if headful {
		cfg.Browser.Headless = false
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}
