package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/listingfeed/internal/config"
	"github.com/sawpanic/listingfeed/internal/httpapi"
	"github.com/sawpanic/listingfeed/internal/listing"
	"github.com/sawpanic/listingfeed/internal/metrics"
	"github.com/sawpanic/listingfeed/internal/orchestrator"
)

var (
	cfgPath            string
	marketplaceFlag    string
	identifierFlag     string
	preferTiersFlag    []int
	includeChannelsFlag []string
	excludeChannelsFlag []string
	requiredConfidence float64
	timeoutFlag        time.Duration
	formatFlag         string
	serveAddr          string
)

// rootCmd is the base command for the listingfeed CLI.
var rootCmd = &cobra.Command{
	Use:   "listingfeed",
	Short: "Multi-channel marketplace listing orchestrator",
	Long: `listingfeed resolves a single normalized listing from whichever
registered channel answers first, or gathers every channel concurrently and
merges their disagreements into one auditable record.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Resolve one listing, falling back down the tier chain",
	RunE:  runGet,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Gather a listing from every available channel and merge conflicts",
	RunE:  runScan,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and Prometheus metrics endpoint",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address the HTTP server listens on")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config/orchestrator.yaml", "path to orchestrator config")
	rootCmd.PersistentFlags().StringVar(&marketplaceFlag, "marketplace", "", "marketplace identifier (ebay, amazon, walmart, etsy, custom)")
	rootCmd.PersistentFlags().StringVar(&identifierFlag, "identifier", "", "listing identifier: URL, item id, or local file path")
	rootCmd.PersistentFlags().IntSliceVar(&preferTiersFlag, "prefer-tiers", nil, "restrict resolution to these tiers, e.g. 1,2")
	rootCmd.PersistentFlags().StringSliceVar(&includeChannelsFlag, "include-channels", nil, "restrict resolution to these channels")
	rootCmd.PersistentFlags().StringSliceVar(&excludeChannelsFlag, "exclude-channels", nil, "exclude these channels from resolution")
	rootCmd.PersistentFlags().Float64Var(&requiredConfidence, "required-confidence", 0.5, "minimum acceptable confidence")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 30*time.Second, "overall operation timeout")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "table", "output format: table, json")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogging picks console-on-TTY, JSON-otherwise: a human reading a
// terminal gets zerolog's ConsoleWriter, a log aggregator reading a pipe
// gets structured JSON lines.
func setupLogging() {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func buildOptions() orchestrator.Options {
	opts := orchestrator.DefaultOptions()
	if len(preferTiersFlag) > 0 {
		opts.PreferredTiers = preferTiersFlag
	}
	if requiredConfidence > 0 {
		opts.RequiredConfidence = requiredConfidence
	}
	if timeoutFlag > 0 {
		opts.Timeout = timeoutFlag
	}
	opts.IncludeChannels = toChannels(includeChannelsFlag)
	opts.ExcludeChannels = toChannels(excludeChannelsFlag)
	return opts
}

func toChannels(raw []string) []listing.Channel {
	out := make([]listing.Channel, 0, len(raw))
	for _, s := range raw {
		c := listing.Channel(strings.TrimSpace(s))
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out
}

func loadConfig() *config.OrchestratorConfig {
	cfg, err := config.LoadOrchestratorConfig(cfgPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfgPath).Msg("no orchestrator config loaded, using built-in defaults")
		return &config.OrchestratorConfig{}
	}
	return cfg
}

func applyFallbackChains(orch *orchestrator.Orchestrator, cfg *config.OrchestratorConfig) {
	for _, m := range cfg.Marketplaces {
		mp := listing.Marketplace(m.Marketplace)
		if chain := m.Chain(); len(chain) > 0 {
			orch.Registry().SetFallbackChain(mp, chain)
		}
	}
}

func runGet(cmd *cobra.Command, args []string) error {
	if marketplaceFlag == "" || identifierFlag == "" {
		return fmt.Errorf("--marketplace and --identifier are required")
	}

	cfg := loadConfig()
	orch := orchestrator.New()
	applyFallbackChains(orch, cfg)

	ctx := cmd.Context()
	result := orch.GetData(ctx, listing.Marketplace(marketplaceFlag), identifierFlag, buildOptions())
	return printResult(result)
}

func runScan(cmd *cobra.Command, args []string) error {
	if marketplaceFlag == "" || identifierFlag == "" {
		return fmt.Errorf("--marketplace and --identifier are required")
	}

	cfg := loadConfig()
	orch := orchestrator.New()
	applyFallbackChains(orch, cfg)

	ctx := cmd.Context()
	result := orch.GetFromAllSources(ctx, listing.Marketplace(marketplaceFlag), identifierFlag, buildOptions())
	return printMultiResult(result)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	orch := orchestrator.New()
	applyFallbackChains(orch, cfg)
	orch.SetMetrics(metrics.Register(nil))

	server := httpapi.NewServer(orch)
	router := server.Router()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	httpServer := &http.Server{
		Addr:         serveAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", serveAddr).Msg("listingfeed HTTP API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func printResult(result orchestrator.Result) error {
	if formatFlag == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.Data == nil {
		fmt.Println("no listing resolved")
	} else {
		fmt.Printf("%s  %s  confidence=%.2f  channel=%s\n",
			result.Data.Listing.ID, result.Data.Listing.Title, result.Data.Provenance.Confidence, result.Data.Provenance.Channel)
	}
	fmt.Printf("fallbackUsed=%v  duration=%s  attempts=%d\n", result.FallbackUsed, result.TotalDuration, len(result.AttemptedSources))
	for _, a := range result.AttemptedSources {
		status := "ok"
		if !a.Success {
			status = a.Error
		}
		fmt.Printf("  tier=%d channel=%s %s (%s)\n", a.Tier, a.Channel, status, a.Duration)
	}
	return nil
}

func printMultiResult(result orchestrator.MultiSourceResult) error {
	if formatFlag == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.MergedData == nil {
		fmt.Println("no listing resolved")
		return nil
	}
	fmt.Printf("%s  %s  confidence=%.2f  sources=%d  conflicts=%d\n",
		result.MergedData.Listing.ID, result.MergedData.Listing.Title,
		result.MergedData.Provenance.Confidence, len(result.Sources), len(result.Conflicts))
	for _, c := range result.Conflicts {
		fmt.Printf("  conflict field=%s resolved=%v\n", c.Field, c.ResolvedValue)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
