package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bookwire/internal/audit"
	"bookwire/internal/broker"
	"bookwire/internal/config"
	"bookwire/internal/dlq"
	"bookwire/internal/event"
	"bookwire/internal/logger"
	"bookwire/pkg/bootstrap"
	"bookwire/pkg/logging"
)

var (
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dlq-tool",
		Short: "Operator tooling for the notification dead letter queue",
		Long:  "Analyze, reprocess and monitor dead-lettered book status events",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(reprocessCmd())
	rootCmd.AddCommand(monitorCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// toolEnv is the shared wiring every subcommand needs.
type toolEnv struct {
	cfg      *config.Config
	log      logger.Logger
	reader   broker.DLQReader
	analyzer *dlq.Analyzer
}

func setup(ctx context.Context) (*toolEnv, func(), error) {
	earlyLog := logging.NewEarlyLog()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return nil, nil, fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return nil, nil, err
	}
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("dlq-tool")
	}

	reader, err := broker.NewDLQReader(cfg.Broker, log)
	if err != nil {
		return nil, nil, err
	}

	dbConnector := bootstrap.NewDatabaseConnector(cfg, log)
	var traces audit.Store = audit.NopStore{}
	pg, err := dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		log.Warnw("Trace store unavailable, analysis proceeds without correlation", "error", err)
	} else if pg != nil {
		traces = audit.NewPostgresStore(pg)
	}

	validator := event.NewValidator(cfg.Notification.AllowedSources)
	analyzer := dlq.NewAnalyzer(reader, traces, validator, cfg.DLQ.RepeatedFailureThreshold, log)

	cleanup := func() {
		reader.Close()
		if pg != nil {
			pg.Close()
		}
		log.Sync()
	}

	return &toolEnv{
		cfg:      cfg,
		log:      log,
		reader:   reader,
		analyzer: analyzer,
	}, cleanup, nil
}

func analyzeCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Classify dead-lettered messages and report what is reprocessable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			env, cleanup, err := setup(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if limit == 0 {
				limit = env.cfg.DLQ.AnalyzeLimit
			}

			report, err := env.analyzer.Analyze(ctx, limit)
			if err != nil {
				return err
			}

			printReport(report)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum messages to analyze (0 = configured default)")
	return cmd
}

func printReport(report *dlq.Report) {
	fmt.Println(report.Summary)
	if report.TotalMessages == 0 {
		return
	}

	fmt.Println()
	for _, analysis := range report.Analyses {
		marker := " "
		if analysis.IsReprocessable {
			marker = "*"
		}
		fmt.Printf("%s %-40s %-24s receives=%d", marker, analysis.MessageID, analysis.ErrorType, analysis.ReceiveCount)
		if analysis.RootCause != "" {
			fmt.Printf("  %s", analysis.RootCause)
		}
		fmt.Println()
		for _, entry := range analysis.CorrelatedTraces {
			fmt.Printf("    trace %s/%s: %s\n", entry.Stage, entry.Level, entry.Detail)
		}
	}
	fmt.Println()
	fmt.Println("* = safe to reprocess")
}

func reprocessCmd() *cobra.Command {
	var (
		dryRun     bool
		messageIDs []string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "reprocess",
		Short: "Re-inject dead-lettered messages into the input topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			env, cleanup, err := setup(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			producer, err := broker.NewProducer(env.cfg.Broker, env.log)
			if err != nil {
				return err
			}
			defer producer.Close()

			reprocessor := dlq.NewReprocessor(
				env.reader,
				producer,
				env.analyzer,
				env.cfg.Broker.Kafka.InputTopic,
				env.cfg.Consumer.MaxReceiveCount,
				env.log,
			)

			result, err := reprocessor.Reprocess(ctx, dlq.ReprocessOptions{
				DryRun:     dryRun,
				MessageIDs: messageIDs,
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			verb := "reprocessed"
			if result.DryRun {
				verb = "would reprocess"
			}
			fmt.Printf("Examined %d messages, %s %d, skipped %d.\n",
				result.Examined, verb, len(result.Reprocessed), len(result.Skipped))
			for _, id := range result.Reprocessed {
				fmt.Printf("  %s %s\n", verb, id)
			}
			for id, reason := range result.Skipped {
				fmt.Printf("  skipped %s (%s)\n", id, reason)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be reprocessed without publishing")
	cmd.Flags().StringSliceVar(&messageIDs, "message-id", nil, "Reprocess only these message ids (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum messages to examine (0 = all)")
	return cmd
}

func monitorCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Report dead letter queue health",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			env, cleanup, err := setup(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			monitor := dlq.NewMonitor(env.reader, env.cfg.DLQ.Monitor, env.log)

			if watch {
				err := monitor.Run(ctx)
				if err == context.Canceled {
					return nil
				}
				return err
			}

			health, err := monitor.Check(ctx)
			if err != nil {
				return err
			}
			printHealth(health)
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Keep checking on the configured interval")
	return cmd
}

func printHealth(health *dlq.Health) {
	fmt.Printf("Status:     %s\n", health.Status)
	fmt.Printf("Depth:      %d\n", health.Depth)
	fmt.Printf("Oldest age: %s\n", health.OldestAge)
	for _, alert := range health.Alerts {
		fmt.Printf("Alert [%s] %s: %s\n", alert.Severity, alert.Type, alert.Message)
	}
}
