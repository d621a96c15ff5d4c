package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rajasatyajit/IssueRadar/config"
	"github.com/rajasatyajit/IssueRadar/internal/classifier"
	"github.com/rajasatyajit/IssueRadar/internal/clustering"
	"github.com/rajasatyajit/IssueRadar/internal/database"
	"github.com/rajasatyajit/IssueRadar/internal/ingest"
	"github.com/rajasatyajit/IssueRadar/internal/logger"
	"github.com/rajasatyajit/IssueRadar/internal/risk"
	"github.com/rajasatyajit/IssueRadar/internal/runlock"
	"github.com/rajasatyajit/IssueRadar/internal/store"
	"github.com/rajasatyajit/IssueRadar/internal/textvec"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:          "issueradar",
		Short:        "Brand issue detection and risk scoring",
		Long:         `IssueRadar ingests brand mentions, clusters them into issues and scores each issue's escalation risk.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "issueradar %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
		},
	})
	root.AddCommand(
		newServeCmd(&logLevel),
		newRunCmd("cluster", "Cluster unassigned mentions into issues", &logLevel),
		newRunCmd("score", "Score risk and recommendations for recent issues", &logLevel),
		newRunCmd("ingest", "Ingest RSS sources", &logLevel),
		newMigrateCmd(&logLevel),
		newSeedCmd(&logLevel),
		newHashTokenCmd(),
	)
	return root
}

// loadConfig reads the environment and initializes logging
func loadConfig(logLevel string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// app holds the wired components shared by every command
type app struct {
	cfg       *config.Config
	db        *database.DB
	store     store.Store
	clusterer *clustering.Engine
	scorer    *risk.Engine
	ingester  *ingest.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if db.IsConfigured() && cfg.Database.AutoMigrate {
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
	}

	locker, err := runlock.New(cfg.Redis.URL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize run locks: %w", err)
	}

	cls, err := classifier.NewFromFile(cfg.Classifier.LexiconPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load lexicon: %w", err)
	}

	st := store.New(db)

	cc := cfg.Clustering
	opts := []clustering.Option{clustering.WithLocker(locker)}
	if len(cc.ExtraStopwords) > 0 {
		stopwords := append(append([]string{}, textvec.DefaultStopwords...), cc.ExtraStopwords...)
		opts = append(opts, clustering.WithTokenizer(textvec.NewTokenizer(stopwords)))
	}
	clusterer := clustering.NewEngine(st, clustering.Config{
		MentionBatch:      cc.MentionBatch,
		IssueWindow:       cc.IssueWindow,
		SignatureMentions: cc.SignatureMentions,
		Threshold:         cc.Threshold,
		TitleKeywords:     cc.TitleKeywords,
		SummaryLength:     cc.SummaryLength,
		StatusWindow:      cc.StatusWindow,
		LockTTL:           cc.LockTTL,
	}, opts...)

	weights, err := risk.LoadWeights(cfg.Risk.WeightsPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load risk weights: %w", err)
	}

	rc := risk.Config{
		IssueLimit:     cfg.Risk.IssueLimit,
		MentionLimit:   cfg.Risk.MentionLimit,
		SentimentLimit: cfg.Risk.SentimentLimit,
	}
	scorer := risk.NewEngine(st, rc, risk.WithScorer(risk.NewScorer(weights, cls, rc.SentimentLimit)))

	ic := cfg.Ingest
	ingester := ingest.New(st, ingest.NewHTTPFetcher(ic.FetchTimeout, ic.UserAgent), ingest.Config{
		Concurrency:    ic.Concurrency,
		RateLimit:      ic.RateLimit,
		RetryAttempts:  ic.RetryAttempts,
		RetryDelay:     ic.RetryDelay,
		MaxItemsPerRun: ic.MaxItemsPerRun,
	})

	return &app{
		cfg:       cfg,
		db:        db,
		store:     st,
		clusterer: clusterer,
		scorer:    scorer,
		ingester:  ingester,
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
