package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rajasatyajit/IssueRadar/internal/api"
	"github.com/rajasatyajit/IssueRadar/internal/auth"
	"github.com/rajasatyajit/IssueRadar/internal/database"
	"github.com/rajasatyajit/IssueRadar/internal/logger"
	"github.com/rajasatyajit/IssueRadar/internal/store"
)

// errNoOrganization mirrors the API's failure when a run has no scope
var errNoOrganization = errors.New(api.MsgNoOrganization)

// newRunCmd builds the one-shot cluster, score and ingest commands
func newRunCmd(name, short string, logLevel *string) *cobra.Command {
	var orgID string
	var seed bool

	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*logLevel)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if seed {
				if _, err := store.SeedDemo(ctx, a.store, time.Now().UTC()); err != nil {
					return err
				}
			}

			id, err := resolveOrganization(ctx, a.store, orgID)
			if err != nil {
				return err
			}
			out, err := a.run(ctx, name, id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "organization id (defaults to the oldest organization)")
	cmd.Flags().BoolVar(&seed, "seed", false, "seed demo data before running")
	return cmd
}

// run executes one named pass and returns the same body the API would
func (a *app) run(ctx context.Context, name, orgID string) (interface{}, error) {
	switch name {
	case "cluster":
		results, err := a.clusterer.RunOrganization(ctx, orgID)
		if err != nil {
			return nil, err
		}
		return api.ClusterRunResponse{OK: true, OrgID: orgID, Results: results}, nil
	case "score":
		res, err := a.scorer.RunOrganization(ctx, orgID)
		if err != nil {
			return nil, err
		}
		return api.RiskRunResponse{OK: true, OrgID: orgID, IssuesScored: res.IssuesScored, Skipped: res.Skipped, Errors: res.Errors, BrandErrors: res.BrandErrors}, nil
	case "ingest":
		res, err := a.ingester.RunOrganization(ctx, orgID)
		if err != nil {
			return nil, err
		}
		return api.IngestRunResponse{OK: true, OrgID: orgID, TotalNew: res.TotalNew, TotalSkipped: res.TotalSkipped, Errors: res.Errors}, nil
	}
	return nil, fmt.Errorf("unknown run: %s", name)
}

func resolveOrganization(ctx context.Context, st store.Store, orgID string) (string, error) {
	if orgID != "" {
		org, err := st.GetOrganization(ctx, orgID)
		if err != nil {
			return "", fmt.Errorf("%w: %v", errNoOrganization, err)
		}
		return org.ID, nil
	}
	orgs, err := st.ListOrganizations(ctx)
	if err != nil {
		return "", err
	}
	if len(orgs) == 0 {
		return "", errNoOrganization
	}
	return orgs[0].ID, nil
}

func newMigrateCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*logLevel)
			if err != nil {
				return err
			}
			return database.RunMigrations(cfg.Database.URL)
		},
	}
}

func newSeedCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create a demo organization, brand, sources and a scored issue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*logLevel)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.db.IsConfigured() {
				logger.Warn("Seeding the in-memory store; data is discarded on exit")
			}
			res, err := store.SeedDemo(ctx, a.store, time.Now().UTC())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

// newHashTokenCmd prints a fresh operator token and the hash to configure
func newHashTokenCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "hash-token",
		Short: "Generate an operator token and its AUTH_OPERATOR_TOKEN_HASH value",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				hash string
				err  error
			)
			if token == "" {
				token, hash, err = auth.GenerateToken()
			} else {
				hash, err = auth.HashToken(token)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token: %s\nAUTH_OPERATOR_TOKEN_HASH=%s\n", token, hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "hash this token instead of generating one")
	return cmd
}
