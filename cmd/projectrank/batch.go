// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/projectrank/internal/logging"
	"github.com/tomtom215/projectrank/internal/runlock"
	"github.com/tomtom215/projectrank/internal/trending"
)

// withLock runs fn under the pipeline lock unless --no-lock was given.
func (a *app) withLock(ctx context.Context, cmd *cobra.Command, fn func(context.Context) error) error {
	if noLock, _ := cmd.Flags().GetBool("no-lock"); noLock {
		return fn(ctx)
	}
	return runlock.New(a.cfg.Lock.Path, a.cfg.Lock.StaleAfter, a.logger).Run(ctx, fn)
}

func addLockFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("no-lock", false, "Run without taking the pipeline lock")
}

// NewEncodeCmd rebuilds the feature store.
func NewEncodeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Rebuild user and project features from the source database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := logging.ContextWithJob(logging.ContextWithNewRunID(cmd.Context()), "encode")
			c, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer closeClients(c)

			return a.withLock(ctx, cmd, func(ctx context.Context) error {
				_, stats, err := c.pipeline.Encode(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "users=%d projects=%d user_vocab=%d item_vocab=%d unknown_tokens=%d locked=%t\n",
					stats.Users, stats.Projects, stats.UserVocab, stats.ItemVocab, stats.UnknownTokens, stats.Locked)
				return nil
			})
		},
	}
	addLockFlag(cmd)
	return cmd
}

// NewInferCmd scores every user and publishes the results.
func NewInferCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Score every user and publish recs:{userIdx}",
		Long:  `Scores every user against the current feature store. With --refresh the features are re-encoded first, as the hourly job does.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			refresh, _ := cmd.Flags().GetBool("refresh")
			ctx := logging.ContextWithJob(logging.ContextWithNewRunID(cmd.Context()), "infer")
			c, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer closeClients(c)

			return a.withLock(ctx, cmd, func(ctx context.Context) error {
				run := c.pipeline.Infer
				if refresh {
					run = c.pipeline.Refresh
				}
				stats, err := run(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "users=%d items=%d model=%d cold_start=%d failed=%d published=%d empty=%d chunks_skipped=%d duration=%s\n",
					stats.Users, stats.Items, stats.ModelScored, stats.ColdStart, stats.Failed,
					stats.Published, stats.EmptyResults, stats.ChunksSkipped, stats.Duration.Round(time.Millisecond))
				return nil
			})
		},
	}
	cmd.Flags().Bool("refresh", false, "Re-encode features before scoring")
	addLockFlag(cmd)
	return cmd
}

// NewTrendingCmd scores one trending window.
func NewTrendingCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trending <day|week>",
		Short: "Score one trending window and publish top:{kind}:{id}",
		Long: `Scores the day or week window containing --date (YYYY-MM-DD in the trending
timezone). Without --date the last complete window is scored, as the scheduled jobs do.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(trending.WindowDay), string(trending.WindowWeek)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := trending.ParseWindowKind(args[0])
			if err != nil {
				return err
			}
			date, _ := cmd.Flags().GetString("date")
			at, err := a.trendingTime(date)
			if err != nil {
				return err
			}

			ctx := logging.ContextWithJob(logging.ContextWithNewRunID(cmd.Context()), "trending-"+string(kind))
			c, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer closeClients(c)

			return a.withLock(ctx, cmd, func(ctx context.Context) error {
				run := c.pipeline.Trending
				if date == "" {
					run = c.pipeline.TrendingPrevious
				}
				res, err := run(ctx, kind, at)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "window=%s key=%s mode=%s events=%d candidates=%d\n",
					res.Window, res.Window.Key(), res.Mode, res.Events, res.Candidates)
				return writeRanked(cmd.OutOrStdout(), res.Ranked)
			})
		},
	}
	cmd.Flags().String("date", "", "Any day inside the window (YYYY-MM-DD)")
	addLockFlag(cmd)
	return cmd
}

// trendingTime resolves --date in the trending timezone; empty means now.
func (a *app) trendingTime(date string) (time.Time, error) {
	loc, err := a.cfg.Trending.Location()
	if err != nil {
		return time.Time{}, err
	}
	if date == "" {
		return time.Now().In(loc), nil
	}
	at, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}
	return at, nil
}

func writeRanked(w io.Writer, rows []trending.Ranked) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPROJECT\tSCORE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%.6f\n", r.Rank, r.ProjectID, r.Score)
	}
	return tw.Flush()
}

// NewScoreCmd prints one user's ranking without publishing it.
func NewScoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <user-id>",
		Short: "Print the ranking of one user without publishing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("user id must be an integer: %w", err)
			}
			k, _ := cmd.Flags().GetInt("k")
			asJSON, _ := cmd.Flags().GetBool("json")

			ctx := cmd.Context()
			c, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer closeClients(c)

			recs, err := c.pipeline.ScoreUser(ctx, userID, k)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"user_id": userID, "items": recs})
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tPROJECT\tSCORE")
			for i, r := range recs {
				fmt.Fprintf(tw, "%d\t%d\t%.6f\n", i+1, r.ProjectID, r.Score)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntP("k", "k", 0, "Number of projects to print (0 uses inference.top_k)")
	cmd.Flags().Bool("json", false, "Output in JSON format")
	return cmd
}
