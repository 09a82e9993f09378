package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/strainwise/convmem/pkg/client"
	"github.com/strainwise/convmem/pkg/codec"
	"github.com/strainwise/convmem/pkg/memory"
	"github.com/strainwise/convmem/pkg/version"
)

func userFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("user", "u", "", "User ID (required)")
	_ = cmd.MarkFlagRequired("user")
}

func newRecordCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one exchange",
	}
	userFlag(cmd)
	cmd.Flags().StringP("query", "q", "", "User query (required)")
	cmd.Flags().StringP("response", "r", "", "Assistant response")
	cmd.Flags().StringToString("meta", nil, "Metadata key=value pairs")
	_ = cmd.MarkFlagRequired("query")

	cmd.RunE = opts.withClient(func(ctx context.Context, c *client.Client) error {
		userID, _ := cmd.Flags().GetString("user")
		query, _ := cmd.Flags().GetString("query")
		resp, _ := cmd.Flags().GetString("response")
		meta, _ := cmd.Flags().GetStringToString("meta")

		result, err := c.Record(ctx, userID, client.RecordRequest{Query: query, Response: resp, Metadata: meta})
		if err != nil {
			return err
		}
		if text, _ := opts.textOutput(); text {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (session %s, %s)\n", result.Outcome, result.EntryID, result.SessionID, result.QueryType)
			return nil
		}
		return writeJSON(cmd.OutOrStdout(), result)
	})
	return cmd
}

func newContextCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show the reconstructed context for a user",
	}
	userFlag(cmd)
	cmd.RunE = opts.withClient(func(ctx context.Context, c *client.Client) error {
		userID, _ := cmd.Flags().GetString("user")
		mc, err := c.Context(ctx, userID)
		if err != nil {
			return err
		}
		if text, _ := opts.textOutput(); text {
			out := cmd.OutOrStdout()
			if mc.Empty() {
				fmt.Fprintln(out, "(no context)")
				return nil
			}
			fmt.Fprintln(out, mc.Summary)
			for _, p := range mc.SuggestedPrompts {
				fmt.Fprintf(out, "  - %s\n", p)
			}
			return nil
		}
		return writeJSON(cmd.OutOrStdout(), mc)
	})
	return cmd
}

func newProfileCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show a user's memory profile",
	}
	userFlag(cmd)
	cmd.RunE = opts.withClient(func(ctx context.Context, c *client.Client) error {
		userID, _ := cmd.Flags().GetString("user")
		p, err := c.Profile(ctx, userID)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), p)
	})
	return cmd
}

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change a user's memory settings",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Show settings",
	}
	userFlag(get)
	get.RunE = opts.withClient(func(ctx context.Context, c *client.Client) error {
		userID, _ := get.Flags().GetString("user")
		s, err := c.Settings(ctx, userID)
		if err != nil {
			return err
		}
		return writeJSON(get.OutOrStdout(), s)
	})

	set := &cobra.Command{
		Use:   "set",
		Short: "Change settings; only flags given are applied",
	}
	userFlag(set)
	set.Flags().Bool("enabled", true, "Record and use memory")
	set.Flags().Int("retention-days", 90, "Delete history older than this many days (0 keeps forever)")
	set.Flags().Bool("encrypt", true, "Encrypt sensitive exchanges at rest")
	set.Flags().Bool("analytics", true, "Allow analytics over history")
	set.Flags().Bool("auto-save", true, "Flush sessions automatically")
	set.RunE = opts.withClient(func(ctx context.Context, c *client.Client) error {
		userID, _ := set.Flags().GetString("user")
		patch, err := settingsPatch(set)
		if err != nil {
			return err
		}
		s, err := c.UpdateSettings(ctx, userID, patch)
		if err != nil {
			return err
		}
		return writeJSON(set.OutOrStdout(), s)
	})

	cmd.AddCommand(get, set)
	return cmd
}

// settingsPatch builds a patch from the flags the user actually set.
func settingsPatch(cmd *cobra.Command) (memory.SettingsPatch, error) {
	var patch memory.SettingsPatch
	flags := cmd.Flags()
	boolFlag := func(name string, dst **bool) {
		if flags.Changed(name) {
			v, _ := flags.GetBool(name)
			*dst = &v
		}
	}
	boolFlag("enabled", &patch.Enabled)
	boolFlag("encrypt", &patch.EncryptSensitiveData)
	boolFlag("analytics", &patch.AllowAnalytics)
	boolFlag("auto-save", &patch.AutoSessionSave)
	if flags.Changed("retention-days") {
		v, _ := flags.GetInt("retention-days")
		if v < 0 {
			return patch, fmt.Errorf("retention-days must be >= 0")
		}
		patch.RetentionDays = &v
	}
	if patch.Empty() {
		return patch, errors.New("no settings given")
	}
	return patch, nil
}

func newSessionCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or rotate a user's session",
	}

	current := &cobra.Command{
		Use:   "current",
		Short: "Show the active session",
	}
	userFlag(current)
	current.RunE = opts.withClient(func(ctx context.Context, c *client.Client) error {
		userID, _ := current.Flags().GetString("user")
		s, err := c.CurrentSession(ctx, userID)
		if client.IsNotFound(err) {
			fmt.Fprintln(current.OutOrStdout(), "no active session")
			return nil
		}
		if err != nil {
			return err
		}
		return writeJSON(current.OutOrStdout(), s)
	})

	rotate := &cobra.Command{
		Use:   "new",
		Short: "Flush the current session and start a new one",
	}
	userFlag(rotate)
	rotate.RunE = opts.withClient(func(ctx context.Context, c *client.Client) error {
		userID, _ := rotate.Flags().GetString("user")
		s, err := c.StartSession(ctx, userID)
		if err != nil {
			return err
		}
		return writeJSON(rotate.OutOrStdout(), s)
	})

	cmd.AddCommand(current, rotate)
	return cmd
}

func newFeedbackCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Mark a recorded response helpful or not",
	}
	userFlag(cmd)
	cmd.Flags().StringP("entry", "e", "", "Conversation entry ID (required)")
	cmd.Flags().String("value", string(memory.FeedbackHelpful), "helpful or not_helpful")
	_ = cmd.MarkFlagRequired("entry")

	cmd.RunE = opts.withClient(func(ctx context.Context, c *client.Client) error {
		userID, _ := cmd.Flags().GetString("user")
		entryID, _ := cmd.Flags().GetString("entry")
		value, _ := cmd.Flags().GetString("value")
		feedback := memory.Feedback(value)
		if !feedback.Valid() {
			return fmt.Errorf("invalid feedback %q (want helpful or not_helpful)", value)
		}
		if err := c.Feedback(ctx, userID, entryID, feedback); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	})
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export everything stored for a user",
	}
	userFlag(cmd)
	cmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")

	cmd.RunE = opts.withClient(func(ctx context.Context, c *client.Client) error {
		userID, _ := cmd.Flags().GetString("user")
		path, _ := cmd.Flags().GetString("output")

		export, err := c.Export(ctx, userID)
		if err != nil {
			return err
		}
		if path == "" {
			return writeJSON(cmd.OutOrStdout(), export)
		}

		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("open output: %w", err)
		}
		if err := writeJSON(f, export); err != nil {
			f.Close()
			return fmt.Errorf("write output: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close output: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d conversations to %s\n", len(export.Conversations), path)
		return nil
	})
	return cmd
}

func newEraseCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "erase",
		Short: "Permanently delete everything stored for a user",
	}
	userFlag(cmd)
	cmd.Flags().Bool("yes", false, "Confirm the erasure")

	cmd.RunE = opts.withClient(func(ctx context.Context, c *client.Client) error {
		userID, _ := cmd.Flags().GetString("user")
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to erase %s without --yes", userID)
		}
		if err := c.Erase(ctx, userID); err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.Details["failed_parts"] != nil {
				return fmt.Errorf("erasure incomplete, rerun to retry: %w", err)
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "erased %s\n", userID)
		return nil
	})
	return cmd
}

func newAnalyticsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Summarize a user's history",
	}
	userFlag(cmd)
	cmd.RunE = opts.withClient(func(ctx context.Context, c *client.Client) error {
		userID, _ := cmd.Flags().GetString("user")
		s, err := c.Analytics(ctx, userID)
		if err != nil {
			return err
		}
		if text, _ := opts.textOutput(); text {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "conversations: %d\n", s.TotalConversations)
			fmt.Fprintf(out, "sessions:      %d (avg %.1f)\n", s.TotalSessions, s.AverageSessionLength)
			fmt.Fprintf(out, "top strains:   %s\n", rankedNames(s.TopEntities))
			fmt.Fprintf(out, "top effects:   %s\n", rankedNames(s.TopAttributes))
			return nil
		}
		return writeJSON(cmd.OutOrStdout(), s)
	})
	return cmd
}

func rankedNames(items []memory.RankedItem) string {
	if len(items) == 0 {
		return "-"
	}
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = fmt.Sprintf("%s (%d)", item.Name, item.Count)
	}
	return strings.Join(names, ", ")
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
	}
	cmd.RunE = opts.withClient(func(ctx context.Context, c *client.Client) error {
		status, err := c.Status(ctx)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), status)
	})
	return cmd
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a base64 encryption key for memory.encryption_key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := codec.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "convmemctl %s (commit %s, built %s, %s)\n",
				version.Version, version.GitCommit, version.BuildTime, version.GoVersion)
		},
	}
}
