// Command twinctl inspects the digital twin's stored conversations and the
// system prompt the server would send.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/digital-twin/backend/internal/config"
	"github.com/zhouzirui/digital-twin/backend/internal/service/prompt"
	"github.com/zhouzirui/digital-twin/backend/internal/store"
	"github.com/zhouzirui/digital-twin/backend/internal/store/factory"
)

var (
	jsonOutput bool
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "twinctl",
	Short:         "Inspect digital twin conversations and persona prompt",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Printf("warning: failed to load .env file: %v", err)
		}
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect stored conversations",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every stored session with its message count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(st store.Store) error {
			return listSessions(cmd.Context(), st, cmd.OutOrStdout(), jsonOutput)
		})
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the transcript of one session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(st store.Store) error {
			return showSession(cmd.Context(), st, args[0], cmd.OutOrStdout(), jsonOutput)
		})
	},
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Render the system prompt for the configured persona",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asm, err := prompt.FromConfig(cfg.Persona)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), asm.SystemPrompt(time.Now()))
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd)
	rootCmd.AddCommand(sessionsCmd, promptCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func withStore(ctx context.Context, fn func(store.Store) error) error {
	st, err := factory.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	defer st.Close()
	return fn(st)
}

func listSessions(ctx context.Context, st store.Store, w io.Writer, asJSON bool) error {
	sessions, err := st.List(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(w, sessions)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tMESSAGES\tLAST MESSAGE")
	for _, s := range sessions {
		last := "-"
		if s.LastMessage != nil {
			last = truncate(*s.LastMessage, 60)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", s.SessionID, s.MessageCount, last)
	}
	return tw.Flush()
}

func showSession(ctx context.Context, st store.Store, sessionID string, w io.Writer, asJSON bool) error {
	messages, err := st.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return fmt.Errorf("session %q has no messages", sessionID)
	}

	if asJSON {
		return writeJSON(w, messages)
	}

	for _, m := range messages {
		if _, err := fmt.Fprintf(w, "[%s] %s\n", m.Role, m.Content); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
