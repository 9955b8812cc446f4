package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	ruleforge "github.com/ruleforge/ruleforge-go"
	"github.com/ruleforge/ruleforge-go/prefs"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		filePath   string
		provider   string
		model      string
		apiKey     string
		formatFlag string
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [url]",
		Short: "Run an analysis and print the resulting detection rules",
		Long: `Run an analysis against the RuleForge service and print the resulting
detection rules. Analyze a page by URL, or a local file with --file.
Progress is rendered on stderr while the analysis streams; interrupt with
Ctrl-C to cancel.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (filePath == "") {
				return errors.New("provide exactly one of a URL argument or --file")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pstore, err := openPrefs(cfg)
			if err != nil {
				// Analyses work without the mirror; the session just won't
				// be restored or persisted.
				log.Printf("preferences unavailable: %v", err)
				pstore = nil
			}

			shutdown, err := setupObs(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(ctx)
			}()

			opts := []ruleforge.ClientOption{
				ruleforge.WithConfig(cfg),
				ruleforge.WithWarnFunc(log.Printf),
			}
			if pstore != nil {
				opts = append(opts, ruleforge.WithStore(newSessionStore(pstore)))
			}
			client := ruleforge.NewClient(opts...)

			var url string
			if len(args) == 1 {
				url = args[0]
			}
			input, err := buildInput(url, filePath)
			if err != nil {
				return err
			}
			input.Provider = resolvePref(provider, pstore, prefs.KeyProvider)
			input.Model = resolvePref(model, pstore, prefs.KeyModel)
			input.APIKey = apiKey

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			op, err := client.Start(ctx, input)
			if err != nil {
				return err
			}

			render := newProgressRenderer(os.Stderr, quiet)
			for ev := range op.Events() {
				render.Update(ev)
			}
			render.Finish()

			out, _ := op.Outcome()
			if out.Status != ruleforge.StatusSucceeded {
				return out.Err
			}
			return writeReport(cmd.OutOrStdout(), out.Report, formatFlag)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&filePath, "file", "", "analyze a local document instead of a URL")
	flags.StringVar(&provider, "provider", "", "model provider for this run (overrides prefs and config)")
	flags.StringVar(&model, "model", "", "model for this run (overrides prefs and config)")
	flags.StringVar(&apiKey, "api-key", "", "provider API key used when no session token is stored")
	flags.StringVar(&formatFlag, "format", "table", "output format: table or json")
	flags.BoolVar(&quiet, "quiet", false, "suppress progress output")

	return cmd
}

// buildInput turns the command line into an analysis input: a URL, or a
// local file read into a document upload.
func buildInput(url, filePath string) (ruleforge.Input, error) {
	if filePath == "" {
		return ruleforge.URLInput(url), nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return ruleforge.Input{}, fmt.Errorf("read document: %w", err)
	}
	mediaType := mime.TypeByExtension(filepath.Ext(filePath))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return ruleforge.DocumentInput(filepath.Base(filePath), mediaType, data), nil
}

// resolvePref returns the flag value, falling back to the persisted
// preference. An empty result defers to the config-file defaults inside
// the client.
func resolvePref(flag string, pstore *prefs.Store, key string) string {
	if flag != "" || pstore == nil {
		return flag
	}
	value, _ := pstore.Get(key)
	return value
}
