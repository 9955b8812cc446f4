// Package main provides the ruleforge CLI for running RuleForge analyses
// from a terminal.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	ruleforge "github.com/ruleforge/ruleforge-go"
	"github.com/ruleforge/ruleforge-go/config"
	"github.com/ruleforge/ruleforge-go/obs"
	"github.com/ruleforge/ruleforge-go/prefs"
	"github.com/ruleforge/ruleforge-go/session"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:     "ruleforge",
	Short:   "Analyze URLs and documents with the RuleForge service",
	Version: version,

	// Errors are rendered in main so cancellation can be suppressed.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default: ~/.config/ruleforge/config.yaml)")

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newPrefsCmd())
}

func main() {
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err == nil {
		return
	}
	switch {
	case ruleforge.IsCanceled(err):
		// Interrupted on purpose; nothing to report.
		os.Exit(130)
	case ruleforge.IsAuthExpired(err):
		fmt.Fprintf(os.Stderr, "ruleforge: %v\nrun \"ruleforge login <token>\" to authenticate again\n", err)
	case ruleforge.IsStreamTruncated(err):
		fmt.Fprintf(os.Stderr, "ruleforge: %v\nthe stream ended early; retrying usually succeeds\n", err)
	default:
		fmt.Fprintf(os.Stderr, "ruleforge: %v\n", err)
	}
	os.Exit(1)
}

// loadConfig reads the config file named by --config or the default path.
// A missing file yields defaults, so the CLI works with zero setup.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path, _ = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openPrefs opens the preference mirror at the configured or default path.
func openPrefs(cfg *config.Config) (*prefs.Store, error) {
	path := cfg.PrefsPath
	if path == "" {
		p, err := prefs.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return prefs.Open(path, prefs.WithWarnFunc(log.Printf))
}

// newSessionStore builds the credential store wired to the preference
// mirror: a token persisted by an earlier login is restored, and Set/Clear
// write through.
func newSessionStore(p *prefs.Store) *session.Store {
	store := session.NewStore(session.WithSink(p))
	if cred := p.Credential(); cred != nil {
		store.Set(*cred)
	}
	return store
}

// setupObs starts tracing and metrics when the config enables them. The
// returned shutdown is always safe to call.
func setupObs(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.Observability.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	o := cfg.Observability
	shutdown, err := obs.Init(ctx, obs.Options{
		ServiceName: "ruleforge",
		Environment: o.Environment,
		Version:     version,
		Exporter:    obs.ExporterType(o.Exporter),
		Endpoint:    o.Endpoint,
		Insecure:    o.Insecure,
		SampleRatio: o.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}
	return shutdown, nil
}

func newLoginCmd() *cobra.Command {
	var (
		provider  string
		expiresIn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "login <token>",
		Short: "Store a session token for authenticated analyses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pstore, err := openPrefs(cfg)
			if err != nil {
				return err
			}

			cred := ruleforge.Credential{Token: args[0], Provider: provider}
			if expiresIn > 0 {
				cred.ExpiresAt = time.Now().Add(expiresIn)
			}
			store := session.NewStore(session.WithSink(pstore))
			store.Set(cred)

			fmt.Fprintln(cmd.OutOrStdout(), "session token saved")
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "provider the token is scoped to")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "token lifetime (0 means no expiry)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pstore, err := openPrefs(cfg)
			if err != nil {
				return err
			}

			store := newSessionStore(pstore)
			store.Clear()

			fmt.Fprintln(cmd.OutOrStdout(), "session cleared")
			return nil
		},
	}
}

// prefsKeys lists the preference names the CLI persists; restricting set
// keeps typos from silently writing dead keys.
var prefsKeys = map[string]bool{
	prefs.KeyProvider: true,
	prefs.KeyModel:    true,
	prefs.KeyTheme:    true,
}

func newPrefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Read and write persisted CLI preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one preference value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pstore, err := openPrefs(cfg)
			if err != nil {
				return err
			}
			value, ok := pstore.Get(args[0])
			if !ok {
				return fmt.Errorf("preference %q is not set", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist a preference value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !prefsKeys[args[0]] {
				return fmt.Errorf("unknown preference %q (valid: provider, model, theme)", args[0])
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pstore, err := openPrefs(cfg)
			if err != nil {
				return err
			}
			return pstore.Set(args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a preference value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pstore, err := openPrefs(cfg)
			if err != nil {
				return err
			}
			return pstore.Delete(args[0])
		},
	})

	return cmd
}
