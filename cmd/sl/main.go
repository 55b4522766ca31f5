package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stageline/internal/app"
	"stageline/internal/config"
	"stageline/internal/domain"
	"stageline/internal/engine"
)

var rootCmd = &cobra.Command{
	Use:   "sl",
	Short: "Stageline CLI",
	Long: `Stageline runs a sales/service pipeline as a Kanban board.
- Stages: ordered columns, optionally with an SLA in hours; final and lost stages close a deal.
- Cards: deals or work orders placed at a 1-based position inside a stage; positions stay dense.
- Moves: 'sl card move' reorders within a stage or carries a card to another stage, restarting its SLA clock.
- Timeline: every change is appended to an audit log; view it with 'sl timeline show'.
- Tenants: every command works inside one tenant, chosen with --tenant or STAGELINE_TENANT.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("STAGELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.String("config", "", "config file (default <workspace>/stageline.yml)")
	flags.String("db-path", "", "database file (overrides config)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Bool("json", false, "output JSON")
	flags.StringP("tenant", "t", "", "tenant id")
	flags.String("user", "local-user", "acting user id")
	flags.String("role", "OWNER", "acting user role")
	for _, name := range []string{"workspace", "config", "db-path", "log-level", "json", "tenant", "user", "role"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(stageCmd())
	rootCmd.AddCommand(cardCmd())
	rootCmd.AddCommand(kanbanCmd())
	rootCmd.AddCommand(timelineCmd())
	rootCmd.AddCommand(directoryCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(tokenCmd())
}

// loadConfig resolves the config file and applies flag and environment
// overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := app.LoadConfig(viper.GetString("workspace"), viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("db-path"); v != "" {
		cfg.Database.Path = v
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.Logger.Level = v
	}
	if v := viper.GetString("jwt-secret"); v != "" {
		cfg.Server.JWTSecret = v
	}
	return cfg, nil
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.Open(ctx, viper.GetString("workspace"), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		return fn(ctx, a.Engine)
	})
}

// caller returns the tenant and acting user from flags or STAGELINE_* env.
func caller() (string, domain.Actor, error) {
	tenant := strings.TrimSpace(viper.GetString("tenant"))
	if tenant == "" {
		return "", domain.Actor{}, errors.New("tenant required; use --tenant or STAGELINE_TENANT")
	}
	return tenant, domain.Actor{
		UserID:    viper.GetString("user"),
		Role:      strings.ToUpper(viper.GetString("role")),
		UserAgent: "sl-cli",
	}, nil
}

// withTenant runs fn with the engine and the resolved caller.
func withTenant(ctx context.Context, fn func(context.Context, engine.Engine, string, domain.Actor) error) error {
	tenant, actor, err := caller()
	if err != nil {
		return err
	}
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		return fn(ctx, e, tenant, actor)
	})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func changedString(cmd *cobra.Command, name, value string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}

func changedInt(cmd *cobra.Command, name string, value int) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}

func changedBool(cmd *cobra.Command, name string, value bool) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}
