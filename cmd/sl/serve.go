package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"stageline/internal/app"
	"stageline/internal/config"
	"stageline/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				cfg := a.Config
				if cmd.Flags().Changed("addr") {
					cfg.Server.Addr = addr
				}
				if cmd.Flags().Changed("base-path") {
					cfg.Server.BasePath = basePath
				}
				if cfg.Server.JWTSecret == "" {
					return fmt.Errorf("server.jwt_secret or STAGELINE_JWT_SECRET is required for bearer auth")
				}
				handler, err := server.New(server.Config{
					Engine:   a.Engine,
					BasePath: cfg.Server.BasePath,
					Auth: server.AuthConfig{
						JWTSecret:       cfg.Server.JWTSecret,
						StageAdminRoles: cfg.Server.StageAdminRoles,
					},
					Logger: a.Logger,
				})
				if err != nil {
					return err
				}
				server.NewWebhookDispatcher(a.Engine, a.Logger).Start(ctx)

				srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				a.Logger.Info("serving stageline api",
					"addr", cfg.Server.Addr,
					"base_path", cfg.Server.BasePath,
					"webhooks", len(cfg.Webhooks),
				)
				fmt.Printf("Serving Stageline API on http://%s (OpenAPI at /openapi.json, Swagger UI at /docs, metrics at /metrics)\n", cfg.Server.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for --tenant, --user and --role",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tenant, actor, err := caller()
			if err != nil {
				return err
			}
			tok, err := server.IssueToken(cfg.Server.JWTSecret, server.Principal{
				UserID:   actor.UserID,
				TenantID: tenant,
				Role:     actor.Role,
			}, ttl)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"token": tok})
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
	return cmd
}

func configCmd() *cobra.Command {
	c := &cobra.Command{Use: "config", Short: "Inspect and create stageline.yml"}
	c.AddCommand(configShowCmd())
	c.AddCommand(configInitCmd())
	return c
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Server.JWTSecret != "" {
				cfg.Server.JWTSecret = "********"
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default stageline.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
