package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"opsportal/internal/app"
	"opsportal/internal/logging"
	"opsportal/internal/notify"
	"opsportal/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin, legacyHeader, noNotify bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API with the notification relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logging.WithModule("serve")

			w, err := app.Open(ctx, viper.GetString("workspace"), actorID())
			if err != nil {
				return err
			}
			defer w.Close()

			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("OPSPORTAL_JWT_SECRET is required for bearer auth")
			}
			if basePath == "" {
				basePath = w.Config.Server.BasePath
			}
			handler, err := server.New(server.Config{
				Engine:   w.Engine,
				BasePath: basePath,
				Auth: server.AuthConfig{
					JWTSecret:              secret,
					DevLogin:               devLogin,
					AllowLegacyActorHeader: legacyHeader,
				},
				Logger: logging.WithModule("server"),
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("serving API", "addr", addr, "base_path", basePath, "docs", "/docs")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			if !noNotify {
				channel := notify.NewChannel(watermill.NewStdLogger(false, false))
				defer channel.Close()
				interval := time.Duration(w.Config.Notifications.PollIntervalSeconds) * time.Second
				relay := notify.NewRelay(w.Engine.Repo, channel, interval, logging.WithModule("relay"))
				notifier := notify.NewNotifier(channel, w.Config, logging.WithModule("notifier"))
				g.Go(func() error { return notify.Serve(gctx, relay, notifier) })
			}

			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from portal.yml)")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "expose POST /auth/dev/login (never in production)")
	cmd.Flags().BoolVar(&legacyHeader, "allow-legacy-user-header", false, "accept X-User-Id without credentials")
	cmd.Flags().BoolVar(&noNotify, "no-notify", false, "do not run the notification relay")
	cmd.Flags().String("jwt-secret", "", "HS256 secret for bearer tokens (env OPSPORTAL_JWT_SECRET)")
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	return cmd
}
