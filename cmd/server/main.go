package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-sso-server/internal/config"
	"github.com/jrsteele09/go-sso-server/internal/observability"
	"github.com/jrsteele09/go-sso-server/oauth2"
	"github.com/jrsteele09/go-sso-server/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	xoauth2 "golang.org/x/oauth2"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sso-server",
		Short:         "SSO, OAuth2 and OpenID Connect server with risk-adaptive access control",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("loading .env: %w", err)
			}
			return nil
		},
	}
	cmd.AddCommand(newServeCommand(), newRegisterClientCommand(), newPKCECommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := config.New()
			logger := observability.NewLogger(c.GetEnv(), c.GetAppName())
			displayAppname(c.GetAppName())

			flush, err := observability.InitSentry(c.GetSentryDSN(), c.GetEnv())
			if err != nil {
				return err
			}
			defer flush()

			mp, err := observability.InitMetrics(cmd.Context(), observability.MetricsSettings{
				ServiceName: c.GetAppName(),
				Environment: c.GetEnv(),
				Endpoint:    c.GetOTLPEndpoint(),
				Insecure:    c.GetOTLPInsecure(),
				Interval:    c.GetMetricsExportInterval(),
			}, logger)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := mp.Shutdown(shutdownCtx); err != nil {
					logger.Error().Err(err).Msg("metrics shutdown failed")
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, c, logger)
			if err != nil {
				return err
			}
			defer a.close()

			srv, err := server.New(ctx, c, server.Services{
				Auth:     a.services.auth,
				Sessions: a.services.sessions,
				Access:   a.services.access,
				Repos:    a.services.repos,
			},
				server.WithLogger(logger),
				server.WithHealthCheck("store", a.store.Ping),
				server.WithHealthCheck("database", a.pingDatabase),
			)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx, c.GetPort(), shutdownTimeout)
		},
	}
}

func newRegisterClientCommand() *cobra.Command {
	var req oauth2.RegistrationRequest
	var grants []string
	var public bool

	cmd := &cobra.Command{
		Use:   "register-client",
		Short: "Register an OAuth2 client and print its credentials once",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := config.New()
			logger := observability.NewLogger(c.GetEnv(), c.GetAppName())

			a, err := newApp(cmd.Context(), c, logger)
			if err != nil {
				return err
			}
			defer a.close()

			for _, g := range grants {
				req.GrantTypes = append(req.GrantTypes, oauth2.GrantType(g))
			}
			if public {
				req.TokenEndpointAuthMethod = "none"
			}
			resp, err := a.services.auth.RegisterClient(cmd.Context(), req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&req.ClientName, "name", "", "client display name")
	cmd.Flags().StringSliceVar(&req.RedirectURIs, "redirect-uri", nil, "registered redirect URI (repeatable)")
	cmd.Flags().StringSliceVar(&grants, "grant", nil, "allowed grant type (repeatable)")
	cmd.Flags().StringVar(&req.Scope, "scope", "", "space separated allowed scopes")
	cmd.Flags().BoolVar(&public, "public", false, "register a public client (PKCE, no secret)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// newPKCECommand prints a fresh verifier and its S256 challenge for manual testing
func newPKCECommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pkce",
		Short: "Generate a PKCE code verifier and S256 challenge",
		Run: func(cmd *cobra.Command, args []string) {
			verifier := xoauth2.GenerateVerifier()
			fmt.Fprintf(cmd.OutOrStdout(), "code_verifier=%s\ncode_challenge=%s\ncode_challenge_method=%s\n",
				verifier, xoauth2.S256ChallengeFromVerifier(verifier), oauth2.CodeMethodTypeS256)
		},
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
