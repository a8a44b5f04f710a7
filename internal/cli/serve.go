package cli

import (
	"context"
	"fmt"

	"atscore/internal/config"
	"atscore/internal/server"

	"github.com/spf13/cobra"
)

type serveOptions struct {
	host     string
	port     string
	tlsMode  string
	certFile string
	keyFile  string
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP scoring API",
		Long: `Start an HTTP server exposing the scoring core.

Available endpoints:
- POST /v1/score: Completeness score of a resume draft
- POST /v1/analyze/generated: Analysis of a resume draft
- POST /v1/analyze/job: Analysis of resume text against a job
- POST /v1/match: Job match with the parsed resume
- POST /v1/users, GET /v1/users/{id}: User records
- POST /v1/users/{id}/resume-versions, /submissions, /recompute: Score history
- GET /v1/users/{id}/summary, /events: Score summary and history
- GET /health, GET /stats: Health and server statistics

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled or server
- Use --cert-file and --key-file for TLS certificates`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.port, "port", "p", "", "Port to listen on (default from config)")
	cmd.Flags().StringVar(&opts.host, "host", "", "Host to bind to (default from config)")
	cmd.Flags().StringVar(&opts.tlsMode, "tls-mode", "", "TLS mode: disabled or server (overrides config)")
	cmd.Flags().StringVar(&opts.certFile, "cert-file", "", "Server certificate file (PEM, overrides config)")
	cmd.Flags().StringVar(&opts.keyFile, "key-file", "", "Server private key file (PEM, overrides config)")
	return cmd
}

// applyOverrides copies set flags over the loaded server configuration
func (o *serveOptions) applyOverrides(cmd *cobra.Command, cfg *config.ServerConfig) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = o.host
	}
	if flags.Changed("port") {
		cfg.Port = o.port
	}
	if flags.Changed("tls-mode") {
		cfg.TLS.Mode = o.tlsMode
	}
	if flags.Changed("cert-file") {
		cfg.TLS.CertFile = o.certFile
	}
	if flags.Changed("key-file") {
		cfg.TLS.KeyFile = o.keyFile
	}
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	opts.applyOverrides(cmd, &cfg.Server)

	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	return withApp(cmd, appOptions{store: true, observability: true}, func(ctx context.Context, a *app) error {
		s := server.NewServer(a.cfg, server.ServerConfigFromApp(a.cfg, Version), a.services(), a.observability, a.logger)
		return s.Run(ctx)
	})
}
