package main

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Checker-Finance/serasa-adapter/internal/serasa"
	"github.com/Checker-Finance/serasa-adapter/pkg/config"
	"github.com/Checker-Finance/serasa-adapter/pkg/logger"
)

type rootOptions struct {
	baseURL  string
	username string
	password string
	proxy    string
	timeout  time.Duration
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "serasactl",
		Short:         "Query the Serasa Experian credit report API",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.InitWithOutput("serasactl", "prod", opts.logLevel, "stderr")
		},
	}

	// load .env silently (no error if missing) before flag defaults are read
	_ = godotenv.Load()

	f := cmd.PersistentFlags()
	f.StringVar(&opts.baseURL, "url", config.GetEnv("SERASA_API_URL", "https://api.serasaexperian.com.br/"), "Serasa API base URL")
	f.StringVar(&opts.username, "username", config.GetEnv("SERASA_API_USERNAME", ""), "API username")
	f.StringVar(&opts.password, "password", config.GetEnv("SERASA_API_PASSWORD", ""), "API password")
	f.StringVar(&opts.proxy, "proxy", config.GetEnv(serasa.EnvProxy, ""), "HTTP proxy URL")
	f.DurationVar(&opts.timeout, "timeout", config.GetEnvSeconds("SERASA_API_MAX_TIMEOUT", serasa.DefaultMaxTimeout), "per-request timeout")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	cmd.AddCommand(newReportCmd(opts), newLoginCmd(opts))
	return cmd
}

func (o *rootOptions) client() (*serasa.Client, error) {
	if o.username == "" || o.password == "" {
		return nil, fmt.Errorf("credentials required: set SERASA_API_USERNAME and SERASA_API_PASSWORD or use --username/--password")
	}
	return serasa.NewClient(logger.L().With(zap.String("component", "serasactl")), nil, serasa.Credentials{
		Username: o.username,
		Password: o.password,
		BaseURL:  o.baseURL,
		Proxy:    o.proxy,
	}, o.timeout)
}
