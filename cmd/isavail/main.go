// SPDX-License-Identifier: GPL-3.0-or-later

// Command isavail queries the Registro.br domain availability service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bassosimone/isavail"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// errNoResponse is returned when the server never answered. We have
// already printed the outcome, so main only sets the exit code.
var errNoResponse = errors.New("no response")

func main() {
	cmd, _ := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errNoResponse) {
			fmt.Fprintf(os.Stderr, "isavail: %s\n", err.Error())
		}
		os.Exit(1)
	}
}

// newRootCmd returns the command and the viper instance its flags are bound to.
func newRootCmd() (*cobra.Command, *viper.Viper) {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "isavail [flags] fqdn",
		Short: "Query the Registro.br domain availability service",
		Long: `isavail asks the Registro.br availability service whether a domain
name can be registered, and prints the server answer.

The session cookie issued by the server is stored in the cookie file and
reused by later invocations.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Usage()
			}
			if err := readConfigFile(v, cfgFile); err != nil {
				return err
			}
			cfg, err := configFromViper(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cmd.OutOrStdout(), v, cfg, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file with defaults for the flags below")
	flags.StringP("lang", "l", "PT", "language: EN or PT")
	flags.StringP("server", "s", isavail.DefaultServerAddr, "server IP address")
	flags.IntP("port", "p", isavail.DefaultServerPort, "server port number")
	flags.StringP("cookie-file", "c", isavail.DefaultCookieFile, "file where the cookie is stored")
	flags.StringP("proxied-ip", "a", "", "client IP address being proxied")
	flags.BoolP("suggest", "S", false, "enable suggestions in the server answer")
	flags.BoolP("debug", "d", false, "turn on debug mode")
	flags.Duration("retry-timeout", isavail.DefaultRetryTimeout, "amount by which the wait grows on each attempt")
	flags.Int("max-retries", isavail.DefaultMaxRetries, "maximum number of times the query is sent")

	_ = v.BindPFlags(flags)
	v.SetEnvPrefix("isavail")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd, v
}

func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// configFromViper builds the client config from flags, environment and
// config file, in this order of precedence.
func configFromViper(v *viper.Viper) (isavail.Config, error) {
	cfg := isavail.DefaultConfig()
	lang, err := isavail.ParseLanguage(v.GetString("lang"))
	if err != nil {
		return cfg, err
	}
	cfg.Language = lang
	cfg.Server = v.GetString("server")
	cfg.Port = v.GetInt("port")
	cfg.ProxiedIP = v.GetString("proxied-ip")
	cfg.Suggest = v.GetBool("suggest")
	cfg.RetryTimeout = v.GetDuration("retry-timeout")
	cfg.MaxRetries = v.GetInt("max-retries")
	return cfg, cfg.Validate()
}

func newLogger(debug bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		logger, err = config.Build()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func run(ctx context.Context, out io.Writer, v *viper.Viper, cfg isavail.Config, fqdn string) error {
	debug := v.GetBool("debug")
	logger := newLogger(debug)
	defer logger.Sync() //nolint:errcheck

	store := isavail.NewFileSessionStore(v.GetString("cookie-file"))
	client, err := isavail.NewClient(cfg, store, logger)
	if err != nil {
		return err
	}

	if client.NeedsHandshake() {
		if err := client.Handshake(ctx); err != nil {
			logger.Warn("handshake failed", zap.Error(err))
		}
	}

	started := time.Now()
	resp, err := client.Query(ctx, fqdn)
	logger.Debug("query done", zap.String("fqdn", fqdn), zap.Duration("elapsed", time.Since(started)))
	switch {
	case errors.Is(err, isavail.ErrRetriesExhausted):
		fmt.Fprintln(out, "No response")
		return errNoResponse
	case err != nil:
		return err
	}

	fmt.Fprintln(out, resp.String())
	if debug {
		fmt.Fprintln(out, "*****Response received*****")
		fmt.Fprintln(out, resp.Raw)
	}
	return nil
}
