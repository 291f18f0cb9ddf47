package main

import (
	"fmt"
	"time"

	"carlens-server-go/src/configs"
	"carlens-server-go/src/core/auth"

	"github.com/spf13/cobra"
)

const (
	rootCmdName  = "carlens"
	rootCmdShort = "Vehicle identification relay"
	rootCmdLong  = "carlens accepts an uploaded image, asks a multimodal model to identify the vehicle in it and returns the result as JSON."

	serveCmdShort = "Start the HTTP server"
	tokenCmdShort = "Print a bearer token for the upload endpoint"
)

type serveOptions struct {
	configPath string
	port       int
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           rootCmdName,
		Short:         rootCmdShort,
		Long:          rootCmdLong,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts := &serveOptions{}
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: serveCmdShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
	serveCmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to the yaml config file")
	serveCmd.Flags().IntVarP(&opts.port, "port", "p", 0, "listen port, overrides PORT and the config file")

	rootCmd.AddCommand(serveCmd, newTokenCmd())
	// 不带子命令时直接启动服务
	rootCmd.RunE = serveCmd.RunE
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	return rootCmd
}

func newTokenCmd() *cobra.Command {
	var (
		configPath string
		subject    string
		ttl        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: tokenCmdShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, _, err := configs.LoadConfig(configPath)
			if err != nil {
				return err
			}
			at, err := auth.NewAuthToken(config.Server.Auth.Secret, ttl)
			if err != nil {
				return fmt.Errorf("server.auth.secret未配置: %w", err)
			}
			token, err := at.GenerateToken(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the yaml config file")
	cmd.Flags().StringVarP(&subject, "subject", "s", "web-client", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
