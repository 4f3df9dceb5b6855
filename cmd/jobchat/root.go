package main

import (
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/spf13/cobra"
	"github.com/zishu-lab/jobchat/config"
	"github.com/zishu-lab/jobchat/internal/app"
	"github.com/zishu-lab/jobchat/server"
)

var version = "0.1.0"

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "jobchat",
	Short: "Job assistant chat server and tools",
	Long: `jobchat answers questions about job postings through an OpenAI-compatible chat
service, keeping one conversation per id and streaming replies as they arrive.`,
	Version: version,
	Example: `  # Serve the HTTP API
  $ jobchat serve

  # Chat in the terminal about a job posting
  $ jobchat chat --job-file job.json

  # Refresh the city taxonomy used by the job search form
  $ jobchat cities generate`,
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(citiesCmd)
}

// loadApp reads the configuration and builds the application components.
func loadApp() (*app.App, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}

	a, err := app.New(cfg)
	if err != nil {
		return nil, err
	}

	hlog.SetLogger(server.NewHertzLogger(a.Logger))
	return a, nil
}
