package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nguyentranbao-ct/chat-desk/internal/app"
	"github.com/nguyentranbao-ct/chat-desk/internal/kafka"
	"github.com/nguyentranbao-ct/chat-desk/internal/server"
	"github.com/nguyentranbao-ct/chat-desk/pkg/logger/log"
)

var rootCmd = &cobra.Command{
	Use:           "chat-desk",
	Short:         "Chat client daemon serving a local API and live updates to renderers",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		app.Invoke(
			server.StartServer,
			kafka.StartConsumeEvents,
		).Run()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
