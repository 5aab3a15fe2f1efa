package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "deepsight",
		Short:         "Command line client for the DeepSight image processing API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			displayAppname(a.out, a.config.GetAppName())
			return cmd.Help()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.SetIn(a.in)
	root.PersistentFlags().StringVar(&a.storeKind, "store", "", "token store: memory, file or redis (default from DEEPSIGHT_STORE)")

	root.AddCommand(
		healthCommand(a),
		registerCommand(a),
		loginCommand(a),
		logoutCommand(a),
		statusCommand(a),
		watchCommand(a),
		profileCommand(a),
		settingsCommand(a),
		imagesCommand(a),
		processedCommand(a),
		modelsCommand(a),
		processCommand(a),
	)
	return root
}
