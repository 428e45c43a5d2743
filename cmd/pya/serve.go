package main

import (
	"github.com/spf13/cobra"
	"github.com/zulandar/pyassist/internal/webui"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local web front",
		Long:  "Serves the assistant as a local web page with live updates, history sidebar, tool panels and voice input.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config, 8080)")
	return cmd
}

func runServe(cmd *cobra.Command, port int) error {
	hub := webui.NewHub()
	a, err := openApp(cmd, appOpts{view: hub.View(), voice: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.OutOrStdout())
	defer cancel()

	if err := a.ctrl.CheckStatus(ctx); err != nil {
		a.log.Warn().Err(err).Msg("backend unreachable; the page will ask again")
	}
	if err := a.ctrl.InitVoice(ctx); err != nil {
		a.log.Info().Err(err).Msg("voice input disabled")
	}

	if port == 0 {
		port = a.cfg.UI.Port
	}
	return webui.Start(ctx, webui.StartOpts{
		Controller:      a.ctrl,
		Hub:             hub,
		Port:            port,
		Out:             cmd.OutOrStdout(),
		RefreshSchedule: a.cfg.UI.RefreshSchedule,
		Logger:          a.log,
	})
}
