package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"
	"github.com/zulandar/pyassist/internal/assistant"
	"github.com/zulandar/pyassist/internal/voice"
)

type toolRun func(ctrl *assistant.Controller, ctx context.Context, input string) error

func newToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Run a tool panel: syntax check, execution, analysis, docs or handbook search",
	}

	cmd.AddCommand(newToolSubCmd("syntax", "Check Python code for syntax errors", true, (*assistant.Controller).SyntaxCheck))
	cmd.AddCommand(newToolSubCmd("exec", "Run Python code on the backend", true, (*assistant.Controller).Execute))
	cmd.AddCommand(newToolSubCmd("analyze", "Analyze Python code", true, (*assistant.Controller).Analyze))
	cmd.AddCommand(newToolSubCmd("docs", "Look up documentation for a topic", false, (*assistant.Controller).Documentation))
	cmd.AddCommand(newToolSubCmd("handbook", "Search the Python handbook", false, (*assistant.Controller).SearchHandbook))
	return cmd
}

// newToolSubCmd builds one tool command. Code tools also take their input
// from --file.
func newToolSubCmd(name, short string, code bool, run toolRun) *cobra.Command {
	var file string

	use := name + " <query...>"
	if code {
		use = name + " [code...]"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.Join(args, " ")
			if file != "" {
				data, err := readInput(cmd, file)
				if err != nil {
					return err
				}
				input = data
			}

			a, err := openApp(cmd, appOpts{})
			if err != nil {
				return err
			}
			defer a.Close()

			return run(a.ctrl, cmd.Context(), input)
		},
	}
	if code {
		cmd.Flags().StringVarP(&file, "file", "f", "", `read the code from a file ("-" for stdin)`)
	}
	return cmd
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func newCrawlCmd() *cobra.Command {
	var send, copyOut bool

	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Fetch a web page as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, appOpts{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ctrl.Crawl(cmd.Context(), args[0]); err != nil {
				return err
			}
			if send {
				if err := a.ctrl.SendCrawlToChat(); err != nil {
					return err
				}
			}
			if copyOut {
				return a.ctrl.CopyCrawl()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&send, "send", false, "also show the result as a chat message")
	cmd.Flags().BoolVar(&copyOut, "copy", false, "copy the Markdown to the clipboard")
	return cmd
}

func newVoiceCmd() *cobra.Command {
	var ask bool

	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Record a question from the microphone",
		Long: "Records until Enter is pressed or the length cap is reached, then prints the recognized text. " +
			"With --ask the text is sent as a question.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVoice(cmd, ask)
		},
	}

	cmd.Flags().BoolVar(&ask, "ask", false, "send the recognized text as a question")
	return cmd
}

func runVoice(cmd *cobra.Command, ask bool) error {
	// idle is signalled when a recording has been transcribed, whoever
	// stopped it.
	idle := make(chan struct{}, 1)
	var started atomic.Bool
	onVoice := func(s voice.State) {
		switch s {
		case voice.Recording:
			started.Store(true)
		case voice.Idle:
			if started.Load() {
				select {
				case idle <- struct{}{}:
				default:
				}
			}
		}
	}

	a, err := openApp(cmd, appOpts{voice: true, onVoice: onVoice})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.ErrOrStderr())
	defer cancel()

	if err := a.ctrl.InitVoice(ctx); err != nil {
		return err
	}
	if a.ctrl.VoiceState() == voice.Unsupported {
		return fmt.Errorf("voice input is disabled")
	}
	if err := a.ctrl.StartRecording(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Recording... press Enter to stop (max %s).\n", a.cfg.Voice.MaxDuration)

	go func() {
		_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		a.ctrl.StopRecording()
	}()

	select {
	case <-idle:
	case <-ctx.Done():
		a.ctrl.StopRecording()
		return ctx.Err()
	}

	text := a.console.Input()
	if text == "" {
		return fmt.Errorf("no speech recognized")
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	if !ask {
		return nil
	}
	if err := a.requireSession(cmd.Context()); err != nil {
		return err
	}
	return a.ctrl.Ask(cmd.Context(), text)
}

func newThemeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|toggle]",
		Short:     "Show or change the web front theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{assistant.ThemeLight, assistant.ThemeDark, "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, appOpts{})
			if err != nil {
				return err
			}
			defer a.Close()

			switch {
			case len(args) == 0:
				fmt.Fprintf(cmd.OutOrStdout(), "Theme: %s\n", a.ctrl.Theme())
				return nil
			case args[0] == "toggle":
				_, err = a.ctrl.ToggleTheme()
				return err
			default:
				return a.ctrl.SetTheme(args[0])
			}
		},
	}
}
