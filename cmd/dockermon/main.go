// dockermon is a terminal monitor for a dockergate gateway: container state,
// start/stop and the live redacted log stream.
package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/rusenback/dockergate/internal/remote"
	"github.com/rusenback/dockergate/internal/tui"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var gatewayURL string

	flagSet := pflag.NewFlagSet("dockermon", pflag.ContinueOnError)
	flagSet.StringVarP(&gatewayURL, "url", "u", "http://127.0.0.1:3000", "gateway base URL")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	client, err := remote.New(gatewayURL, nil)
	if err != nil {
		return err
	}

	p := tea.NewProgram(tui.NewModel(client), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
