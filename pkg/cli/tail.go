package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/client"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

func cmdTail() *cli.Command {
	var serverURL string
	var streamID string
	var token string
	var driven bool

	return &cli.Command{
		Name:    "tail",
		Aliases: []string{"t"},
		Usage:   "Follow a stream and print its text as it arrives",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "server",
				Usage:       "Base URL of the rivulet server",
				Value:       "http://localhost:8080",
				Sources:     cli.EnvVars("RIVULET_SERVER"),
				Destination: &serverURL,
			},
			&cli.StringFlag{
				Name:        "stream-id",
				Usage:       "Stream ID to follow",
				Required:    true,
				Destination: &streamID,
			},
			&cli.StringFlag{
				Name:        "token",
				Usage:       "Bearer token",
				Sources:     cli.EnvVars("RIVULET_TOKEN"),
				Destination: &token,
			},
			&cli.BoolFlag{
				Name:        "driven",
				Usage:       "Drive generation (trigger it if not yet started) instead of replaying",
				Destination: &driven,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			id := types.StreamID(streamID)
			if err := id.Validate(); err != nil {
				return goerr.Wrap(err, "invalid stream ID", goerr.V("stream_id", streamID))
			}

			var opts []client.Option
			if token != "" {
				opts = append(opts, client.WithToken(token))
			}
			cl := client.New(serverURL, opts...)

			sub := cl.Subscribe(ctx, id, driven)

			printed := 0
			for {
				text := sub.Text()
				if len(text) > printed {
					fmt.Fprint(os.Stdout, text[printed:])
					printed = len(text)
				}

				switch sub.State() {
				case client.StateComplete:
					fmt.Fprintln(os.Stdout)
					color.New(color.FgGreen).Fprintln(os.Stderr, "stream complete")
					return nil
				case client.StateErrored:
					fmt.Fprintln(os.Stdout)
					color.New(color.FgRed).Fprintln(os.Stderr, "stream errored:", sub.Err())
					return sub.Err()
				}

				select {
				case <-sub.Changed():
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		},
	}
}
