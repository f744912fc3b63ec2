package client

import (
	"bufio"
	"io"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// scanEvents decodes server-sent events from r and invokes fn for each one.
// Multi-line data fields are rejoined with newlines. Comment lines (used by
// the server as heartbeats) are skipped. Returns when r is exhausted or fn
// returns a non-nil error.
func scanEvents(r io.Reader, fn func(event, data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event string
	var dataLines []string

	flush := func() error {
		if event == "" && len(dataLines) == 0 {
			return nil
		}
		err := fn(event, strings.Join(dataLines, "\n"))
		event = ""
		dataLines = nil
		return err
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
			// comment / heartbeat
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(strings.TrimPrefix(line, "event:"), " ")
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return goerr.Wrap(err, "failed to read event stream")
	}

	// trailing event without a blank line terminator
	return flush()
}
