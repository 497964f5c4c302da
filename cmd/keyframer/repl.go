package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vfproof/keyframer/internal/dispatcher"
	"github.com/vfproof/keyframer/internal/util"
)

// axis JSON for large families easily exceeds bufio's 64k default
const maxLineSize = 1 << 20

// runCommands reads one command per line from in and writes one reply line
// per command to out. It returns at EOF or on :QUIT:.
func runCommands(d *dispatcher.Dispatcher, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		command, args := util.ParseCommandLine(scanner.Text())
		if command == "" {
			continue
		}
		if command == ":QUIT:" || command == ":EXIT:" {
			return nil
		}

		result, err := d.Dispatch(dispatcher.Event{Command: command, Args: args})
		if _, werr := fmt.Fprintln(out, formatReply(result, err)); werr != nil {
			return werr
		}
	}
	return scanner.Err()
}

func formatReply(result any, err error) string {
	if err != nil {
		return "ERROR " + err.Error()
	}

	switch v := result.(type) {
	case nil:
		return "ok"
	case string:
		return v
	case []string:
		return strings.Join(v, " ")
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("ERROR encoding reply: %v", err)
		}
		return string(data)
	}
}
