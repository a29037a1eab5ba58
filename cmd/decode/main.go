// Command decode reads newline-delimited stream envelopes from stdin and
// prints the canonical form of each decoded event to stdout. Decode failures
// go to stderr and flip the exit code, one line per offending message.
//
// Useful for replaying captured stream dumps:
//
//	cat dump.ndjson | go run ./cmd/decode
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"investstream/internal/streaming"
)

func main() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	exitCode := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		event, err := streaming.Decode(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "decode: %v\n", err)
			exitCode = 1
			continue
		}
		fmt.Println(event)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "reading stdin: %v\n", err)
		exitCode = 1
	}
	os.Exit(exitCode)
}
