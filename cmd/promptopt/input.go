package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Swapped in tests.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// terminalPassword reads secrets without echo from a terminal, falling back to a plain
// line read when stdin is piped.
func terminalPassword(prompt io.Writer, in *bufio.Reader) func(string) (string, error) {
	return func(label string) (string, error) {
		if err := writef(prompt, "%s", label); err != nil {
			return "", err
		}
		fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int
		if !isTerminal(fd) {
			return readLine(in)
		}
		raw, err := readPassword(fd)
		_ = writeln(prompt)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}

// promptValue returns value when set, otherwise prompts for a line on stdin.
func promptValue(cc *commandContext, label, value string) (string, error) {
	if v := strings.TrimSpace(value); v != "" {
		return v, nil
	}
	if err := writef(cc.Err, "%s", label); err != nil {
		return "", err
	}
	line, err := readLine(cc.In)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(strings.TrimSuffix(label, ": ")), err)
	}
	if strings.TrimSpace(line) == "" {
		return "", usageErrorf("%s is required", strings.ToLower(strings.TrimSuffix(label, ": ")))
	}
	return strings.TrimSpace(line), nil
}

// promptText joins args, or reads all of stdin when there are none.
func promptText(cc *commandContext, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	raw, err := io.ReadAll(cc.In)
	if err != nil {
		return "", fmt.Errorf("read prompt from stdin: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
