package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptPCAComponents asks how many principal components to keep ahead of
// UMAP. An empty answer keeps current.
func promptPCAComponents(in io.Reader, out io.Writer, current int) (int, error) {
	fmt.Fprintf(out, "PCA components before UMAP [%d]: ", current)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read answer: %w", err)
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return current, nil
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid component count %q: want a positive integer", line)
	}
	return n, nil
}
