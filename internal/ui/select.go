package ui

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// PromptSelect prints a numbered option list on stdout and reads one choice.
// An empty line cancels. The returned index is zero-based.
func PromptSelect(prompt string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, fmt.Errorf("no options to select")
	}

	fmt.Println(prompt)
	for i, opt := range options {
		fmt.Printf("%2d) %s\n", i+1, opt)
	}
	fmt.Print("Select (e.g., 1) or press Enter to cancel: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return 0, err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, ErrCanceled
	}

	idx, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("invalid selection: %s", line)
	}
	if idx < 1 || idx > len(options) {
		return 0, fmt.Errorf("selection out of range: %d", idx)
	}
	return idx - 1, nil
}
