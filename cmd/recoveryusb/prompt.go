package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
)

// askForConfirmation prints prompt with a [Y/n] suffix and reads answers
// from r until it gets a yes or a no. An empty answer means yes; a read
// error (EOF included) means no.
func askForConfirmation(r io.Reader, w io.Writer, prompt string) bool {
	reader := bufio.NewReader(r)
	for {
		fmt.Fprint(w, color.Bold.Sprintf("%s [Y/n]: ", prompt))
		response, err := reader.ReadString('\n')
		response = strings.ToLower(strings.TrimSpace(response))
		if err != nil && response == "" {
			return false
		}

		switch response {
		case "", "y", "yes":
			return true
		case "n", "no":
			return false
		}
		fmt.Fprintln(w, color.Yellow.Sprint("Invalid input."))
		if err != nil {
			return false
		}
	}
}
