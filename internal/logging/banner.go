package logging

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

// ANSI color codes.
const (
	reset = "\033[0m"
	bold  = "\033[1m"
	cyan  = "\033[36m"
	dim   = "\033[2m"
)

// logoLines is the gateway's startup ASCII art.
var logoLines = [6]string{
	`      _         _ _ _       `,
	`   __| | __ _  | (_) |_ ___ `,
	`  / _` + "`" + ` |/ _` + "`" + ` | | | __/ _ \`,
	` | (_| | (_| | | | ||  __/`,
	`  \__,_|\__, | |_|_|\__\___|`,
	`        |___/         -gw`,
}

// PrintBanner prints the gateway's ASCII art logo followed by its
// version and listen address. Colors are used only when stderr is a
// TTY.
func PrintBanner(ver, addr string) {
	color := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

	for _, line := range logoLines {
		if color {
			fmt.Fprintf(os.Stderr, "%s%s%s\n", bold+cyan, line, reset)
		} else {
			fmt.Fprintln(os.Stderr, line)
		}
	}

	if color {
		fmt.Fprintf(os.Stderr, "\n  %sversion%s %s   %saddr%s %s\n\n",
			dim, reset, ver, dim, reset, addr)
	} else {
		fmt.Fprintf(os.Stderr, "\n  version %s   addr %s\n\n", ver, addr)
	}
}
