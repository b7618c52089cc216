package conclavectl

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ANSI color helpers using raw escape codes — no OSC queries, no termenv auto-detect.
var (
	colorReset      = "\033[0m"
	colorBold       = "\033[1m"
	colorDim        = "\033[2m"
	colorOrangeANSI = "\033[38;5;208m"
	colorBlueANSI   = "\033[38;5;39m"
	colorPinkANSI   = "\033[38;5;212m"
	colorGrayANSI   = "\033[38;5;241m"
	colorRedANSI    = "\033[38;5;196m"
	colorGreenANSI  = "\033[38;5;34m"
)

func getTermWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// printSeparator prints a dim horizontal rule.
func printSeparator() {
	w := getTermWidth()
	n := w - 2
	if n < 20 {
		n = 20
	}
	fmt.Printf("%s%s%s\n", colorGrayANSI, strings.Repeat("-", n), colorReset)
}

// printError outputs an error message.
func printError(msg string) {
	fmt.Printf("%s%sError: %s%s\n", colorBold, colorRedANSI, msg, colorReset)
}

// renderMarkdownToTerminal renders markdown content for terminal display.
func renderMarkdownToTerminal(content string, width int) string {
	if width <= 0 {
		width = 76
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithColorProfile(termenv.ANSI256),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

// statusColor picks a display color for an agent status.
func statusColor(status string) string {
	switch status {
	case "running", "pending":
		return colorBlueANSI
	case "completed":
		return colorGreenANSI
	case "failed":
		return colorRedANSI
	default:
		return colorGrayANSI
	}
}
