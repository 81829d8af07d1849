// pattern: Imperative Shell
package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"wtctl/internal/notify"
)

// Notifier prints notifications to a terminal stream.
type Notifier struct {
	mu     sync.Mutex
	w      io.Writer
	styles *Styles
}

// NewNotifier writes styled notifications to w.
func NewNotifier(w io.Writer, styles *Styles) *Notifier {
	return &Notifier{w: w, styles: styles}
}

func (n *Notifier) Notify(title, message string, sev notify.Severity) {
	style := n.styles.OKStyle()
	switch sev {
	case notify.Warning:
		style = n.styles.WarnStyle()
	case notify.Error:
		style = n.styles.ErrorStyle()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "%s %s\n", style.Render(title+":"), firstLine(message))
	for _, line := range restLines(message) {
		fmt.Fprintf(n.w, "  %s\n", line)
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func restLines(s string) []string {
	_, rest, ok := strings.Cut(s, "\n")
	if !ok {
		return nil
	}
	return strings.Split(rest, "\n")
}
