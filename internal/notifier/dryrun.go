package notifier

import (
	"context"
	"fmt"
	"io"
	"unicode/utf8"
)

// DryRunSender prints what would be sent without contacting any service
type DryRunSender struct {
	w     io.Writer
	count int
}

// NewDryRunSender creates a dry-run sender writing to w
func NewDryRunSender(w io.Writer) *DryRunSender {
	return &DryRunSender{w: w}
}

func (s *DryRunSender) Send(_ context.Context, to, message string) error {
	s.count++
	if to == "" {
		to = "default recipient"
	}
	_, err := fmt.Fprintf(s.w, "--- Message %d to %s ---\n%s\n\n(Length: %d characters)\n\n",
		s.count, to, message, utf8.RuneCountInString(message))
	return err
}
