package events

import (
	"fmt"
	"io"
)

// WriteSSE writes one event as a server-sent-events frame. The caller owns
// flushing.
func WriteSSE(w io.Writer, kind Kind, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", kind, data); err != nil {
		return fmt.Errorf("events: write sse frame: %w", err)
	}
	return nil
}

// WriteSSEComment writes a comment frame. Parsers ignore it; proxies see
// traffic and keep the connection open.
func WriteSSEComment(w io.Writer, comment string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", comment); err != nil {
		return fmt.Errorf("events: write sse comment: %w", err)
	}
	return nil
}
