package events

import (
	"fmt"
	"strings"
)

// RenderText renders events as a deterministic text trace, one line per
// event. Wall-clock timestamps are omitted: two runs producing the same
// logical event sequence render identically, which makes the output
// suitable for golden-file comparison and for the trace CLI command.
func RenderText(evts []Event) string {
	var b strings.Builder
	for _, e := range evts {
		b.WriteString(renderLine(e))
		b.WriteByte('\n')
	}
	return b.String()
}

func renderLine(e Event) string {
	switch e.Kind {
	case KindDiagnostic:
		return fmt.Sprintf("%4d %-16s [%s] %s", e.Seq, e.Kind, e.Severity, e.Message)
	case KindResourceStatus:
		if e.Message != "" {
			return fmt.Sprintf("%4d %-16s %s -> %s: %s", e.Seq, e.Kind, e.URN, e.State, e.Message)
		}
		return fmt.Sprintf("%4d %-16s %s -> %s", e.Seq, e.Kind, e.URN, e.State)
	case KindPolicyViolation:
		return fmt.Sprintf("%4d %-16s %s: %s", e.Seq, e.Kind, e.URN, e.Message)
	case KindSessionStatus:
		if e.Message != "" {
			return fmt.Sprintf("%4d %-16s %s: %s", e.Seq, e.Kind, e.State, e.Message)
		}
		return fmt.Sprintf("%4d %-16s %s", e.Seq, e.Kind, e.State)
	case KindCancel:
		return fmt.Sprintf("%4d %-16s %s", e.Seq, e.Kind, e.Message)
	default:
		return fmt.Sprintf("%4d %-16s %s", e.Seq, e.Kind, e.Message)
	}
}
