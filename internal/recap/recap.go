package recap

import (
	"fmt"
	"strings"
	"time"

	"github.com/jvreeland/questlog/internal/provider"
)

// Title is the human-readable recap title for a session date, also used as
// the Discord thread name.
func Title(date time.Time) string {
	return date.Format("January 2, 2006") + " Session Recap"
}

// FormatDuration renders an API call duration as seconds with millisecond
// precision, e.g. "12.345s".
func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// Compose prepends the call stats header to the generated summary. The
// header is part of the recap: it is saved to disk and delivered verbatim.
func Compose(date time.Time, r *provider.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s\n\n", Title(date))
	fmt.Fprintf(&b, "🤖 LLM Provider: `%s`\n", r.Provider)
	fmt.Fprintf(&b, "📋 Model: `%s`\n", r.Model)
	fmt.Fprintf(&b, "⌚ API time: `%s`\n", FormatDuration(r.Duration))
	fmt.Fprintf(&b, "🧾 Tokens: `%d in | %d out | %d total`\n", r.Usage.PromptTokens,
		r.Usage.OutputTokens+r.Usage.ThoughtTokens, r.Usage.TotalTokens)
	if r.Cost != "" {
		fmt.Fprintf(&b, "💰 Cost: `%s`\n", r.Cost)
	}
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(r.Summary))
	b.WriteString("\n")

	return b.String()
}
