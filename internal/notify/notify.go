// Package notify sends the plain-text run summary email.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("realitease.internal.notify")

type SmtpConfig struct {
	Server   string   `json:"server"`
	Port     int      `json:"port"`
	Address  string   `json:"address"`
	Password string   `json:"password"`
	To       []string `json:"to"`
}

// Enabled reports whether enough of the config is set to send mail.
func (c SmtpConfig) Enabled() bool {
	return c.Server != "" && c.Port > 0 && c.Address != "" && len(c.To) > 0
}

// Summary is what a finished run reports.
type Summary struct {
	Job       string
	RunID     string
	Status    string
	Started   time.Time
	Finished  time.Time
	Processed int
	Updated   int
	Skipped   int
	Failed    int
	// Reasons counts failures by reason.
	Reasons   map[string]int
	FailedLog string
}

func (s Summary) Subject() string {
	return fmt.Sprintf("[realitease] %s %s: %d updated, %d failed", s.Job, s.Status, s.Updated, s.Failed)
}

func (s Summary) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job:       %s (run %s)\n", s.Job, s.RunID)
	fmt.Fprintf(&b, "Status:    %s\n", s.Status)
	fmt.Fprintf(&b, "Started:   %s\n", s.Started.Format(time.RFC1123))
	fmt.Fprintf(&b, "Duration:  %s\n", s.Finished.Sub(s.Started).Round(time.Second))
	fmt.Fprintf(&b, "Processed: %d\n", s.Processed)
	fmt.Fprintf(&b, "Updated:   %d\n", s.Updated)
	fmt.Fprintf(&b, "Skipped:   %d\n", s.Skipped)
	fmt.Fprintf(&b, "Failed:    %d\n", s.Failed)
	if len(s.Reasons) > 0 {
		b.WriteString("\nFailures by reason:\n")
		for _, reason := range sortedKeys(s.Reasons) {
			fmt.Fprintf(&b, "  %4d  %s\n", s.Reasons[reason], reason)
		}
	}
	if s.FailedLog != "" {
		fmt.Fprintf(&b, "\nFailed members were saved to %s\n", s.FailedLog)
	}
	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// most frequent first, ties alphabetically
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Send emails the summary, servers that do not support AUTH are retried without it.
func Send(ctx context.Context, config SmtpConfig, summary Summary) error {
	_, span := tracer.Start(ctx, "Send")
	defer span.End()
	span.SetAttributes(attribute.String("job", summary.Job))

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Realitease <%s>", config.Address)
	mail.To = config.To
	mail.Subject = summary.Subject()
	mail.Text = []byte(summary.Body())

	addr := fmt.Sprintf("%s:%d", config.Server, config.Port)
	err := mail.Send(addr, smtp.PlainAuth("", config.Address, config.Password, config.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return fmt.Errorf("send run summary: %w", err)
	}
	return nil
}
