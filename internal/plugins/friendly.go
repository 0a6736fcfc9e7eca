package plugins

import (
	"context"
	"strings"

	"github.com/wolfeidau/flepack/internal/notify"
	"github.com/wolfeidau/flepack/internal/telemetry"
)

// Severity of a reported compilation problem.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// CompileError is one problem reported by the bundler.
type CompileError struct {
	Name    string
	Message string
	// File may carry a loader chain, e.g. "babel-loader!./src/app.js"
	File string
}

// FriendlyErrorsOptions cleans up bundler console output and optionally
// raises a desktop notification when a build fails.
type FriendlyErrorsOptions struct {
	CompilationSuccessInfo struct {
		Messages []string `yaml:"messages"`
	} `yaml:"compilation_success_info"`

	notifyEnabled bool
	notifier      notify.Notifier
	title         string
	icon          string
}

func (*FriendlyErrorsOptions) Kind() Kind { return KindFriendlyErrors }

// OnErrors is invoked by the bundler after a compilation with problems.
// A notification is sent only when notifications are enabled and severity
// is exactly SeverityError.
func (f *FriendlyErrorsOptions) OnErrors(severity Severity, errs []CompileError) {
	if !f.notifyEnabled {
		return
	}
	if severity != SeverityError {
		return
	}
	if len(errs) == 0 || f.notifier == nil {
		return
	}

	first := errs[0]

	f.notifier.Notify(notify.Notification{
		Title:    f.title,
		Message:  string(severity) + ": " + first.Name,
		Subtitle: SourceFilename(first.File),
		Icon:     f.icon,
	})

	telemetry.GetMetrics().NotificationsSentTotal.Add(context.Background(), 1)
}

// SourceFilename strips every "loader!" prefix from a module request and
// returns what follows the last '!'.
func SourceFilename(file string) string {
	if i := strings.LastIndexByte(file, '!'); i >= 0 {
		return file[i+1:]
	}
	return file
}
