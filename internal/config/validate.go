package config

import "fmt"

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// Issue is one validation finding. Path is a dotted locator into the config
// document ("source.http.url").
type Issue struct {
	Path     string
	Severity Severity
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasError reports whether any issue in the list is an error.
func HasError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateSync checks a Sync document for problems a batch run would hit
// later. It returns all findings; callers decide whether warnings abort.
func ValidateSync(s Sync) []Issue {
	var issues []Issue
	errf := func(path, format string, args ...any) {
		issues = append(issues, Issue{Path: path, Severity: SeverityError, Message: fmt.Sprintf(format, args...)})
	}
	warnf := func(path, format string, args ...any) {
		issues = append(issues, Issue{Path: path, Severity: SeverityWarn, Message: fmt.Sprintf(format, args...)})
	}

	switch s.Source.Kind {
	case "http":
		if s.Source.HTTP == nil {
			errf("source.http", "required when source.kind=http")
			break
		}
		if s.Source.HTTP.URL == "" && s.Source.HTTP.URLFile == "" {
			errf("source.http", "one of url or url_file is required")
		}
		if s.Source.HTTP.URL != "" && s.Source.HTTP.URLFile != "" {
			warnf("source.http", "both url and url_file set; url wins")
		}
	case "file":
		if s.Source.File == nil || s.Source.File.Path == "" {
			errf("source.file.path", "required when source.kind=file")
		}
		if s.Source.File != nil && s.Source.File.MaxBytes < 0 {
			errf("source.file.max_bytes", "must be >= 0")
		}
	case "":
		errf("source.kind", "required (http or file)")
	default:
		errf("source.kind", "unknown kind %q (want http or file)", s.Source.Kind)
	}

	return commonIssues(s, issues)
}

// ValidateServe checks a Sync document for service mode, where every job
// carries its own dump URL and the source block only supplies HTTP client
// knobs. A file source cannot serve per-job URLs and is rejected.
func ValidateServe(s Sync) []Issue {
	var issues []Issue
	switch s.Source.Kind {
	case "", "http":
		// Nothing required; the source block is optional here.
	default:
		issues = append(issues, Issue{
			Path:     "source.kind",
			Severity: SeverityError,
			Message:  fmt.Sprintf("kind %q is not usable in service mode (jobs carry their own URL)", s.Source.Kind),
		})
	}
	return commonIssues(s, issues)
}

// commonIssues appends the source-independent checks shared by both modes.
func commonIssues(s Sync, issues []Issue) []Issue {
	errf := func(path, format string, args ...any) {
		issues = append(issues, Issue{Path: path, Severity: SeverityError, Message: fmt.Sprintf(format, args...)})
	}
	warnf := func(path, format string, args ...any) {
		issues = append(issues, Issue{Path: path, Severity: SeverityWarn, Message: fmt.Sprintf(format, args...)})
	}

	if s.Job == "" {
		warnf("job", "empty; metrics and ledger rows will use a default job name")
	}

	if s.Output.Dir == "" {
		errf("output.dir", "required")
	}

	if s.Index.Enabled {
		if s.Index.Addr == "" {
			errf("index.addr", "required when index.enabled")
		}
		if s.Index.Collection == "" {
			errf("index.collection", "required when index.enabled")
		}
		if s.Index.Dims <= 0 {
			errf("index.dims", "must be > 0 when index.enabled")
		}
		if s.Index.EmbedURL == "" {
			errf("index.embed_url", "required when index.enabled")
		}
		if s.Index.EmbedModel == "" {
			warnf("index.embed_model", "empty; embedding service default model will be used")
		}
		if s.Index.RatePerSec < 0 {
			errf("index.rate_per_sec", "must be >= 0")
		}
	}

	if s.Ledger.Kind != "" && s.Ledger.DSN == "" {
		errf("ledger.dsn", "required when ledger.kind is set")
	}

	if s.Runtime.Workers < 0 {
		errf("runtime.workers", "must be >= 0")
	}

	return issues
}
