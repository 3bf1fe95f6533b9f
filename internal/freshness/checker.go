// Package freshness decides whether the installed CLI package is behind the
// latest published version.
package freshness

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/clawbridge/internal/command"
	"github.com/user/clawbridge/internal/termtext"
	"github.com/user/clawbridge/internal/version"
)

type Outcome string

const (
	UpToDate        Outcome = "up_to_date"
	UpdateAvailable Outcome = "update_available"
	NotInstalled    Outcome = "not_installed"
	CheckFailed     Outcome = "check_failed"
)

type Result struct {
	Outcome   Outcome   `json:"outcome"`
	Package   string    `json:"package"`
	Installed string    `json:"installed,omitempty"`
	Latest    string    `json:"latest,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// QueryError is a failed listing or registry query.
type QueryError struct {
	Query  string
	Stderr string
	Err    error
}

func (e *QueryError) Error() string {
	msg := fmt.Sprintf("%s query failed", e.Query)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += " (" + e.Stderr + ")"
	}
	return msg
}

func (e *QueryError) Unwrap() error { return e.Err }

// Progress receives the lifecycle of a check. Begin(true) means the check
// is waiting behind another one.
type Progress interface {
	Begin(queued bool)
	End()
}

const defaultQueryTimeout = 2 * time.Minute

// Checker runs at most one check at a time; later callers queue.
type Checker struct {
	runner       Runner
	manager      string
	pkg          string
	queryTimeout time.Duration
	progress     Progress
	sem          *semaphore.Weighted
	now          func() time.Time
}

type Option func(*Checker)

func WithProgress(p Progress) Option {
	return func(c *Checker) { c.progress = p }
}

func WithQueryTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.queryTimeout = d
		}
	}
}

func NewChecker(runner Runner, manager, pkg string, opts ...Option) *Checker {
	if manager == "" {
		manager = "npm"
	}
	c := &Checker{
		runner:       runner,
		manager:      manager,
		pkg:          pkg,
		queryTimeout: defaultQueryTimeout,
		sem:          semaphore.NewWeighted(1),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Checker) Package() string { return c.pkg }

func (c *Checker) Manager() string { return c.manager }

// Check queries the installed and latest versions. Cancellation of ctx is
// ignored: a started check always runs to completion or query timeout.
func (c *Checker) Check(ctx context.Context) Result {
	ctx = context.WithoutCancel(ctx)

	if !c.sem.TryAcquire(1) {
		c.begin(true)
		// Cannot fail: ctx is never canceled.
		_ = c.sem.Acquire(ctx, 1)
	}
	defer c.sem.Release(1)
	c.begin(false)
	defer c.end()

	res := c.check(ctx)
	res.Package = c.pkg
	res.CheckedAt = c.now().UTC()
	slog.Info("freshness check finished", "package", c.pkg, "outcome", res.Outcome,
		"installed", res.Installed, "latest", res.Latest, "reason", res.Reason)
	return res
}

func (c *Checker) check(ctx context.Context) Result {
	installed, found, err := c.installedVersion(ctx)
	if err != nil {
		return Result{Outcome: CheckFailed, Reason: err.Error()}
	}

	// The registry is queried even when nothing is installed: an
	// unreachable registry fails the check instead of offering an install.
	latest, err := c.latestVersion(ctx)
	if err != nil {
		return Result{Outcome: CheckFailed, Installed: installed, Reason: err.Error()}
	}
	if !found {
		return Result{Outcome: NotInstalled, Latest: latest}
	}

	if version.IsOlder(installed, latest) {
		return Result{Outcome: UpdateAvailable, Installed: installed, Latest: latest}
	}
	return Result{Outcome: UpToDate, Installed: installed, Latest: latest}
}

type listing struct {
	Dependencies map[string]struct {
		Version string `json:"version"`
	} `json:"dependencies"`
}

// installedVersion trusts the JSON on stdout over the exit code: npm exits
// non-zero for an empty listing and prints warnings on stderr.
func (c *Checker) installedVersion(ctx context.Context) (string, bool, error) {
	qctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	stdout, stderr, runErr := c.runner.Run(qctx, c.manager, "ls", "-g", "--json", "--depth=0", c.pkg)
	body := strings.TrimSpace(string(stdout))
	if body == "" {
		if runErr == nil {
			runErr = fmt.Errorf("empty output")
		}
		return "", false, &QueryError{Query: "list", Stderr: firstLine(stderr), Err: runErr}
	}

	var l listing
	if err := json.Unmarshal([]byte(body), &l); err != nil {
		return "", false, &QueryError{Query: "list", Stderr: firstLine(stderr), Err: fmt.Errorf("decode listing: %w", err)}
	}
	dep, ok := l.Dependencies[c.pkg]
	if !ok || strings.TrimSpace(dep.Version) == "" {
		return "", false, nil
	}
	return strings.TrimSpace(dep.Version), true, nil
}

func (c *Checker) latestVersion(ctx context.Context) (string, error) {
	qctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	stdout, stderr, err := c.runner.Run(qctx, c.manager, "view", c.pkg, "version")
	if err != nil {
		return "", &QueryError{Query: "view", Stderr: firstLine(stderr), Err: err}
	}
	v := version.Extract(termtext.StripANSI(string(stdout)))
	if v == "" {
		return "", &QueryError{Query: "view", Stderr: firstLine(stderr), Err: fmt.Errorf("no version in output")}
	}
	return v, nil
}

func (c *Checker) begin(queued bool) {
	if c.progress != nil {
		c.progress.Begin(queued)
	}
}

func (c *Checker) end() {
	if c.progress != nil {
		c.progress.End()
	}
}

// Offer returns the install or update command a result calls for.
func (c *Checker) Offer(res Result) (command.Install, bool) {
	switch res.Outcome {
	case NotInstalled:
		return command.Install{Manager: c.manager, Package: c.pkg}, true
	case UpdateAvailable:
		return command.Install{Manager: c.manager, Package: c.pkg, Update: true}, true
	default:
		return command.Install{}, false
	}
}

// Message is the user-facing summary of res.
func (r Result) Message() string {
	switch r.Outcome {
	case UpToDate:
		return fmt.Sprintf("%s is up to date (%s)", r.Package, r.Installed)
	case UpdateAvailable:
		return fmt.Sprintf("%s %s is available (installed %s)", r.Package, r.Latest, r.Installed)
	case NotInstalled:
		return fmt.Sprintf("%s is not installed", r.Package)
	default:
		return fmt.Sprintf("Failed to check %s: %s", r.Package, r.Reason)
	}
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(termtext.StripANSI(string(b)))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
