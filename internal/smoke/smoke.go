// Package smoke runs end-to-end scenarios against a live backend and reports
// each step as a pass or fail line.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"socialnet/internal/api"
	"socialnet/internal/config"
	"socialnet/internal/models"
	"socialnet/internal/observability"
	"socialnet/internal/realtime"
)

// User roles the built-in scenarios sign in as.
const (
	RolePrimary  = "primary"
	RoleFriend   = "friend"
	RolePrivate  = "private"
	RoleOutsider = "outsider"
)

// Credentials signs a role in.
type Credentials struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// DefaultUsers returns the role credentials of the seeded mock backend, with
// the primary user taken from cfg.
func DefaultUsers(cfg *config.Config) map[string]Credentials {
	return map[string]Credentials{
		RolePrimary:  {Email: cfg.SmokeUserEmail, Password: cfg.SmokeUserPassword},
		RoleFriend:   {Email: "bob@example.com", Password: cfg.SmokeUserPassword},
		RolePrivate:  {Email: "carol@example.com", Password: cfg.SmokeUserPassword},
		RoleOutsider: {Email: "dave@example.com", Password: cfg.SmokeUserPassword},
	}
}

// Scenario is a named end-to-end check.
type Scenario struct {
	Name        string
	Description string
	Run         func(ctx context.Context, env *Env) error
}

// Step is one recorded check.
type Step struct {
	Scenario string
	Name     string
	Passed   bool
	Detail   string
	Duration time.Duration
}

func (s Step) String() string {
	mark := "✅"
	if !s.Passed {
		mark = "❌"
	}
	line := fmt.Sprintf("%s [%s] %s", mark, s.Scenario, s.Name)
	if s.Detail != "" {
		line += ": " + s.Detail
	}
	return line
}

// Report collects the steps of a run.
type Report struct {
	Steps    []Step
	Started  time.Time
	Finished time.Time
}

// Failed reports whether any step failed.
func (r Report) Failed() bool {
	for _, s := range r.Steps {
		if !s.Passed {
			return true
		}
	}
	return false
}

// Counts returns the number of passed and failed steps.
func (r Report) Counts() (passed, failed int) {
	for _, s := range r.Steps {
		if s.Passed {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

// Summary is the closing line of a run.
func (r Report) Summary() string {
	passed, failed := r.Counts()
	took := r.Finished.Sub(r.Started).Round(time.Millisecond)
	if failed == 0 {
		return fmt.Sprintf("🎉 All %d steps passed in %v", passed, took)
	}
	return fmt.Sprintf("💥 %d of %d steps failed in %v", failed, passed+failed, took)
}

// Env is what a scenario works with: the config, signed-in clients per
// role and the step recorder.
type Env struct {
	Config *config.Config

	scenario string
	users    map[string]Credentials
	out      io.Writer
	log      *slog.Logger

	mu      sync.Mutex
	clients map[string]*api.Client
	steps   []Step
	sockets []*realtime.Client
}

// Login signs in with explicit credentials and returns a fresh client.
func (e *Env) Login(ctx context.Context, email, password string) (*api.Client, error) {
	c := api.New(e.Config, api.WithLogger(e.log))
	if _, err := c.SignIn(ctx, models.Credentials{Email: email, Password: password}); err != nil {
		return nil, fmt.Errorf("sign in %s: %w", email, err)
	}
	u, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("current user %s: %w", email, err)
	}
	if u == nil {
		return nil, fmt.Errorf("sign in %s: session not accepted", email)
	}
	return c, nil
}

// As returns the signed-in client of a role, signing in on first use.
func (e *Env) As(ctx context.Context, role string) (*api.Client, error) {
	e.mu.Lock()
	c, ok := e.clients[role]
	e.mu.Unlock()
	if ok {
		return c, nil
	}

	creds, ok := e.users[role]
	if !ok {
		return nil, fmt.Errorf("no credentials for role %q", role)
	}
	c, err := e.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.clients[role] = c
	e.mu.Unlock()
	return c, nil
}

// Anonymous returns a client with no session.
func (e *Env) Anonymous() *api.Client {
	return api.New(e.Config, api.WithLogger(e.log))
}

// Realtime returns a realtime client for c's session. It is disconnected
// when the scenario ends.
func (e *Env) Realtime(c *api.Client, opts ...realtime.Option) *realtime.Client {
	opts = append([]realtime.Option{realtime.WithChannel("smoke")}, opts...)
	rt := realtime.New(e.Config, c.Token, opts...)
	e.mu.Lock()
	e.sockets = append(e.sockets, rt)
	e.mu.Unlock()
	return rt
}

// Step runs fn as a named check and records the outcome. The returned error
// is fn's, wrapped with the step name.
func (e *Env) Step(name string, fn func() (string, error)) error {
	start := time.Now()
	detail, err := fn()
	st := Step{Scenario: e.scenario, Name: name, Passed: err == nil, Detail: detail, Duration: time.Since(start)}
	if err != nil {
		st.Detail = err.Error()
	}
	e.record(st)
	if err != nil {
		return &stepError{step: name, err: err}
	}
	return nil
}

func (e *Env) record(st Step) {
	e.mu.Lock()
	e.steps = append(e.steps, st)
	e.mu.Unlock()
	observability.RecordSmokeStep(st.Scenario, st.Passed)
	if e.out != nil {
		fmt.Fprintln(e.out, st.String())
	}
}

func (e *Env) close() {
	e.mu.Lock()
	sockets := e.sockets
	e.sockets = nil
	e.mu.Unlock()
	for _, rt := range sockets {
		rt.Disconnect()
	}
}

type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return e.step + ": " + e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

// expect returns an error built from format when ok is false.
func expect(ok bool, format string, args ...any) error {
	if ok {
		return nil
	}
	return fmt.Errorf(format, args...)
}

// Runner runs registered scenarios in order.
type Runner struct {
	cfg       *config.Config
	users     map[string]Credentials
	out       io.Writer
	log       *slog.Logger
	timeout   time.Duration
	scenarios map[string]Scenario
	order     []string
}

// Option configures a Runner.
type Option func(*Runner)

// WithOutput writes step lines and the summary to w.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithUsers overrides role credentials. Roles not named keep their defaults.
func WithUsers(users map[string]Credentials) Option {
	return func(r *Runner) {
		for role, creds := range users {
			r.users[role] = creds
		}
	}
}

// WithScenarioTimeout bounds each scenario.
func WithScenarioTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// NewRunner builds a runner with the built-in scenarios registered.
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:       cfg,
		users:     DefaultUsers(cfg),
		log:       observability.GlobalLogger.Logger,
		timeout:   30 * time.Second,
		scenarios: make(map[string]Scenario),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, s := range BuiltinScenarios() {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a scenario.
func (r *Runner) Register(s Scenario) {
	if _, ok := r.scenarios[s.Name]; !ok {
		r.order = append(r.order, s.Name)
	}
	r.scenarios[s.Name] = s
}

// Names lists registered scenarios in registration order.
func (r *Runner) Names() []string {
	return append([]string(nil), r.order...)
}

// ErrUnknownScenario is recorded for names that are not registered.
var ErrUnknownScenario = errors.New("unknown scenario")

// Run runs the named scenarios, or all of them when none are named. A
// scenario stops at its first failed step; the next one still runs.
func (r *Runner) Run(ctx context.Context, names ...string) Report {
	if len(names) == 0 {
		names = r.order
	}
	report := Report{Started: time.Now()}
	for _, name := range names {
		report.Steps = append(report.Steps, r.runOne(ctx, name)...)
	}
	report.Finished = time.Now()
	if r.out != nil {
		passed, failed := report.Counts()
		fmt.Fprintf(r.out, "\n📊 %d passed, %d failed\n%s\n", passed, failed, report.Summary())
	}
	return report
}

func (r *Runner) runOne(ctx context.Context, name string) []Step {
	env := &Env{
		Config:   r.cfg,
		scenario: name,
		users:    r.users,
		out:      r.out,
		log:      r.log,
		clients:  make(map[string]*api.Client),
	}
	s, ok := r.scenarios[name]
	if !ok {
		env.record(Step{Scenario: name, Name: "lookup", Detail: ErrUnknownScenario.Error()})
		return env.steps
	}

	if r.out != nil {
		fmt.Fprintf(r.out, "\n🧪 %s: %s\n", s.Name, s.Description)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	defer env.close()

	err := s.Run(ctx, env)
	var se *stepError
	if err != nil && !errors.As(err, &se) {
		env.record(Step{Scenario: name, Name: "setup", Detail: err.Error()})
	}
	r.log.InfoContext(ctx, "smoke scenario finished",
		slog.String("scenario", name),
		slog.Bool("passed", err == nil),
	)
	return env.steps
}

// Describe lists registered scenarios as "name: description" lines.
func (r *Runner) Describe() string {
	names := r.Names()
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "%-22s %s\n", n, r.scenarios[n].Description)
	}
	return b.String()
}
