package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/vprok-price-parser/internal/metrics"
	"github.com/maltedev/vprok-price-parser/internal/models"
	"github.com/maltedev/vprok-price-parser/internal/parser"
	"github.com/maltedev/vprok-price-parser/internal/ratelimit"
	"github.com/maltedev/vprok-price-parser/internal/storage"
)

const (
	DefaultMaxAttempts = 3
	DefaultURLPrefix   = "https://www.vprok.ru/product/"

	consentCookieName   = "isUserAgreeCookiesPolicy"
	consentCookieValue  = "true"
	consentCookieDomain = ".vprok.ru"

	productIDSeparator = "--"
)

// State is a step of the attempt loop. Succeeded and FatalFailed are
// terminal.
type State int

const (
	StateAttempting State = iota
	StateSucceeded
	StateRetryableFailed
	StateFatalFailed
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateSucceeded:
		return "succeeded"
	case StateRetryableFailed:
		return "retryable_failed"
	case StateFatalFailed:
		return "fatal_failed"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFatalFailed
}

// Next is the transition function of the attempt loop. attempt is the number
// of attempts already made.
func Next(current State, err error, attempt, maxAttempts int) State {
	switch current {
	case StateAttempting:
		if err == nil {
			return StateSucceeded
		}
		if KindOf(err).Fatal() {
			return StateFatalFailed
		}
		return StateRetryableFailed
	case StateRetryableFailed:
		if attempt < maxAttempts {
			return StateAttempting
		}
		return StateFatalFailed
	default:
		return current
	}
}

// Target is a validated parse request.
type Target struct {
	URL       string
	Region    string
	ProductID string
}

// ParseTarget checks the raw CLI input. The product id is the part of the
// URL after the "--" separator.
func ParseTarget(rawURL, region, urlPrefix string) (*Target, error) {
	if !strings.Contains(rawURL, urlPrefix) {
		return nil, newError(KindWrongURL, "validate url", fmt.Errorf("%q does not contain %q", rawURL, urlPrefix))
	}

	if strings.TrimSpace(region) == "" {
		return nil, newError(KindWrongRegion, "validate region", fmt.Errorf("region is empty"))
	}

	parts := strings.Split(rawURL, productIDSeparator)
	if len(parts) < 2 {
		return nil, newError(KindWrongURL, "validate url", fmt.Errorf("%q has no product id", rawURL))
	}
	productID := parts[1]
	if i := strings.IndexAny(productID, "?#"); i >= 0 {
		productID = productID[:i]
	}
	productID = strings.TrimSuffix(productID, "/")
	if productID == "" {
		return nil, newError(KindWrongURL, "validate url", fmt.Errorf("%q has an empty product id", rawURL))
	}

	return &Target{URL: rawURL, Region: region, ProductID: productID}, nil
}

type Options struct {
	MaxAttempts int
	URLPrefix   string
	Parser      parser.Parser
	Limiter     ratelimit.RateLimiter
	Metrics     *metrics.Metrics
	Sinks       []NamedSink
	Now         func() time.Time
}

type NamedSink struct {
	Name string
	Sink Sink
}

// Outcome describes a finished run.
type Outcome struct {
	RunID       string
	State       State
	Attempts    int
	Exhausted   bool
	Observation *models.Observation
	Err         error
}

type Runner struct {
	launcher  Launcher
	writer    *storage.ResultWriter
	regions   *RegionSelector
	extractor *ProductExtractor
	limiter   ratelimit.RateLimiter
	metrics   *metrics.Metrics
	sinks     []NamedSink
	logger    *slog.Logger

	maxAttempts int
	urlPrefix   string
	now         func() time.Time
}

func NewRunner(launcher Launcher, writer *storage.ResultWriter, opts Options, logger *slog.Logger) *Runner {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.URLPrefix == "" {
		opts.URLPrefix = DefaultURLPrefix
	}
	if opts.Parser == nil {
		opts.Parser = parser.NewVprokParser()
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewSimpleRateLimiter(0, 0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		launcher:    launcher,
		writer:      writer,
		regions:     NewRegionSelector(logger),
		extractor:   NewProductExtractor(opts.Parser),
		limiter:     opts.Limiter,
		metrics:     opts.Metrics,
		sinks:       opts.Sinks,
		logger:      logger.With("component", "runner"),
		maxAttempts: opts.MaxAttempts,
		urlPrefix:   opts.URLPrefix,
		now:         opts.Now,
	}
}

func (r *Runner) MaxAttempts() int {
	return r.maxAttempts
}

// Run parses the product at rawURL for region, retrying transient failures.
// The returned error is non-nil only for fatal failures (wrong URL, wrong
// region, cancelled context). Running out of attempts is reported through
// the outcome and the log, not as an error.
func (r *Runner) Run(ctx context.Context, rawURL, region string) (*Outcome, error) {
	out := &Outcome{
		RunID: uuid.New().String(),
		State: StateAttempting,
	}
	logger := r.logger.With("run_id", out.RunID, "url", rawURL, "region", region)

	for !out.State.Terminal() {
		switch out.State {
		case StateAttempting:
			err := ctx.Err()
			if err == nil {
				err = r.limiter.Wait(ctx)
			}
			if err != nil {
				out.State = StateFatalFailed
				out.Err = err
				break
			}

			out.Attempts++
			started := time.Now()
			obs, err := r.attempt(ctx, rawURL, region, out.RunID, out.Attempts)
			r.metrics.ObserveAttempt(outcomeLabel(err), time.Since(started))

			out.Err = err
			out.Observation = obs
			out.State = Next(StateAttempting, err, out.Attempts, r.maxAttempts)

		case StateRetryableFailed:
			logger.Warn("attempt failed",
				"attempt", out.Attempts,
				"max_attempts", r.maxAttempts,
				"kind", KindOf(out.Err).String(),
				"error", out.Err)

			out.State = Next(StateRetryableFailed, out.Err, out.Attempts, r.maxAttempts)
			if out.State == StateFatalFailed {
				out.Exhausted = true
			}
		}
	}

	r.metrics.IncRun(out.State.String())

	switch {
	case out.State == StateSucceeded:
		logger.Info("parse succeeded",
			"attempts", out.Attempts,
			"product_id", out.Observation.ProductID,
			"text_path", out.Observation.TextPath,
			"screenshot_path", out.Observation.ScreenshotPath)
		r.forward(ctx, out.Observation)
		return out, nil
	case out.Exhausted:
		logger.Error("parse failed after all attempts",
			"attempts", out.Attempts,
			"error", out.Err)
		return out, nil
	default:
		logger.Error("parse failed", "attempts", out.Attempts, "kind", KindOf(out.Err).String(), "error", out.Err)
		return out, out.Err
	}
}

// attempt runs one full navigate, select region, extract, persist sequence
// in a fresh browser session.
func (r *Runner) attempt(ctx context.Context, rawURL, region, runID string, attemptNo int) (*models.Observation, error) {
	target, err := ParseTarget(rawURL, region, r.urlPrefix)
	if err != nil {
		return nil, err
	}

	session, err := r.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.logger.Warn("failed to close browser session", "error", err)
		}
	}()

	obs, err := r.drive(session, target)
	if err != nil {
		if KindOf(err).Fatal() {
			return nil, err
		}
		if pageErr := r.extractor.pageError(session); pageErr != parser.PageErrorNone {
			return nil, newError(KindWrongURL, "check page", fmt.Errorf("page shows %s block: %w", pageErr, err))
		}
		return nil, err
	}

	obs.RunID = runID
	obs.Attempt = attemptNo
	return obs, nil
}

func (r *Runner) drive(page Page, target *Target) (*models.Observation, error) {
	if err := page.SetCookie(consentCookieName, consentCookieValue, consentCookieDomain); err != nil {
		return nil, fmt.Errorf("failed to set consent cookie: %w", err)
	}

	if err := page.Navigate(target.URL); err != nil {
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}

	if err := r.regions.SelectRegion(page, target.Region); err != nil {
		return nil, err
	}

	props, err := r.extractor.ExtractProperties(page)
	if err != nil {
		return nil, err
	}

	scrapedAt := r.now()
	dateString := storage.DateString(scrapedAt)
	regionDir := r.writer.RegionDir(target.Region)
	if err := r.writer.EnsureDir(regionDir); err != nil {
		return nil, err
	}

	screenshotPath := r.writer.ScreenshotPath(regionDir, dateString, target.ProductID)
	if err := page.Screenshot(screenshotPath); err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}

	textPath, err := r.writer.Persist(dateString, props, target.ProductID, regionDir)
	if err != nil {
		return nil, err
	}

	return &models.Observation{
		ProductID:      target.ProductID,
		Region:         target.Region,
		URL:            target.URL,
		DateString:     dateString,
		ScrapedAt:      scrapedAt,
		Properties:     *props,
		TextPath:       textPath,
		ScreenshotPath: screenshotPath,
	}, nil
}

// forward hands a persisted observation to the optional sinks. The record is
// already on disk, so sink failures are only logged.
func (r *Runner) forward(ctx context.Context, obs *models.Observation) {
	for _, s := range r.sinks {
		if err := s.Sink.Record(ctx, obs); err != nil {
			r.metrics.IncSinkError(s.Name)
			r.logger.Error("failed to record observation", "sink", s.Name, "run_id", obs.RunID, "error", err)
		}
	}
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err).String()
}
