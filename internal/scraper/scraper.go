package scraper

import (
	"context"
	"errors"

	"github.com/maltedev/vprok-price-parser/internal/models"
)

var (
	ErrWrongURL    = errors.New("wrong product URL")
	ErrWrongRegion = errors.New("wrong region")
	ErrFailedParse = errors.New("failed to parse product properties")
)

// Kind classifies an attempt failure. Only the kind decides whether the
// runner retries.
type Kind int

const (
	KindTransient Kind = iota
	KindWrongURL
	KindWrongRegion
	KindExtractionFailed
)

func (k Kind) String() string {
	switch k {
	case KindWrongURL:
		return "wrong_url"
	case KindWrongRegion:
		return "wrong_region"
	case KindExtractionFailed:
		return "extraction_failed"
	default:
		return "transient"
	}
}

// Fatal reports whether a failure of this kind must not be retried.
func (k Kind) Fatal() bool {
	return k == KindWrongURL || k == KindWrongRegion
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if s := e.sentinel(); s != nil {
		msg += ": " + s.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := []error{}
	if s := e.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindWrongURL:
		return ErrWrongURL
	case KindWrongRegion:
		return ErrWrongRegion
	case KindExtractionFailed:
		return ErrFailedParse
	default:
		return nil
	}
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind carried by err. Errors that were never classified
// are transient.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrWrongURL):
		return KindWrongURL
	case errors.Is(err, ErrWrongRegion):
		return KindWrongRegion
	case errors.Is(err, ErrFailedParse):
		return KindExtractionFailed
	}
	return KindTransient
}

// Page is the slice of a browser page the parser needs.
type Page interface {
	SetCookie(name, value, domain string) error
	Navigate(url string) error
	WaitForSelector(selector string) error
	Click(selector string) error
	Hover(selector string) error
	// TextContent returns "" when nothing matches selector.
	TextContent(selector string) (string, error)
	CountExactText(tag, text string) (int, error)
	// ClickExactTextAndWait hovers and clicks the first tag element whose
	// text equals text, and returns once the navigation it triggers has
	// reached load, domcontentloaded and networkidle.
	ClickExactTextAndWait(tag, text string) error
	Content() (string, error)
	Screenshot(path string) error
}

// Session is a page owned by a freshly launched browser.
type Session interface {
	Page
	Close() error
}

type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

type LauncherFunc func(ctx context.Context) (Session, error)

func (f LauncherFunc) Launch(ctx context.Context) (Session, error) {
	return f(ctx)
}

// Sink receives every observation after it has been written to disk.
// Implementations: database.HistoryRepository, events.Publisher.
type Sink interface {
	Record(ctx context.Context, obs *models.Observation) error
}
