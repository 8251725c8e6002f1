package bundler

import (
	"errors"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/hupe1980/buildwatch/internal/buildcfg"
)

// Kind classifies a build failure.
type Kind int

const (
	// KindConfig covers invalid entry points, options, loaders, and
	// targets, and source that cannot be emitted for the configured
	// target environments.
	KindConfig Kind = iota + 1
	// KindIO covers failures to read sources or write outputs.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration error"
	case KindIO:
		return "i/o error"
	default:
		return "unknown error"
	}
}

var (
	// ErrConfig matches configuration errors via errors.Is. It is the same
	// sentinel buildcfg wraps, so validation failures match too.
	ErrConfig = buildcfg.ErrInvalid

	// ErrIO matches I/O errors via errors.Is.
	ErrIO = errors.New("build i/o error")
)

// Error is a failed context creation, watch activation, or build. Its
// message is esbuild's own diagnostic output, unmodified.
type Error struct {
	Kind     Kind
	Messages []api.Message
	text     string
}

func (e *Error) Error() string {
	return e.text
}

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindConfig:
		return target == ErrConfig
	case KindIO:
		return target == ErrIO
	default:
		return false
	}
}

// ioMarkers are lower-cased fragments of esbuild diagnostics that report
// file system failures rather than problems with the build itself.
var ioMarkers = []string{
	"failed to write",
	"failed to create",
	"cannot read",
	"could not read",
	"permission denied",
}

// classify returns KindIO if any message reports a file system failure.
func classify(msgs []api.Message) Kind {
	for _, m := range msgs {
		text := strings.ToLower(m.Text)
		for _, marker := range ioMarkers {
			if strings.Contains(text, marker) {
				return KindIO
			}
		}
	}

	return KindConfig
}

// newError builds an Error from esbuild messages, formatting them the way
// esbuild's CLI would, without color.
func newError(msgs []api.Message) *Error {
	formatted := api.FormatMessages(msgs, api.FormatMessagesOptions{
		Kind: api.ErrorMessage,
	})

	return &Error{
		Kind:     classify(msgs),
		Messages: msgs,
		text:     strings.TrimRight(strings.Join(formatted, ""), "\n"),
	}
}

// contextError converts a failed api.Context call. Context creation only
// validates options, so the result is always a configuration error.
func contextError(err *api.ContextError) *Error {
	if len(err.Errors) == 0 {
		return &Error{Kind: KindConfig, text: err.Error()}
	}

	e := newError(err.Errors)
	e.Kind = KindConfig

	return e
}

// FormatWarnings renders warnings the way esbuild's CLI would.
func FormatWarnings(msgs []api.Message) []string {
	out := api.FormatMessages(msgs, api.FormatMessagesOptions{
		Kind: api.WarningMessage,
	})

	for i := range out {
		out[i] = strings.TrimRight(out[i], "\n")
	}

	return out
}
