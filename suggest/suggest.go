// Package suggest asks a language model for replacement code.
package suggest

import (
	"context"
	"fmt"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Request describes the construct to rewrite and what to do with it.
type Request struct {
	Kind     string
	Text     string
	Intent   string
	Language string
}

// Suggester produces replacement text for a construct.
type Suggester interface {
	Suggest(ctx context.Context, req Request) (string, error)
}

// ErrorKind classifies suggestion service failures.
type ErrorKind int

const (
	NetworkFailure ErrorKind = iota
	RateLimited
	AuthFailed
	BadResponse
)

func (k ErrorKind) String() string {
	switch k {
	case RateLimited:
		return "rate limited"
	case AuthFailed:
		return "authentication failed"
	case BadResponse:
		return "bad response"
	default:
		return "network failure"
	}
}

// ServiceError is returned for every failed suggestion call.
type ServiceError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	b.WriteString("suggestion service: ")
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the call can help.
func (e *ServiceError) Temporary() bool {
	return e.Kind == RateLimited || e.Kind == NetworkFailure
}

// IsKind reports whether err is a ServiceError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Kind == kind
}

// Prompt renders the instruction sent for req.
func Prompt(req Request) string {
	language := req.Language
	if language == "" {
		language = "the same language"
	}
	return fmt.Sprintf(`Please %s.

The code below is a %s written in %s:

%s

Requirements:
Ensure the code remains functionally equivalent.
Return only the transformed code and do not include any explanations, comments, or additional text.
The output should be only code, ready to be used as a replacement for the original code.
Don't add special characters at the beginning or end.
`, strings.TrimSuffix(strings.TrimSpace(req.Intent), "."), req.Kind, language, req.Text)
}

// ExtractCode returns the body of the first fenced code block in reply, or
// the trimmed reply when it has none. An unterminated fence runs to the end.
func ExtractCode(reply string) string {
	var (
		code    []string
		inBlock bool
		found   bool
	)
	for line := range strings.Lines(reply) {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inBlock {
				break
			}
			inBlock, found = true, true
			continue
		}
		if inBlock {
			code = append(code, strings.TrimRight(line, "\r\n"))
		}
	}
	if !found {
		return strings.TrimSpace(reply)
	}
	return strings.Join(code, "\n")
}
