package types

import (
	"fmt"
	"net/url"
	"strings"
)

// Request validation limits.
const (
	MaxCmdLength        = 64
	MaxURLLength        = 8192
	MaxTimeoutMs        = 120000 // 2 minutes in milliseconds
	MaxTokenLength      = 4096
	MaxSelectorLength   = 1024
	MaxPostTextLength   = 64 * 1024 // pasted post text for assist-only requests
	MaxToneLength       = 64
	MaxReplySuggestions = 10
)

// Request represents an incoming API request.
type Request struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url,omitempty"`
	AuthToken  string `json:"authToken,omitempty"`  // primary session cookie value, never logged
	CSRFToken  string `json:"csrfToken,omitempty"`  // secondary token paired with the session cookie
	Selector   string `json:"selector,omitempty"`   // overrides the configured content selector
	MaxTimeout int    `json:"maxTimeout,omitempty"` // overall budget in milliseconds

	// Assist fields. Text lets a caller skip extraction and ask for
	// suggestions on pasted content directly.
	Text       string `json:"text,omitempty"`
	Tone       string `json:"tone,omitempty"`
	MaxReplies int    `json:"maxReplies,omitempty"`
}

// Validate validates the request and returns an error if invalid.
// Limits are deliberately tight to prevent resource exhaustion.
func (r *Request) Validate() error {
	if r.Cmd == "" {
		return fmt.Errorf("cmd is required")
	}
	if len(r.Cmd) > MaxCmdLength {
		return fmt.Errorf("cmd exceeds maximum length of %d", MaxCmdLength)
	}

	switch r.Cmd {
	case CmdContentExtract, CmdContentAssist:
		// Valid command
	default:
		// %q prevents log injection through the cmd field
		return fmt.Errorf("Unknown command: %q", r.Cmd)
	}

	if r.URL != "" {
		if len(r.URL) > MaxURLLength {
			return fmt.Errorf("url exceeds maximum length of %d", MaxURLLength)
		}
		u, err := url.Parse(r.URL)
		if err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
		scheme := strings.ToLower(u.Scheme)
		if scheme != "http" && scheme != "https" {
			return fmt.Errorf("url scheme must be http or https, got: %s", scheme)
		}
	}

	if len(r.AuthToken) > MaxTokenLength {
		return fmt.Errorf("authToken exceeds maximum length of %d", MaxTokenLength)
	}
	if len(r.CSRFToken) > MaxTokenLength {
		return fmt.Errorf("csrfToken exceeds maximum length of %d", MaxTokenLength)
	}
	if len(r.Selector) > MaxSelectorLength {
		return fmt.Errorf("selector exceeds maximum length of %d", MaxSelectorLength)
	}

	if r.MaxTimeout < 0 {
		return fmt.Errorf("maxTimeout cannot be negative")
	}
	if r.MaxTimeout > MaxTimeoutMs {
		return fmt.Errorf("maxTimeout exceeds maximum of %d ms", MaxTimeoutMs)
	}

	if len(r.Text) > MaxPostTextLength {
		return fmt.Errorf("text exceeds maximum length of %d", MaxPostTextLength)
	}
	if len(r.Tone) > MaxToneLength {
		return fmt.Errorf("tone exceeds maximum length of %d", MaxToneLength)
	}
	if r.MaxReplies < 0 {
		return fmt.Errorf("maxReplies cannot be negative")
	}
	if r.MaxReplies > MaxReplySuggestions {
		return fmt.Errorf("maxReplies exceeds maximum of %d", MaxReplySuggestions)
	}

	return nil
}

// Response represents an API response.
type Response struct {
	Status    string        `json:"status"`
	Message   string        `json:"message"`
	StartTime int64         `json:"startTimestamp"`
	EndTime   int64         `json:"endTimestamp"`
	Version   string        `json:"version"`
	Error     string        `json:"error,omitempty"` // machine-readable kind, see errors.go
	Post      *Post         `json:"post,omitempty"`
	Assist    *AssistResult `json:"assist,omitempty"`
}

// Post is the content extracted from a single post page.
type Post struct {
	URL   string   `json:"url"`
	Text  string   `json:"text"`
	Media []string `json:"media,omitempty"` // absolute URLs of images and video posters
}

// AssistResult carries generated reply suggestions.
type AssistResult struct {
	Tone    string   `json:"tone"`
	Model   string   `json:"model,omitempty"`
	Replies []string `json:"replies"`
}

// Commands supported by the API.
const (
	CmdContentExtract = "content.extract"
	CmdContentAssist  = "content.assist"
)

// Status values for API responses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)
