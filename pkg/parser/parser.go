// Package parser turns raw vouch-channel message text into a validated
// attempt. Most channel traffic is not a vouch command, so rejections
// are cheap and silent.
package parser

import (
	"regexp"
	"strings"
	"unicode"
)

// Attempt is a parsed, validated vouch command.
type Attempt struct {
	SubjectID string
	Reason    string
}

// Reject classifies why a message did not become an Attempt.
type Reject string

const (
	RejectNone        Reject = ""
	RejectNotCommand  Reject = "not_command"
	RejectBadSubject  Reject = "bad_subject"
	RejectShortReason Reject = "short_reason"
)

const (
	// MinReasonChars is counted over non-whitespace runes after trimming.
	MinReasonChars = 3
	// MaxReasonLen truncates, never rejects.
	MaxReasonLen = 200
)

// command prefix, optional staff: qualifier, mention or bare numeric id,
// then a single-line reason. Reasons spanning multiple lines do not
// match and the message is ignored.
var vouchRe = regexp.MustCompile(`(?i)^\+vouch\s+(?:staff:\s*)?(<@!?\d+>|\d+)\s+(.+)$`)

var nonDigitRe = regexp.MustCompile(`[^\d]`)

// Parse matches text against the vouch command form and validates the
// subject reference and reason. The caller is expected to have already
// filtered on the designated channel.
func Parse(text string) (Attempt, Reject) {
	content := strings.TrimSpace(text)
	if !strings.HasPrefix(strings.ToLower(content), "+vouch") {
		return Attempt{}, RejectNotCommand
	}
	m := vouchRe.FindStringSubmatch(content)
	if m == nil {
		return Attempt{}, RejectNotCommand
	}
	subject := resolveSubjectRef(m[1])
	if subject == "" {
		return Attempt{}, RejectBadSubject
	}
	reason := strings.TrimSpace(m[2])
	if countNonSpace(reason) < MinReasonChars {
		return Attempt{}, RejectShortReason
	}
	if r := []rune(reason); len(r) > MaxReasonLen {
		reason = string(r[:MaxReasonLen])
	}
	return Attempt{SubjectID: subject, Reason: reason}, RejectNone
}

// resolveSubjectRef unwraps a mention (<@123> or <@!123>) by stripping
// non-digit characters, or accepts a bare numeric id. Anything else
// resolves to empty.
func resolveSubjectRef(raw string) string {
	if strings.HasPrefix(raw, "<@") {
		digits := nonDigitRe.ReplaceAllString(raw, "")
		return digits
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return ""
		}
	}
	if raw == "" {
		return ""
	}
	return raw
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
