package parser

import (
	"strings"
	"testing"
)

func TestParseMentionForms(t *testing.T) {
	cases := []struct {
		in      string
		subject string
	}{
		{"+vouch <@123456> great trader", "123456"},
		{"+vouch <@!123456> great trader", "123456"},
		{"+vouch 123456 great trader", "123456"},
		{"+vouch staff: <@123456> great trader", "123456"},
		{"+VOUCH <@123456> great trader", "123456"},
		{"  +vouch <@123456> great trader  ", "123456"},
	}
	for _, c := range cases {
		got, rej := Parse(c.in)
		if rej != RejectNone {
			t.Fatalf("Parse(%q) rejected: %s", c.in, rej)
		}
		if got.SubjectID != c.subject {
			t.Fatalf("Parse(%q) subject = %q, want %q", c.in, got.SubjectID, c.subject)
		}
		if got.Reason != "great trader" {
			t.Fatalf("Parse(%q) reason = %q", c.in, got.Reason)
		}
	}
}

func TestParseNotCommand(t *testing.T) {
	for _, in := range []string{
		"",
		"hello there",
		"vouch <@123> nice",
		"+vouchx <@123> nice",
		"+vouch",
		"+vouch <@123>",
		"+vouch notanid great trader",
	} {
		if _, rej := Parse(in); rej != RejectNotCommand {
			t.Fatalf("Parse(%q) = %s, want not_command", in, rej)
		}
	}
}

func TestParseShortReason(t *testing.T) {
	if _, rej := Parse("+vouch <@123> ok"); rej != RejectShortReason {
		t.Fatalf("two-char reason: got %s, want short_reason", rej)
	}
	// whitespace does not count toward the minimum
	if _, rej := Parse("+vouch <@123> a  b"); rej != RejectShortReason {
		t.Fatalf("padded reason: got %s, want short_reason", rej)
	}
	if _, rej := Parse("+vouch <@123> a b c"); rej != RejectNone {
		t.Fatalf("three non-space chars: got %s, want accept", rej)
	}
}

func TestParseReasonTruncation(t *testing.T) {
	long := strings.Repeat("x", 500)
	got, rej := Parse("+vouch <@123> " + long)
	if rej != RejectNone {
		t.Fatalf("long reason rejected: %s", rej)
	}
	if len([]rune(got.Reason)) != MaxReasonLen {
		t.Fatalf("reason length = %d, want %d", len([]rune(got.Reason)), MaxReasonLen)
	}
}

func TestParseMultilineReasonIgnored(t *testing.T) {
	// a reason spanning lines is not a vouch command
	if _, rej := Parse("+vouch <@123> line one\nline two"); rej != RejectNotCommand {
		t.Fatalf("multiline reason: got %s, want not_command", rej)
	}
	// a trailing newline alone is fine, the input is trimmed first
	got, rej := Parse("+vouch <@123> solid work\n")
	if rej != RejectNone {
		t.Fatalf("trailing newline rejected: %s", rej)
	}
	if got.Reason != "solid work" {
		t.Fatalf("reason = %q", got.Reason)
	}
}
