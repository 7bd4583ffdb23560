package relay

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/npezzotti/chat-relay/internal/types"
)

// url patterns match scheme+host links plus the shortener and invite
// hosts people actually paste into chat
var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)https?://\S+`),
	regexp.MustCompile(`(?i)www\.\S+\.[a-z]{2,}`),
	regexp.MustCompile(`(?i)discord\.gg/\S+`),
	regexp.MustCompile(`(?i)\b(?:bit\.ly|t\.co|youtu\.be)/\S+`),
}

var (
	mentionTokenRe = regexp.MustCompile(`<@[!&]?\d+>`)
	broadcastRe    = regexp.MustCompile(`@(everyone|here)`)
	customEmojiRe  = regexp.MustCompile(`<a?(:\w+:)\d+>`)
	blankRunsRe    = regexp.MustCompile(`\n{3,}`)
)

var defaultBlockedWords = []string{
	"spam", "hack", "cheat", "exploit", "scam", "fraud", "phishing",
	"malware", "get rich quick", "free money",
}

type FilterInput struct {
	Content     string
	Attachments []types.Attachment
	HasMentions bool
}

type FilterResult struct {
	Content     string
	Attachments []types.Attachment
}

// ContentFilter applies a room's permission rules to a message. Pure:
// same input, same verdict.
type ContentFilter struct {
	blockedWords []string
}

func NewContentFilter(blockedWords []string) *ContentFilter {
	if blockedWords == nil {
		blockedWords = defaultBlockedWords
	}

	return &ContentFilter{blockedWords: blockedWords}
}

// Apply runs the rules in order; the first violation wins.
func (f *ContentFilter) Apply(perms types.RoomPermissions, in FilterInput) (FilterResult, *PolicyError) {
	content := normalize(in.Content)

	if len([]rune(content)) > perms.MaxMessageLength {
		return FilterResult{}, ErrTooLong
	}

	if !perms.AllowURLs && containsURL(content) {
		return FilterResult{}, ErrUrlsDisallowed
	}

	if !perms.AllowFiles && len(in.Attachments) > 0 {
		return FilterResult{}, ErrAttachmentsDisallowed
	}

	if !perms.AllowMentions {
		content = stripMentions(content)
	}

	if !perms.AllowEmojis {
		content = customEmojiRe.ReplaceAllString(content, "$1")
	}

	if perms.EnableBadWordFilter && f.containsBlockedWord(content) {
		return FilterResult{}, ErrBannedWord
	}

	return FilterResult{Content: content, Attachments: in.Attachments}, nil
}

func (f *ContentFilter) containsBlockedWord(content string) bool {
	lower := strings.ToLower(content)
	for _, word := range f.blockedWords {
		if strings.Contains(lower, word) {
			return true
		}
	}

	return false
}

func containsURL(content string) bool {
	for _, re := range urlPatterns {
		if re.MatchString(content) {
			return true
		}
	}

	return false
}

// stripMentions drops mention tokens to their non-pinging text form.
func stripMentions(content string) string {
	content = mentionTokenRe.ReplaceAllString(content, "@user")
	// zero-width space breaks the broadcast trigger without changing
	// what the reader sees
	content = broadcastRe.ReplaceAllString(content, "@​$1")

	return content
}

// normalize trims control characters and surrounding whitespace and
// collapses runs of blank lines, preserving user-visible markup.
func normalize(content string) string {
	content = strings.TrimFunc(content, func(r rune) bool {
		return unicode.IsControl(r) || unicode.IsSpace(r)
	})
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = blankRunsRe.ReplaceAllString(content, "\n\n")

	return content
}
