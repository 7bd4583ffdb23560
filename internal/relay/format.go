package relay

import (
	"fmt"
	"strings"

	"github.com/npezzotti/chat-relay/internal/types"
)

// Envelope grammar. These markers are a wire format: every relayed
// message must parse back to (author, content), so changing any of
// them is a breaking change gated by the version marker.
const (
	versionMarker = "⟦v1⟧ "
	replyStart    = "┌─ Replying to "
	replyMid      = ": *"
	replyEnd      = "*\n└─ "
	authorStart   = " • **"
	authorEnd     = "**: "
	imageMarker   = "\n🖼️ Image: "
	fileMarker    = "\n📎 Attachment: "
	badgeMarker   = "\n— "

	quoteLimit         = 80
	defaultEnvelopeMax = 2000
)

type EnvelopeData struct {
	AuthorDisplay string
	Body          string
	Permalink     string
	GuildName     string
	Attachments   []types.Attachment
	Reply         *types.ReplyContext
}

type ParsedEnvelope struct {
	AuthorDisplay string
	Body          string
	ReplyAuthor   string
	ReplyQuote    string
	HasReply      bool
}

func Permalink(guildId, channelId, messageId string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildId, channelId, messageId)
}

// FormatEnvelope renders the canonical relayed message. Overflow is
// resolved by truncating the body with an ellipsis, never by dropping
// headers.
func FormatEnvelope(e EnvelopeData, maxLen int) string {
	if maxLen <= 0 {
		maxLen = defaultEnvelopeMax
	}

	body := e.Body
	for {
		var b strings.Builder
		b.WriteString(versionMarker)

		if e.Reply != nil {
			b.WriteString(replyStart)
			b.WriteString(e.Reply.AuthorDisplay)
			b.WriteString(replyMid)
			b.WriteString(truncateQuote(e.Reply.QuotedText))
			b.WriteString(replyEnd)
		}

		b.WriteString(e.Permalink)
		b.WriteString(authorStart)
		b.WriteString(e.AuthorDisplay)
		b.WriteString(authorEnd)
		b.WriteString(body)

		if len(e.Attachments) > 0 {
			a := e.Attachments[0]
			if strings.HasPrefix(a.ContentType, "image/") {
				b.WriteString(imageMarker)
				b.WriteString(a.URL)
			} else {
				b.WriteString(fileMarker)
				fmt.Fprintf(&b, "[%s](%s)", a.Filename, a.URL)
			}
		}

		if e.GuildName != "" {
			b.WriteString(badgeMarker)
			b.WriteString(e.GuildName)
		}

		out := b.String()
		overflow := len([]rune(out)) - maxLen
		if overflow <= 0 {
			return out
		}

		bodyRunes := []rune(body)
		keep := len(bodyRunes) - overflow - 1
		if keep < 0 {
			keep = 0
		}
		body = string(bodyRunes[:keep]) + "…"
	}
}

// ParseEnvelope decodes one of our own relayed messages back to its
// author and content. Returns false for anything that is not an
// envelope.
func ParseEnvelope(content string) (ParsedEnvelope, bool) {
	var parsed ParsedEnvelope

	// tolerate unmarked envelopes from before the version marker
	if strings.HasPrefix(content, "⟦") {
		if end := strings.Index(content, "⟧ "); end >= 0 {
			content = content[end+len("⟧ "):]
		}
	}

	main := content
	if strings.Contains(content, replyStart) && strings.Contains(content, replyEnd) {
		head, rest, _ := strings.Cut(content, replyEnd)
		if reply, found := strings.CutPrefix(head, replyStart); found {
			if author, quote, ok := strings.Cut(reply, replyMid); ok {
				parsed.HasReply = true
				parsed.ReplyAuthor = author
				parsed.ReplyQuote = strings.TrimSpace(quote)
			}
		}
		main = rest
	}

	start := strings.Index(main, authorStart)
	if start < 0 {
		return ParsedEnvelope{}, false
	}

	rest := main[start+len(authorStart):]
	author, body, ok := strings.Cut(rest, authorEnd)
	if !ok || author == "" {
		return ParsedEnvelope{}, false
	}

	for _, marker := range []string{imageMarker, fileMarker, badgeMarker} {
		if idx := strings.Index(body, marker); idx >= 0 {
			body = body[:idx]
		}
	}

	parsed.AuthorDisplay = author
	parsed.Body = strings.TrimSpace(body)

	return parsed, true
}

// truncateQuote caps the quoted reply segment and flattens markup so
// the quote cannot break the envelope grammar.
func truncateQuote(quote string) string {
	quote = strings.ReplaceAll(quote, "*", "")
	quote = strings.Join(strings.Fields(quote), " ")

	runes := []rune(quote)
	if len(runes) > quoteLimit {
		quote = string(runes[:quoteLimit-1]) + "…"
	}

	return quote
}
