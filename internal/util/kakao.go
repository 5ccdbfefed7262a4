package util

import "strings"

const (
	KakaoSeeMorePadding = 500
	KakaoZeroWidthSpace = "\u200b"
	// texts longer than this collapse behind "see more" in the KakaoTalk client anyway
	KakaoFoldThreshold = 400
)

// ApplyKakaoSeeMorePadding puts instruction on the visible first line and pushes text
// behind the client's "see more" fold with zero-width padding.
func ApplyKakaoSeeMorePadding(text, instruction string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	lead := strings.TrimSpace(instruction)

	var b strings.Builder
	b.Grow(len(lead) + len(KakaoZeroWidthSpace)*KakaoSeeMorePadding + len(text) + 1)
	b.WriteString(lead)
	b.WriteString(strings.Repeat(KakaoZeroWidthSpace, KakaoSeeMorePadding))
	if !strings.HasPrefix(text, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(text)
	return b.String()
}

// StripLeadingHeader removes header (and the blank line after it) from the start of text.
func StripLeadingHeader(text, header string) string {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(header) == "" {
		return text
	}
	for _, sep := range []string{"\r\n\r\n", "\n\n", "\r\n", "\n", ""} {
		if p := header + sep; strings.HasPrefix(text, p) {
			return strings.TrimPrefix(text, p)
		}
	}
	return text
}

// ApplySeeMoreWithHeader moves the first-line header in front of the fold (plus suffix)
// and folds the rest. fallback is used when header is blank.
func ApplySeeMoreWithHeader(text, header, fallback, suffix string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	lead := strings.TrimSpace(header)
	if lead == "" {
		lead = strings.TrimSpace(fallback)
	} else {
		lead += suffix
	}
	return ApplyKakaoSeeMorePadding(StripLeadingHeader(text, header), lead)
}

// FoldLong folds text only when it is long enough to be cut by the client.
func FoldLong(text, header, suffix string) string {
	if len([]rune(text)) < KakaoFoldThreshold {
		return text
	}
	return ApplySeeMoreWithHeader(text, header, header, suffix)
}
