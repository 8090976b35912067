package service

import (
	"regexp"
	"strings"

	"crabber/internal/feed"
)

var (
	tagPattern     = regexp.MustCompile(`(?:^|[^\w%])%(\w{1,64})`)
	mentionPattern = regexp.MustCompile(`(?:^|[^\w@])@(\w{3,32})`)
	urlPattern     = regexp.MustCompile(`https?://[^\s<>"']+`)
)

// ExtractTags returns the normalised crabtags written as %name, first occurrence order.
func ExtractTags(content string) []string {
	return uniqueMatches(tagPattern, content, feed.NormalizeTag)
}

// ExtractMentions returns the usernames written as @name, first occurrence order.
func ExtractMentions(content string) []string {
	return uniqueMatches(mentionPattern, content, strings.ToLower)
}

// FirstURL returns the first http(s) link in content without trailing punctuation.
func FirstURL(content string) string {
	u := urlPattern.FindString(content)
	return strings.TrimRight(u, ".,;:!?)]}")
}

func uniqueMatches(re *regexp.Regexp, content string, norm func(string) string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range re.FindAllStringSubmatch(content, -1) {
		v := norm(m[1])
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
