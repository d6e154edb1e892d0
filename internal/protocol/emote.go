package protocol

import "regexp"

// Emote markup as embedded in chat message content: [emote:37221:EZ]
var emotePattern = regexp.MustCompile(`\[emote:\d+:([^\]]*)\]`)

// RewriteEmotes replaces emote markup with the emote's plain-text name,
// so "hi [emote:5:Kappa]" becomes "hi Kappa". Content without markup is
// returned unchanged.
func RewriteEmotes(content string) string {
	if !emotePattern.MatchString(content) {
		return content
	}
	return emotePattern.ReplaceAllString(content, "$1")
}
