// Package chat decides whether a player's chat submission may enter the
// broadcast pipeline: character set, ordering, last-seen acknowledgments,
// the signing chain, backpressure and spam.
package chat

import (
	"unicode/utf8"

	"github.com/Versifine/warden/internal/kick"
	"github.com/Versifine/warden/internal/protocol"
)

// IsAllowedCharacter rejects the section sign, control characters and DEL.
func IsAllowedCharacter(r rune) bool {
	return r != '§' && r >= ' ' && r != 0x7f
}

// ValidateText returns kick.IllegalCharacters when s cannot be chat.
func ValidateText(s string) error {
	if !utf8.ValidString(s) || utf8.RuneCountInString(s) > protocol.MaxChatLength {
		return kick.IllegalCharacters
	}
	for _, r := range s {
		if !IsAllowedCharacter(r) {
			return kick.IllegalCharacters
		}
	}
	return nil
}
