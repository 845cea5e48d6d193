package common

import (
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Discord caps messages at 2000 characters; leave headroom for formatting.
const maxMessageLength = 1950

const (
	// ReactSuccess acknowledges a command that completed.
	ReactSuccess = "✅"
	// ReactFailure acknowledges a command that failed.
	ReactFailure = "❌"
)

// SendChunked sends content to a channel, splitting on line boundaries when
// it exceeds the platform message limit.
func SendChunked(s *discordgo.Session, channelID, content string) {
	for _, chunk := range splitMessage(content) {
		if _, err := s.ChannelMessageSend(channelID, chunk); err != nil {
			log.Errorf("Error sending message to channel %s: %v", channelID, err)
			return
		}
	}
}

// React marks the invoking message with a success or failure indicator.
func React(s *discordgo.Session, channelID, messageID, emoji string) {
	if err := s.MessageReactionAdd(channelID, messageID, emoji); err != nil {
		log.Errorf("Error adding reaction to message %s: %v", messageID, err)
	}
}

func splitMessage(content string) []string {
	if len(content) <= maxMessageLength {
		return []string{content}
	}

	var chunks []string
	for len(content) > maxMessageLength {
		cut := maxMessageLength
		for i := maxMessageLength; i > 0; i-- {
			if content[i] == '\n' {
				cut = i
				break
			}
		}
		if content[cut] != '\n' {
			// Hard split with no line break available: back off so a
			// multi-byte rune is never cut in half.
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
		}
		chunks = append(chunks, content[:cut])
		if cut < len(content) && content[cut] == '\n' {
			cut++
		}
		content = content[cut:]
	}
	if len(content) > 0 {
		chunks = append(chunks, content)
	}
	return chunks
}
