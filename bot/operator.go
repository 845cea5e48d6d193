package bot

import (
	"strconv"
	"strings"

	"gamechannels/bot/common"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Number of log lines returned by the operator "log" command.
const logTailLines = 50

// handleOperatorMessage serves the private operator surface. Only the
// configured admin may use it; everything else is ignored silently.
func (b *Bot) handleOperatorMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	userID, err := strconv.ParseInt(m.Author.ID, 10, 64)
	if err != nil || b.config.AdminID == 0 || userID != b.config.AdminID {
		return
	}

	switch strings.ToLower(strings.TrimSpace(m.Content)) {
	case "log":
		lines := b.logs.Tail(logTailLines)
		if len(lines) == 0 {
			common.SendChunked(s, m.ChannelID, "Log buffer is empty.")
			return
		}
		common.SendChunked(s, m.ChannelID, "```\n"+strings.Join(lines, "\n")+"\n```")

	case "exit":
		log.Infof("Shutdown requested by operator %d", userID)
		common.SendChunked(s, m.ChannelID, "Shutting down.")
		if b.requestShutdown != nil {
			b.requestShutdown()
		}
	}
}
