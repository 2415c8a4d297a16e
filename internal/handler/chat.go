package handler

import (
	"strings"
	"unicode/utf8"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/net"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/world"
	"go.uber.org/zap"
)

const maxChatLength = 256

// HandleChat relays a chat line to everyone near the speaker. Lines
// starting with "/" are console commands.
func HandleChat(sess *net.Session, p *world.Player, r *packet.Reader, deps *Deps) {
	var req packet.ChatRequest
	if err := r.Decode(&req); err != nil {
		return
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return
	}
	if utf8.RuneCountInString(text) > maxChatLength {
		text = string([]rune(text)[:maxChatLength])
	}

	if strings.HasPrefix(text, "/") {
		HandleCommand(sess, p, text, deps)
		return
	}

	deps.Log.Debug("chat", zap.String("username", p.Username), zap.String("message", text))
	deps.World.PushRegions(&p.Entity, packet.Message{Op: packet.OpChat, Data: packet.Chat{
		Source:  p.Username,
		Message: text,
	}})
}
