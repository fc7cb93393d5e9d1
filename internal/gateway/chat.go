package gateway

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/elmerdema/chessgame/internal/match"
)

const (
	mainChatHistory = 100
	maxChatLength   = 500
)

// ChatLine is one message of the main chat.
type ChatLine struct {
	Author     int64  `json:"author"`
	AuthorName string `json:"authorName"`
	Text       string `json:"text"`
	Time       int64  `json:"time"`
}

// mainChat keeps the most recent lines of the server-wide chat.
type mainChat struct {
	mu    sync.Mutex
	lines []ChatLine
	limit int
}

func newMainChat(limit int) *mainChat {
	if limit <= 0 {
		limit = mainChatHistory
	}
	return &mainChat{limit: limit}
}

func (c *mainChat) append(line ChatLine) (ChatLine, error) {
	line.Text = strings.TrimSpace(line.Text)
	if line.Text == "" || utf8.RuneCountInString(line.Text) > maxChatLength {
		return ChatLine{}, fmt.Errorf("%w: chat line must be 1..%d characters", match.ErrIncorrectData, maxChatLength)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	if over := len(c.lines) - c.limit; over > 0 {
		c.lines = append(c.lines[:0:0], c.lines[over:]...)
	}
	return line, nil
}

func (c *mainChat) history() []ChatLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatLine, len(c.lines))
	copy(out, c.lines)
	return out
}
