package main

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/capitalize-ai/shop-assistant/internal/assistant"
	"github.com/capitalize-ai/shop-assistant/internal/model"
)

var (
	userLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true)

	bubbleStyle = lipgloss.NewStyle().
			Padding(0, 2).
			MarginBottom(1)

	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	boldStyle = lipgloss.NewStyle().Bold(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	typingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
)

var boldMarkup = regexp.MustCompile(`\*\*(.+?)\*\*`)

// renderMessage draws one chat bubble.
func renderMessage(m model.Message) string {
	label := assistantLabelStyle.Render("Trợ lý")
	if m.Role == model.RoleUser {
		label = userLabelStyle.Render("Bạn")
	}
	stamp := metaStyle.Render(m.CreatedAt.Local().Format("15:04"))
	return fmt.Sprintf("%s %s\n%s", label, stamp, bubbleStyle.Render(renderMarkdown(messageText(m))))
}

// messageText expands a structured message into the text a terminal can
// show. A payload that does not decode falls back to the message content.
func messageText(m model.Message) string {
	if !m.IsStructured() {
		return m.Content
	}

	switch m.Kind {
	case model.RenderProductList:
		var p assistant.ProductListPayload
		if err := json.Unmarshal(m.Payload, &p); err == nil {
			return assistant.FormatProductList(p.Products)
		}
	case model.RenderProductDetail:
		var p assistant.ProductDetailPayload
		if err := json.Unmarshal(m.Payload, &p); err == nil {
			return assistant.FormatProductDetails(p.Product)
		}
	case model.RenderCartView:
		var p assistant.CartPayload
		if err := json.Unmarshal(m.Payload, &p); err == nil {
			return assistant.FormatCart(p.Cart)
		}
	}
	return m.Content
}

// renderMarkdown styles the little markdown the assistant emits: "## "
// headings and **bold** spans.
func renderMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if heading, ok := strings.CutPrefix(line, "## "); ok {
			lines[i] = headingStyle.Render(heading)
			continue
		}
		lines[i] = boldMarkup.ReplaceAllStringFunc(line, func(span string) string {
			return boldStyle.Render(strings.Trim(span, "*"))
		})
	}
	return strings.Join(lines, "\n")
}

// typingIndicator shows "Trợ lý đang nhập..." while a turn is running.
// Typing events arrive on another goroutine, so events that land after the
// turn has been printed are ignored.
type typingIndicator struct {
	mu     sync.Mutex
	out    io.Writer
	active bool
	shown  bool
}

func newTypingIndicator(out io.Writer) *typingIndicator {
	return &typingIndicator{out: out}
}

// Begin marks the start of a turn.
func (t *typingIndicator) Begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = true
}

// End clears the indicator and ignores typing events until the next turn.
func (t *typingIndicator) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	t.clear()
}

// Set applies one typing event.
func (t *typingIndicator) Set(typing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case typing && t.active && !t.shown:
		fmt.Fprint(t.out, typingStyle.Render("Trợ lý đang nhập..."))
		t.shown = true
	case !typing:
		t.clear()
	}
}

func (t *typingIndicator) clear() {
	if t.shown {
		fmt.Fprint(t.out, "\r\033[K")
		t.shown = false
	}
}
