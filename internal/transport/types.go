// Package transport defines the chat-platform-agnostic types the rest of the
// bot is written against. The Telegram implementation lives in the telegram
// subpackage; nothing outside it imports telebot.
package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	FromName     string
	Text         string
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Action is an inline button attached to an outbound message. Data is the
// opaque payload echoed back in a Callback when the button is pressed.
type Action struct {
	Label string
	Data  string
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Actions        []Action // rendered as a single inline keyboard row
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	// EditActions replaces the inline keyboard of a sent message.
	// A nil actions slice removes the keyboard.
	EditActions(ctx context.Context, ref MessageRef, actions []Action) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// BotCommand is a single entry in the platform's command menu.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional adapter capability for publishing the
// command menu (Telegram setMyCommands).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
