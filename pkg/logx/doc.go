// Package logx provides the bot's structured logging layer on top of zerolog.
//
// It exposes a small Logger value with Field helpers and a Service that owns
// the configured sinks (console, file, Telegram). Sinks can be swapped at
// runtime via Apply() without invalidating loggers already handed out.
package logx
