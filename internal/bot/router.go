// Package bot routes inbound chat updates to command handlers, the intake
// conversation and the delivery action callbacks.
package bot

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"dailydsa/internal/delivery"
	"dailydsa/internal/intake"
	"dailydsa/internal/prefs"
	"dailydsa/internal/schedule"
	kit "dailydsa/internal/transport"
	logx "dailydsa/pkg/logx"
)

const handlerTimeout = 30 * time.Second

const helpText = `What I can do:
/today - get your problem of the day
/another - get one more problem right now
/level <easy|medium|hard|default> - set your difficulty filter
/settime <HH:MM> - change your daily delivery time
/add - add a new problem to the catalog
/cancel - abort adding a problem`

// Router dispatches updates on a bounded worker pool so one slow handler
// cannot stall the update stream.
type Router struct {
	adapter kit.Adapter
	prefs   *prefs.Store
	sched   *schedule.Scheduler
	deliver *delivery.Deliverer
	intake  *intake.Manager
	log     logx.Logger

	jobs chan func()
}

func NewRouter(adapter kit.Adapter, store *prefs.Store, sched *schedule.Scheduler, d *delivery.Deliverer, in *intake.Manager, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		adapter: adapter,
		prefs:   store,
		sched:   sched,
		deliver: d,
		intake:  in,
		log:     log,
		jobs:    make(chan func(), 256),
	}
}

// MenuCommands is the command menu published to the chat platform.
func MenuCommands() []kit.BotCommand {
	return []kit.BotCommand{
		{Command: "start", Description: "Subscribe to a daily problem"},
		{Command: "today", Description: "Get today's problem"},
		{Command: "another", Description: "Get one more problem"},
		{Command: "level", Description: "Set difficulty filter"},
		{Command: "settime", Description: "Set daily delivery time"},
		{Command: "add", Description: "Add a problem to the catalog"},
		{Command: "cancel", Description: "Abort adding a problem"},
		{Command: "help", Description: "Show available commands"},
	}
}

// DispatchLoop consumes updates until ctx is cancelled or the channel closes.
// Runs under the app supervisor.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	r.log.Info("dispatcher started", logx.Int("workers", workers))

	done := make(chan struct{})
	defer close(done)
	for i := 0; i < workers; i++ {
		go r.worker(ctx, i, done)
	}

	for {
		select {
		case <-ctx.Done():
			r.log.Info("dispatcher stopped")
			return nil
		case up, ok := <-updates:
			if !ok {
				r.log.Info("dispatcher stopped (updates channel closed)")
				return nil
			}
			r.enqueue(ctx, up)
		}
	}
}

func (r *Router) worker(ctx context.Context, idx int, done <-chan struct{}) {
	name := "worker." + strconv.Itoa(idx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case job := <-r.jobs:
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						r.log.Error("panic in update handler",
							logx.String("worker", name),
							logx.Any("panic", rec),
							logx.Stack(string(debug.Stack())))
					}
				}()
				job()
			}()
		}
	}
}

func (r *Router) enqueue(root context.Context, up kit.Update) {
	job := func() {
		ctx, cancel := context.WithTimeout(root, handlerTimeout)
		defer cancel()
		r.handle(ctx, up)
	}
	select {
	case r.jobs <- job:
	default:
		r.log.Warn("update dropped, job queue full")
	}
}

func (r *Router) handle(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			r.handleMessage(ctx, up.Message)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			r.deliver.Resolve(ctx, up.Callback)
		}
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *kit.Message) {
	text := strings.TrimSpace(msg.Text)

	if !strings.HasPrefix(text, "/") {
		// Plain text only means something mid-conversation. The bare word
		// "cancel" works like /cancel there.
		if r.intake.Active(msg.FromID) {
			if strings.EqualFold(text, "cancel") {
				if ack, ok := r.intake.Cancel(msg.FromID); ok {
					r.reply(ctx, msg, ack)
				}
				return
			}
			r.reply(ctx, msg, r.intake.HandleInput(ctx, msg.FromID, text))
		}
		return
	}

	cmd, arg := splitCommand(text)
	log := r.log.With(logx.Int64("user_id", msg.FromID), logx.String("command", cmd))

	switch cmd {
	case "start":
		r.cmdStart(ctx, msg, log)
	case "today":
		_ = r.deliver.Deliver(ctx, msg.FromID, msg.ChatID, "today")
	case "another":
		_ = r.deliver.Deliver(ctx, msg.FromID, msg.ChatID, "another")
	case "level":
		r.cmdLevel(ctx, msg, arg)
	case "settime":
		r.cmdSetTime(ctx, msg, arg, log)
	case "add":
		r.reply(ctx, msg, r.intake.Begin(msg.FromID))
	case "cancel":
		if ack, ok := r.intake.Cancel(msg.FromID); ok {
			r.reply(ctx, msg, ack)
		} else {
			r.reply(ctx, msg, "Nothing to cancel.")
		}
	case "help":
		r.reply(ctx, msg, helpText)
	default:
		log.Debug("unknown command ignored")
	}
}

// cmdStart creates the user's record and installs their daily job. Repeat
// /start is harmless: the job is replaced at the same time.
func (r *Router) cmdStart(ctx context.Context, msg *kit.Message, log logx.Logger) {
	snap := r.prefs.GetOrCreate(msg.FromID)
	if err := r.sched.InstallOrReplace(msg.FromID, snap.DeliveryTime); err != nil {
		log.Error("daily job install failed", logx.Err(err))
		r.reply(ctx, msg, "Something went wrong setting up your daily delivery, try again later.")
		return
	}
	name := strings.TrimSpace(msg.FromName)
	if name == "" {
		name = "there"
	}
	r.reply(ctx, msg, fmt.Sprintf(
		"Hi %s! I'll send you one problem every day at %s.\nUse /today to get one right now, /settime to change the time, /help for everything else.",
		name, snap.DeliveryTime))
	log.Info("user subscribed", logx.String("at", snap.DeliveryTime.String()))
}

func (r *Router) cmdLevel(ctx context.Context, msg *kit.Message, arg string) {
	if arg == "" {
		snap := r.prefs.GetOrCreate(msg.FromID)
		r.reply(ctx, msg, fmt.Sprintf(
			"Your difficulty filter is %q.\nChange it with /level easy, /level medium, /level hard or /level default.",
			snap.Difficulty))
		return
	}
	norm, err := r.prefs.SetDifficulty(msg.FromID, arg)
	if err != nil {
		r.reply(ctx, msg, fmt.Sprintf("%q isn't a difficulty I know. Use easy, medium, hard or default.", arg))
		return
	}
	if norm == prefs.DifficultyDefault {
		r.reply(ctx, msg, "Filter cleared, you'll get problems of any difficulty.")
		return
	}
	r.reply(ctx, msg, fmt.Sprintf("Done, you'll get %s problems from now on.", norm))
}

func (r *Router) cmdSetTime(ctx context.Context, msg *kit.Message, arg string, log logx.Logger) {
	if arg == "" {
		snap := r.prefs.GetOrCreate(msg.FromID)
		r.reply(ctx, msg, fmt.Sprintf("Your delivery time is %s. Change it with /settime HH:MM.", snap.DeliveryTime))
		return
	}
	c, err := r.prefs.SetDeliveryTime(msg.FromID, arg)
	if err != nil {
		r.reply(ctx, msg, fmt.Sprintf("%q doesn't look like a time. Use HH:MM, e.g. /settime 09:30.", arg))
		return
	}
	if err := r.sched.InstallOrReplace(msg.FromID, c); err != nil {
		log.Error("daily job reschedule failed", logx.Err(err))
		r.reply(ctx, msg, "Saved the time, but rescheduling failed. Try /start to reinstall your daily delivery.")
		return
	}
	r.reply(ctx, msg, fmt.Sprintf("Got it, your daily problem now arrives at %s.", c))
}

func (r *Router) reply(ctx context.Context, msg *kit.Message, text string) {
	if text == "" {
		return
	}
	if _, err := r.adapter.SendText(ctx, kit.ChatTarget{ChatID: msg.ChatID}, text, nil); err != nil {
		r.log.Warn("reply failed",
			logx.Int64("chat_id", msg.ChatID),
			logx.Err(err))
	}
}

// splitCommand parses "/cmd@botname arg rest" into ("cmd", "arg rest").
func splitCommand(text string) (cmd, arg string) {
	cmd, arg, _ = strings.Cut(text, " ")
	cmd = strings.TrimPrefix(cmd, "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}
