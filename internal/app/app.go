// Package app wires configuration, transport, catalog, scheduling and the
// command router into one runnable bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"dailydsa/internal/bot"
	"dailydsa/internal/catalog"
	"dailydsa/internal/config"
	"dailydsa/internal/delivery"
	"dailydsa/internal/eventbus"
	"dailydsa/internal/intake"
	"dailydsa/internal/picker"
	"dailydsa/internal/prefs"
	rtsup "dailydsa/internal/runtime/supervisor"
	"dailydsa/internal/schedule"
	kit "dailydsa/internal/transport"
	"dailydsa/internal/transport/telegram"
	logx "dailydsa/pkg/logx"
)

const (
	defaultDeliveryTime = "09:00"
	defaultTimezone     = "Local"
	updateQueueSize     = 256
	shutdownGrace       = 10 * time.Second
)

type App struct {
	cfgm   *config.Manager
	logsvc *logx.Service
	log    logx.Logger

	adapter *telegram.Adapter
	catalog catalog.Gateway
	prefs   *prefs.Store
	sched   *schedule.Scheduler
	deliver *delivery.Deliverer
	intake  *intake.Manager
	router  *bot.Router
	bus     eventbus.Bus

	sup     *rtsup.Supervisor
	updates chan kit.Update
}

// New loads and validates the config file and builds every component. Nothing
// starts running until Run.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgPath, err)
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	busyTimeout, err := config.ParseDurationField("catalog.busy_timeout", cfg.Catalog.BusyTimeout)
	if err != nil {
		return nil, err
	}

	boot := logx.NewConsole(cfg.Logging.Level)
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, boot)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	logsvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}, adapter)
	if chatID := parseChatID(cfg.Telegram.GroupLog); chatID != 0 {
		logsvc.SetTelegramTarget(chatID)
	}

	gateway, err := catalog.Open(catalog.Config{
		Driver:      cfg.Catalog.Driver,
		Path:        cfg.Catalog.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "catalog")))
	if err != nil {
		_ = logsvc.Close()
		return nil, fmt.Errorf("catalog: %w", err)
	}

	defClock, _ := prefs.ParseClock(orDefault(cfg.Delivery.DefaultTime, defaultDeliveryTime))
	store := prefs.NewStore(defClock)
	bus := eventbus.New()
	pick := picker.New(rand.NewSource(time.Now().UnixNano()))

	a := &App{
		cfgm:    cfgm,
		logsvc:  logsvc,
		log:     log,
		adapter: adapter,
		catalog: gateway,
		prefs:   store,
		bus:     bus,
	}

	a.deliver = delivery.New(gateway, store, pick, adapter, bus,
		log.With(logx.String("comp", "delivery")))

	a.sched, err = schedule.New(
		orDefault(cfg.Delivery.Timezone, defaultTimezone),
		a.dailyFire,
		log.With(logx.String("comp", "schedule")))
	if err != nil {
		_ = gateway.Close()
		_ = logsvc.Close()
		return nil, err
	}

	a.intake = intake.New(gateway, bus, log.With(logx.String("comp", "intake")))
	a.router = bot.NewRouter(adapter, store, a.sched, a.deliver, a.intake,
		log.With(logx.String("comp", "router")))

	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error { return validate(c) })

	return a, nil
}

// dailyFire handles one scheduled delivery. Chats are direct messages, so the
// chat id equals the user id.
func (a *App) dailyFire(ctx context.Context, userID int64) {
	_ = a.deliver.Deliver(ctx, userID, userID, "daily")
}

// Run starts everything and blocks until ctx is cancelled or a supervised
// goroutine fails, then shuts down in reverse order.
func (a *App) Run(ctx context.Context) error {
	sup := rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "app"))),
		rtsup.WithCancelOnError(true))
	a.sup = sup
	a.updates = make(chan kit.Update, updateQueueSize)

	if err := a.adapter.Start(sup.Context(), a.updates); err != nil {
		a.shutdown()
		return fmt.Errorf("start telegram: %w", err)
	}
	a.sched.Start(sup.Context())

	sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})
	sup.Go("config.watch", a.cfgm.Watch)
	sup.Go0("config.reload", a.reloadLoop)
	sup.Go0("events.mirror", a.eventLoop)
	sup.Go0("menu.publish", func(c context.Context) {
		if err := a.adapter.UpdateMenuCommands(c, bot.MenuCommands()); err != nil {
			a.log.Warn("menu publish failed", logx.Err(err))
		}
	})

	a.log.Info("bot started")
	<-sup.Context().Done()
	a.shutdown()

	if err := sup.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) shutdown() {
	a.log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := a.adapter.Stop(sctx); err != nil {
		a.log.Warn("telegram stop failed", logx.Err(err))
	}
	a.sched.Stop(sctx)
	if a.sup != nil {
		_ = a.sup.Stop(sctx)
	}
	if err := a.catalog.Close(); err != nil {
		a.log.Warn("catalog close failed", logx.Err(err))
	}
	a.log.Info("bye")
	_ = a.logsvc.Close()
}

// reloadLoop applies hot-reloadable settings from config file changes:
// logging sinks/levels and the default delivery time for new users. Telegram
// token, catalog backend and timezone changes still need a restart.
func (a *App) reloadLoop(ctx context.Context) {
	ch := a.cfgm.Subscribe(1)
	defer a.cfgm.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-ch:
			if !ok || cfg == nil {
				return
			}
			a.logsvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
				Telegram: logx.TelegramConfig{
					Enabled:    cfg.Logging.Telegram.Enabled,
					MinLevel:   cfg.Logging.Telegram.MinLevel,
					RatePerSec: cfg.Logging.Telegram.RatePerSec,
				},
			})
			if chatID := parseChatID(cfg.Telegram.GroupLog); chatID != 0 {
				a.logsvc.SetTelegramTarget(chatID)
			}
			if c, err := prefs.ParseClock(orDefault(cfg.Delivery.DefaultTime, defaultDeliveryTime)); err == nil {
				a.prefs.SetDefaultTime(c)
			}
			a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded})
			a.log.Info("runtime settings applied")
		}
	}
}

// eventLoop mirrors bus traffic into debug logs. Cheap visibility into what
// the bot is doing without grepping per-component logs.
func (a *App) eventLoop(ctx context.Context) {
	ch, unsub := a.bus.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			a.log.Debug("event",
				logx.String("type", ev.Type),
				logx.Int64("user_id", ev.UserID),
				logx.String("item_id", ev.ItemID))
		}
	}
}

func validate(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("empty config")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("catalog.busy_timeout", cfg.Catalog.BusyTimeout); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Catalog.Driver)) {
	case "", "sqlite", "sqlite3", "file":
	default:
		return fmt.Errorf("unknown catalog driver %q", cfg.Catalog.Driver)
	}
	if strings.TrimSpace(cfg.Catalog.Path) == "" {
		return errors.New("catalog.path is required")
	}
	if tz := strings.TrimSpace(cfg.Delivery.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("delivery.timezone: %w", err)
		}
	}
	if t := strings.TrimSpace(cfg.Delivery.DefaultTime); t != "" {
		if _, err := prefs.ParseClock(t); err != nil {
			return fmt.Errorf("delivery.default_time: %w", err)
		}
	}
	if gl := strings.TrimSpace(cfg.Telegram.GroupLog); gl != "" && parseChatID(gl) == 0 {
		return fmt.Errorf("telegram.group_log: not a chat id: %q", gl)
	}
	return nil
}

func parseChatID(s string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
