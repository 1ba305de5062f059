package bot

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"dailydsa/internal/catalog"
	"dailydsa/internal/delivery"
	"dailydsa/internal/eventbus"
	"dailydsa/internal/intake"
	"dailydsa/internal/picker"
	"dailydsa/internal/prefs"
	"dailydsa/internal/schedule"
	kit "dailydsa/internal/transport"
	logx "dailydsa/pkg/logx"
)

type fakeAdapter struct {
	sent []string
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.sent = append(f.sent, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) EditActions(context.Context, kit.MessageRef, []kit.Action) error { return nil }
func (f *fakeAdapter) AnswerCallback(context.Context, string, string) error            { return nil }

func (f *fakeAdapter) last() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type fakeGateway struct {
	items    []catalog.Item
	appended []catalog.Item
}

func (g *fakeGateway) ListItems(context.Context) ([]catalog.Item, error) { return g.items, nil }
func (g *fakeGateway) AppendItem(_ context.Context, it catalog.Item) error {
	g.appended = append(g.appended, it)
	return nil
}
func (g *fakeGateway) Close() error { return nil }

type fixture struct {
	adapter *fakeAdapter
	gateway *fakeGateway
	prefs   *prefs.Store
	sched   *schedule.Scheduler
	router  *Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	a := &fakeAdapter{}
	g := &fakeGateway{items: []catalog.Item{
		{ID: "1_1", Title: "Two Sum", Difficulty: "easy", Topic: "arrays", URL: "https://example.com/1"},
	}}
	store := prefs.NewStore(prefs.Clock{Hour: 9})
	sched, err := schedule.New("UTC", func(context.Context, int64) {}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	bus := eventbus.New()
	d := delivery.New(g, store, picker.New(rand.NewSource(1)), a, bus, logx.Nop())
	in := intake.New(g, bus, logx.Nop())
	return &fixture{
		adapter: a,
		gateway: g,
		prefs:   store,
		sched:   sched,
		router:  NewRouter(a, store, sched, d, in, logx.Nop()),
	}
}

func (f *fixture) send(text string) {
	f.router.handleMessage(context.Background(), &kit.Message{
		ID: 1, ChatID: 42, FromID: 42, FromName: "Ada", Text: text,
	})
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in, cmd, arg string
	}{
		{"/start", "start", ""},
		{"/settime 09:30", "settime", "09:30"},
		{"/level@dailydsabot hard", "level", "hard"},
		{"/Level HARD", "level", "HARD"},
		{"/settime  19:00 ", "settime", "19:00"},
	}
	for _, tc := range cases {
		cmd, arg := splitCommand(tc.in)
		if cmd != tc.cmd || arg != tc.arg {
			t.Errorf("splitCommand(%q) = %q, %q; want %q, %q", tc.in, cmd, arg, tc.cmd, tc.arg)
		}
	}
}

func TestStartInstallsDailyJob(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.send("/start")
	if got := f.sched.Jobs(); got != 1 {
		t.Fatalf("jobs after /start = %d, want 1", got)
	}
	if !strings.Contains(f.adapter.last(), "09:00") {
		t.Errorf("welcome should mention the delivery time: %q", f.adapter.last())
	}

	// Repeat /start replaces, never duplicates.
	f.send("/start")
	if got := f.sched.Jobs(); got != 1 {
		t.Fatalf("jobs after second /start = %d, want 1", got)
	}
}

func TestSetTime(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.send("/settime 19:30")
	if got := f.prefs.GetOrCreate(42).DeliveryTime; got != (prefs.Clock{Hour: 19, Minute: 30}) {
		t.Fatalf("delivery time = %v", got)
	}
	if got := f.sched.Jobs(); got != 1 {
		t.Fatalf("jobs after /settime = %d, want 1", got)
	}

	// Invalid input: rejected, neither prefs nor the job table change.
	f.send("/settime 25:00")
	if !strings.Contains(f.adapter.last(), "HH:MM") {
		t.Errorf("rejection text = %q", f.adapter.last())
	}
	if got := f.prefs.GetOrCreate(42).DeliveryTime; got != (prefs.Clock{Hour: 19, Minute: 30}) {
		t.Fatalf("rejected /settime mutated time to %v", got)
	}
	if got := f.sched.Jobs(); got != 1 {
		t.Fatalf("rejected /settime changed the job table: %d jobs", got)
	}

	// No argument: show current time.
	f.send("/settime")
	if !strings.Contains(f.adapter.last(), "19:30") {
		t.Errorf("status text = %q", f.adapter.last())
	}
}

func TestLevel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.send("/level HARD")
	if got := f.prefs.GetOrCreate(42).Difficulty; got != "hard" {
		t.Fatalf("difficulty = %q", got)
	}

	f.send("/level nope")
	if got := f.prefs.GetOrCreate(42).Difficulty; got != "hard" {
		t.Fatalf("rejected /level mutated difficulty to %q", got)
	}

	f.send("/level default")
	if got := f.prefs.GetOrCreate(42).Difficulty; got != prefs.DifficultyDefault {
		t.Fatalf("difficulty = %q, want default", got)
	}

	f.send("/level")
	if !strings.Contains(f.adapter.last(), "default") {
		t.Errorf("status text = %q", f.adapter.last())
	}
}

func TestTodayDeliversItem(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.send("/today")
	if !strings.Contains(f.adapter.last(), "Two Sum") {
		t.Fatalf("expected a delivery, got %q", f.adapter.last())
	}
}

func TestAddConversationThroughRouter(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.send("/add")
	f.send("Binary Search")
	f.send("easy")
	f.send("search")
	f.send("https://example.com/bs")

	if len(f.gateway.appended) != 1 {
		t.Fatalf("appended %d items, want 1", len(f.gateway.appended))
	}
	if f.gateway.appended[0].Title != "Binary Search" {
		t.Errorf("appended %+v", f.gateway.appended[0])
	}
}

func TestCancelAbortsConversation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.send("/add")
	f.send("Half Entered")
	f.send("/cancel")
	f.send("easy") // no session: ignored, no reply

	if len(f.gateway.appended) != 0 {
		t.Fatal("cancelled conversation persisted an item")
	}
	if !strings.Contains(strings.Join(f.adapter.sent, "\n"), "nothing was added") {
		t.Errorf("missing cancel ack in %q", f.adapter.sent)
	}
}

func TestPlainTextOutsideConversationIsIgnored(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.send("hello bot")
	if len(f.adapter.sent) != 0 {
		t.Fatalf("plain text got a reply: %q", f.adapter.sent)
	}
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.send("/frobnicate")
	if len(f.adapter.sent) != 0 {
		t.Errorf("unknown command got a reply: %q", f.adapter.sent)
	}
}

func TestBareCancelWordAbortsConversation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.send("/add")
	f.send("Half Entered")
	f.send("Cancel")

	if len(f.gateway.appended) != 0 {
		t.Fatal("cancelled conversation persisted an item")
	}
	// Back to normal: plain text is ignored again.
	before := len(f.adapter.sent)
	f.send("easy")
	if len(f.adapter.sent) != before {
		t.Error("plain text after cancel still reached the intake flow")
	}
}
