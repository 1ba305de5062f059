// Package delivery turns a scheduled fire or an explicit request into one
// recommendation message: snapshot the user's preferences, pick an item and
// send it with its action buttons.
package delivery

import (
	"context"
	"fmt"
	"strings"

	"dailydsa/internal/catalog"
	"dailydsa/internal/eventbus"
	"dailydsa/internal/picker"
	"dailydsa/internal/prefs"
	kit "dailydsa/internal/transport"
	logx "dailydsa/pkg/logx"
)

// Action verbs echoed back in callback payloads.
const (
	VerbDone    = "done"
	VerbLater   = "later"
	VerbDiscard = "discard"
)

const actionPrefix = "action_"

// EncodeAction builds a callback payload. Item ids may contain underscores,
// so ParseAction splits on the first two only.
func EncodeAction(verb, itemID string) string {
	return actionPrefix + verb + "_" + itemID
}

// ParseAction decodes a callback payload into verb and item id. Returns
// ok=false for payloads this bot did not produce.
func ParseAction(data string) (verb, itemID string, ok bool) {
	rest, found := strings.CutPrefix(data, actionPrefix)
	if !found {
		return "", "", false
	}
	verb, itemID, found = strings.Cut(rest, "_")
	if !found || itemID == "" {
		return "", "", false
	}
	switch verb {
	case VerbDone, VerbLater, VerbDiscard:
		return verb, itemID, true
	}
	return "", "", false
}

const (
	noItemsText    = "No problems available for you right now. Everything in the catalog is either done or was sent recently. Widen the filter with /level or add more with /add!"
	retryLaterText = "Couldn't fetch a problem right now, try again later."
)

type Deliverer struct {
	catalog catalog.Gateway
	prefs   *prefs.Store
	pick    *picker.Picker
	adapter kit.Adapter
	bus     eventbus.Bus
	log     logx.Logger
}

func New(g catalog.Gateway, store *prefs.Store, p *picker.Picker, adapter kit.Adapter, bus eventbus.Bus, log logx.Logger) *Deliverer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Deliverer{
		catalog: g,
		prefs:   store,
		pick:    p,
		adapter: adapter,
		bus:     bus,
		log:     log,
	}
}

// Deliver sends one recommendation to the user. reason tags the trigger in
// logs and events ("daily", "today", "another"). The chosen item enters the
// user's recency window before dispatch; a failed send still counts as a
// recent delivery and the window eviction brings the item back eventually.
func (d *Deliverer) Deliver(ctx context.Context, userID, chatID int64, reason string) error {
	log := d.log.With(logx.Int64("user_id", userID), logx.String("reason", reason))

	snap := d.prefs.GetOrCreate(userID)

	items, err := d.catalog.ListItems(ctx)
	if err != nil {
		d.publish(eventbus.Event{Type: eventbus.TypeDeliveryFailed, UserID: userID})
		log.Error("catalog read failed", logx.Err(err))
		_, _ = d.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, retryLaterText, nil)
		return fmt.Errorf("deliver to %d: %w", userID, err)
	}

	it, ok := d.pick.Pick(items, snap.Filter(), snap.Excluded)
	if !ok {
		d.publish(eventbus.Event{Type: eventbus.TypeDeliveryEmpty, UserID: userID})
		log.Info("no eligible items", logx.Int("catalog_size", len(items)))
		_, err := d.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, noItemsText, nil)
		return err
	}

	opt := &kit.SendOptions{
		DisablePreview: false,
		Actions: []kit.Action{
			{Label: "✅ Done", Data: EncodeAction(VerbDone, it.ID)},
			{Label: "🕑 Later", Data: EncodeAction(VerbLater, it.ID)},
			{Label: "🗑 Discard", Data: EncodeAction(VerbDiscard, it.ID)},
		},
	}
	d.prefs.RecordDelivery(userID, it.ID)
	if _, err := d.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, FormatItem(it, reason), opt); err != nil {
		d.publish(eventbus.Event{Type: eventbus.TypeDeliveryFailed, UserID: userID, ItemID: it.ID})
		log.Error("send failed", logx.Err(err), logx.String("item_id", it.ID))
		return fmt.Errorf("deliver to %d: %w", userID, err)
	}

	d.publish(eventbus.Event{Type: eventbus.TypeDeliverySent, UserID: userID, ItemID: it.ID})
	log.Info("item delivered",
		logx.String("item_id", it.ID),
		logx.String("difficulty", it.Difficulty))
	return nil
}

// Resolve applies a pressed action button. Done and discard add the item to
// the user's permanent exclusion set; later mutates nothing. The keyboard is
// removed on every verb, a button is single-use.
func (d *Deliverer) Resolve(ctx context.Context, cb *kit.Callback) {
	log := d.log.With(logx.Int64("user_id", cb.FromID))

	verb, itemID, ok := ParseAction(cb.Data)
	if !ok {
		log.Warn("unrecognized callback payload", logx.String("data", cb.Data))
		_ = d.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}

	var ack string
	switch verb {
	case VerbDone:
		d.prefs.MarkResolved(cb.FromID, itemID)
		ack = "Marked as done 🎉"
	case VerbDiscard:
		d.prefs.MarkResolved(cb.FromID, itemID)
		ack = "Discarded, you won't see it again"
	case VerbLater:
		ack = "Okay, maybe later"
	}

	if err := d.adapter.AnswerCallback(ctx, cb.ID, ack); err != nil {
		log.Warn("callback answer failed", logx.Err(err))
	}

	ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	if err := d.adapter.EditActions(ctx, ref, nil); err != nil {
		log.Warn("keyboard removal failed", logx.Err(err))
	}
	if verb != VerbLater {
		d.publish(eventbus.Event{Type: eventbus.TypeItemResolved, UserID: cb.FromID, ItemID: itemID, Data: verb})
	}
	log.Debug("item action handled",
		logx.String("verb", verb),
		logx.String("item_id", itemID))
}

func (d *Deliverer) publish(e eventbus.Event) {
	if d.bus != nil {
		d.bus.Publish(e)
	}
}

// FormatItem renders the recommendation message body. The header varies with
// the trigger so a scheduled delivery reads differently from an on-demand one.
func FormatItem(it catalog.Item, reason string) string {
	var b strings.Builder
	switch reason {
	case "another":
		b.WriteString("Another random problem:\n\n")
	case "today":
		b.WriteString("Today's problem:\n\n")
	default:
		b.WriteString("Good day! Your problem of the day:\n\n")
	}
	b.WriteString(it.Title)
	b.WriteString("\nDifficulty: ")
	b.WriteString(it.Difficulty)
	b.WriteString("\nTopic: ")
	b.WriteString(it.Topic)
	b.WriteString("\n")
	b.WriteString(it.URL)
	return b.String()
}
