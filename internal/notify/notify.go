// Package notify pushes workflow completion notices to Telegram.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nats-io/nats.go"

	"github.com/sumithkumar07/aetherflow/internal/config"
	"github.com/sumithkumar07/aetherflow/internal/natsbus"
	"github.com/sumithkumar07/aetherflow/internal/orchestrator"
)

// telegramMessageLimit is Telegram's hard cap per message.
const telegramMessageLimit = 4096

type Notifier struct {
	bot    *telego.Bot
	chatID int64
	bus    *natsbus.Bus
}

// New builds a notifier. Returns nil without error when no token is
// configured; notifications are optional.
func New(cfg config.NotifyConfig, bus *natsbus.Bus) (*Notifier, error) {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == 0 {
		return nil, nil
	}

	bot, err := telego.NewBot(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: cfg.TelegramChatID, bus: bus}, nil
}

// Start subscribes to workflow events and relays terminal ones until the
// context is cancelled.
func (n *Notifier) Start(ctx context.Context) error {
	client, err := natsbus.NewClient(n.bus)
	if err != nil {
		return fmt.Errorf("notify nats client: %w", err)
	}
	defer client.Close()

	sub, err := client.Subscribe(natsbus.TopicEventsWorkflowAll, func(msg *nats.Msg) {
		var ev orchestrator.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		n.handle(ctx, ev)
	})
	if err != nil {
		return fmt.Errorf("subscribe workflow events: %w", err)
	}
	defer sub.Unsubscribe()

	slog.Info("notifier started", "chat_id", n.chatID)
	<-ctx.Done()
	return nil
}

func (n *Notifier) handle(ctx context.Context, ev orchestrator.Event) {
	var text string
	switch ev.Type {
	case orchestrator.EventWorkflowCompleted:
		text = fmt.Sprintf("✅ Workflow %s completed\n%s", ev.WorkflowID, ev.Detail)
	case orchestrator.EventWorkflowFailed:
		text = fmt.Sprintf("❌ Workflow %s failed\n%s", ev.WorkflowID, ev.Detail)
	default:
		return
	}

	if err := n.send(ctx, text); err != nil {
		slog.Error("failed to send telegram notice", "workflow_id", ev.WorkflowID, "error", err)
	}
}

func (n *Notifier) send(ctx context.Context, text string) error {
	for _, chunk := range chunkMessage(text, telegramMessageLimit) {
		msg := tu.Message(tu.ID(n.chatID), chunk)
		if _, err := n.bot.SendMessage(ctx, msg); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}
