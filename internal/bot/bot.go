// Package bot is the Telegram transport for the launch wizard. It long-polls
// the Bot API, routes commands and inline-keyboard callbacks to the
// WizardService, and renders the service's transport-neutral replies into
// messages and keyboards.
//
// Responsibilities that deliberately stay at this layer and never leak into
// the wizard:
//
//   - Update dispatch: each update is handled on its own goroutine; per-user
//     ordering is the session store's job, not the transport's.
//   - Flood control: over-limit chats are dropped before reaching the wizard.
//   - Render plumbing: wizard steps triggered by a button tap edit the
//     message that carried the button; /start sends a fresh message.
//     Telegram's "message is not modified" edit failure is swallowed here,
//     since re-rendering identical content is not an application error.
//   - Locale: reply language follows the update's language code.
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/washpoint/launchbot/internal/config"
	"github.com/washpoint/launchbot/internal/services"
	"github.com/washpoint/launchbot/internal/sysutil"
)

// probeTimeout bounds the /test connectivity check.
const probeTimeout = 10 * time.Second

// Bot wires the Telegram transport to the wizard.
type Bot struct {
	api     *tgbotapi.BotAPI
	wizard  *services.WizardService
	limiter *floodLimiter

	probeURL    string
	probeClient *http.Client
	pollTimeout int
}

// New authenticates against the Bot API and constructs the transport.
func New(cfg config.Config, wizard *services.WizardService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth failed: %w", err)
	}
	api.Debug = cfg.DebugTransport

	log.Info().Str("username", api.Self.UserName).Msg("bot: authorized")

	return &Bot{
		api:         api,
		wizard:      wizard,
		limiter:     newFloodLimiter(cfg.FloodRPS, cfg.FloodBurst),
		probeURL:    cfg.ProbeURL,
		probeClient: &http.Client{Timeout: probeTimeout},
		pollTimeout: cfg.UpdateTimeout,
	}, nil
}

// Run long-polls for updates until ctx is cancelled. Each update is
// dispatched on its own goroutine, so one user's slow pulse never delays
// another user's step.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	log.Info().Msg("bot: polling for updates")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			log.Info().Msg("bot: polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go b.dispatch(ctx, update)
		}
	}
}

// dispatch routes one update. Panics are contained so a malformed update
// cannot take the process down.
func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("bot: recovered from handler panic")
		}
	}()

	switch {
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

// handleCommand serves /start and the diagnostic commands /ip and /test.
// Anything else is ignored.
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if !b.limiter.Allow(msg.Chat.ID) {
		log.Warn().Int64("chat_id", msg.Chat.ID).Str("command", msg.Command()).Msg("bot: flood limit, update dropped")
		return
	}

	t := textsFor(languageOf(msg.From))

	switch msg.Command() {
	case "start":
		reply, err := b.wizard.Start(ctx, msg.From.ID)
		text, kb := b.render(t, reply, err)
		if text == "" {
			return
		}
		out := tgbotapi.NewMessage(msg.Chat.ID, text)
		if kb != nil {
			out.ReplyMarkup = *kb
		}
		b.send(out)

	case "ip":
		ip, err := sysutil.OutboundIP()
		if err != nil {
			b.send(tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf(t.IPError, err)))
			return
		}
		b.send(tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf(t.IPReport, ip)))

	case "test":
		res, err := sysutil.Probe(ctx, b.probeClient, b.probeURL)
		if err != nil {
			b.send(tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf(t.ProbeError, err)))
			return
		}
		b.send(tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf(t.ProbeOK, res.URL, res.Status, res.Body)))
	}
}

// handleCallback serves a wizard button tap. The callback is always
// acknowledged first so the client stops its spinner, even when the action
// turns out to be stale.
func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		log.Warn().Err(err).Msg("bot: callback ack failed")
	}

	if cq.Message == nil {
		return
	}
	if !b.limiter.Allow(cq.Message.Chat.ID) {
		log.Warn().Int64("chat_id", cq.Message.Chat.ID).Msg("bot: flood limit, callback dropped")
		return
	}

	prefix, id, ok := parseCallback(cq.Data)
	if !ok {
		log.Debug().Str("data", cq.Data).Msg("bot: unrecognized callback payload")
		return
	}

	var (
		reply *services.Reply
		err   error
	)
	switch prefix {
	case cbCity:
		reply, err = b.wizard.SelectCity(ctx, cq.From.ID, id)
	case cbShop:
		reply, err = b.wizard.SelectShop(ctx, cq.From.ID, id)
	case cbMachine:
		reply, err = b.wizard.SelectMachine(ctx, cq.From.ID, id)
	}

	t := textsFor(languageOf(cq.From))
	text, kb := b.render(t, reply, err)
	if text == "" {
		// Stale action: the wizard asked for silence.
		return
	}
	b.edit(cq.Message.Chat.ID, cq.Message.MessageID, text, kb)
}

// render maps a wizard outcome to message text and an optional keyboard.
// Empty text means render nothing.
func (b *Bot) render(t texts, reply *services.Reply, err error) (string, *tgbotapi.InlineKeyboardMarkup) {
	switch {
	case errors.Is(err, services.ErrStoreUnavailable):
		return t.StoreUnavailable, nil
	case errors.Is(err, services.ErrSessionCorrupt):
		return t.SessionCorrupt, nil
	case err != nil:
		// No other errors are defined; log and stay silent rather than
		// leak internals into chat.
		log.Error().Err(err).Msg("bot: unexpected wizard error")
		return "", nil
	case reply == nil:
		return "", nil
	}

	switch reply.Kind {
	case services.ReplyCityPrompt:
		kb := cityKeyboard(reply.Options)
		return t.ChooseCity, &kb
	case services.ReplyShopPrompt:
		kb := shopKeyboard(reply.Options)
		return t.ChooseShop, &kb
	case services.ReplyMachinePrompt:
		kb := machineKeyboard(reply.Options, t)
		return t.ChooseMachine, &kb
	case services.ReplyNoCities:
		return t.NoCities, nil
	case services.ReplyNoShops:
		return t.NoShops, nil
	case services.ReplyNoMachines:
		return t.NoMachines, nil
	case services.ReplyNotConfigured:
		return t.NotConfigured, nil
	case services.ReplyMachineMissing:
		return t.MachineMissing, nil
	case services.ReplyLaunchSuccess:
		r := reply.Receipt
		return fmt.Sprintf(t.LaunchSuccess, r.MachineLabel, r.KG, r.CountWashes), nil
	case services.ReplyLaunchFailure:
		return fmt.Sprintf(t.LaunchFailure, reply.TerminalURL), nil
	default:
		log.Error().Int("kind", int(reply.Kind)).Msg("bot: unknown reply kind")
		return "", nil
	}
}

// send delivers a message, logging delivery failures.
func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", msg.ChatID).Msg("bot: send failed")
	}
}

// edit rewrites the message that carried the tapped keyboard. Telegram
// rejects edits that change nothing; that rejection is expected when a user
// re-taps a button and is not logged as an error.
func (b *Bot) edit(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	var cfg tgbotapi.EditMessageTextConfig
	if kb != nil {
		cfg = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *kb)
	} else {
		cfg = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	if _, err := b.api.Send(cfg); err != nil && !isNotModified(err) {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("bot: edit failed")
	}
}

// isNotModified reports whether err is Telegram's "message is not modified"
// rejection.
func isNotModified(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

// languageOf extracts a user's language code, tolerating absent senders.
func languageOf(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	return u.LanguageCode
}
