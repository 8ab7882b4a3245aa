// Package bot is the Discord front end: slash command registration, handler
// dispatch and the DM notifier the reminder scheduler delivers through.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/inconshreveable/log15"

	"hiretrack/internal/ai"
	"hiretrack/internal/cache"
	"hiretrack/internal/scheduler"
	"hiretrack/internal/tracker"
)

// Embed colors, matching the classic Discord palette.
const (
	colorGreen  = 0x2ECC71
	colorBlue   = 0x3498DB
	colorOrange = 0xE67E22
	colorPurple = 0x9B59B6
)

// commandTimeout bounds one slash command, including AI retries.
const commandTimeout = 90 * time.Second

// Options carries the behavior toggles the bot reads from configuration.
type Options struct {
	// MultiGuild stamps the origin guild id on new applications.
	MultiGuild bool
	// StaleDays is the /todo staleness threshold.
	StaleDays int
}

// Bot owns the gateway session and the slash command surface.
type Bot struct {
	session  *discordgo.Session
	svc      *tracker.Service
	sched    *scheduler.Scheduler
	searcher *ai.Searcher
	cooldown *cache.Cooldown
	opts     Options
	log      log.Logger

	handlers map[string]func(ctx context.Context, i *discordgo.InteractionCreate, userID int64)
}

// New wires the bot over an unopened session. searcher may be nil when no
// Gemini key is configured; /search then answers with a setup hint.
func New(session *discordgo.Session, svc *tracker.Service, sched *scheduler.Scheduler, searcher *ai.Searcher, cooldown *cache.Cooldown, opts Options) *Bot {
	if opts.StaleDays <= 0 {
		opts.StaleDays = 7
	}
	b := &Bot{
		session:  session,
		svc:      svc,
		sched:    sched,
		searcher: searcher,
		cooldown: cooldown,
		opts:     opts,
		log:      log.New("module", "bot"),
	}
	b.handlers = map[string]func(context.Context, *discordgo.InteractionCreate, int64){
		"add":           b.handleAdd,
		"update":        b.handleUpdate,
		"list":          b.handleList,
		"todo":          b.handleTodo,
		"remind":        b.handleRemind,
		"stats":         b.handleStats,
		"export":        b.handleExport,
		"search":        b.handleSearch,
		"security":      b.handleSecurity,
		"test_reminder": b.handleTestReminder,
		"status":        b.handleStatus,
	}
	return b
}

// Start connects to the gateway and registers the global slash commands.
func (b *Bot) Start() error {
	// Slash commands arrive over interactions, no privileged intents needed.
	b.session.Identify.Intents = discordgo.IntentsGuilds

	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.log.Info("connected to Discord", "user", s.State.User.Username, "guilds", len(r.Guilds))
	})
	b.session.AddHandler(b.onInteraction)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("Start: failed to connect to Discord: %w", err)
	}

	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, "", commandDefinitions())
	if err != nil {
		return fmt.Errorf("Start: failed to register commands: %w", err)
	}
	b.log.Info("slash commands registered", "count", len(registered))
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	b.log.Info("disconnecting from Discord")
	return b.session.Close()
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	name := i.ApplicationCommandData().Name
	handler, ok := b.handlers[name]
	if !ok {
		b.log.Warn("unknown command", "name", name)
		return
	}

	// discordgo runs handlers on bare goroutines, so a panic here would take
	// the whole process down.
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("command panicked", "command", name, "panic", r)
		}
	}()

	userID, err := interactionUserID(i)
	if err != nil {
		b.log.Error("could not identify invoking user", "command", name, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	handler(ctx, i, userID)
}

// interactionUserID extracts the invoking user's id. Guild interactions carry
// the user inside Member, DM interactions carry it directly.
func interactionUserID(i *discordgo.InteractionCreate) (int64, error) {
	user := i.User
	if i.Member != nil {
		user = i.Member.User
	}
	if user == nil {
		return 0, fmt.Errorf("interactionUserID: interaction %s has no user", i.ID)
	}
	id, err := strconv.ParseInt(user.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("interactionUserID: %w", err)
	}
	return id, nil
}

// respondLater acknowledges the interaction so the handler has time to work.
// Ephemeral deferrals keep their followups ephemeral.
func (b *Bot) respondLater(i *discordgo.InteractionCreate, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.log.Error("failed to defer interaction", "err", err)
	}
	return err
}

func (b *Bot) followup(i *discordgo.InteractionCreate, params *discordgo.WebhookParams) {
	if _, err := b.session.FollowupMessageCreate(i.Interaction, true, params); err != nil {
		b.log.Error("failed to send followup", "err", err)
	}
}

func (b *Bot) followupText(i *discordgo.InteractionCreate, text string) {
	b.followup(i, &discordgo.WebhookParams{Content: text})
}

func (b *Bot) followupEmbed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	b.followup(i, &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{embed}})
}

// commandOptions indexes the interaction's options by name.
func commandOptions(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	options := i.ApplicationCommandData().Options
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

// formatDateTime renders an epoch the way the embeds show dates.
func formatDateTime(ts int64) string {
	return time.Unix(ts, 0).Format("2006-01-02 15:04")
}
