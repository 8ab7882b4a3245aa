package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"hiretrack/internal/ai"
	"hiretrack/internal/db"
	"hiretrack/internal/format"
	"hiretrack/internal/tracker"
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	stageChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(db.ValidStages))
	for _, s := range db.ValidStages {
		stageChoices = append(stageChoices, &discordgo.ApplicationCommandOptionChoice{Name: s, Value: s})
	}
	seasonChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(db.ValidSeasons))
	for _, s := range db.ValidSeasons {
		seasonChoices = append(seasonChoices, &discordgo.ApplicationCommandOptionChoice{Name: s, Value: s})
	}
	one := float64(1)

	return []*discordgo.ApplicationCommand{
		{
			Name:        "add",
			Description: "Add a new job application",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "company", Description: "Company name", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "role", Description: "Job role/title", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "season", Description: "Recruiting season (default: Summer)", Choices: seasonChoices},
			},
		},
		{
			Name:        "update",
			Description: "Update the stage of a job application",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "company", Description: "Company name", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "stage", Description: "New stage", Required: true, Choices: stageChoices},
				{Type: discordgo.ApplicationCommandOptionString, Name: "date", Description: "Date (YYYY-MM-DD format, optional)"},
			},
		},
		{
			Name:        "list",
			Description: "List job applications",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "stage", Description: "Filter by stage (optional)", Choices: stageChoices},
				{Type: discordgo.ApplicationCommandOptionString, Name: "season", Description: "Filter by season (optional)", Choices: seasonChoices},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "page", Description: "Page number (default: 1)", MinValue: &one},
			},
		},
		{
			Name:        "todo",
			Description: "List applications that need attention",
		},
		{
			Name:        "remind",
			Description: "Set a reminder for a job application",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "company", Description: "Company name", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "days", Description: "Days from now to remind (1-365)", Required: true, MinValue: &one, MaxValue: 365},
			},
		},
		{
			Name:        "stats",
			Description: "View application statistics",
		},
		{
			Name:        "export",
			Description: "Export applications to CSV",
		},
		{
			Name:        "search",
			Description: "Ask the AI about your job applications",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "query", Description: "Your question", Required: true},
			},
		},
		{
			Name:        "security",
			Description: "View or change your cross-user search preference",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "cross_user_search", Description: "Allow your applications in community search results"},
			},
		},
		{
			Name:        "test_reminder",
			Description: "Test the reminder system",
		},
		{
			Name:        "status",
			Description: "Show the reminder scheduler status",
		},
	}
}

// validationError reports whether err is user-correctable input rather than a
// system failure.
func validationError(err error) bool {
	return errors.Is(err, tracker.ErrInvalidSeason) ||
		errors.Is(err, tracker.ErrInvalidStage) ||
		errors.Is(err, tracker.ErrDuplicateApplication) ||
		errors.Is(err, tracker.ErrApplicationNotFound) ||
		errors.Is(err, tracker.ErrReminderNotFound)
}

// replyError surfaces validation failures verbatim and hides everything else
// behind a generic message.
func (b *Bot) replyError(i *discordgo.InteractionCreate, command string, err error, action string) {
	if validationError(err) {
		b.followupText(i, fmt.Sprintf("❌ Error: %s", err))
		return
	}
	b.log.Error("command failed", "command", command, "err", err)
	b.followupText(i, fmt.Sprintf("❌ An error occurred while %s.", action))
}

func (b *Bot) handleAdd(ctx context.Context, i *discordgo.InteractionCreate, userID int64) {
	// Public, celebrate new applications.
	if b.respondLater(i, false) != nil {
		return
	}
	opts := commandOptions(i)
	company := opts["company"].StringValue()
	role := opts["role"].StringValue()
	season := ""
	if o, ok := opts["season"]; ok {
		season = o.StringValue()
	}

	var guildID *int64
	if b.opts.MultiGuild && i.GuildID != "" {
		if gid, err := strconv.ParseInt(i.GuildID, 10, 64); err == nil {
			guildID = &gid
		}
	}

	app, err := b.svc.AddApplication(ctx, company, role, userID, season, guildID)
	if err != nil {
		b.replyError(i, "add", err, "adding the application")
		return
	}

	b.followupEmbed(i, &discordgo.MessageEmbed{
		Title:       "✅ Application Added",
		Description: fmt.Sprintf("**%s** - %s", company, role),
		Color:       colorGreen,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Stage", Value: db.StageApplied, Inline: true},
			{Name: "Created", Value: formatDateTime(app.CreatedAt.Int64()), Inline: true},
		},
	})
}

func (b *Bot) handleUpdate(ctx context.Context, i *discordgo.InteractionCreate, userID int64) {
	if b.respondLater(i, false) != nil {
		return
	}
	opts := commandOptions(i)
	company := opts["company"].StringValue()
	stage := opts["stage"].StringValue()

	var date *int64
	if o, ok := opts["date"]; ok {
		t, err := time.ParseInLocation("2006-01-02", o.StringValue(), time.Local)
		if err != nil {
			b.followupText(i, "❌ Invalid date format. Use YYYY-MM-DD.")
			return
		}
		ts := t.Unix()
		date = &ts
	}

	newStage, err := b.svc.UpdateStage(ctx, company, stage, userID, date)
	if err != nil {
		b.replyError(i, "update", err, "updating the application")
		return
	}

	b.followupEmbed(i, &discordgo.MessageEmbed{
		Title:       "✅ Application Updated",
		Description: fmt.Sprintf("**%s** stage updated to **%s**", company, stage),
		Color:       colorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Date", Value: formatDateTime(newStage.Date.Int64()), Inline: true},
		},
	})
}

func (b *Bot) handleList(ctx context.Context, i *discordgo.InteractionCreate, userID int64) {
	if b.respondLater(i, true) != nil {
		return
	}
	opts := commandOptions(i)
	stage, season := "", ""
	if o, ok := opts["stage"]; ok {
		stage = o.StringValue()
	}
	if o, ok := opts["season"]; ok {
		season = o.StringValue()
	}
	page := 1
	if o, ok := opts["page"]; ok && o.IntValue() > 0 {
		page = int(o.IntValue())
	}

	limit := tracker.DefaultPageSize
	offset := (page - 1) * limit

	apps, err := b.svc.ListApplications(ctx, userID, stage, season, limit, offset)
	if err != nil {
		b.replyError(i, "list", err, "listing applications")
		return
	}
	total, err := b.svc.CountApplications(ctx, userID, stage, season)
	if err != nil {
		b.replyError(i, "list", err, "listing applications")
		return
	}
	totalPages := (total + limit - 1) / limit

	title := "Applications"
	if stage != "" {
		title += " - " + stage
	}
	if totalPages > 1 {
		title += fmt.Sprintf(" (Page %d/%d)", page, totalPages)
	}

	description := "No applications found."
	if len(apps) > 0 {
		description = format.ApplicationList(apps, title)
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       colorBlue,
	}
	if totalPages > 1 {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Page %d of %d • Total: %d applications", page, totalPages, total),
		}
	}
	b.followupEmbed(i, embed)
}

func (b *Bot) handleTodo(ctx context.Context, i *discordgo.InteractionCreate, userID int64) {
	if b.respondLater(i, true) != nil {
		return
	}

	stale, err := b.svc.StaleApplications(ctx, userID, b.opts.StaleDays)
	if err != nil {
		b.replyError(i, "todo", err, "getting the todo list")
		return
	}

	embed := &discordgo.MessageEmbed{Title: "🔔 To-Do List"}
	if len(stale) > 0 {
		embed.Description = format.ApplicationList(stale, "🔔 Applications Needing Attention")
		embed.Color = colorOrange
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("These applications haven't been updated in over %d days.", b.opts.StaleDays),
		}
	} else {
		embed.Description = "🎉 All applications are up to date!"
		embed.Color = colorGreen
	}
	b.followupEmbed(i, embed)
}

func (b *Bot) handleRemind(ctx context.Context, i *discordgo.InteractionCreate, userID int64) {
	if b.respondLater(i, true) != nil {
		return
	}
	opts := commandOptions(i)
	company := opts["company"].StringValue()
	days := int(opts["days"].IntValue())

	reminder, err := b.svc.AddReminder(ctx, company, userID, days)
	if err != nil {
		b.replyError(i, "remind", err, "setting the reminder")
		return
	}

	plural := "s"
	if days == 1 {
		plural = ""
	}
	b.followupEmbed(i, &discordgo.MessageEmbed{
		Title:       "⏰ Reminder Set",
		Description: fmt.Sprintf("I'll remind you about **%s** in %d day%s.", company, days, plural),
		Color:       colorPurple,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reminder Date", Value: formatDateTime(reminder.DueAt.Int64()), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "You'll receive a DM when the reminder is due."},
	})
}

func (b *Bot) handleStats(ctx context.Context, i *discordgo.InteractionCreate, userID int64) {
	// Public, show off your progress.
	if b.respondLater(i, false) != nil {
		return
	}

	stats, err := b.svc.Stats(ctx, userID)
	if err != nil {
		b.replyError(i, "stats", err, "getting statistics")
		return
	}

	if len(stats) == 0 {
		b.followupEmbed(i, &discordgo.MessageEmbed{
			Title:       "📊 Application Statistics",
			Description: "No applications found. Use `/add` to start tracking!",
			Color:       colorBlue,
		})
		return
	}

	summary := format.StatsSummary(stats)
	chart := format.ASCIIBarChart(stats, "Application Statistics")
	b.followupEmbed(i, &discordgo.MessageEmbed{
		Title:       "📊 Application Statistics",
		Description: summary + "\n\n" + chart,
		Color:       colorBlue,
	})
}

func (b *Bot) handleExport(ctx context.Context, i *discordgo.InteractionCreate, userID int64) {
	if b.respondLater(i, true) != nil {
		return
	}

	total, err := b.svc.CountApplications(ctx, userID, "", "")
	if err != nil {
		b.replyError(i, "export", err, "exporting applications")
		return
	}
	if total == 0 {
		b.followupText(i, "❌ No applications to export.")
		return
	}

	data, err := b.svc.ExportCSV(ctx, userID)
	if err != nil {
		b.replyError(i, "export", err, "exporting applications")
		return
	}

	filename := fmt.Sprintf("job_applications_%d_%s.csv", userID, uuid.NewString())
	b.followup(i, &discordgo.WebhookParams{
		Content: "📄 Here's your application data export:",
		Files: []*discordgo.File{{
			Name:        filename,
			ContentType: "text/csv",
			Reader:      bytes.NewReader(data),
		}},
	})
}

func (b *Bot) handleSearch(ctx context.Context, i *discordgo.InteractionCreate, userID int64) {
	if b.respondLater(i, true) != nil {
		return
	}
	if b.searcher == nil {
		b.followupText(i, "❌ AI search is not configured. Set GEMINI_API_KEY to enable it.")
		return
	}
	query := commandOptions(i)["query"].StringValue()

	if b.cooldown != nil {
		if ok, remaining := b.cooldown.Allow(ctx, userID); !ok {
			b.followupText(i, fmt.Sprintf("⏳ Please wait %.0f seconds before searching again.", remaining.Seconds()))
			return
		}
	}

	answer, err := b.searcher.Search(ctx, userID, query)
	if errors.Is(err, ai.ErrInvalidQuery) {
		msg := err.Error()
		if _, reason, found := strings.Cut(msg, ": "); found {
			msg = reason
		}
		b.followupText(i, "❌ "+msg)
		return
	}
	if err != nil {
		b.log.Error("command failed", "command", "search", "err", err)
		b.followupText(i, "❌ An error occurred while searching. Please try again later.")
		return
	}

	b.followupEmbed(i, &discordgo.MessageEmbed{
		Title:       "🔍 AI Search",
		Description: format.Truncate(answer, 4000),
		Color:       colorPurple,
		Footer:      &discordgo.MessageEmbedFooter{Text: format.Truncate(query, 256)},
	})
}

func (b *Bot) handleSecurity(ctx context.Context, i *discordgo.InteractionCreate, userID int64) {
	if b.respondLater(i, true) != nil {
		return
	}

	if o, ok := commandOptions(i)["cross_user_search"]; ok {
		allow := o.BoolValue()
		if err := b.svc.SetSearchOptIn(ctx, userID, allow); err != nil {
			b.replyError(i, "security", err, "updating your preference")
			return
		}
		b.followupText(i, fmt.Sprintf("✅ Cross-user search is now **%s**.", enabledWord(allow)))
		return
	}

	allow, err := b.svc.SearchOptIn(ctx, userID)
	if err != nil {
		b.replyError(i, "security", err, "reading your preference")
		return
	}
	b.followupText(i, fmt.Sprintf("🔒 Cross-user search is **%s** for your applications. Pass `cross_user_search` to change it.", enabledWord(allow)))
}

func enabledWord(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func (b *Bot) handleTestReminder(ctx context.Context, i *discordgo.InteractionCreate, userID int64) {
	if b.respondLater(i, true) != nil {
		return
	}
	result := b.sched.TestMessage(ctx, userID)
	b.followupText(i, "🧪 Test Result: "+result)
}

func (b *Bot) handleStatus(ctx context.Context, i *discordgo.InteractionCreate, userID int64) {
	if b.respondLater(i, true) != nil {
		return
	}

	status := b.sched.Status()
	state, color := "stopped", colorOrange
	if status.Running {
		state, color = "running", colorGreen
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "State", Value: state, Inline: true},
		{Name: "Jobs", Value: strconv.Itoa(status.Jobs), Inline: true},
	}
	if status.NextRun != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Next Run", Value: format.DiscordTimestamp(status.NextRun.Unix(), "R"), Inline: true,
		})
	}
	b.followupEmbed(i, &discordgo.MessageEmbed{
		Title:  "⚙️ Reminder Scheduler",
		Color:  color,
		Fields: fields,
	})
}
