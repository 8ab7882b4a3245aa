package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"hiretrack/internal/scheduler"
)

// DMNotifier delivers reminders over Discord direct messages.
type DMNotifier struct {
	session *discordgo.Session
}

// NewDMNotifier wraps a Discord session as a scheduler Notifier.
func NewDMNotifier(session *discordgo.Session) *DMNotifier {
	return &DMNotifier{session: session}
}

// ResolveUser looks the user up through the REST API.
func (n *DMNotifier) ResolveUser(ctx context.Context, userID int64) (*scheduler.Recipient, error) {
	user, err := n.session.User(strconv.FormatInt(userID, 10), discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ResolveUser: %w", classifyRESTError(err))
	}
	return &scheduler.Recipient{ID: userID, Name: user.Username}, nil
}

// Send opens (or reuses) the DM channel and posts the message.
func (n *DMNotifier) Send(ctx context.Context, to *scheduler.Recipient, text string) error {
	channel, err := n.session.UserChannelCreate(strconv.FormatInt(to.ID, 10), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("Send: failed to open DM channel: %w", classifyRESTError(err))
	}
	if _, err := n.session.ChannelMessageSend(channel.ID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("Send: %w", classifyRESTError(err))
	}
	return nil
}

// classifyRESTError maps Discord REST failures onto the scheduler's typed
// outcomes. 404 means the user is gone, 403 (or error code 50007) means DMs
// are refused. Everything else stays as-is and is treated as transient.
func classifyRESTError(err error) error {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) {
		return err
	}
	if rerr.Message != nil && rerr.Message.Code == discordgo.ErrCodeCannotSendMessagesToThisUser {
		return scheduler.ErrDeliveryForbidden
	}
	if rerr.Response != nil {
		switch rerr.Response.StatusCode {
		case http.StatusNotFound:
			return scheduler.ErrUserNotFound
		case http.StatusForbidden:
			return scheduler.ErrDeliveryForbidden
		}
	}
	return err
}
