package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jac08h/HahOrNahBot/internal/models"
	"github.com/jac08h/HahOrNahBot/internal/service"
	"github.com/jac08h/HahOrNahBot/pkg/logger"

	"gopkg.in/telebot.v4"
)

var (
	btnHah     = telebot.InlineButton{Unique: "vote_hah", Text: "Hah"}
	btnNah     = telebot.InlineButton{Unique: "vote_nah", Text: "Nah"}
	btnApprove = telebot.InlineButton{Unique: "mod_approve", Text: "Approve"}
	btnRemove  = telebot.InlineButton{Unique: "mod_remove", Text: "Remove"}
)

const menuText = "Commands:\n" +
	"- /joke - Get a random joke and vote Hah or Nah\n" +
	"- /favorite - Re-read one of your favorites\n" +
	"- /best - Work through jokes with the fewest votes\n" +
	"- /add - Submit your own joke\n" +
	"- /profile - Your rank and score\n" +
	"- /top10 - The leaderboard\n" +
	"- /cancel - Abort the current prompt\n" +
	"- /help - Show this message"

func (b *Bot) isAdmin(id int64) bool {
	return b.cfg.AdminID != 0 && id == b.cfg.AdminID
}

// requireUser resolves the sender to a registered user. Unregistered senders
// get the username prompt and nil is returned.
func (b *Bot) requireUser(c telebot.Context) (*models.User, error) {
	chatID := c.Sender().ID

	user, err := b.svc.GetUser(context.Background(), chatID)
	if err != nil {
		if errors.Is(err, service.ErrNotRegistered) {
			b.session(chatID).pending = pendingUsername
			return nil, b.queueOrSend(chatID,
				"You're new here! Pick a username (5-20 characters, letters, digits, - and _):")
		}
		logger.Error("Failed to look up user", logger.Err(err), logger.Int64("user_id", chatID))
		return nil, b.queueOrSend(chatID, "Something went wrong, try again later.")
	}

	return user, nil
}

func (b *Bot) handleStart(c telebot.Context) error {
	user, err := b.requireUser(c)
	if user == nil {
		return err
	}

	return b.queueOrSend(c.Sender().ID, fmt.Sprintf("Welcome back, %s!\n\n%s", user.Username, menuText))
}

func (b *Bot) handleHelp(c telebot.Context) error {
	return b.queueOrSend(c.Sender().ID, menuText)
}

func (b *Bot) handleCancel(c telebot.Context) error {
	b.session(c.Sender().ID).pending = pendingNothing
	return b.queueOrSend(c.Sender().ID, "Canceled.")
}

func (b *Bot) handleText(c telebot.Context) error {
	chatID := c.Sender().ID
	sess := b.session(chatID)

	switch sess.pending {
	case pendingUsername:
		return b.receiveUsername(c, sess)
	case pendingJoke:
		return b.receiveJoke(c, sess)
	default:
		return b.queueOrSend(chatID, "Use /joke to get a joke, or /help for all commands.")
	}
}

func (b *Bot) receiveUsername(c telebot.Context, sess *session) error {
	chatID := c.Sender().ID

	user, err := b.svc.RegisterUser(context.Background(), chatID, c.Text())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCharacters):
			return b.queueOrSend(chatID, "Only letters, digits, - and _ are allowed. Try another one:")
		case errors.Is(err, service.ErrTooShort):
			return b.queueOrSend(chatID, "That's too short, usernames need at least 5 characters. Try another one:")
		case errors.Is(err, service.ErrTooLong):
			return b.queueOrSend(chatID, "That's too long, usernames are capped at 20 characters. Try another one:")
		case errors.Is(err, service.ErrAlreadyRegistered):
			sess.pending = pendingNothing
			return b.queueOrSend(chatID, "You're already registered.\n\n"+menuText)
		}
		logger.Error("Failed to register user", logger.Err(err), logger.Int64("user_id", chatID))
		return b.queueOrSend(chatID, "Something went wrong, try again later.")
	}

	sess.pending = pendingNothing
	logger.Info("User registered",
		logger.Int64("user_id", user.ID),
		logger.String("username", user.Username),
	)
	return b.queueOrSend(chatID, fmt.Sprintf("Welcome, %s!\n\n%s", user.Username, menuText))
}

func (b *Bot) receiveJoke(c telebot.Context, sess *session) error {
	chatID := c.Sender().ID

	joke, err := b.svc.SubmitJoke(context.Background(), chatID, c.Text())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTooShort):
			return b.queueOrSend(chatID, "That joke is too short, it needs at least 10 characters. Try again:")
		case errors.Is(err, service.ErrTooLong):
			return b.queueOrSend(chatID, "That joke is too long, 1000 characters max. Try again:")
		case errors.Is(err, service.ErrNotRegistered):
			sess.pending = pendingUsername
			return b.queueOrSend(chatID,
				"You need a username first. Pick one (5-20 characters, letters, digits, - and _):")
		}
		logger.Error("Failed to submit joke", logger.Err(err), logger.Int64("user_id", chatID))
		return b.queueOrSend(chatID, "Something went wrong, try again later.")
	}

	sess.pending = pendingNothing
	logger.Info("Joke submitted",
		logger.Int64("user_id", chatID),
		logger.Int64("joke_id", joke.ID),
	)
	return b.queueOrSend(chatID, "Joke submitted! It will show up for others once approved.")
}

func (b *Bot) handleAddJoke(c telebot.Context) error {
	user, err := b.requireUser(c)
	if user == nil {
		return err
	}

	b.session(c.Sender().ID).pending = pendingJoke
	return b.queueOrSend(c.Sender().ID, "Send me your joke (10-1000 characters), or /cancel.")
}

func (b *Bot) handleRandomJoke(c telebot.Context) error {
	return b.showVotableJoke(c, service.PoolRandom)
}

func (b *Bot) handleBestJoke(c telebot.Context) error {
	return b.showVotableJoke(c, service.PoolBest)
}

// showVotableJoke selects a joke the sender hasn't seen, remembers it as the
// chat's last joke and presents it with the vote keyboard. Admins also get
// the moderation buttons.
func (b *Bot) showVotableJoke(c telebot.Context, pool service.Pool) error {
	user, err := b.requireUser(c)
	if user == nil {
		return err
	}
	chatID := c.Sender().ID

	joke, err := b.svc.SelectUnseenJoke(context.Background(), chatID, pool)
	if err != nil {
		if errors.Is(err, service.ErrNoEligibleJoke) {
			return b.queueOrSend(chatID, "No new jokes for you right now. Come back later or /add your own!")
		}
		logger.Error("Failed to select joke", logger.Err(err), logger.Int64("user_id", chatID))
		return b.queueOrSend(chatID, "Something went wrong, try again later.")
	}

	sess := b.session(chatID)
	sess.lastJokeID = joke.ID
	sess.hasLastJoke = true

	_, err = b.tbot.Send(&telebot.Chat{ID: chatID}, joke.Body)
	if err != nil {
		return err
	}

	hah := btnHah
	nah := btnNah
	data := strconv.FormatInt(joke.ID, 10)
	hah.Data = data
	nah.Data = data

	rows := [][]telebot.InlineButton{{hah, nah}}
	if b.isAdmin(chatID) {
		approve := btnApprove
		remove := btnRemove
		approve.Data = data
		remove.Data = data
		rows = append(rows, []telebot.InlineButton{approve, remove})
	}

	_, err = b.tbot.Send(&telebot.Chat{ID: chatID}, "Hah or nah?", &telebot.ReplyMarkup{
		InlineKeyboard: rows,
	})
	return err
}

func (b *Bot) handleFavoriteJoke(c telebot.Context) error {
	user, err := b.requireUser(c)
	if user == nil {
		return err
	}
	chatID := c.Sender().ID

	joke, err := b.svc.SelectUnseenJoke(context.Background(), chatID, service.PoolFavorites)
	if err != nil {
		if errors.Is(err, service.ErrNoEligibleJoke) {
			return b.queueOrSend(chatID, "You have no favorites yet. Vote Hah on a /joke first!")
		}
		logger.Error("Failed to select favorite", logger.Err(err), logger.Int64("user_id", chatID))
		return b.queueOrSend(chatID, "Something went wrong, try again later.")
	}

	return b.queueOrSend(chatID, joke.Body)
}

// handlePending shows the moderator the head of the approval queue with the
// moderation buttons. Deliberately unfiltered: a pending joke the admin
// authored or voted on still needs a way into the approved set.
func (b *Bot) handlePending(c telebot.Context) error {
	chatID := c.Sender().ID
	if !b.isAdmin(chatID) {
		return b.queueOrSend(chatID, "Moderators only.")
	}

	joke, err := b.svc.NextPendingJoke(context.Background())
	if err != nil {
		if errors.Is(err, service.ErrNoEligibleJoke) {
			return b.queueOrSend(chatID, "No jokes waiting for approval.")
		}
		logger.Error("Failed to load approval queue", logger.Err(err), logger.Int64("user_id", chatID))
		return b.queueOrSend(chatID, "Something went wrong, try again later.")
	}

	_, err = b.tbot.Send(&telebot.Chat{ID: chatID}, joke.Body)
	if err != nil {
		return err
	}

	approve := btnApprove
	remove := btnRemove
	data := strconv.FormatInt(joke.ID, 10)
	approve.Data = data
	remove.Data = data

	_, err = b.tbot.Send(&telebot.Chat{ID: chatID}, "Approve or remove?", &telebot.ReplyMarkup{
		InlineKeyboard: [][]telebot.InlineButton{{approve, remove}},
	})
	return err
}

func (b *Bot) handleVote(c telebot.Context, positive bool) error {
	chatID := c.Sender().ID

	jokeID, err := strconv.ParseInt(c.Data(), 10, 64)
	if err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: "This vote is no longer valid."})
	}

	err = b.svc.CastVote(context.Background(), chatID, jokeID, positive)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfVote):
			return c.Respond(&telebot.CallbackResponse{Text: "No voting on your own joke!"})
		case errors.Is(err, service.ErrDuplicateVote):
			return c.Respond(&telebot.CallbackResponse{Text: "You already voted on this one."})
		case errors.Is(err, service.ErrJokeNotFound):
			return c.Respond(&telebot.CallbackResponse{Text: "This joke is gone."})
		case errors.Is(err, service.ErrNotRegistered):
			// Stale callback from a sender we don't know, e.g. after a
			// store reset. Route them to registration like any command.
			b.session(chatID).pending = pendingUsername
			if err := c.Respond(&telebot.CallbackResponse{Text: "You're not registered yet."}); err != nil {
				return err
			}
			return b.queueOrSend(chatID,
				"You're new here! Pick a username (5-20 characters, letters, digits, - and _):")
		}
		logger.Error("Failed to cast vote", logger.Err(err),
			logger.Int64("user_id", chatID),
			logger.Int64("joke_id", jokeID),
		)
		return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong, try again later."})
	}

	sess := b.session(chatID)
	if sess.hasLastJoke && sess.lastJokeID == jokeID {
		sess.hasLastJoke = false
	}

	logger.Info("Vote cast",
		logger.Int64("user_id", chatID),
		logger.Int64("joke_id", jokeID),
		logger.Bool("positive", positive),
	)

	if positive {
		return c.Edit("Hah! +1 for you and the joke.")
	}
	return c.Edit("Nah. -1 for you and the joke.")
}

func (b *Bot) handleApprove(c telebot.Context) error {
	if !b.isAdmin(c.Sender().ID) {
		return c.Respond(&telebot.CallbackResponse{Text: "Moderators only."})
	}

	jokeID, err := strconv.ParseInt(c.Data(), 10, 64)
	if err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: "This action is no longer valid."})
	}

	if err := b.svc.ApproveJoke(context.Background(), jokeID); err != nil {
		if errors.Is(err, service.ErrJokeNotFound) {
			return c.Respond(&telebot.CallbackResponse{Text: "This joke is gone."})
		}
		logger.Error("Failed to approve joke", logger.Err(err), logger.Int64("joke_id", jokeID))
		return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong, try again later."})
	}

	logger.Info("Joke approved", logger.Int64("joke_id", jokeID))
	return c.Edit(fmt.Sprintf("Joke %d approved.", jokeID))
}

func (b *Bot) handleRemove(c telebot.Context) error {
	if !b.isAdmin(c.Sender().ID) {
		return c.Respond(&telebot.CallbackResponse{Text: "Moderators only."})
	}

	jokeID, err := strconv.ParseInt(c.Data(), 10, 64)
	if err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: "This action is no longer valid."})
	}

	if err := b.svc.RemoveJoke(context.Background(), jokeID); err != nil {
		if errors.Is(err, service.ErrJokeNotFound) {
			return c.Respond(&telebot.CallbackResponse{Text: "This joke is gone."})
		}
		logger.Error("Failed to remove joke", logger.Err(err), logger.Int64("joke_id", jokeID))
		return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong, try again later."})
	}

	logger.Info("Joke removed", logger.Int64("joke_id", jokeID))
	return c.Edit(fmt.Sprintf("Joke %d removed.", jokeID))
}

func (b *Bot) handleProfile(c telebot.Context) error {
	user, err := b.requireUser(c)
	if user == nil {
		return err
	}
	chatID := c.Sender().ID

	profile, err := b.svc.Profile(context.Background(), chatID)
	if err != nil {
		logger.Error("Failed to load profile", logger.Err(err), logger.Int64("user_id", chatID))
		return b.queueOrSend(chatID, "Something went wrong, try again later.")
	}

	text := fmt.Sprintf(
		"*%s*\nrank: %d. (%d points)\njokes submitted: %d (%.2f points/joke)",
		profile.User.Username, profile.Rank, profile.User.Score,
		profile.JokesSubmitted, profile.AverageScore,
	)
	return b.queueOrSend(chatID, text)
}

func (b *Bot) handleTop10(c telebot.Context) error {
	user, err := b.requireUser(c)
	if user == nil {
		return err
	}
	chatID := c.Sender().ID

	entries, err := b.svc.TopN(context.Background(), 10)
	if err != nil {
		logger.Error("Failed to load leaderboard", logger.Err(err), logger.Int64("user_id", chatID))
		return b.queueOrSend(chatID, "Something went wrong, try again later.")
	}
	if len(entries) == 0 {
		return b.queueOrSend(chatID, "Nobody on the board yet.")
	}

	var sb strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&sb, "%d. %s - score: %d\n", entry.Rank, entry.Username, entry.Score)
	}
	return b.queueOrSend(chatID, sb.String())
}
