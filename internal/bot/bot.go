package bot

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/elecsonJ/everyday-english-writing/internal/excel"
	"github.com/elecsonJ/everyday-english-writing/internal/metrics"
	"github.com/elecsonJ/everyday-english-writing/internal/practice"
	"github.com/elecsonJ/everyday-english-writing/internal/progress"
	"github.com/elecsonJ/everyday-english-writing/internal/scheduler"
	"github.com/elecsonJ/everyday-english-writing/internal/session"
	"github.com/elecsonJ/everyday-english-writing/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// sender is the part of the Telegram API the bot talks to
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// StoreFactory returns the progress store of one chat
type StoreFactory func(chatID int64) progress.Store

// step is where a chat is in the input flow
type step int

const (
	stepIdle step = iota
	stepTranslation
	stepImproved
	stepNative
	stepImport
)

// UserState represents the current state of a chat in conversation with the bot
type UserState struct {
	Step      step
	Index     int
	Improved  string
	Timestamp time.Time
}

// chatState is everything the bot keeps for one chat
type chatState struct {
	mu      sync.Mutex
	manager *session.Manager
	ctrl    *practice.Controller
	state   UserState
}

// StatsSource reports usage totals for administrators
type StatsSource interface {
	Summary(ctx context.Context) (*models.Statistics, error)
}

// Options are the collaborators of a Bot
type Options struct {
	Token        string
	Config       *BotConfig
	Stores       StoreFactory
	Feedback     practice.FeedbackGenerator
	Sentences    practice.SentenceGenerator
	Reminders    scheduler.ReminderStore
	SentenceBank excel.SentenceStore // nil disables /import
	Stats        StatsSource         // nil disables /admin_stats
	Location     *time.Location
	AdminUserIDs map[int64]bool
	Log          *zap.Logger
}

// Bot represents the Telegram bot application
type Bot struct {
	api          sender
	token        string
	config       *BotConfig
	stores       StoreFactory
	feedback     practice.FeedbackGenerator
	sentences    practice.SentenceGenerator
	bank         excel.SentenceStore
	stats        StatsSource
	scheduler    *scheduler.Scheduler
	loc          *time.Location
	adminUserIDs map[int64]bool
	httpClient   *http.Client
	now          func() time.Time
	log          *zap.Logger

	mu    sync.Mutex
	chats map[int64]*chatState
}

// New creates a new bot instance
func New(opts Options) (*Bot, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	if opts.Stores == nil || opts.Feedback == nil || opts.Sentences == nil || opts.Reminders == nil {
		return nil, fmt.Errorf("bot requires stores, generators and a reminder store")
	}
	if opts.Config == nil {
		opts.Config = DefaultConfig()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.AdminUserIDs == nil {
		opts.AdminUserIDs = make(map[int64]bool)
	}

	b := &Bot{
		token:        opts.Token,
		config:       opts.Config,
		stores:       opts.Stores,
		feedback:     opts.Feedback,
		sentences:    opts.Sentences,
		bank:         opts.SentenceBank,
		stats:        opts.Stats,
		loc:          opts.Location,
		adminUserIDs: opts.AdminUserIDs,
		httpClient:   &http.Client{Timeout: time.Minute},
		now:          time.Now,
		log:          opts.Log,
		chats:        make(map[int64]*chatState),
	}
	b.scheduler = scheduler.New(opts.Reminders, b, opts.Location, opts.Config.ReminderHour, opts.Log)
	return b, nil
}

// Start connects to Telegram and handles updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	botAPI, err := tgbotapi.NewBotAPI(b.token)
	if err != nil {
		return fmt.Errorf("unable to create bot: %w", err)
	}
	b.api = botAPI
	b.log.Info("authorized on account", zap.String("username", botAPI.Self.UserName))

	if b.config.SchedulerEnabled {
		if err := b.scheduler.Start(); err != nil {
			return err
		}
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := botAPI.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			botAPI.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// Stop gracefully stops the bot
func (b *Bot) Stop() {
	if b.config.SchedulerEnabled {
		b.scheduler.Stop()
	}
	b.log.Info("bot stopped")
}

// SendReminder implements the scheduler.Notifier interface
func (b *Bot) SendReminder(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "📝 작문에 도전하세요!\n오늘의 영어 작문 3문장을 연습해보세요")
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{{Text: "✍️ 시작하기", CallbackData: "today"}}})
	if _, err := b.api.Send(msg); err != nil {
		return err
	}
	b.log.Debug("reminder sent", zap.Int64("chat_id", chatID))
	return nil
}

// isAdmin checks if a user is an admin
func (b *Bot) isAdmin(userID int64) bool {
	return b.adminUserIDs[userID]
}

func (b *Bot) chat(chatID int64) *chatState {
	b.mu.Lock()
	defer b.mu.Unlock()

	cs, ok := b.chats[chatID]
	if !ok {
		cs = &chatState{
			manager: session.NewManager(b.stores(chatID),
				session.WithLocation(b.loc),
				session.WithClock(func() time.Time { return b.now() }),
			),
		}
		b.chats[chatID] = cs
	}
	return cs
}

// controllerLocked returns today's controller for the chat, opening a new one
// when none is loaded or the day has changed. cs.mu must be held.
func (b *Bot) controllerLocked(ctx context.Context, chatID int64, cs *chatState) (*practice.Controller, error) {
	if cs.ctrl != nil && cs.ctrl.Date() == cs.manager.Today() {
		return cs.ctrl, nil
	}

	enabled, _, err := b.scheduler.Enabled(ctx, chatID)
	if err != nil {
		b.log.Warn("failed to read reminder setting", zap.Int64("chat_id", chatID), zap.Error(err))
	}

	ctrl, err := practice.Open(ctx, practice.Deps{
		Sessions:         cs.manager,
		Feedback:         b.feedback,
		Sentences:        b.sentences,
		Notifier:         &chatNotifier{bot: b, chatID: chatID},
		RemindersEnabled: enabled,
		Timeout:          b.config.FeedbackTimeout,
		Log:              b.log.With(zap.Int64("chat_id", chatID)),
	})
	if err != nil {
		return nil, err
	}
	cs.ctrl = ctrl
	cs.state = UserState{}
	return ctrl, nil
}

// chatNotifier forwards controller requests to one chat
type chatNotifier struct {
	bot    *Bot
	chatID int64
}

func (n *chatNotifier) ArmDailyReminder(ctx context.Context) error {
	return n.bot.scheduler.Arm(ctx, n.chatID)
}

var completionMessages = []string{
	"훌륭해요! 오늘의 작문을 완료했습니다! 🎉 (연속 %d일)",
	"대단해요! %d일 연속 달성! 💪",
	"완벽합니다! 벌써 %d일째 꾸준히 하고 계시네요! 🌟",
	"최고예요! %d일 연속 성공! 계속 이어가세요! 🚀",
}

func (n *chatNotifier) ShowCompletion(ctx context.Context, streak int) error {
	metrics.SessionsCompleted.Inc()

	text := "🎉 축하합니다!\n" + fmt.Sprintf(completionMessages[rand.Intn(len(completionMessages))], streak)
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "🔄 다시 연습하기", CallbackData: "reset"}, {Text: "📊 통계", CallbackData: "stats"}},
	})
	_, err := n.bot.api.Send(msg)
	return err
}
