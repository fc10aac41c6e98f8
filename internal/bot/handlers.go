package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/elecsonJ/everyday-english-writing/internal/excel"
	"github.com/elecsonJ/everyday-english-writing/internal/metrics"
	"github.com/elecsonJ/everyday-english-writing/internal/practice"
	"github.com/elecsonJ/everyday-english-writing/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const helpText = `📖 사용 방법
1. 한국어 문장을 영어로 작문해주세요
2. 제출 후 피드백을 확인하세요
3. 개선된 문장과 원어민 스타일 문장을 그대로 입력해서 학습을 완료하세요
4. 매일 3문장을 완료하면 연속일수가 올라갑니다

/today - 오늘의 문장
/stats - 학습 통계
/reset - 오늘 문장 다시 연습하기
/remind on|off|시간 - 매일 알림 설정
/cancel - 입력 취소`

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		if update.Message.IsCommand() {
			b.handleCommand(ctx, update.Message)
		} else {
			b.handleMessage(ctx, update.Message)
		}
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	switch message.Command() {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		b.send(chatID, helpText, nil)
	case "today":
		b.showToday(ctx, chatID)
	case "stats":
		b.showStats(ctx, chatID)
	case "reset":
		b.handleReset(ctx, chatID)
	case "remind":
		b.handleRemind(ctx, chatID, strings.TrimSpace(message.CommandArguments()))
	case "cancel":
		cs := b.chat(chatID)
		cs.mu.Lock()
		cs.state = UserState{}
		cs.mu.Unlock()
		b.send(chatID, "입력을 취소했습니다.", todayKeyboard())
	case "import":
		if message.From == nil || !b.isAdmin(message.From.ID) {
			b.send(chatID, "관리자만 사용할 수 있는 명령입니다.", nil)
			return
		}
		b.handleImportCommand(chatID)
	case "admin_stats":
		if message.From == nil || !b.isAdmin(message.From.ID) {
			b.send(chatID, "관리자만 사용할 수 있는 명령입니다.", nil)
			return
		}
		b.handleAdminStatsCommand(ctx, chatID)
	default:
		b.send(chatID, "알 수 없는 명령입니다. /help 를 입력해보세요.", nil)
	}
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.log.Debug("failed to answer callback", zap.Error(err))
	}
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID

	switch data := callback.Data; {
	case data == "today":
		b.showToday(ctx, chatID)
	case data == "stats":
		b.showStats(ctx, chatID)
	case data == "reset":
		b.handleReset(ctx, chatID)
	case data == "remind_on":
		b.handleRemind(ctx, chatID, "on")
	case data == "remind_off":
		b.handleRemind(ctx, chatID, "off")
	case strings.HasPrefix(data, "sentence:"):
		i, err := strconv.Atoi(strings.TrimPrefix(data, "sentence:"))
		if err != nil {
			b.log.Warn("bad sentence callback", zap.String("data", data))
			return
		}
		b.selectSentence(ctx, chatID, i)
	default:
		b.log.Warn("unknown callback", zap.String("data", data))
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	b.send(chatID, "👋 영어 작문 연습\n매일 3문장 작문하기\n\n"+helpText, nil)

	enabled, hour, err := b.scheduler.Enabled(ctx, chatID)
	if err != nil {
		b.log.Warn("failed to read reminder setting", zap.Int64("chat_id", chatID), zap.Error(err))
	} else if !enabled {
		b.send(chatID, fmt.Sprintf("🔔 매일 오전 %d시 알림\n꾸준한 학습을 위해 알림을 허용해주세요", hour),
			createKeyboard([][]MenuButton{{{Text: "🔔 알림 받기", CallbackData: "remind_on"}}}))
	}

	b.showToday(ctx, chatID)
}

// showToday lists today's sentences with their progress
func (b *Bot) showToday(ctx context.Context, chatID int64) {
	cs := b.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	ctrl, err := b.controllerLocked(ctx, chatID, cs)
	if err != nil {
		b.sendGenerationError(chatID, err)
		return
	}

	s := ctrl.Session()
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 %s\n🔥 연속 %d일 · 오늘 완료 %d/%d\n", s.Date, ctrl.Streak(ctx), s.CompletedCount(), models.SentencesPerSession)

	var row []MenuButton
	for i, r := range s.Sentences {
		mark := "✏️"
		if r.Done() {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "\n%s %d. %s", mark, i+1, r.Korean)
		row = append(row, MenuButton{Text: fmt.Sprintf("%s 문장 %d", mark, i+1), CallbackData: fmt.Sprintf("sentence:%d", i)})
	}

	buttons := [][]MenuButton{row}
	if s.Completed {
		sb.WriteString("\n\n🎉 오늘의 작문을 모두 완료했습니다!")
		buttons = append(buttons, []MenuButton{{Text: "🔄 다시 연습하기", CallbackData: "reset"}})
	}
	b.send(chatID, sb.String(), createKeyboard(buttons))
}

// selectSentence shows one sentence slot and waits for the matching input
func (b *Bot) selectSentence(ctx context.Context, chatID int64, i int) {
	cs := b.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	ctrl, err := b.controllerLocked(ctx, chatID, cs)
	if err != nil {
		b.sendGenerationError(chatID, err)
		return
	}
	g, err := ctrl.Gate(i)
	if err != nil {
		b.send(chatID, "해당 문장을 찾을 수 없습니다.", todayKeyboard())
		return
	}

	snap := g.Snapshot()
	switch snap.State {
	case practice.Composing:
		text := fmt.Sprintf("문장 %d\n\n%s\n\n영어로 작문해서 보내주세요.", i+1, snap.Korean)
		if snap.UserInput != "" {
			text += "\n\n이전 입력: " + snap.UserInput
		}
		cs.state = UserState{Step: stepTranslation, Index: i, Timestamp: b.now()}
		b.send(chatID, text, nil)
	case practice.Submitted:
		b.send(chatID, "⏳ 검사 중입니다. 잠시만 기다려주세요.", nil)
	case practice.FeedbackReady, practice.Verifying:
		cs.state = UserState{Step: stepImproved, Index: i, Timestamp: b.now()}
		b.send(chatID, formatFeedback(i, snap.Korean, snap.UserInput, snap.Feedback), nil)
		b.send(chatID, improvedPrompt, nil)
	case practice.Complete:
		b.send(chatID, fmt.Sprintf("문장 %d ✓ 완료됨\n\n", i+1)+formatFeedback(i, snap.Korean, snap.UserInput, snap.Feedback), todayKeyboard())
	}
}

const (
	improvedPrompt = "📖 개선된 문장을 입력해주세요 (위 \"2. 개선된 문장\"과 같게)"
	nativePrompt   = "🌟 원어민 스타일 문장을 입력해주세요 (위 \"3. 원어민 스타일\"과 같게)"
)

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	cs := b.chat(chatID)
	cs.mu.Lock()

	if cs.state.Step == stepImport {
		cs.state = UserState{}
		cs.mu.Unlock()
		if message.Document == nil {
			b.send(chatID, "파일(.xlsx 또는 .csv)을 보내주세요. 다시 /import 를 입력해주세요.", nil)
			return
		}
		b.handleImportFile(ctx, chatID, message.Document)
		return
	}

	ctrl, err := b.controllerLocked(ctx, chatID, cs)
	if err != nil {
		cs.mu.Unlock()
		b.sendGenerationError(chatID, err)
		return
	}

	if cs.state.Step != stepIdle && b.now().Sub(cs.state.Timestamp) > b.config.StateTTL {
		cs.state = UserState{}
	}
	state := cs.state
	text := message.Text

	switch state.Step {
	case stepTranslation:
		cs.mu.Unlock()
		b.submitTranslation(ctx, chatID, cs, ctrl, state.Index, text)
		return

	case stepImproved:
		cs.state = UserState{Step: stepNative, Index: state.Index, Improved: text, Timestamp: b.now()}
		cs.mu.Unlock()
		b.send(chatID, nativePrompt, nil)
		return

	case stepNative:
		defer cs.mu.Unlock()
		b.verify(ctx, chatID, cs, ctrl, state, text)
		return
	}

	cs.mu.Unlock()
	b.send(chatID, "메뉴에서 작문할 문장을 선택해주세요.", todayKeyboard())
}

// submitTranslation asks for feedback without holding the chat lock, so the
// chat stays responsive while the request runs.
func (b *Bot) submitTranslation(ctx context.Context, chatID int64, cs *chatState, ctrl *practice.Controller, i int, text string) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.log.Debug("failed to send chat action", zap.Error(err))
	}

	err := ctrl.Submit(ctx, i, text)
	switch {
	case err == nil:
	case errors.Is(err, practice.ErrEmptyInput):
		b.send(chatID, "영어로 작문해서 보내주세요.", nil)
		return
	case errors.Is(err, practice.ErrInvalidTransition):
		b.send(chatID, "이미 검사 중이거나 완료된 문장입니다.", todayKeyboard())
		return
	default:
		b.sendGenerationError(chatID, err)
		return
	}

	g, _ := ctrl.Gate(i)
	snap := g.Snapshot()

	cs.mu.Lock()
	if cs.ctrl == ctrl {
		cs.state = UserState{Step: stepImproved, Index: i, Timestamp: b.now()}
	}
	cs.mu.Unlock()

	b.send(chatID, formatFeedback(i, snap.Korean, snap.UserInput, snap.Feedback), nil)
	b.send(chatID, "📝 학습 단계\n위의 문장들을 참고하여 개선된 문장과 원어민 스타일을 입력해주세요.\n\n"+improvedPrompt, nil)
}

// verify checks the transcriptions. cs.mu must be held.
func (b *Bot) verify(ctx context.Context, chatID int64, cs *chatState, ctrl *practice.Controller, state UserState, native string) {
	out, err := ctrl.Verify(ctx, state.Index, state.Improved, native)
	if err != nil {
		if errors.Is(err, practice.ErrInvalidTransition) {
			cs.state = UserState{}
			b.send(chatID, "이 문장은 지금 확인할 수 없습니다.", todayKeyboard())
			return
		}
		b.log.Error("failed to verify transcription", zap.Int64("chat_id", chatID), zap.Error(err))
		b.send(chatID, "저장 중 오류가 발생했습니다. 다시 시도해주세요.", nil)
		return
	}

	if !out.Verification.Matched {
		metrics.VerificationMismatches.Inc()
		cs.state = UserState{Step: stepImproved, Index: state.Index, Timestamp: b.now()}
		b.send(chatID, formatMismatches(out.Verification.Mismatches)+"\n"+improvedPrompt, nil)
		return
	}

	cs.state = UserState{}
	if out.SessionCompleted {
		return
	}
	b.send(chatID, fmt.Sprintf("✅ 문장 %d 완료! (%d/%d)", state.Index+1, out.CompletedCount, models.SentencesPerSession), todayKeyboard())
}

func (b *Bot) handleReset(ctx context.Context, chatID int64) {
	cs := b.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	ctrl, err := b.controllerLocked(ctx, chatID, cs)
	if err != nil {
		b.sendGenerationError(chatID, err)
		return
	}
	if err := ctrl.Reset(ctx); err != nil {
		b.log.Error("failed to reset session", zap.Int64("chat_id", chatID), zap.Error(err))
		b.send(chatID, "초기화에 실패했습니다. 다시 시도해주세요.", nil)
		return
	}
	cs.state = UserState{}
	b.send(chatID, "🔄 오늘의 문장을 다시 연습합니다.", todayKeyboard())
}

func (b *Bot) showStats(ctx context.Context, chatID int64) {
	cs := b.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	p := cs.manager.ReconcileStreakForToday(ctx)
	today := 0
	if s, ok := cs.manager.TodaySession(ctx); ok {
		today = s.CompletedCount()
	}
	days := 0
	for _, s := range p.Sessions {
		if s.Completed {
			days++
		}
	}

	text := fmt.Sprintf("📊 학습 통계\n\n🔥 연속일수: %d일\n📝 오늘 완료: %d/%d\n✍️ 총 작문 문장: %d\n📅 완료한 날: %d일",
		p.Streak, today, models.SentencesPerSession, p.TotalSentences, days)
	if last := p.LastCompleted(); last != "" {
		text += "\n🗓 마지막 완료: " + last
	}
	b.send(chatID, text, todayKeyboard())
}

func (b *Bot) handleRemind(ctx context.Context, chatID int64, arg string) {
	var err error
	switch strings.ToLower(arg) {
	case "":
		var enabled bool
		var hour int
		if enabled, hour, err = b.scheduler.Enabled(ctx, chatID); err != nil {
			break
		}
		status := "꺼짐"
		if enabled {
			status = fmt.Sprintf("켜짐 (매일 %d시)", hour)
		}
		b.send(chatID, "🔔 알림: "+status, createKeyboard([][]MenuButton{{
			{Text: "켜기", CallbackData: "remind_on"},
			{Text: "끄기", CallbackData: "remind_off"},
		}}))
		return
	case "on":
		if err = b.scheduler.Arm(ctx, chatID); err == nil {
			_, hour, _ := b.scheduler.Enabled(ctx, chatID)
			b.send(chatID, fmt.Sprintf("✅ 알림이 설정되었습니다!\n매일 %d시에 알림을 받게됩니다.", hour), nil)
			return
		}
	case "off":
		if err = b.scheduler.Disable(ctx, chatID); err == nil {
			b.send(chatID, "🔕 알림을 껐습니다.", nil)
			return
		}
	default:
		hour, convErr := strconv.Atoi(arg)
		if convErr != nil || hour < 0 || hour > 23 {
			b.send(chatID, "사용법: /remind on | off | 0-23", nil)
			return
		}
		if err = b.scheduler.SetHour(ctx, chatID, hour); err == nil {
			b.send(chatID, fmt.Sprintf("✅ 매일 %d시에 알림을 받게됩니다.", hour), nil)
			return
		}
	}

	b.log.Error("failed to update reminder", zap.Int64("chat_id", chatID), zap.Error(err))
	b.send(chatID, "알림 설정에 실패했습니다.", nil)
}

func (b *Bot) handleAdminStatsCommand(ctx context.Context, chatID int64) {
	if b.stats == nil {
		b.send(chatID, "통계를 사용할 수 없습니다.", nil)
		return
	}
	stats, err := b.stats.Summary(ctx)
	if err != nil {
		b.log.Error("failed to get statistics", zap.Error(err))
		b.send(chatID, "통계를 불러오지 못했습니다.", nil)
		return
	}
	b.send(chatID, fmt.Sprintf("System Statistics\n\n저장된 학습자: %d\n알림 사용: %d\n문장 저장소: %d\nServer time: %s",
		stats.Chats, stats.RemindersEnabled, stats.Sentences, b.now().In(b.loc).Format("2006-01-02 15:04:05")), nil)
}

func (b *Bot) handleImportCommand(chatID int64) {
	if b.bank == nil {
		b.send(chatID, "문장 저장소가 설정되지 않았습니다.", nil)
		return
	}
	cs := b.chat(chatID)
	cs.mu.Lock()
	cs.state = UserState{Step: stepImport, Timestamp: b.now()}
	cs.mu.Unlock()
	b.send(chatID, "한국어 문장 파일(.xlsx 또는 .csv)을 보내주세요.\n열 순서: 문장, 주제, 난이도", nil)
}

// handleImportFile downloads an uploaded sheet and imports it into the sentence bank
func (b *Bot) handleImportFile(ctx context.Context, chatID int64, doc *tgbotapi.Document) {
	ext := strings.ToLower(filepath.Ext(doc.FileName))
	if ext != ".xlsx" && ext != ".csv" {
		b.send(chatID, "지원하지 않는 파일 형식입니다. .xlsx 또는 .csv 파일을 보내주세요.", nil)
		return
	}

	path, err := b.download(ctx, doc.FileID, ext)
	if err != nil {
		b.log.Error("failed to download import file", zap.Error(err))
		b.send(chatID, "파일을 받을 수 없습니다.", nil)
		return
	}
	defer os.Remove(path)

	cfg := excel.DefaultImportConfig()
	cfg.FilePath = path
	cfg.SheetName = ""
	res, err := excel.ImportSentences(ctx, b.bank, cfg)
	if err != nil {
		b.log.Error("import failed", zap.Error(err))
		b.send(chatID, "가져오기에 실패했습니다: "+err.Error(), nil)
		return
	}

	b.log.Info("sentences imported",
		zap.Int("processed", res.TotalProcessed),
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", len(res.Errors)),
	)

	text := fmt.Sprintf("📥 가져오기 완료\n처리: %d\n추가: %d\n중복: %d\n오류: %d",
		res.TotalProcessed, res.Created, res.Skipped, len(res.Errors))
	for i, e := range res.Errors {
		if i == 5 {
			text += fmt.Sprintf("\n… 외 %d건", len(res.Errors)-5)
			break
		}
		text += "\n• " + e
	}
	b.send(chatID, text, nil)
}

func (b *Bot) download(ctx context.Context, fileID, ext string) (string, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	f, err := os.CreateTemp("", "import-*"+ext)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (b *Bot) sendGenerationError(chatID int64, err error) {
	var genErr *practice.GenerationError
	text := "오류가 발생했습니다. 다시 시도해주세요."
	if errors.As(err, &genErr) {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			text = "응답이 너무 늦어지고 있습니다. 다시 시도해주세요."
		case genErr.Kind == practice.KindValidation:
			text = "응답 형식이 올바르지 않습니다. 다시 시도해주세요."
		default:
			text = "네트워크 오류가 발생했습니다. 다시 시도해주세요."
		}
	}
	b.log.Warn("generation failed", zap.Int64("chat_id", chatID), zap.Error(err))
	b.send(chatID, text, nil)
}

// send delivers a plain text message; markup may be nil
func (b *Bot) send(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func todayKeyboard() tgbotapi.InlineKeyboardMarkup {
	return createKeyboard([][]MenuButton{{
		{Text: "📅 오늘의 문장", CallbackData: "today"},
		{Text: "📊 통계", CallbackData: "stats"},
	}})
}

func formatFeedback(i int, korean, userInput string, fb *models.Feedback) string {
	if fb == nil {
		return fmt.Sprintf("문장 %d\n\n%s", i+1, korean)
	}
	return fmt.Sprintf("문장 %d\n%s\n\n내가 입력한 문장\n%s\n\n1. 문법 체크\n%s\n\n2. 개선된 문장\n%s\n\n3. 원어민 스타일\n%s",
		i+1, korean, userInput, fb.GrammarCheck, fb.ImprovedVersion, fb.NativeVersion)
}

func formatMismatches(mismatches []practice.Mismatch) string {
	var sb strings.Builder
	sb.WriteString("❌ 입력이 정확하지 않습니다:\n")
	for _, m := range mismatches {
		label := "개선된 문장"
		if m.Field == practice.FieldNative {
			label = "원어민 스타일"
		}
		fmt.Fprintf(&sb, "• %s: \"%s\"\n", label, m.Expected)
	}
	return sb.String()
}
