package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"study-planner/internal/config"
	"study-planner/internal/model"
	"study-planner/internal/planner"
	"study-planner/internal/repository"
	"study-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageName
	stageDeadline
	stageDifficulty
	stageHours
	stageNotes
	stageAwaitICS
)

const (
	cbDonePrefix       = "done:"
	cbDelSubjectPrefix = "delsubject:"
)

const (
	btnSkip         = "⏭️ Skip"
	btnConfirm      = "✅ Confirm"
	btnCancel       = "↩️ Cancel"
	btnCancelDialog = "⏪ Cancel input"
	menuLabelNew    = "➕ New subject"
	menuLabelToday  = "✅ Today"
	menuLabelWeek   = "🗓 Week"
	menuLabelHelp   = "ℹ️ Help"
)

type conversationState struct {
	stage conversationStage
	input service.SubjectInput
}

type confirmationAction int

const (
	actionDeleteSubject confirmationAction = iota
	actionResetProfile
)

type confirmationRequest struct {
	action    confirmationAction
	subjectID string
}

// Bot aggregates the Telegram API with the planner services.
type Bot struct {
	api           *tgbotapi.BotAPI
	userRepo      *repository.UserRepository
	settingsRepo  *repository.SettingsRepository
	subjectSvc    *service.SubjectService
	taskSvc       *service.TaskService
	planSvc       *service.PlanService
	calendarSvc   *service.CalendarService
	reminderSvc   *service.ReminderService
	config        *config.Config
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(
	token string,
	userRepo *repository.UserRepository,
	settingsRepo *repository.SettingsRepository,
	subjectSvc *service.SubjectService,
	taskSvc *service.TaskService,
	planSvc *service.PlanService,
	calendarSvc *service.CalendarService,
	reminderSvc *service.ReminderService,
	cfg *config.Config,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:           api,
		userRepo:      userRepo,
		settingsRepo:  settingsRepo,
		subjectSvc:    subjectSvc,
		taskSvc:       taskSvc,
		planSvc:       planSvc,
		calendarSvc:   calendarSvc,
		reminderSvc:   reminderSvc,
		config:        cfg,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled. Ready when you are.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		b.clearConfirmation(msg.From.ID)
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if state := b.getConversation(msg.From.ID); state != nil {
		if state.stage == stageAwaitICS && msg.Document != nil {
			return b.handleICSDocument(ctx, msg)
		}
		log.Printf("[info] conversation step %d from %d", state.stage, msg.From.ID)
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I didn't get that. Try /newsubject to add a subject or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "subjects":
		return b.handleSubjects(ctx, msg)
	case "newsubject":
		return b.startNewSubjectConversation(ctx, msg)
	case "delsubject":
		return b.handleDeleteSubject(ctx, msg)
	case "rename":
		return b.handleRename(ctx, msg)
	case "plan":
		return b.handlePlan(ctx, msg, false)
	case "replan":
		return b.handlePlan(ctx, msg, true)
	case "today":
		return b.handleToday(ctx, msg)
	case "week":
		return b.handleWeek(ctx, msg)
	case "done":
		return b.handleDone(ctx, msg)
	case "risk":
		return b.handleRisk(ctx, msg)
	case "progress":
		return b.handleProgress(ctx, msg)
	case "reset":
		return b.handleReset(ctx, msg)
	case "reschedule":
		return b.handleReschedule(ctx, msg)
	case "export":
		return b.handleExportICS(ctx, msg)
	case "exportpdf":
		return b.handleExportPDF(ctx, msg)
	case "importics":
		return b.handleImportICS(ctx, msg)
	case "settings":
		return b.handleSettings(ctx, msg)
	case "set":
		return b.handleSet(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I'm a study planner: I split your subjects into daily study sessions.</b>\n\nStart with:\n"+
			"• /newsubject — add a subject with a deadline\n"+
			"• /plan — build a study plan for the next 7 days\n"+
			"• /today — what's on today\n"+
			"• /help — full command list",
		escape(name),
	)

	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /subjects — list your subjects\n" +
		"• /newsubject — add a subject step by step\n" +
		"• /delsubject — delete a subject and its sessions\n" +
		"• /rename &lt;old&gt; | &lt;new&gt; — rename a subject\n" +
		"• /plan — fill the next 7 days with study sessions\n" +
		"• /replan — regenerate, replacing unfinished generated sessions\n" +
		"• /today — today's sessions, tap to mark done\n" +
		"• /week — this week's sessions\n" +
		"• /done — same as /today\n" +
		"• /risk — which subjects are in danger\n" +
		"• /progress — how much of each subject is done\n" +
		"• /reschedule — push overdue sessions into future days\n" +
		"• /importics — upload an .ics file with your busy times\n" +
		"• /export — download the plan as an .ics calendar\n" +
		"• /exportpdf — download the week as a PDF\n" +
		"• /settings — show planning settings\n" +
		"• /set &lt;key&gt; &lt;value&gt; — change a setting\n" +
		"• /reset — clear subjects, sessions and busy times (settings stay)\n" +
		"• /cancel — cancel the current input"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleSubjects(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	subjects, err := b.subjectSvc.List(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load subjects: %s", escape(err.Error())))
	}
	if len(subjects) == 0 {
		return b.sendText(msg.Chat.ID, "No subjects yet. Add one with /newsubject.")
	}

	today := model.DayOf(time.Now())
	var builder strings.Builder
	builder.WriteString("📚 <b>Your subjects</b>\n\n")
	for _, s := range subjects {
		builder.WriteString(formatSubject(s, today))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func formatSubject(s model.Subject, today time.Time) string {
	var b strings.Builder
	icon := "🟢"
	days := int(s.Deadline.Sub(today).Hours() / 24)
	switch {
	case days < 0:
		icon = "⚠️"
	case days <= 3:
		icon = "⏳"
	}
	b.WriteString(fmt.Sprintf("%s <b>%s</b>\n", icon, escape(s.Name)))
	if days < 0 {
		b.WriteString(fmt.Sprintf("   ⏰ deadline %s — <b>passed</b>\n", s.Deadline.Format("2006-01-02")))
	} else {
		b.WriteString(fmt.Sprintf("   ⏰ deadline %s · %d day(s) left\n", s.Deadline.Format("2006-01-02"), days))
	}
	b.WriteString(fmt.Sprintf("   📈 difficulty %d/5 · %.1f h estimated\n", s.Difficulty, s.EstHours))
	if notes := strings.TrimSpace(s.Notes); notes != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(notes)))
	}
	b.WriteByte('\n')
	return b.String()
}

func (b *Bot) startNewSubjectConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	log.Printf("[info] start new subject conversation user=%d", msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageName})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 Adding a subject.\n<b>Step 1:</b> what is it called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageName:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The name can't be empty. What is the subject called?", cancelKeyboard())
		}
		state.input.Name = text
		state.stage = stageDeadline
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ <b>Step 2:</b> when is the exam or deadline? Format <code>2026-09-15</code>.", cancelKeyboard())
	case stageDeadline:
		parsed, err := time.Parse("2006-01-02", text)
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "I can't read that date. Use the format <code>2026-09-15</code>.", cancelKeyboard())
		}
		state.input.Deadline = parsed
		state.stage = stageDifficulty
		return b.sendWithReplyMarkup(msg.Chat.ID, "📈 <b>Step 3:</b> how hard is it, 1 (easy) to 5 (brutal)?", difficultyKeyboard())
	case stageDifficulty:
		difficulty, err := strconv.Atoi(text)
		if err != nil || difficulty < 1 || difficulty > 5 {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Difficulty must be a number from 1 to 5.", difficultyKeyboard())
		}
		state.input.Difficulty = difficulty
		state.stage = stageHours
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏳ <b>Step 4:</b> how many hours of study do you estimate? (e.g. <code>6</code> or <code>2.5</code>)", cancelKeyboard())
	case stageHours:
		hours, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64)
		if err != nil || hours <= 0 {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Hours must be a positive number, e.g. <code>2.5</code>.", cancelKeyboard())
		}
		state.input.EstHours = hours
		state.stage = stageNotes
		return b.sendWithReplyMarkup(msg.Chat.ID, "📝 <b>Step 5:</b> any notes? (or tap Skip)", skipKeyboard())
	case stageNotes:
		if !isSkipInput(text) {
			state.input.Notes = text
		}
		err := b.finishSubjectCreation(ctx, msg.From, state.input, msg.Chat.ID)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Dialog reset. Try again with /newsubject.")
	}
}

func (b *Bot) finishSubjectCreation(ctx context.Context, from *tgbotapi.User, input service.SubjectInput, chatID int64) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	subject, err := b.subjectSvc.Create(ctx, user, input)
	if err != nil {
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Could not save the subject: %s", escape(err.Error())))
	}

	log.Printf("[info] subject created id=%s user=%d", subject.ID, user.ID)

	var summary strings.Builder
	summary.WriteString("✅ <b>Subject saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>Name:</b> %s\n", escape(subject.Name)))
	summary.WriteString(fmt.Sprintf("• <b>Deadline:</b> %s\n", subject.Deadline.Format("2006-01-02")))
	summary.WriteString(fmt.Sprintf("• <b>Difficulty:</b> %d/5\n", subject.Difficulty))
	summary.WriteString(fmt.Sprintf("• <b>Estimated:</b> %.1f h\n", subject.EstHours))
	if subject.Notes != "" {
		summary.WriteString(fmt.Sprintf("• <b>Notes:</b> %s\n", escape(subject.Notes)))
	}
	summary.WriteString("\nRun /plan to schedule it.")

	return b.sendTextWithRemove(chatID, strings.TrimSpace(summary.String()))
}

func (b *Bot) handleDeleteSubject(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	subjects, err := b.subjectSvc.List(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load subjects: %s", escape(err.Error())))
	}
	if len(subjects) == 0 {
		return b.sendText(msg.Chat.ID, "No subjects to delete.")
	}

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, s := range subjects {
		buttons = append(buttons, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🗑 %s", shortName(s.Name, 32)), cbDelSubjectPrefix+s.ID),
		})
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, "Which subject should I delete? Its study sessions go with it.")
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	out.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) handleRename(ctx context.Context, msg *tgbotapi.Message) error {
	args := msg.CommandArguments()
	parts := strings.SplitN(args, "|", 2)
	if len(parts) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /rename Old name | New name")
	}
	oldName := strings.TrimSpace(parts[0])
	newName := strings.TrimSpace(parts[1])
	if oldName == "" || newName == "" {
		return b.sendText(msg.Chat.ID, "Usage: /rename Old name | New name")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	subject, err := b.findSubjectByName(ctx, user, oldName)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("I don't know a subject called \"%s\".", escape(oldName)))
	}

	if err := b.subjectSvc.Rename(ctx, user, subject.ID, newName); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Rename failed: %s", escape(err.Error())))
	}

	log.Printf("[info] subject renamed id=%s user=%d", subject.ID, user.ID)
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✏️ \"%s\" is now \"%s\". Session labels were updated too.", escape(oldName), escape(newName)))
}

func (b *Bot) handlePlan(ctx context.Context, msg *tgbotapi.Message, replace bool) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	created, err := b.planSvc.GenerateWeek(ctx, user, time.Now(), replace)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Planning failed: %s", escape(err.Error())))
	}

	log.Printf("[info] plan generated user=%d created=%d replace=%t", user.ID, len(created), replace)

	if len(created) == 0 {
		return b.sendText(msg.Chat.ID, "Nothing new to schedule: everything is either planned already or there is no free capacity this week. Check /subjects and /settings.")
	}

	total := 0
	for _, t := range created {
		total += t.Minutes
	}
	if err := b.sendText(msg.Chat.ID, fmt.Sprintf("🗓 Scheduled <b>%d</b> session(s), %d minutes in total.", len(created), total)); err != nil {
		return err
	}
	return b.sendWeek(ctx, msg.Chat.ID, user)
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	tasks, err := b.planSvc.DayTasks(ctx, user, time.Now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load today's plan: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, "Nothing scheduled today. Run /plan to fill the week.")
	}
	return b.sendTaskButtons(msg.Chat.ID, "✅ <b>Today</b>\nTap a session to toggle it done.", tasks)
}

func (b *Bot) handleWeek(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendWeek(ctx, msg.Chat.ID, user)
}

// handleDone is an alias for the today view; completion happens through
// the inline buttons.
func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	return b.handleToday(ctx, msg)
}

func (b *Bot) sendWeek(ctx context.Context, chatID int64, user *model.User) error {
	start := model.DayOf(time.Now())
	tasks, err := b.planSvc.WeekTasks(ctx, user, start)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load the week: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "The week is empty. Run /plan to fill it.")
	}

	byDay := make(map[time.Time][]model.Task)
	var days []time.Time
	for _, t := range tasks {
		d := model.DayOf(t.Day)
		if _, ok := byDay[d]; !ok {
			days = append(days, d)
		}
		byDay[d] = append(byDay[d], t)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var builder strings.Builder
	builder.WriteString("🗓 <b>This week</b>\n\n")
	for _, d := range days {
		builder.WriteString(fmt.Sprintf("<b>%s</b>\n", d.Format("Mon, 02 Jan")))
		for _, t := range byDay[d] {
			builder.WriteString(formatTaskRow(t))
		}
		builder.WriteByte('\n')
	}
	builder.WriteString("Use /today to mark sessions done.")
	return b.sendText(chatID, strings.TrimSpace(builder.String()))
}

func formatTaskRow(t model.Task) string {
	icon := "▫️"
	switch {
	case t.Done:
		icon = "✅"
	case t.Overflow:
		icon = "⚠️"
	}
	row := fmt.Sprintf("%s %s — %d min", icon, escape(t.SubjectName), t.Minutes)
	if notes := strings.TrimSpace(t.Notes); notes != "" {
		row += fmt.Sprintf(" <i>(%s)</i>", escape(notes))
	}
	return row + "\n"
}

func (b *Bot) sendTaskButtons(chatID int64, header string, tasks []model.Task) error {
	var builder strings.Builder
	builder.WriteString(header)
	builder.WriteString("\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, t := range tasks {
		builder.WriteString(formatTaskRow(t))
		label := fmt.Sprintf("✅ %s · %d min", shortName(t.SubjectName, 20), t.Minutes)
		if t.Done {
			label = fmt.Sprintf("↩️ %s · undo", shortName(t.SubjectName, 20))
		}
		buttons = append(buttons, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, cbDonePrefix+t.ID),
		})
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleRisk(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	risks, err := b.planSvc.RiskList(ctx, user, time.Now(), b.config.RiskLimit)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the risk list: %s", escape(err.Error())))
	}
	if len(risks) == 0 {
		return b.sendText(msg.Chat.ID, "🟢 Nothing at risk. All subjects are on track or fully planned.")
	}

	var builder strings.Builder
	builder.WriteString("🚨 <b>Subjects at risk</b>\n\n")
	for _, r := range risks {
		builder.WriteString(formatRisk(r))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func formatRisk(r planner.RiskItem) string {
	icon := "🟡"
	switch r.Level {
	case planner.RiskHigh:
		icon = "🔴"
	case planner.RiskLow:
		icon = "🟢"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>%s</b> (%s)\n", icon, escape(r.Subject), r.Level))
	b.WriteString(fmt.Sprintf("   %d min left · %d day(s) to %s\n", r.RemainingMinutes, r.DaysLeft, r.Deadline.Format("02 Jan")))
	b.WriteString(fmt.Sprintf("   try ~%d min today\n\n", r.SuggestedTodayMinutes))
	return b.String()
}

func (b *Bot) handleProgress(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	text, err := b.reminderSvc.ProgressReport(ctx, *user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the progress report: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleReset(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	b.setConfirmation(msg.From.ID, confirmationRequest{action: actionResetProfile})
	return b.sendWithReplyMarkup(msg.Chat.ID, "Clear <b>all</b> subjects, study sessions and imported busy times? Settings stay.", confirmKeyboard())
}

func (b *Bot) handleReschedule(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	overdue, overflows, err := b.planSvc.RescheduleOverdue(ctx, user, time.Now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Rescheduling failed: %s", escape(err.Error())))
	}
	if overdue == 0 {
		return b.sendText(msg.Chat.ID, "Nothing overdue. The plan is current.")
	}

	log.Printf("[info] rescheduled user=%d overdue=%d overflows=%d", user.ID, overdue, overflows)

	text := fmt.Sprintf("🔀 Moved <b>%d</b> overdue session(s) into the coming days.", overdue)
	if overflows > 0 {
		text += fmt.Sprintf("\n⚠️ %d session(s) did not fit anywhere and are marked as overflow.", overflows)
	}
	if err := b.sendText(msg.Chat.ID, text); err != nil {
		return err
	}
	return b.sendWeek(ctx, msg.Chat.ID, user)
}

func (b *Bot) handleImportICS(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	if strings.EqualFold(strings.TrimSpace(msg.CommandArguments()), "clear") {
		if err := b.calendarSvc.ClearEvents(ctx, user); err != nil {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not clear events: %s", escape(err.Error())))
		}
		return b.sendText(msg.Chat.ID, "🧹 Imported busy times cleared.")
	}

	b.setConversation(msg.From.ID, &conversationState{stage: stageAwaitICS})
	return b.sendWithReplyMarkup(msg.Chat.ID, "📎 Send me an <b>.ics</b> file with your busy times. They replace the previously imported ones.\n(Or /importics clear to drop them.)", cancelKeyboard())
}

func (b *Bot) handleICSDocument(ctx context.Context, msg *tgbotapi.Message) error {
	b.clearConversation(msg.From.ID)

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	data, err := b.downloadDocument(msg.Document)
	if err != nil {
		log.Printf("download ics user=%d: %v", user.ID, err)
		return b.sendTextWithRemove(msg.Chat.ID, "I could not download that file. Please try again.")
	}

	count, err := b.calendarSvc.ImportICS(ctx, user, data)
	if err != nil {
		return b.sendTextWithRemove(msg.Chat.ID, fmt.Sprintf("That does not look like a valid ICS file: %s", escape(err.Error())))
	}

	log.Printf("[info] ics imported user=%d events=%d", user.ID, count)
	return b.sendTextWithRemove(msg.Chat.ID, fmt.Sprintf("📥 Imported <b>%d</b> busy slot(s). They now count against your daily capacity; run /replan to refresh the plan.", count))
}

func (b *Bot) downloadDocument(doc *tgbotapi.Document) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch file: status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (b *Bot) handleExportICS(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	data, warnings, err := b.calendarSvc.ExportICS(ctx, user, time.Now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Export failed: %s", escape(err.Error())))
	}

	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{Name: "study_plan.ics", Bytes: data})
	doc.Caption = "🗓 Your study plan as a calendar."
	if _, err := b.api.Send(doc); err != nil {
		return err
	}

	if len(warnings) > 0 {
		var builder strings.Builder
		builder.WriteString("⚠️ <b>Heads up</b>\n")
		for _, w := range warnings {
			builder.WriteString(fmt.Sprintf("• %s\n", escape(w)))
		}
		return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
	}
	return nil
}

func (b *Bot) handleExportPDF(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	data, err := b.calendarSvc.ExportPDF(ctx, user, time.Now(), b.config.RiskLimit)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Export failed: %s", escape(err.Error())))
	}

	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{Name: "study_plan.pdf", Bytes: data})
	doc.Caption = "📄 Your week plan."
	_, err = b.api.Send(doc)
	return err
}

func (b *Bot) handleSettings(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	settings, err := b.settingsRepo.GetOrCreate(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load settings: %s", escape(err.Error())))
	}

	rest := "none"
	if days := settings.RestDaySlice(); len(days) > 0 {
		names := make([]string, 0, len(days))
		for _, d := range days {
			names = append(names, weekdayNames[d])
		}
		rest = strings.Join(names, ", ")
	}

	text := fmt.Sprintf(
		"⚙️ <b>Planning settings</b>\n"+
			"• <b>minutes</b> per day: %d\n"+
			"• <b>buffer</b> reserved daily: %d min\n"+
			"• <b>chunk</b> session length: %d min\n"+
			"• <b>rest</b> days: %s\n"+
			"• <b>window</b> for calendar export: %02d:00–%02d:00\n\n"+
			"Change with /set &lt;key&gt; &lt;value&gt;, e.g. <code>/set minutes 120</code> or <code>/set rest sat,sun</code>.",
		settings.MinutesPerDay,
		settings.DailyBufferMinutes,
		settings.EffectiveChunk(),
		rest,
		settings.PreferredStartHour,
		settings.PreferredEndHour,
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleSet(ctx context.Context, msg *tgbotapi.Message) error {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /set <key> <value>. Keys: minutes, buffer, chunk, rest, start, end. See /settings.")
	}
	key := strings.ToLower(fields[0])
	value := fields[1]

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	settings, err := b.settingsRepo.GetOrCreate(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load settings: %s", escape(err.Error())))
	}

	if err := applySetting(settings, key, value); err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	if err := b.settingsRepo.Save(ctx, settings); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not save: %s", escape(err.Error())))
	}

	log.Printf("[info] setting updated user=%d key=%s", user.ID, key)
	return b.sendText(msg.Chat.ID, "⚙️ Saved. Run /replan to apply it to the current plan.")
}

var weekdayNames = [7]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

func applySetting(settings *model.Settings, key, value string) error {
	switch key {
	case "minutes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("minutes must be a number, e.g. /set minutes 120")
		}
		settings.MinutesPerDay = n
	case "buffer":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("buffer must be a number of minutes, e.g. /set buffer 30")
		}
		settings.DailyBufferMinutes = n
	case "chunk":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("chunk must be 25, 45 or 60")
		}
		settings.ChunkMinutes = n
	case "start":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("start must be an hour 0-23, e.g. /set start 17")
		}
		settings.PreferredStartHour = n
	case "end":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("end must be an hour 0-23, e.g. /set end 22")
		}
		settings.PreferredEndHour = n
	case "rest":
		days, err := parseRestDays(value)
		if err != nil {
			return err
		}
		settings.SetRestDays(days)
	default:
		return fmt.Errorf("unknown key %q; keys: minutes, buffer, chunk, rest, start, end", key)
	}
	return settings.Validate()
}

func parseRestDays(value string) ([]int, error) {
	if strings.EqualFold(value, "none") {
		return nil, nil
	}
	var days []int
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		found := -1
		for i, name := range weekdayNames {
			if part == name {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("unknown day %q; use mon..sun, e.g. /set rest sat,sun", part)
		}
		days = append(days, found)
	}
	return days, nil
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		if req.action == actionResetProfile {
			return b.resetProfileConfirmed(ctx, msg.Chat.ID, msg.From)
		}
		return b.deleteSubjectConfirmed(ctx, msg.Chat.ID, msg.From, req.subjectID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendTextWithRemove(msg.Chat.ID, "Cancelled, nothing was changed.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or cancel first.", confirmKeyboard())
	}
}

func (b *Bot) resetProfileConfirmed(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	if err := b.userRepo.ResetProfile(ctx, user.ID); err != nil {
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Reset failed: %s", escape(err.Error())))
	}

	log.Printf("[info] profile reset user=%d", user.ID)
	return b.sendTextWithRemove(chatID, "🧹 Profile reset: subjects, sessions and busy times are gone. Your settings were kept.")
}

func (b *Bot) deleteSubjectConfirmed(ctx context.Context, chatID int64, from *tgbotapi.User, subjectID string) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	subject, err := b.subjectSvc.Get(ctx, user, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendTextWithRemove(chatID, "That subject is already gone.")
		}
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	if err := b.subjectSvc.Delete(ctx, user, subjectID); err != nil {
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Could not delete: %s", escape(err.Error())))
	}

	log.Printf("[info] subject deleted id=%s user=%d", subjectID, user.ID)
	return b.sendTextWithRemove(chatID, fmt.Sprintf("🗑 \"%s\" and its sessions were deleted.", escape(subject.Name)))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbDonePrefix):
		taskID := strings.TrimPrefix(data, cbDonePrefix)
		log.Printf("[info] callback toggle done user=%d task=%s", cb.From.ID, taskID)
		return b.toggleTaskDone(ctx, cb.Message.Chat.ID, cb.From, taskID)
	case strings.HasPrefix(data, cbDelSubjectPrefix):
		subjectID := strings.TrimPrefix(data, cbDelSubjectPrefix)
		log.Printf("[info] callback delete subject user=%d subject=%s", cb.From.ID, subjectID)
		return b.askDeleteConfirmation(ctx, cb.Message.Chat.ID, cb.From, subjectID)
	default:
		return nil
	}
}

func (b *Bot) toggleTaskDone(ctx context.Context, chatID int64, from *tgbotapi.User, taskID string) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.Get(ctx, user, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(chatID, "That session no longer exists.")
		}
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	if err := b.taskSvc.SetDone(ctx, user, taskID, !task.Done); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	if task.Done {
		return b.sendText(chatID, fmt.Sprintf("↩️ \"%s\" is back on the list.", escape(task.SubjectName)))
	}
	return b.sendText(chatID, fmt.Sprintf("✅ %d min of \"%s\" done. Keep going!", task.Minutes, escape(task.SubjectName)))
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, subjectID string) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	subject, err := b.subjectSvc.Get(ctx, user, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(chatID, "That subject is already gone.")
		}
		return err
	}

	b.setConfirmation(from.ID, confirmationRequest{action: actionDeleteSubject, subjectID: subject.ID})
	text := fmt.Sprintf("Delete \"%s\" with all its study sessions?", escape(subject.Name))
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

// SendDailyReports sends the daily summary to every known user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.reminderSvc.DailySummary(ctx, user, now)
		if err != nil {
			log.Printf("build summary for user %d: %v", user.TelegramID, err)
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			log.Printf("send summary to %d: %v", user.TelegramID, err)
		}
	}
	return nil
}

func (b *Bot) findSubjectByName(ctx context.Context, user *model.User, name string) (*model.Subject, error) {
	subjects, err := b.subjectSvc.List(ctx, user)
	if err != nil {
		return nil, err
	}
	for i := range subjects {
		if strings.EqualFold(subjects[i].Name, name) {
			return &subjects[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNew):
		return true, b.startNewSubjectConversation(ctx, msg)
	case strings.ToLower(menuLabelToday):
		return true, b.handleToday(ctx, msg)
	case strings.ToLower(menuLabelWeek):
		return true, b.handleWeek(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNew),
			tgbotapi.NewKeyboardButton(menuLabelToday),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelWeek),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func difficultyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("1"),
			tgbotapi.NewKeyboardButton("2"),
			tgbotapi.NewKeyboardButton("3"),
			tgbotapi.NewKeyboardButton("4"),
			tgbotapi.NewKeyboardButton("5"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "cancel" || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel input"
}

func escape(s string) string {
	return html.EscapeString(s)
}

func shortName(name string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(name, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}
