package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"study-planner/internal/bot"
	"study-planner/internal/config"
	"study-planner/internal/repository"
	"study-planner/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	eventRepo := repository.NewEventRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	subjectSvc := service.NewSubjectService(subjectRepo)
	taskSvc := service.NewTaskService(taskRepo, subjectRepo)
	planSvc := service.NewPlanService(subjectRepo, taskRepo, eventRepo, settingsRepo)
	calendarSvc := service.NewCalendarService(subjectRepo, taskRepo, eventRepo, settingsRepo)
	reminderSvc := service.NewReminderService(subjectRepo, taskRepo)

	telegramBot, err := bot.New(cfg.TelegramToken, userRepo, settingsRepo, subjectSvc, taskSvc, planSvc, calendarSvc, reminderSvc, &cfg)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	scheduler := service.NewSchedulerService(time.Local)
	if cfg.ReportTime != "" {
		if _, err := scheduler.ScheduleDaily(cfg.ReportTime, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("daily report: %v", err)
			}
		}); err != nil {
			log.Fatalf("schedule reports: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	log.Println("Study planner bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
