package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/maksimkurganov/vpn-backoffice/internal/errs"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/sl"
)

// Scheduler запускает прогон всех правил по крон-расписанию.
// Расписание можно менять на лету без перезапуска процесса.
type Scheduler struct {
	engine *Engine
	log    *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	spec    string
	entryID cron.EntryID
}

// NewScheduler создает новый экземпляр Scheduler.
func NewScheduler(engine *Engine, log *slog.Logger) *Scheduler {
	return &Scheduler{
		engine: engine,
		log:    log,
	}
}

// Start регистрирует прогон по расписанию и запускает крон.
func (s *Scheduler) Start(spec string) error {
	const op = "broadcast.Scheduler.Start"

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("%s: already started: %w", op, errs.ErrConflict)
	}

	c := cron.New()
	id, err := c.AddFunc(spec, s.run)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.Start()
	s.cron = c
	s.spec = spec
	s.entryID = id
	s.log.Info("broadcast scheduler started", slog.String("cron", spec))
	return nil
}

// Reschedule заменяет расписание. Проверка нового выражения выполняется
// до снятия старой записи, ошибочное расписание оставляет прежнее в силе.
func (s *Scheduler) Reschedule(spec string) error {
	const op = "broadcast.Scheduler.Reschedule"

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return fmt.Errorf("%s: scheduler is not started: %w", op, errs.ErrConflict)
	}

	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.cron.Remove(s.entryID)
	s.entryID = id
	s.spec = spec
	s.log.Info("broadcast scheduler rescheduled", slog.String("cron", spec))
	return nil
}

// Spec возвращает текущее крон-выражение.
func (s *Scheduler) Spec() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// Stop останавливает крон и дожидается завершения текущего прогона.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.log.Info("broadcast scheduler stopped")
}

func (s *Scheduler) run() {
	if _, err := s.engine.RunAllRules(context.Background()); err != nil {
		s.log.Error("scheduled broadcast run failed", sl.Err(err))
	}
}
