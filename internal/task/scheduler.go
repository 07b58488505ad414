package task

import (
	"log/slog"
	"os"

	"github.com/robfig/cron/v3"
)

// Scheduler 封装了 cron 实例，负责后台任务的注册、启动和停止。
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler 创建调度器。
// 任务链包含 panic 恢复与日志装饰器，并通过 SkipIfStillRunning
// 保证同一任务不会有两个实例并发运行。
func NewScheduler() *Scheduler {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(handler).With("system", "cron")

	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(
			NewPanicRecoveryWrapper(logger),
			NewLoggingWrapper(logger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		),
	)

	return &Scheduler{cron: c, logger: logger}
}

// Register 按 cron 表达式注册一个任务。
func (s *Scheduler) Register(schedule string, job cron.Job) error {
	if _, err := s.cron.AddJob(schedule, job); err != nil {
		return err
	}
	s.logger.Info("job registered", "job_name", getJobName(job), "schedule", schedule)
	return nil
}

// Start 启动 cron 调度器。
func (s *Scheduler) Start() {
	s.logger.Info("cron scheduler started")
	s.cron.Start()
}

// Stop 优雅地停止调度器，等待运行中的任务结束。
func (s *Scheduler) Stop() {
	s.logger.Info("stopping cron scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("cron scheduler stopped")
}
