package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/xpzouying/tistory-autopost/configs"
)

// 预设的调度类型
const (
	TypeManual          = "manual"
	TypeHourly          = "hourly"
	TypeDaily9AM        = "daily_9am"
	TypeEvery30Min      = "every_30min"
	TypeThreeTimesDaily = "three_times_daily"
	TypeWeekdays9AM     = "weekdays_9am"
	TypeCustom          = "custom"
)

var presets = map[string]string{
	TypeHourly:          "0 * * * *",
	TypeDaily9AM:        "0 9 * * *",
	TypeEvery30Min:      "*/30 * * * *",
	TypeThreeTimesDaily: "0 9,13,18 * * *",
	TypeWeekdays9AM:     "0 9 * * 1-5",
}

// ErrManual manual 类型不需要调度器
var ErrManual = errors.New("schedule type is manual")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Expression 返回调度类型对应的 cron 表达式并校验
func Expression(cfg configs.ScheduleConfig) (string, error) {
	var expr string
	switch cfg.Type {
	case "", TypeManual:
		return "", ErrManual
	case TypeCustom:
		expr = cfg.CustomCron
	default:
		var ok bool
		if expr, ok = presets[cfg.Type]; !ok {
			return "", errors.Errorf("unknown schedule type: %s", cfg.Type)
		}
	}
	if _, err := parser.Parse(expr); err != nil {
		return "", errors.Wrapf(err, "invalid cron expression %q", expr)
	}
	return expr, nil
}

// Job 定时执行的任务
type Job func(ctx context.Context) error

// Scheduler 按 cron 表达式触发任务，上一次未结束时跳过本次
type Scheduler struct {
	cron *cron.Cron
	expr string
	job  Job

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	entryID  cron.EntryID
	stopOnce sync.Once
	stopped  chan struct{}
}

func New(cfg configs.ScheduleConfig, job Job) (*Scheduler, error) {
	expr, err := Expression(cfg)
	if err != nil {
		return nil, err
	}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	return &Scheduler{
		cron:    c,
		expr:    expr,
		job:     job,
		stopped: make(chan struct{}),
	}, nil
}

// Start 注册任务并启动，ctx 取消时自动停止
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)
	id, err := s.cron.AddFunc(s.expr, s.run)
	if err != nil {
		return errors.Wrapf(err, "register job %q", s.expr)
	}
	s.entryID = id
	s.cron.Start()
	logrus.Infof("调度器已启动: %s, 下次运行 %s", s.expr, s.Next().Format(time.RFC3339))

	go func() {
		<-s.ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	logrus.Info("定时任务开始")
	if err := s.job(ctx); err != nil {
		logrus.Errorf("定时任务失败: %v", err)
		return
	}
	logrus.Infof("定时任务完成，下次运行 %s", s.Next().Format(time.RFC3339))
}

// Next 下一次触发时间
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// Expr 当前使用的 cron 表达式
func (s *Scheduler) Expr() string {
	return s.expr
}

// Stop 停止调度并等待正在运行的任务结束，可重复调用
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()

		stopCtx := s.cron.Stop()
		if cancel != nil {
			cancel()
		}
		<-stopCtx.Done()
		close(s.stopped)
		logrus.Info("调度器已停止")
	})
}

// Done 完全停止后关闭
func (s *Scheduler) Done() <-chan struct{} {
	return s.stopped
}
