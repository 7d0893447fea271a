package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/xpzouying/tistory-autopost/browser"
	"github.com/xpzouying/tistory-autopost/configs"
	"github.com/xpzouying/tistory-autopost/pkg/downloader"
	"github.com/xpzouying/tistory-autopost/pkg/metrics"
	"github.com/xpzouying/tistory-autopost/runner"
	"github.com/xpzouying/tistory-autopost/scheduler"
	"github.com/xpzouying/tistory-autopost/tistory"
)

// errSilentExit 结果已经输出，只需要非零退出码
var errSilentExit = errors.New("exit 1")

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP/MCP 服务，按配置运行定时任务",
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			cfg, err := loadConfig(cmd,
				bind(fs, "server.port", "port"),
				bind(fs, "runner.isolate", "isolate"),
				bind(fs, "runner.dry_run", "dry-run"),
			)
			if err != nil {
				return err
			}

			pool := browser.NewPool(browser.PoolConfig{
				Proxy:       cfg.Browser.Proxy,
				Lang:        cfg.Browser.Lang,
				CookiesPath: cfg.Browser.CookiesPath,
				ProfileDir:  os.Getenv("ROD_DIR"),
			})
			service := NewTistoryService(cfg,
				WithPool(pool),
				WithMetrics(metrics.Default()),
				WithConfigPath(configFile),
			)

			var sched *scheduler.Scheduler
			if cfg.Schedule.Type != scheduler.TypeManual {
				sched, err = scheduler.New(cfg.Schedule, func(ctx context.Context) error {
					_, err := service.RunFeed(ctx)
					return err
				})
				if err != nil {
					return err
				}
			}

			return NewAppServer(service, sched).Start(cfg.Server.Port)
		},
	}
	cmd.Flags().String("port", ":18070", "监听地址")
	cmd.Flags().Bool("isolate", false, "每篇文章在独立子进程中发布")
	cmd.Flags().Bool("dry-run", false, "只生成文章，不发布")
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "处理一次订阅源",
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			cfg, err := loadConfig(cmd,
				bind(fs, "runner.dry_run", "dry-run"),
				bind(fs, "runner.isolate", "isolate"),
				bind(fs, "feed.url", "feed"),
				bind(fs, "feed.max_articles_per_run", "max"),
			)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			service := NewTistoryService(cfg, WithConfigPath(configFile))
			summary, err := service.RunFeed(ctx)
			if summary != nil {
				printSummary(os.Stdout, summary)
			}
			return err
		},
	}
	cmd.Flags().Bool("dry-run", false, "只生成文章，不发布也不记录")
	cmd.Flags().Bool("isolate", false, "每篇文章在独立子进程中发布")
	cmd.Flags().String("feed", "", "订阅源地址，覆盖配置")
	cmd.Flags().Int("max", 3, "本次最多处理的文章数")
	return cmd
}

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "不启动 HTTP 服务，只按计划定时处理订阅源",
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			cfg, err := loadConfig(cmd,
				bind(fs, "schedule.type", "type"),
				bind(fs, "schedule.custom_cron", "cron"),
				bind(fs, "runner.dry_run", "dry-run"),
				bind(fs, "runner.isolate", "isolate"),
			)
			if err != nil {
				return err
			}

			service := NewTistoryService(cfg, WithConfigPath(configFile), WithMetrics(metrics.Default()))
			sched, err := scheduler.New(cfg.Schedule, func(ctx context.Context) error {
				summary, err := service.RunFeed(ctx)
				if summary != nil {
					printSummary(os.Stdout, summary)
				}
				return err
			})
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			if err := sched.Start(ctx); err != nil {
				return err
			}
			fmt.Printf("%s %s, 下次运行 %s\n", cyan("定时任务:"), sched.Expr(), sched.Next().Format("2006-01-02 15:04:05"))
			<-sched.Done()
			return nil
		},
	}
	cmd.Flags().String("type", "", "计划类型: hourly/daily_9am/every_30min/three_times_daily/weekdays_9am/custom")
	cmd.Flags().String("cron", "", "custom 类型使用的 cron 表达式")
	cmd.Flags().Bool("dry-run", false, "只生成文章，不发布")
	cmd.Flags().Bool("isolate", false, "每篇文章在独立子进程中发布")
	return cmd
}

type postFlags struct {
	title    string
	body     string
	bodyFile string
	category string
	tags     []string
	json     bool
}

func newPostCmd() *cobra.Command {
	var f postFlags
	cmd := &cobra.Command{
		Use:   "post",
		Short: "发布一篇 HTML 文章",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			req, err := f.request()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			res := NewTistoryService(cfg).Post(ctx, req)
			if f.json {
				if err := writeResult(os.Stdout, res); err != nil {
					return err
				}
			} else {
				printResult(os.Stdout, res)
			}
			if !res.Success {
				return errSilentExit
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.title, "title", "", "文章标题")
	fs.StringVar(&f.body, "body", "", "HTML 正文")
	fs.StringVar(&f.bodyFile, "body-file", "", "从文件读取 HTML 正文")
	fs.StringVar(&f.category, "category", "", "分类")
	fs.StringSliceVar(&f.tags, "tags", nil, "标签，逗号分隔")
	fs.BoolVar(&f.json, "json", false, "以单行 JSON 输出结果")
	_ = cmd.MarkFlagRequired("title")
	cmd.MarkFlagsMutuallyExclusive("body", "body-file")
	return cmd
}

func (f *postFlags) request() (tistory.PostRequest, error) {
	body := f.body
	if f.bodyFile != "" {
		text, err := downloader.ReadTextFile(f.bodyFile)
		if err != nil {
			return tistory.PostRequest{}, err
		}
		body = text
	}

	var tags []string
	for _, t := range f.tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	req := tistory.PostRequest{
		Title:    f.title,
		BodyHTML: body,
		Category: f.category,
		Tags:     tags,
	}
	return req, req.Validate()
}

// writeResult 输出单行 JSON，供父进程解析
func writeResult(w io.Writer, res tistory.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return errors.Wrap(err, "marshal result")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printResult(w io.Writer, res tistory.Result) {
	if res.Success {
		fmt.Fprintf(w, "%s %s\n", green("✓ 发布成功"), res.URL)
		fmt.Fprintf(w, "  %s %s\n", gray("写入方式:"), res.Strategy)
		if !res.HTMLInjected {
			fmt.Fprintf(w, "  %s\n", yellow("未切换到 HTML 模式，正文以纯文本写入"))
		}
		return
	}
	if res.Failure == nil {
		fmt.Fprintln(w, red("✗ 发布失败"))
		return
	}
	fmt.Fprintf(w, "%s [%s/%s] %s\n", red("✗ 发布失败"), res.Failure.Step, res.Failure.Kind, res.Failure.Message)
	fmt.Fprintf(w, "  %s %v\n", gray("已完成步骤:"), res.Trace)
}

func printSummary(w io.Writer, s *runner.Summary) {
	fmt.Fprintf(w, "\n%s %s\n", bold("运行汇总"), gray(s.RunID))
	fmt.Fprintf(w, "  订阅源文章 %d, 新文章 %d, 耗时 %s\n", s.Found, s.New, s.Duration)
	fmt.Fprintf(w, "  %s %d  %s %d  %s %d  %s %d\n",
		green("发布"), s.Published, red("失败"), s.Failed,
		yellow("跳过"), s.Skipped, cyan("试运行"), s.DryRun)

	for _, item := range s.Items {
		var mark string
		switch item.Status {
		case runner.StatusPublished:
			mark = green("✓")
		case runner.StatusFailed:
			mark = red("✗")
		case runner.StatusSkipped:
			mark = yellow("-")
		default:
			mark = cyan("○")
		}
		line := fmt.Sprintf("  %s %s", mark, item.Title)
		if item.URL != "" {
			line += " " + gray(item.URL)
		}
		if item.Error != "" {
			line += " " + red(item.Error)
		}
		fmt.Fprintln(w, line)
	}
}

func newCheckLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-login",
		Short: "检查 Tistory 登录状态",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			status, err := NewTistoryService(cfg).CheckLoginStatus(ctx)
			if err != nil {
				return err
			}
			if status.IsLoggedIn {
				fmt.Printf("%s %s\n", green("已登录"), status.Blog)
				return nil
			}
			fmt.Printf("%s %s\n", yellow("未登录"), status.Blog)
			return errSilentExit
		},
	}
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "登录并保存 cookies，建议配合 --headless-mode=false 处理验证码",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			service := NewTistoryService(cfg)
			if err := service.Login(ctx); err != nil {
				return err
			}
			fmt.Printf("%s cookies 已保存到 %s\n", green("登录成功"), service.cookiesPath())
			return nil
		},
	}
}

func newInitConfigCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "写出默认配置文件",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configs.ConfigName + ".yaml"
			if len(args) > 0 {
				path = args[0]
			}
			if err := configs.WriteDefault(path, force); err != nil {
				return err
			}
			logrus.Infof("已写出默认配置: %s", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "覆盖已存在的文件")
	return cmd
}
