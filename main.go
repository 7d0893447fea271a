package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/xpzouying/tistory-autopost/configs"
)

var (
	configFile string
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "tistory-autopost",
	Short: "把 RSS 订阅源的新文章自动发布到 Tistory 博客",
	Long: `通过浏览器自动化登录 Tistory，把订阅源中的新文章整理成 HTML 后发布。
凭证从环境变量 TISTORY_ID / TISTORY_PW / BLOG_ADDRESS 读取。`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "配置文件路径，默认查找 ./tistory-autopost.yaml")
	pf.String("headless-mode", string(configs.HeadlessNew), "headless模式: new(推荐)/true/false")
	pf.String("bin", "", "浏览器二进制文件路径")
	pf.BoolVar(&debugMode, "debug", false, "输出调试日志")

	rootCmd.AddCommand(
		newServeCmd(),
		newRunCmd(),
		newScheduleCmd(),
		newPostCmd(),
		newCheckLoginCmd(),
		newLoginCmd(),
		newInitConfigCmd(),
	)
}

// loadConfig 加载配置并应用全局设置，flags 为各子命令绑定的参数
func loadConfig(cmd *cobra.Command, flags ...configs.FlagBinding) (*configs.Config, error) {
	pf := cmd.Flags()
	bindings := append([]configs.FlagBinding{
		{Key: "browser.headless", Flag: pf.Lookup("headless-mode")},
		{Key: "browser.bin", Flag: pf.Lookup("bin")},
	}, flags...)

	cfg, err := configs.Load(configFile, bindings...)
	if err != nil {
		return nil, err
	}
	if debugMode {
		cfg.Log.Level = "debug"
	}
	cfg.Apply()
	return cfg, nil
}

func bind(fs *pflag.FlagSet, key, name string) configs.FlagBinding {
	return configs.FlagBinding{Key: key, Flag: fs.Lookup(name)}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if err != errSilentExit {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
