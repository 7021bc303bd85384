package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/TabResFetch/internal/core"
	"github.com/RecoveryAshes/TabResFetch/internal/models"
	"github.com/RecoveryAshes/TabResFetch/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string
	validateConfig bool

	// 浏览器参数
	pageURL    string
	controlURL string
	headless   bool

	// 下载参数
	workers        int
	maxRetries     int
	timeoutSeconds int
	outputDir      string

	// Tab遍历参数
	safeMode bool

	// 课时上下文参数
	courseName  string
	sessionNum  int
	sessionName string
)

var rootCmd = &cobra.Command{
	Use:   "tabresfetch",
	Short: "课程页面学习资源批量下载工具",
	Long: `TabResFetch - 课程页面学习资源批量下载工具 (Go版本)

自动遍历课程页面的多级Tab结构,识别课件、讲义、视频等学习资源,
并发下载到按课程/课时/Tab分层的本地目录,支持:
  • 两级Tab自动遍历,白名单/黑名单安全模式
  • 按扩展名/关键词/图标/容器结构多信号识别资源类型
  • 浏览器原生下载和PDF预览链接解析两种下载方式
  • 带重试和指数退避的并发worker池
  • 目录级下载记录和汇总报告

使用示例:
  # 接管已登录的浏览器(推荐,保留登录态)
  tabresfetch --control-url ws://127.0.0.1:9222/... --course "图形化编程" --session-num 3 --session-name "循环结构"

  # 自行启动浏览器并打开课程页面
  tabresfetch -u https://manage.shengtongedu.cn/course/xxx -o downloads

  # 验证HTTP头部配置
  tabresfetch --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		logConfig := utils.LogConfig{
			Level:      config.Logging.Level,
			LogDir:     config.Logging.LogDir,
			MaxSize:    config.Logging.Rotation.MaxSize,
			MaxBackups: config.Logging.Rotation.MaxBackups,
			MaxAge:     config.Logging.Rotation.MaxAge,
			Compress:   config.Logging.Rotation.Compress,
		}

		// 命令行参数覆盖配置文件
		if logLevel != "" {
			logConfig.Level = logLevel
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		appConfig, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		headerManager, err := core.NewHeaderManager(configFile, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}

		if validateConfig {
			utils.Info("🔍 验证HTTP头部配置...")
			if err := headerManager.LoadConfig(); err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}
			if err := headerManager.Validate(); err != nil {
				return fmt.Errorf("配置验证失败: %w", err)
			}

			safeHeaders := headerManager.GetSafeHeaders()
			utils.Info("✅ 配置验证通过!")
			utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
			for name, value := range safeHeaders {
				utils.Infof("  %s: %s", name, value)
			}
			return nil
		}

		if pageURL == "" && controlURL == "" && appConfig.Browser.PageURL == "" && appConfig.Browser.ControlURL == "" {
			return cmd.Help()
		}

		if err := ValidateFlags(pageURL, workers, maxRetries, timeoutSeconds, sessionNum); err != nil {
			return err
		}

		appConfig.MergeCLIFlags(workers, maxRetries, timeoutSeconds, outputDir, controlURL, pageURL, headless, safeMode)

		lesson := models.LessonContext{
			CourseName:  courseName,
			SessionNum:  sessionNum,
			SessionName: sessionName,
		}

		// 信号处理: Ctrl+C取消上下文,worker有界汇合后退出
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-sigChan
			utils.Warnf("\n收到中断信号: %v, 正在优雅关闭...", sig)
			cancel()
		}()

		runner := core.NewRunner(appConfig, lesson, headerManager)
		report, err := runner.Run(ctx)
		if err != nil {
			return fmt.Errorf("资源抓取失败: %w", err)
		}

		stats := report.Statistics
		fmt.Println("\n==================================================")
		fmt.Println("📊 下载统计")
		fmt.Println("==================================================")
		fmt.Printf("✅ 任务总数: %d\n", stats.Total)
		fmt.Printf("✅ 成功下载: %d\n", stats.Completed)
		fmt.Printf("❌ 失败任务: %d\n", stats.Failed)
		fmt.Printf("📦 总大小: %.2f MB\n", float64(report.Summary.TotalSize)/(1024*1024))
		fmt.Printf("📈 成功率: %.1f%%\n", stats.SuccessRate)
		fmt.Println("==================================================")

		utils.Info("✨ 下载任务完成!")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("TabResFetch %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
		fmt.Println("Go实现版本 - 课程学习资源批量下载工具")
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 浏览器参数
	rootCmd.Flags().StringVarP(&pageURL, "url", "u", "", "课程页面URL (接管模式下可省略)")
	rootCmd.Flags().StringVar(&controlURL, "control-url", "", "接管已运行浏览器的DevTools地址")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "无头浏览器模式 (需要登录时建议关闭)")

	// 下载参数
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 3, "并发下载worker数 (1-16)")
	rootCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "单任务最大尝试次数 (1-10)")
	rootCmd.Flags().IntVar(&timeoutSeconds, "timeout", 300, "单次下载超时(秒)")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "downloads", "下载输出目录")

	// Tab遍历参数
	rootCmd.Flags().BoolVar(&safeMode, "safe", true, "安全模式 (白名单/黑名单过滤Tab)")

	// 课时上下文参数
	rootCmd.Flags().StringVar(&courseName, "course", "", "课程名称 (用于目录分层)")
	rootCmd.Flags().IntVar(&sessionNum, "session-num", 0, "课时序号")
	rootCmd.Flags().StringVar(&sessionName, "session-name", "", "课时名称")

	// 添加子命令
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
