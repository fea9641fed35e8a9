package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/repolens/repolens/internal/analysis"
	"github.com/repolens/repolens/internal/cache"
	"github.com/repolens/repolens/internal/config"
	"github.com/repolens/repolens/internal/github"
	"github.com/repolens/repolens/internal/llm"
	"github.com/repolens/repolens/internal/logging"
	"github.com/repolens/repolens/internal/retry"
	"github.com/repolens/repolens/internal/server"
	"github.com/repolens/repolens/internal/server/routes"
	"github.com/repolens/repolens/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	analyze     string
	issues      string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["credentials"] = cfg.CredentialModes()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	ctx := context.Background()

	// 启动顺序为“配置 → 缓存 → 上游客户端 → 分析器”，所有调用共享同一缓存实例。
	store, err := cache.Dial(ctx, cfg.Global, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存失败: %v\n", err)
		return 1
	}
	defer store.Close()

	analyzer, err := newAnalyzer(cfg, store, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化分析器失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["credentials"] = cfg.CredentialModes()
	fields["cache_state"] = store.State().String()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	switch {
	case opts.analyze != "":
		return runAnalyze(ctx, analyzer, opts.analyze)
	case opts.issues != "":
		return runIssues(ctx, analyzer, opts.issues)
	}

	if err := startHTTPServer(cfg, store, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// newAnalyzer 按配置组装 GitHub 与 LLM 客户端，二者共享上游 http.Client 与重试策略。
func newAnalyzer(cfg *config.Config, store *cache.Cache, logger *logrus.Logger) (*analysis.Analyzer, error) {
	httpClient := server.NewUpstreamClient(cfg)
	policy := retry.Policy{
		MaxRetries: cfg.Global.MaxRetries,
		Delay:      cfg.Global.RetryDelay.DurationValue(),
	}

	gh := github.New(github.Options{
		Token:         cfg.GitHub.Token,
		BaseURL:       cfg.GitHub.BaseURL,
		HTTPClient:    httpClient,
		Logger:        logger,
		Policy:        policy,
		MaxIssuePages: cfg.Global.MaxIssuePages,
	})

	explainer, err := llm.New(llm.Options{
		Provider:   cfg.LLM.Provider,
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		BaseURL:    cfg.LLM.BaseURL,
		MaxTokens:  cfg.LLM.MaxTokens,
		HTTPClient: httpClient,
		Logger:     logger,
		Policy:     policy,
	})
	if err != nil {
		return nil, err
	}

	return analysis.New(analysis.Options{
		Cache:       store,
		GitHub:      gh,
		LLM:         explainer,
		Logger:      logger,
		AnalysisTTL: cfg.Global.CacheTTL.DurationValue(),
		IssueTTL:    cfg.Global.IssueCacheTTL.DurationValue(),
		Concurrency: cfg.Global.ClassifyConcurrency,
	}), nil
}

func runAnalyze(ctx context.Context, analyzer *analysis.Analyzer, target string) int {
	owner, repo, err := parseTarget(target)
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		return 2
	}
	result, err := analyzer.AnalyzeRepository(ctx, owner, repo)
	if err != nil {
		fmt.Fprintf(stdErr, "分析仓库失败: %v\n", err)
		return 1
	}
	return printJSON(result)
}

func runIssues(ctx context.Context, analyzer *analysis.Analyzer, target string) int {
	owner, repo, err := parseTarget(target)
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		return 2
	}
	result, err := analyzer.ClassifyIssues(ctx, owner, repo)
	if err != nil {
		fmt.Fprintf(stdErr, "分类 issue 失败: %v\n", err)
		return 1
	}
	return printJSON(result)
}

func printJSON(v any) int {
	enc := json.NewEncoder(stdOut)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stdErr, "输出结果失败: %v\n", err)
		return 1
	}
	return 0
}

// parseTarget 解析 owner/repo 形式的仓库标识。
func parseTarget(raw string) (string, string, error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(raw), "/")
	owner, repo = strings.TrimSpace(owner), strings.TrimSpace(repo)
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("仓库标识应为 owner/repo，得到 %q", raw)
	}
	return owner, repo, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("repolens", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		analyze    string
		issues     string
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 REPOLENS_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.StringVar(&analyze, "analyze", "", "分析指定仓库（owner/repo）并输出 JSON")
	fs.StringVar(&issues, "issues", "", "分类指定仓库（owner/repo）的开放 issue 并输出 JSON")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}
	if analyze != "" && issues != "" {
		return cliOptions{}, fmt.Errorf("-analyze 与 -issues 不能同时使用")
	}

	path := os.Getenv("REPOLENS_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		analyze:     analyze,
		issues:      issues,
	}, nil
}

func startHTTPServer(cfg *config.Config, store *cache.Cache, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Cache:      store,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterCacheRoutes(app, store)
	routes.RegisterProviderRoutes(app, cfg.LLM.Provider)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
