package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"carlens-server-go/src/configs"
	"carlens-server-go/src/core/providers/vlllm"
	"carlens-server-go/src/core/utils"
	"carlens-server-go/src/core/vehicle"
	"carlens-server-go/src/relay"

	// 导入所有providers以确保init函数被调用
	_ "carlens-server-go/src/core/providers/vlllm/gemini"
	_ "carlens-server-go/src/core/providers/vlllm/ollama"
	_ "carlens-server-go/src/core/providers/vlllm/openai"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func LoadConfigAndLogger(opts *serveOptions) (*configs.Config, *utils.Logger, error) {
	config, configPath, err := configs.LoadConfig(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.port != 0 {
		config.Server.Port = opts.port
	}
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := utils.NewLogger(config)
	if err != nil {
		return nil, nil, err
	}
	if configPath == "" {
		configPath = "(内置默认配置)"
	}
	logger.Info(fmt.Sprintf("日志系统初始化成功, 配置文件路径: %s", configPath))

	return config, logger, nil
}

func NewInferenceClient(config *configs.Config, logger *utils.Logger) (*vlllm.Client, error) {
	name, vlllmConfig, err := config.SelectedVLLM()
	if err != nil {
		return nil, err
	}

	provider, err := vlllm.Create(vlllmConfig, logger)
	if err != nil {
		return nil, err
	}

	var timeout time.Duration
	if vlllmConfig.RequestTimeout != "" {
		timeout, err = time.ParseDuration(vlllmConfig.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("request_timeout无效: %w", err)
		}
	}

	logger.Info(fmt.Sprintf("VLLLM provider %s 初始化成功, 模型: %s", name, vlllmConfig.ModelName))
	return vlllm.NewClient(provider, vehicle.Prompt, timeout, logger), nil
}

func StartHttpServer(config *configs.Config, logger *utils.Logger, client *vlllm.Client, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	if config.Log.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.SetTrustedProxies(nil)

	relayService, err := relay.NewDefaultRelayService(config, client, logger)
	if err != nil {
		logger.Error("车辆识别服务初始化失败", err)
		return nil, err
	}
	if err := relayService.Start(groupCtx, router); err != nil {
		logger.Error("车辆识别服务启动失败", err)
		return nil, err
	}

	httpServer := &http.Server{
		Addr:    config.Server.IP + ":" + strconv.Itoa(config.Server.Port),
		Handler: router,
	}

	g.Go(func() error {
		logger.Info(fmt.Sprintf("App is running on port %d", config.Server.Port))

		go func() {
			<-groupCtx.Done()
			logger.Info("收到关闭信号，开始关闭HTTP服务...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP服务关闭失败", err)
			} else {
				logger.Info("HTTP服务已优雅关闭")
			}
		}()

		// ListenAndServe 返回 ErrServerClosed 时表示正常关闭
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP 服务启动失败", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func GracefulShutdown(cancel context.CancelFunc, logger *utils.Logger, g *errgroup.Group) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case sig := <-sigChan:
		logger.Info(fmt.Sprintf("接收到系统信号: %v，开始优雅关闭服务", sig))
	case err := <-done:
		// 服务自行退出（如端口被占用）
		cancel()
		return err
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("服务关闭过程中出现错误", err)
			return err
		}
		logger.Info("所有服务已优雅关闭")
		return nil
	case <-time.After(15 * time.Second):
		logger.Error("服务关闭超时，强制退出")
		return fmt.Errorf("服务关闭超时")
	}
}

func runServe(opts *serveOptions) error {
	config, logger, err := LoadConfigAndLogger(opts)
	if err != nil {
		return fmt.Errorf("加载配置或初始化日志系统失败: %w", err)
	}
	defer logger.Close()

	client, err := NewInferenceClient(config, logger)
	if err != nil {
		logger.Error("VLLLM provider 初始化失败", err)
		return err
	}
	defer client.Cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, groupCtx := errgroup.WithContext(ctx)

	if _, err := StartHttpServer(config, logger, client, g, groupCtx); err != nil {
		return fmt.Errorf("启动 Http 服务失败: %w", err)
	}

	if err := GracefulShutdown(cancel, logger, g); err != nil {
		return err
	}

	logger.Info("程序已成功退出")
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
