package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resume-ingest-go/internal/api/handler"
	"resume-ingest-go/internal/api/router"
	"resume-ingest-go/internal/config"
	"resume-ingest-go/internal/extractor"
	appCoreLogger "resume-ingest-go/internal/logger"
	"resume-ingest-go/internal/outbox"
	"resume-ingest-go/internal/processor"
	"resume-ingest-go/internal/storage"
	"resume-ingest-go/internal/tracing"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"
)

var (
	version     = "1.0.0"         //nolint:gochecknoglobals
	serviceName = "resume-ingest" //nolint:gochecknoglobals
)

// healthGroup 存储组件加上Tika
type healthGroup struct {
	storage *storage.Storage
	tika    *extractor.TikaExtractor
}

func (g healthGroup) Ping(ctx context.Context) map[string]error {
	result := g.storage.Ping(ctx)
	if g.tika != nil {
		result["tika"] = g.tika.Ping(ctx)
	}
	return result
}

func main() {
	var configPath string
	var sampleConfig string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径，为空时按默认位置查找")
	pflag.StringVar(&sampleConfig, "write-sample-config", "", "写出示例配置文件后退出")
	pflag.Parse()

	if sampleConfig != "" {
		if err := config.CreateSampleConfig(sampleConfig); err != nil {
			appCoreLogger.Fatal().Err(err).Msg("写出示例配置失败")
		}
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("加载配置失败")
	}

	logCloser, err := appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		File:         cfg.Logger.File,
	})
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("初始化日志失败")
	}
	defer logCloser.Close()

	// Hertz 日志也输出到 zerolog
	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	log := appCoreLogger.Logger.With().Str("service", serviceName).Str("version", version).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化链路追踪失败")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()
	if err := storageManager.Ready(); err != nil {
		log.Fatal().Err(err).Msg("存储组件不完整")
	}
	log.Info().Msg("存储服务初始化成功")

	var compOpts []processor.ComponentOpt
	if cfg.Processing.CacheParsed && storageManager.Redis != nil {
		compOpts = append(compOpts, processor.WithcompParsedCache(storageManager.Redis))
	}
	resumeProcessor, err := processor.CreateProcessorFromConfig(cfg, compOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化ResumeProcessor失败")
	}
	log.Info().Bool("cache_parsed", cfg.Processing.CacheParsed).Msg("ResumeProcessor初始化成功")

	ingestService, err := processor.NewIngestService(processor.IngestDeps{
		Processor:   resumeProcessor,
		Files:       storageManager,
		Repository:  storageManager,
		Failures:    storageManager,
		Invitations: storageManager,
		Dedup:       storageManager,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("初始化入库服务失败")
	}

	deps := handler.DepsFromStorage(storageManager, resumeProcessor, ingestService)
	health := healthGroup{storage: storageManager}
	if cfg.Tika.ServerURL != "" {
		health.tika = extractor.NewTikaExtractor(cfg.Tika.ServerURL, extractor.WithTimeout(5*time.Second))
	}
	deps.Health = health
	resumeHandler := handler.NewResumeHandler(cfg, deps)

	messageRelay := outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ,
		outbox.WithPollingInterval(config.GetDuration(cfg.RabbitMQ.RetryInterval, 5*time.Second)))
	messageRelay.Start(ctx)
	log.Info().Msg("消息中继服务已启动")

	if err := resumeHandler.StartResumeUploadConsumer(ctx, cfg.Processing.Workers); err != nil {
		log.Fatal().Err(err).Msg("启动简历上传消费者失败")
	}
	go resumeHandler.StartMD5CleanupTask(ctx, 24*time.Hour)

	h := router.NewServer(cfg)
	router.RegisterRoutes(h, resumeHandler, cfg.Server)
	log.Info().Str("address", cfg.Server.Address).Msg("HTTP 服务器启动中")

	go func() {
		if err := h.Run(); err != nil {
			log.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP服务器关闭失败")
	}

	// 先停止消费，再停止中继，保证已入库的事件都写进发件箱
	cancel()
	resumeHandler.WaitConsumers()
	messageRelay.Stop()
	log.Info().Msg("消息中继服务已停止")

	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("关闭链路追踪失败")
	}
	log.Info().Msg("优雅退出完成")
}
