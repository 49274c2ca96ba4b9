package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"resume-ingest-go/internal/config"
	"resume-ingest-go/internal/logger"
	"resume-ingest-go/internal/processor"
	"resume-ingest-go/internal/storage"

	"github.com/spf13/pflag"
)

// 重跑失败上传：解析器更新或Tika恢复后，把仍保存在MinIO中的文件重新送入入库流程
func main() {
	configPath := pflag.StringP("config", "c", "", "配置文件路径")
	concurrency := pflag.Int("concurrency", 5, "并发处理数")
	limit := pflag.Int("limit", 100, "本次最多处理的失败记录数")
	kinds := pflag.StringSlice("kinds", nil, "只重跑这些错误类型，默认重跑所有可重试的类型")
	dryRun := pflag.Bool("dry-run", false, "只检查原始文件是否存在，不处理")
	pflag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}
	logCloser, err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		TimeFormat: cfg.Logger.TimeFormat,
		File:       cfg.Logger.File,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化日志失败")
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()
	if storageManager.MySQL == nil || storageManager.MinIO == nil {
		logger.Fatal().Msg("重跑需要MySQL和MinIO")
	}

	rp, err := processor.CreateProcessorFromConfig(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化ResumeProcessor失败")
	}
	ingest, err := processor.NewIngestService(processor.IngestDeps{
		Processor:   rp,
		Files:       storageManager,
		Repository:  storageManager,
		Failures:    storageManager,
		Invitations: storageManager,
		Dedup:       storageManager,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化入库服务失败")
	}

	opts := []processor.ReprocessOption{
		processor.WithReprocessConcurrency(*concurrency),
		processor.WithDryRun(*dryRun),
	}
	if storageManager.Redis != nil {
		opts = append(opts, processor.WithRawFileClaimer(storageManager.Redis))
	}
	reprocessor := processor.NewReprocessor(storageManager.MySQL, storageManager, ingest, opts...)

	selected := processor.RetryableKinds
	if len(*kinds) > 0 {
		selected = selected[:0:0]
		for _, k := range *kinds {
			selected = append(selected, processor.ErrorKind(k))
		}
	}

	summary, err := reprocessor.Run(ctx, selected, *limit)
	if err != nil {
		logger.Error().Err(err).Msg("重跑中断")
	}
	fmt.Printf("共 %d 条: 成功 %d, 再次失败 %d, 已重新上传 %d, 文件缺失 %d, 错误 %d, 待处理 %d\n",
		summary.Total, summary.Succeeded, summary.Failed, summary.Skipped, summary.Missing, summary.Errors, summary.Pending)
	if err != nil || summary.Errors > 0 {
		os.Exit(1)
	}
}
