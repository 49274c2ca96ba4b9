package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"resume-ingest-go/internal/config"
	"resume-ingest-go/internal/extractor"
	"resume-ingest-go/internal/logger"
	"resume-ingest-go/internal/processor"
	"resume-ingest-go/internal/types"

	"github.com/spf13/pflag"
)

// 命令行参数定义
var (
	configPath = pflag.StringP("config", "c", "", "配置文件路径")
	filePath   = pflag.StringP("file", "f", "", "简历文件路径 (必填)")
	source     = pflag.StringP("source", "s", "", "HTML简历的来源站点代码")
	isHTML     = pflag.Bool("html", false, "按HTML导出简历处理")
	command    = pflag.String("cmd", "parse", "执行的命令: detect=识别格式, lines=输出文本行, parse=解析为候选人记录")
	logLevel   = pflag.String("log-level", "warn", "日志级别")
)

func main() {
	pflag.Parse()

	if *filePath == "" {
		fmt.Println("错误: 必须提供简历文件路径 (--file)")
		pflag.Usage()
		os.Exit(1)
	}

	if _, err := logger.Init(logger.Config{Level: *logLevel, Format: "pretty"}); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		logger.Fatal().Err(err).Str("file", *filePath).Msg("读取文件失败")
	}
	doc := types.RawDocument{
		Data:           data,
		FileName:       filepath.Base(*filePath),
		DeclaredSource: *source,
		IsHTML:         *isHTML,
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		config.GetDuration(cfg.Processing.DocumentTimeout, 90*time.Second))
	defer cancel()

	switch *command {
	case "detect":
		err = handleDetectCommand(doc)
	case "lines":
		err = handleLinesCommand(ctx, cfg, doc)
	case "parse":
		err = handleParseCommand(ctx, cfg, doc)
	default:
		fmt.Printf("错误: 未知命令 '%s'。支持的命令: detect, lines, parse\n", *command)
		pflag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("处理失败: %v\n", err)
		if msg := processor.UserMessage(err); msg != "" {
			fmt.Printf("提示: %s\n", msg)
		}
		os.Exit(1)
	}
}

func handleDetectCommand(doc types.RawDocument) error {
	detection, err := extractor.Detect(doc)
	if err != nil {
		return processor.NewDetectError(doc.FileName, err)
	}
	fmt.Printf("格式: %s\n路径: %s\n", detection.DocType, detection.Route)
	if detection.Source != "" {
		fmt.Printf("来源: %s\n", detection.Source)
	}
	return nil
}

func handleLinesCommand(ctx context.Context, cfg *config.Config, doc types.RawDocument) error {
	docType, err := extractor.DetectFormat(doc.FileName)
	if err != nil {
		return processor.NewDetectError(doc.FileName, err)
	}

	rtf, err := extractor.NewRTFDecoder(cfg.Parser.RTFArtifactPattern)
	if err != nil {
		return err
	}
	var binary extractor.BinaryDecoder
	if cfg.Tika.ServerURL != "" {
		binary = extractor.NewTikaExtractor(cfg.Tika.ServerURL, extractor.TikaOptionsFromConfig(cfg.Tika)...)
	}

	lines, err := extractor.NewLineExtractor(rtf, binary).ExtractLines(ctx, doc.Data, doc.FileName, docType)
	if err != nil {
		return processor.NewExtractError(doc.FileName, err)
	}
	for i, line := range lines {
		fmt.Printf("%4d | %s\n", i+1, line)
	}
	fmt.Printf("\n共 %d 行\n", len(lines))
	return nil
}

func handleParseCommand(ctx context.Context, cfg *config.Config, doc types.RawDocument) error {
	rp, err := processor.CreateProcessorFromConfig(cfg)
	if err != nil {
		return err
	}

	result, err := rp.Process(ctx, doc)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(map[string]interface{}{
		"record":     result.Record,
		"validation": result.Validation,
		"eligible":   result.Validation.Valid(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化结果失败: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
