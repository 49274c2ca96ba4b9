package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"resume-ingest-go/internal/config"
	"resume-ingest-go/internal/logger"
	"resume-ingest-go/internal/storage/models"
	"resume-ingest-go/internal/types"

	"github.com/rs/zerolog"
)

// Storage 存储管理器，聚合所有存储相关依赖
type Storage struct {
	// 原始文件
	MinIO *MinIO

	// 上传队列与事件
	RabbitMQ *RabbitMQ

	// 简历、失败记录、发件箱
	MySQL *MySQL

	// 去重与解析缓存
	Redis *Redis

	cfg    *config.Config
	logger zerolog.Logger
}

// NewStorage 创建存储管理器，单个组件失败时记录警告并继续
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	s := &Storage{
		cfg:    cfg,
		logger: logger.Logger.With().Str("component", "storage").Logger(),
	}
	var err error
	var initErrors []string

	s.MinIO, err = NewMinIO(&cfg.MinIO)
	if err != nil {
		s.logger.Warn().Err(err).Msg("初始化MinIO失败")
		initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
	}

	if cfg.RabbitMQ.URL != "" {
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			s.logger.Warn().Err(err).Msg("初始化RabbitMQ失败")
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		} else if err = s.RabbitMQ.SetupTopology(); err != nil {
			s.logger.Warn().Err(err).Msg("声明RabbitMQ拓扑失败")
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ拓扑: %v", err))
		}
	}

	if cfg.MySQL.Host != "" {
		s.MySQL, err = NewMySQL(&cfg.MySQL)
		if err != nil {
			s.logger.Warn().Err(err).Msg("初始化MySQL失败")
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
		}
	}

	if cfg.Redis.Address != "" {
		s.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			s.logger.Warn().Err(err).Msg("初始化Redis失败")
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	} else {
		s.logger.Info().Msg("Redis未配置，跳过初始化")
	}

	if s.MinIO == nil && s.RabbitMQ == nil && s.MySQL == nil && s.Redis == nil {
		return nil, fmt.Errorf("所有存储组件初始化失败: %s", strings.Join(initErrors, "; "))
	}
	if len(initErrors) > 0 {
		s.logger.Warn().Str("errors", strings.Join(initErrors, "; ")).Msg("部分存储组件初始化失败")
	}
	return s, nil
}

// Ready 入库流程需要的组件是否齐全
func (s *Storage) Ready() error {
	var missing []string
	if s.MinIO == nil {
		missing = append(missing, "MinIO")
	}
	if s.RabbitMQ == nil {
		missing = append(missing, "RabbitMQ")
	}
	if s.MySQL == nil {
		missing = append(missing, "MySQL")
	}
	if s.Redis == nil {
		missing = append(missing, "Redis")
	}
	if len(missing) > 0 {
		return fmt.Errorf("存储组件未初始化: %s", strings.Join(missing, ", "))
	}
	return nil
}

// NewOutboxEvent 构造一条待发布的事件
func NewOutboxEvent(aggregateID, eventType, exchange, routingKey string, payload interface{}) (*models.OutboxMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化事件 %s 失败: %w", eventType, err)
	}
	return &models.OutboxMessage{
		AggregateID:      aggregateID,
		EventType:        eventType,
		Payload:          string(data),
		TargetExchange:   exchange,
		TargetRoutingKey: routingKey,
		Status:           models.OutboxStatusPending,
	}, nil
}

// GetResumeFile 下载原始简历
func (s *Storage) GetResumeFile(ctx context.Context, objectKey string) ([]byte, error) {
	if s.MinIO == nil {
		return nil, fmt.Errorf("MinIO未初始化")
	}
	return s.MinIO.GetResumeFile(ctx, objectKey)
}

// SaveResume 保存解析后的简历
func (s *Storage) SaveResume(ctx context.Context, rec *types.CandidateRecord, vacancyID, uploaderID string) (string, error) {
	if s.MySQL == nil {
		return "", fmt.Errorf("MySQL未初始化")
	}
	return s.MySQL.SaveResume(ctx, rec, vacancyID, uploaderID)
}

// ReportFailedUpload 记录失败上传，并通过发件箱通知运营
func (s *Storage) ReportFailedUpload(ctx context.Context, notice FailedUploadNotice) error {
	if s.MySQL == nil {
		return fmt.Errorf("MySQL未初始化")
	}
	event, err := NewOutboxEvent(notice.SubmissionUUID, models.EventUploadFailed,
		s.cfg.RabbitMQ.CandidateEventsExchange, s.cfg.RabbitMQ.FailedRoutingKey, notice)
	if err != nil {
		return err
	}
	return s.MySQL.SaveFailedUpload(ctx, notice, event)
}

// PublishInvitationEligibility 写入发件箱，由中继投递给邀请服务
func (s *Storage) PublishInvitationEligibility(ctx context.Context, msg InvitationEligibilityMessage) error {
	if s.MySQL == nil {
		return fmt.Errorf("MySQL未初始化")
	}
	event, err := NewOutboxEvent(msg.ResumeID, models.EventInvitationEligibility,
		s.cfg.RabbitMQ.CandidateEventsExchange, s.cfg.RabbitMQ.InvitationRoutingKey, msg)
	if err != nil {
		return err
	}
	return s.MySQL.EnqueueOutbox(ctx, event)
}

// RemoveRawFileMD5 回滚上传去重记录
func (s *Storage) RemoveRawFileMD5(ctx context.Context, md5Hex string) error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.RemoveRawFileMD5(ctx, md5Hex)
}

// Ping 检查各组件连接，未初始化的组件不出现在结果中
func (s *Storage) Ping(ctx context.Context) map[string]error {
	result := make(map[string]error)
	if s.MinIO != nil {
		result["minio"] = s.MinIO.Ping(ctx)
	}
	if s.RabbitMQ != nil {
		result["rabbitmq"] = s.RabbitMQ.Ping(ctx)
	}
	if s.MySQL != nil {
		result["mysql"] = s.MySQL.Ping(ctx)
	}
	if s.Redis != nil {
		result["redis"] = s.Redis.Ping(ctx)
	}
	return result
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			s.logger.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			s.logger.Error().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.logger.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
