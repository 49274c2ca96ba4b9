package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resume-ingest-go/internal/config"
	"resume-ingest-go/internal/logger"
	"resume-ingest-go/internal/storage/models"
	"resume-ingest-go/internal/tracing"
	"resume-ingest-go/internal/types"
	"resume-ingest-go/internal/validator"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("resume-ingest-go/storage/mysql")

// ErrResumeNotFound 简历不存在
var ErrResumeNotFound = errors.New("简历不存在")

type gormSpanKey struct{}

// GormTracingPlugin GORM插件，为每个数据库操作创建span
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("INSERT")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after())
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		attrs := []attribute.KeyValue{
			semconv.DBSystemMySQL,
			attribute.String("db.name", p.dbName),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", tableName),
		}
		// 简历表含个人信息，只记录截断后的语句模板
		if stmt := db.Statement.SQL.String(); stmt != "" {
			attrs = append(attrs, attribute.String("db.statement", tracing.SafeSQL(stmt)))
		}

		newCtx, span := p.tracer.Start(ctx, operation+" "+tableName,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attrs...),
		)
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		switch {
		case db.Error == nil:
			span.SetStatus(codes.Ok, "")
		case errors.Is(db.Error, gorm.ErrRecordNotFound):
			// 未找到记录属于正常业务分支
			span.SetAttributes(attribute.String("error.type", "record_not_found"))
			span.SetStatus(codes.Ok, "record not found")
		default:
			tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
		}
	}
}

// NewGormTracingPlugin 创建GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// WithDisableErrSkip 设置是否跳过 SkipHooks 的语句
func (p *GormTracingPlugin) WithDisableErrSkip(disable bool) *GormTracingPlugin {
	p.disableErrSkip = disable
	return p
}

// MySQL 候选人简历、失败上传和发件箱的持久化
type MySQL struct {
	db     *gorm.DB
	cfg    *config.MySQLConfig
	logger zerolog.Logger
}

// NewMySQL 连接MySQL，注册追踪插件并迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}
	log := logger.Logger.With().Str("component", "mysql").Logger()

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg, logger: log}
	if err := m.autoMigrateSchema(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Info().Str("database", cfg.Database).Msg("成功连接到MySQL并完成表结构迁移")
	return m, nil
}

func gormLogLevel(level int) gormlogger.LogLevel {
	switch level {
	case 1:
		return gormlogger.Silent
	case 2:
		return gormlogger.Error
	case 3:
		return gormlogger.Warn
	case 4:
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func (m *MySQL) autoMigrateSchema() error {
	silentDB := m.db.Session(&gorm.Session{Logger: gormlogger.Discard})
	return silentDB.AutoMigrate(
		&models.CandidateResume{},
		&models.FailedUpload{},
		&models.OutboxMessage{},
	)
}

// DB 返回GORM连接
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Ping 健康检查
func (m *MySQL) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// SaveResume 保存解析后的简历，返回新生成的简历ID(UUIDv7)
func (m *MySQL) SaveResume(ctx context.Context, rec *types.CandidateRecord, vacancyID, uploaderID string) (string, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.SaveResume", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if rec == nil {
		err := fmt.Errorf("简历记录不能为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return "", fmt.Errorf("生成UUIDv7失败: %w", err)
	}

	row, err := models.FromCandidateRecord(id.String(), rec, validator.Validate(rec), vacancyID, uploaderID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return "", fmt.Errorf("转换简历记录失败: %w", err)
	}

	if err := m.db.WithContext(ctx).Create(row).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return "", fmt.Errorf("保存简历失败: %w", err)
	}

	span.SetAttributes(
		attribute.String("resume.id", row.ResumeID),
		attribute.String("resume.source", row.SourceSite),
	)
	return row.ResumeID, nil
}

// GetResume 按ID读取简历
func (m *MySQL) GetResume(ctx context.Context, resumeID string) (*types.CandidateRecord, error) {
	var row models.CandidateResume
	err := m.db.WithContext(ctx).Where("resume_id = ?", resumeID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrResumeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询简历失败: %w", err)
	}
	return row.ToCandidateRecord(), nil
}

// SaveFailedUpload 在同一事务中写入失败记录和待发布的通知
func (m *MySQL) SaveFailedUpload(ctx context.Context, notice FailedUploadNotice, event *models.OutboxMessage) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.SaveFailedUpload",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("submission_uuid", notice.SubmissionUUID),
			attribute.String("error_kind", notice.ErrorKind),
		),
	)
	defer span.End()

	row := &models.FailedUpload{
		SubmissionUUID:   notice.SubmissionUUID,
		OriginalFilename: notice.OriginalFilename,
		ObjectKey:        notice.ObjectKey,
		DeclaredSource:   notice.DeclaredSource,
		IsHTML:           notice.IsHTML,
		VacancyID:        types.StringPtr(notice.VacancyID),
		UploaderID:       notice.UploaderID,
		ErrorKind:        notice.ErrorKind,
		UserMessage:      notice.UserMessage,
		Detail:           notice.Detail,
		OccurredAt:       notice.OccurredAt,
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("插入失败记录失败: %w", err)
		}
		if event != nil {
			if err := tx.Create(event).Error; err != nil {
				return fmt.Errorf("插入outbox记录失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return err
	}
	return nil
}

// EnqueueOutbox 写入一条待发布的事件
func (m *MySQL) EnqueueOutbox(ctx context.Context, event *models.OutboxMessage) error {
	if err := m.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("插入outbox记录失败: %w", err)
	}
	return nil
}

// ListFailedUploads 按时间倒序列出最近的失败上传
func (m *MySQL) ListFailedUploads(ctx context.Context, uploaderID string, limit int) ([]models.FailedUpload, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := m.db.WithContext(ctx).Model(&models.FailedUpload{}).Order("occurred_at desc").Limit(limit)
	if uploaderID != "" {
		q = q.Where("uploader_id = ?", uploaderID)
	}
	var rows []models.FailedUpload
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询失败上传记录失败: %w", err)
	}
	return rows, nil
}

// ListFailedUploadsByKind 按时间正序取出指定错误类型的失败上传，kinds为空时不过滤
func (m *MySQL) ListFailedUploadsByKind(ctx context.Context, kinds []string, limit int) ([]models.FailedUpload, error) {
	if limit <= 0 {
		limit = 100
	}
	q := m.db.WithContext(ctx).Model(&models.FailedUpload{}).
		Where("object_key <> ''").
		Order("occurred_at asc").
		Limit(limit)
	if len(kinds) > 0 {
		q = q.Where("error_kind IN ?", kinds)
	}
	var rows []models.FailedUpload
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询失败上传记录失败: %w", err)
	}
	return rows, nil
}

// DeleteFailedUpload 删除一条已重新处理过的失败记录
func (m *MySQL) DeleteFailedUpload(ctx context.Context, id uint64) error {
	if err := m.db.WithContext(ctx).Delete(&models.FailedUpload{}, id).Error; err != nil {
		return fmt.Errorf("删除失败上传记录失败: %w", err)
	}
	return nil
}
