package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"resume-ingest-go/internal/config"
	"resume-ingest-go/internal/constants"
	"resume-ingest-go/internal/logger"
	"resume-ingest-go/internal/tracing"
	"resume-ingest-go/internal/types"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound key不存在
var ErrNotFound = redis.Nil

var redisTracer = otel.Tracer("resume-ingest-go/storage/redis")

// 按key前缀的采样率，其余key默认5%
var redisKeySamplingRates = map[string]float64{
	constants.AppPrefix + ":" + constants.FileModulePrefix + ":":  0.5,
	constants.AppPrefix + ":" + constants.ParseModulePrefix + ":": 0.1,
}

var (
	rnd      = rand.New(rand.NewSource(time.Now().UnixNano()))
	rndMutex sync.Mutex
)

// shouldSampleRedisOp 根据key前缀决定是否需要创建span
func shouldSampleRedisOp(key string) bool {
	if key == "" {
		return false
	}
	for prefix, rate := range redisKeySamplingRates {
		if strings.HasPrefix(key, prefix) {
			return randFloat() < rate
		}
	}
	return randFloat() < 0.05
}

func randFloat() float64 {
	rndMutex.Lock()
	defer rndMutex.Unlock()
	return rnd.Float64()
}

// 原子地检查并加入MD5集合，返回加入前是否已存在
const checkAndAddScript = `
local exists = redis.call('SISMEMBER', KEYS[1], ARGV[1])
redis.call('SADD', KEYS[1], ARGV[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return exists
`

// Redis 上传去重与解析结果缓存
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
	logger zerolog.Logger
}

// NewRedisAdapter 创建Redis客户端并检查连接
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("Redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("Redis地址不能为空")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,
	})

	// 记录所有Redis命令
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("为Redis添加OpenTelemetry钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接Redis %s 失败: %w", cfg.Address, err)
	}

	return newRedis(client, cfg), nil
}

func newRedis(client *redis.Client, cfg *config.RedisConfig) *Redis {
	return &Redis{
		Client: client,
		config: cfg,
		logger: logger.Logger.With().Str("component", "redis").Logger(),
	}
}

// Close 关闭连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 健康检查
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.Ping(ctx).Err()
}

// GetMD5ExpireDuration 返回配置的MD5记录过期时间
func (r *Redis) GetMD5ExpireDuration() time.Duration {
	days := r.config.MD5RecordExpireDays
	if days <= 0 {
		days = constants.DefaultMD5ExpireDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// GetParsedCacheTTL 返回解析结果缓存有效期
func (r *Redis) GetParsedCacheTTL() time.Duration {
	return config.GetDuration(r.config.ParsedCacheTTL, constants.DefaultParsedCacheTTL)
}

func (r *Redis) startSpan(ctx context.Context, name, operation, key string) (context.Context, trace.Span) {
	ctx, span := redisTracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		semconv.DBSystemRedis,
		attribute.String("db.redis.database", fmt.Sprintf("%d", r.config.DB)),
		attribute.String("net.peer.name", r.config.Address),
		attribute.String("db.operation", operation),
		attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
	)
	return ctx, span
}

// CheckAndAddRawFileMD5 检查并添加原始文件MD5到集合，是一个原子操作
func (r *Redis) CheckAndAddRawFileMD5(ctx context.Context, md5Hex string) (exists bool, err error) {
	key := constants.KeyFileMD5Set
	ctx, span := r.startSpan(ctx, "Redis.CheckAndAddRawFileMD5", "EVAL", key)
	defer span.End()
	span.SetAttributes(attribute.String("db.redis.member", md5Hex))

	if r.Client == nil {
		err = fmt.Errorf("redis客户端未初始化")
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return false, err
	}

	expiry := int64(r.GetMD5ExpireDuration().Seconds())
	res, err := r.Client.Eval(ctx, checkAndAddScript, []string{key}, md5Hex, expiry).Result()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return false, fmt.Errorf("执行原子检查和添加操作失败: %w", err)
	}

	// 0表示不存在，1表示存在
	existsVal, ok := res.(int64)
	if !ok {
		err = fmt.Errorf("意外的Redis返回类型: %T", res)
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return false, err
	}

	exists = existsVal == 1
	span.SetAttributes(attribute.Bool("already_exists", exists))
	span.SetStatus(codes.Ok, "")
	return exists, nil
}

// RemoveRawFileMD5 从集合中移除原始文件MD5，处理失败后允许重新上传
func (r *Redis) RemoveRawFileMD5(ctx context.Context, md5Hex string) error {
	key := constants.KeyFileMD5Set
	ctx, span := r.startSpan(ctx, "Redis.RemoveRawFileMD5", "SREM", key)
	defer span.End()
	span.SetAttributes(attribute.String("db.redis.member", md5Hex))

	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	pipe := r.Client.Pipeline()
	remCmd := pipe.SRem(ctx, key, md5Hex)
	pipe.Del(ctx, fmt.Sprintf(constants.KeyFileMD5ToSubmissionUUID, md5Hex))
	if _, err := pipe.Exec(ctx); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("从集合中移除MD5失败: %w", err)
	}

	span.SetAttributes(attribute.Int64("removed_count", remCmd.Val()))
	span.SetStatus(codes.Ok, "")
	return nil
}

// EnsureMD5SetExpiry MD5集合缺少过期时间时补上，返回是否做了修改
func (r *Redis) EnsureMD5SetExpiry(ctx context.Context) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis客户端未初始化")
	}
	key := constants.KeyFileMD5Set
	ttl, err := r.Client.TTL(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("获取MD5集合过期时间失败: %w", err)
	}
	// -1 无过期时间，-2 key不存在
	if ttl >= 0 {
		return false, nil
	}
	set, err := r.Client.Expire(ctx, key, r.GetMD5ExpireDuration()).Result()
	if err != nil {
		return false, fmt.Errorf("设置MD5集合过期时间失败: %w", err)
	}
	return set, nil
}

// RememberSubmission 记录MD5对应的提交UUID，重复上传时返回给调用方
func (r *Redis) RememberSubmission(ctx context.Context, md5Hex, submissionUUID string) error {
	key := fmt.Sprintf(constants.KeyFileMD5ToSubmissionUUID, md5Hex)
	return r.Set(ctx, key, submissionUUID, r.GetMD5ExpireDuration())
}

// SubmissionForMD5 查询MD5对应的提交UUID，未记录时返回空串
func (r *Redis) SubmissionForMD5(ctx context.Context, md5Hex string) (string, error) {
	val, err := r.Get(ctx, fmt.Sprintf(constants.KeyFileMD5ToSubmissionUUID, md5Hex))
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// ParsedRecordKey 解析缓存键，包含解析规则版本
func ParsedRecordKey(cacheKey string) string {
	return fmt.Sprintf(constants.KeyParsedRecord, constants.DefaultParserVer+":"+cacheKey)
}

// GetParsedRecord 读取解析结果缓存，未命中返回 (nil, nil)
func (r *Redis) GetParsedRecord(ctx context.Context, cacheKey string) (*types.CandidateRecord, error) {
	val, err := r.Get(ctx, ParsedRecordKey(cacheKey))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取解析缓存失败: %w", err)
	}

	var rec types.CandidateRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		// 损坏的缓存按未命中处理
		r.logger.Warn().Err(err).Str("key", cacheKey).Msg("解析缓存内容无法反序列化")
		return nil, nil
	}
	return &rec, nil
}

// SetParsedRecord 写入解析结果缓存
func (r *Redis) SetParsedRecord(ctx context.Context, cacheKey string, rec *types.CandidateRecord) error {
	if rec == nil {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("序列化解析结果失败: %w", err)
	}
	return r.Set(ctx, ParsedRecordKey(cacheKey), string(data), r.GetParsedCacheTTL())
}

// Get 获取键的值
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis客户端未初始化")
	}

	var span trace.Span
	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.Get", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()
		span.SetAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", "GET"),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
		)
	}

	val, err := r.Client.Get(ctx, key).Result()

	if span != nil {
		if err != nil {
			// key不存在不算错误
			if errors.Is(err, redis.Nil) {
				span.SetStatus(codes.Ok, "key not found")
				span.SetAttributes(attribute.Bool("db.redis.key_exists", false))
			} else {
				tracing.RecordError(span, err, tracing.ErrorTypeRedis)
			}
			return "", err
		}
		span.SetAttributes(
			attribute.Bool("db.redis.key_exists", true),
			attribute.Int("db.redis.value_length", len(val)),
		)
		span.SetStatus(codes.Ok, "")
	}

	return val, err
}

// Set 设置键的值
func (r *Redis) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	var span trace.Span
	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.Set", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()
		span.SetAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", "SET"),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
			attribute.Int("db.redis.value_length", len(value)),
		)
		if expiration > 0 {
			span.SetAttributes(attribute.Int64("db.redis.expiration_ms", expiration.Milliseconds()))
		}
	}

	err := r.Client.Set(ctx, key, value, expiration).Err()
	if span != nil {
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeRedis)
			return err
		}
		span.SetStatus(codes.Ok, "")
	}
	return err
}
