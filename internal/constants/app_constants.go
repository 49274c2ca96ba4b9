package constants

import "time"

const (
	// DefaultParserVer 写入解析缓存的版本，解析规则变化时递增使旧缓存失效
	DefaultParserVer = "1"

	// DefaultMD5ExpireDays MD5去重记录默认保留天数
	DefaultMD5ExpireDays = 365
	// DefaultParsedCacheTTL 解析结果缓存默认有效期
	DefaultParsedCacheTTL = 30 * 24 * time.Hour

	// FailedDetailMaxLen 失败记录中错误详情的最大长度
	FailedDetailMaxLen = 1000
)
