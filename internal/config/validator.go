package config

import (
	"errors"
	"fmt"
	"os"

	logInterface "github.com/weisyn/subproof/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/subproof/pkg/types"
)

// ValidationError 配置验证错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("配置验证失败 [%s]: %s", e.Field, e.Message)
}

// ValidateMandatoryConfig 验证用户显式填写的配置项
//
// 只检查出现在配置文件中的字段，缺失字段由各模块默认值补齐。
// 所有错误一次性返回（errors.Join），方便用户一次改完。
func ValidateMandatoryConfig(appConfig *types.AppConfig) error {
	if appConfig == nil {
		return nil
	}
	var errs []error

	if appConfig.Environment != nil {
		switch *appConfig.Environment {
		case "dev", "test", "prod":
		default:
			errs = append(errs, &ValidationError{
				Field:   "environment",
				Message: fmt.Sprintf("无效的运行环境 %q（可选 dev|test|prod）", *appConfig.Environment),
			})
		}
	}

	if lc := appConfig.Log; lc != nil && lc.Level != nil {
		if !logInterface.LogLevel(*lc.Level).IsValid() {
			errs = append(errs, &ValidationError{
				Field:   "log.level",
				Message: fmt.Sprintf("无效的日志级别 %q", *lc.Level),
			})
		}
	}

	if cc := appConfig.Clock; cc != nil {
		if cc.Type != nil && *cc.Type != "system" && *cc.Type != "ntp" {
			errs = append(errs, &ValidationError{
				Field:   "clock.type",
				Message: fmt.Sprintf("不支持的时钟类型 %q（可选 system|ntp）", *cc.Type),
			})
		}
		if cc.Type != nil && *cc.Type == "ntp" && cc.NTPServer != nil && *cc.NTPServer == "" {
			errs = append(errs, &ValidationError{
				Field:   "clock.ntp_server",
				Message: "NTP时钟必须配置服务器地址",
			})
		}
	}

	if sc := appConfig.Subproof; sc != nil {
		if sc.StoreShards != nil && *sc.StoreShards <= 0 {
			errs = append(errs, &ValidationError{Field: "subproof.store_shards", Message: "分片数必须大于0"})
		}
		if sc.ProofQueueSize != nil && *sc.ProofQueueSize < 0 {
			errs = append(errs, &ValidationError{Field: "subproof.proof_queue_size", Message: "队列长度不能为负数"})
		}
		if sc.ProofValiditySeconds != nil && *sc.ProofValiditySeconds <= 0 {
			errs = append(errs, &ValidationError{Field: "subproof.proof_validity_seconds", Message: "证明有效期必须大于0"})
		}
		if sc.TrustedSetupPath != nil && *sc.TrustedSetupPath != "" {
			if info, err := os.Stat(*sc.TrustedSetupPath); err == nil && !info.IsDir() {
				errs = append(errs, &ValidationError{
					Field:   "subproof.trusted_setup_path",
					Message: fmt.Sprintf("%s 不是目录", *sc.TrustedSetupPath),
				})
			}
		}
	}

	if ac := appConfig.API; ac != nil && ac.HTTPPort != nil {
		if *ac.HTTPPort < 0 || *ac.HTTPPort > 65535 {
			errs = append(errs, &ValidationError{
				Field:   "api.http_port",
				Message: fmt.Sprintf("端口 %d 超出范围", *ac.HTTPPort),
			})
		}
	}

	return errors.Join(errs...)
}
