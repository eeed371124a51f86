package api

import "time"

// API服务默认配置值
const (
	// defaultHTTPEnabled 默认关闭HTTP API，由 serve 命令或配置文件显式开启
	defaultHTTPEnabled = false

	// defaultHTTPHost 只监听本机
	defaultHTTPHost = "127.0.0.1"

	// defaultHTTPPort HTTP端口
	defaultHTTPPort = 8080

	// defaultHTTPReadTimeout HTTP读取超时，防止慢客户端占用连接
	defaultHTTPReadTimeout = 15 * time.Second

	// defaultHTTPWriteTimeout HTTP写入超时，需覆盖一次 Groth16 证明生成
	defaultHTTPWriteTimeout = 60 * time.Second

	// defaultMaxRequestSize 证明本身不足 1KB，64KB 足够
	defaultMaxRequestSize = 64 * 1024

	// defaultRateLimitRPM 每个客户端每分钟请求数
	defaultRateLimitRPM = 600
)
