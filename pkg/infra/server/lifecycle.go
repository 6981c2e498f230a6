// Package server 提供基于 gin 的 HTTP 服务，以及 HTTP 与后台组件 (例如 worker 池) 的统一生命周期。
package server

import "context"

// Lifecycle 由 Manager 统一启动和停止的组件。
type Lifecycle interface {
	Start(ctx context.Context) error
	// Stop 在 ctx 截止前完成优雅关闭。
	Stop(ctx context.Context) error
}

// Runnable 附加到 Manager 的组件。Manager 先启动 HTTP 再按添加顺序启动它们，
// 停止时先停 HTTP 再逆序停止，Name 用于日志和错误信息。
type Runnable interface {
	Lifecycle
	Name() string
}
