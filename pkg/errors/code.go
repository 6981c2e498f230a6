// Package errors 提供 RegRAG 统一的错误码体系。
//
// 错误码格式: AABBCCC (7 位)
//
//   - AA:  服务/模块代码 (00-99)
//   - BB:  错误类别代码 (00-99)
//   - CCC: 序号 (000-999)
//
// 服务代码 (AA):
//
//   - 00: 通用错误
//   - 10: 数据库基础设施
//   - 11: 缓存基础设施
//   - 20: 合规检索服务 (compliance)
//
// 类别代码 (BB):
//
//   - 00: 成功
//   - 01: 请求/参数错误 (400)
//   - 04: 资源不存在 (404)
//   - 05: 资源冲突 (409)
//   - 06: 限流 (429)
//   - 07: 内部错误 (500)
//   - 08: 数据库错误 (500)
//   - 09: 缓存错误 (500)
//   - 10: 网络/下游不可用 (502/503)
//   - 11: 超时 (504)
//   - 12: 配置错误 (500)
package errors

// 服务代码 (AA)
const (
	ServiceCommon     = 0
	ServiceInfraDB    = 10
	ServiceInfraCache = 11
	ServiceCompliance = 20
)

// 类别代码 (BB)
const (
	CategorySuccess   = 0
	CategoryRequest   = 1
	CategoryResource  = 4
	CategoryConflict  = 5
	CategoryRateLimit = 6
	CategoryInternal  = 7
	CategoryDatabase  = 8
	CategoryCache     = 9
	CategoryNetwork   = 10
	CategoryTimeout   = 11
	CategoryConfig    = 12
)

// MakeCode 根据服务、类别和序号生成错误码。
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode 将错误码拆分为服务、类别和序号。
func ParseCode(code int) (service, category, sequence int) {
	service = code / 100000
	category = (code % 100000) / 1000
	sequence = code % 1000
	return
}

// GetCategory 返回错误码中的类别。
func GetCategory(code int) int {
	return (code % 100000) / 1000
}

// IsClientError 判断错误码是否属于客户端错误 (4xx)。
func IsClientError(code int) bool {
	category := GetCategory(code)
	return category >= CategoryRequest && category <= CategoryRateLimit
}

// IsServerError 判断错误码是否属于服务端错误 (5xx)。
func IsServerError(code int) bool {
	category := GetCategory(code)
	return category >= CategoryInternal && category <= CategoryConfig
}
