// Package options 汇总各配置分组共用的约定：flag 名即 viper 键，
// 例如 compliance.retriever.top-k 同时对应 YAML 路径和 REGRAG_COMPLIANCE_RETRIEVER_TOP_K。
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Join 把前缀拼成带结尾 "." 的键前缀，空前缀返回 ""。
func Join(prefixes ...string) string {
	if p := strings.Join(prefixes, "."); p != "" {
		return p + "."
	}
	return ""
}

// IOptions is implemented by every configuration group of the server.
type IOptions interface {
	// Validate reports every problem instead of stopping at the first one.
	Validate() []error
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// ValidateAll collects the errors of several groups in order.
func ValidateAll(groups ...IOptions) []error {
	var errs []error
	for _, g := range groups {
		errs = append(errs, g.Validate()...)
	}
	return errs
}
