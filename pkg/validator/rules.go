package validator

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// 自定义校验标签
const (
	TagNotBlank     = "notblank"     // 去掉空白后非空
	TagNoWhitespace = "nowhitespace" // 不含空白字符
	TagSourcePath   = "sourcepath"   // 本地路径或 s3://bucket[/prefix]
)

var customMessages = map[string]map[string]string{
	TagNotBlank: {
		LangEN: "{0} must not be blank",
		LangZH: "{0}不能为空白",
	},
	TagNoWhitespace: {
		LangEN: "{0} must not contain whitespace characters",
		LangZH: "{0}不能包含空白字符",
	},
	TagSourcePath: {
		LangEN: "{0} must be a local path or an s3://bucket/prefix URI",
		LangZH: "{0}必须是本地路径或 s3://bucket/prefix 地址",
	},
}

func (v *Validator) registerCustomRules() {
	rules := map[string]validator.Func{
		TagNotBlank:     validateNotBlank,
		TagNoWhitespace: validateNoWhitespace,
		TagSourcePath:   validateSourcePath,
	}
	for tag, fn := range rules {
		_ = v.RegisterValidationWithTranslation(tag, fn, customMessages[tag])
	}
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateNoWhitespace(fl validator.FieldLevel) bool {
	return !strings.ContainsFunc(fl.Field().String(), unicode.IsSpace)
}

func validateSourcePath(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // 交给 required
	}
	if strings.ContainsRune(value, 0) {
		return false
	}
	if rest, ok := strings.CutPrefix(value, "s3://"); ok {
		bucket, _, _ := strings.Cut(rest, "/")
		return bucket != "" && !strings.ContainsFunc(bucket, unicode.IsSpace)
	}
	return !strings.Contains(value, "://")
}
