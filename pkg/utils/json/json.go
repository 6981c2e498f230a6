// Package json 封装 JSON 编解码。
// amd64/arm64 上使用 sonic，其它架构回退到 encoding/json。
package json

import (
	stdjson "encoding/json"
	"io"
	"runtime"

	"github.com/bytedance/sonic"
)

var (
	// Marshal 编码 v。
	Marshal func(v interface{}) ([]byte, error)

	// MarshalIndent 带缩进编码，供 CLI 输出使用。
	MarshalIndent func(v interface{}, prefix, indent string) ([]byte, error)

	// Unmarshal 解码 data 到 v。
	Unmarshal func(data []byte, v interface{}) error

	// Valid 判断 data 是否为合法 JSON。
	Valid func(data []byte) bool

	// NewEncoder 创建编码器。
	NewEncoder func(w io.Writer) Encoder

	usingSonic bool
)

// Encoder JSON 编码器接口。
type Encoder interface {
	Encode(v interface{}) error
}

func init() {
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		api := sonic.ConfigStd
		Marshal = api.Marshal
		MarshalIndent = api.MarshalIndent
		Unmarshal = api.Unmarshal
		Valid = api.Valid
		NewEncoder = func(w io.Writer) Encoder {
			return api.NewEncoder(w)
		}
		usingSonic = true
		return
	}

	Marshal = stdjson.Marshal
	MarshalIndent = stdjson.MarshalIndent
	Unmarshal = stdjson.Unmarshal
	Valid = stdjson.Valid
	NewEncoder = func(w io.Writer) Encoder {
		return stdjson.NewEncoder(w)
	}
}

// MarshalToString 编码为字符串。
func MarshalToString(v interface{}) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalString 从字符串解码。
func UnmarshalString(s string, v interface{}) error {
	return Unmarshal([]byte(s), v)
}

// IsUsingSonic 是否使用 sonic。
func IsUsingSonic() bool {
	return usingSonic
}
