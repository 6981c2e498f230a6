package validator

import (
	"reflect"
	"sync"

	"github.com/gin-gonic/gin/binding"
)

var installOnce sync.Once

// ginValidator 实现 binding.StructValidator。
type ginValidator struct {
	v *Validator
}

var _ binding.StructValidator = ginValidator{}

func (g ginValidator) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	val := reflect.ValueOf(obj)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}
	switch val.Kind() {
	case reflect.Struct:
		return g.v.Validate(obj)
	case reflect.Slice, reflect.Array:
		for i := 0; i < val.Len(); i++ {
			if err := g.ValidateStruct(val.Index(i).Interface()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g ginValidator) Engine() any {
	return g.v.validate
}

// InstallGin 让 gin 的 ShouldBind* 使用全局 Validator。可重复调用。
func InstallGin() {
	installOnce.Do(func() {
		binding.Validator = ginValidator{v: Global()}
	})
}
