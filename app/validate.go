package app

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var validatorsOnce sync.Once

// registerValidators adds the custom tags used by request DTOs.
func registerValidators() {
	validatorsOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
				return strings.TrimSpace(fl.Field().String()) != ""
			})
		}
	})
}

// RegisterValidators is exported for handler tests that build their own engine.
func RegisterValidators() { registerValidators() }
