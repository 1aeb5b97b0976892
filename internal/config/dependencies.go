package config

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var roomCodePattern = regexp.MustCompile(`^DF[0-9]{4}$`)

// Validate adalah validator global yang dipakai di seluruh aplikasi.
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("roomcode", func(fl validator.FieldLevel) bool {
		return roomCodePattern.MatchString(fl.Field().String())
	})
	return v
}
