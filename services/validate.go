package services

import "github.com/go-playground/validator/v10"

// validate checks the request structs parsed by the endpoints below.
var validate = validator.New()
