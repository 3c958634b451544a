// Package validation validates configuration and request structs with
// go-playground/validator tags and reports failures as *errors.AppError.
package validation
