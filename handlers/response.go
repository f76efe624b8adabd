package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/surajvsk/ipo-subbrocker/bidding"
	"github.com/surajvsk/ipo-subbrocker/shared"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldError is one entry of the "errors" array in a validation response.
type fieldError struct {
	Code    string        `json:"code"`
	Field   string        `json:"field"`
	Params  []interface{} `json:"params,omitempty"`
	Message string        `json:"message"`
}

func success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func failure(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

func validationFailure(c *fiber.Ctx, message string, errs []fieldError) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"success": false,
		"error":   message,
		"errors":  errs,
	})
}

// respondError maps the bidding and service error taxonomies to a status.
func respondError(c *fiber.Ctx, err error) error {
	var (
		verrs      bidding.ValidationErrors
		notFound   *bidding.NotFoundError
		fetchErr   *bidding.FetchError
		serviceErr *shared.ServiceError
	)

	switch {
	case errors.As(err, &verrs):
		errs := make([]fieldError, len(verrs))
		for i, v := range verrs {
			errs[i] = fieldError{Code: v.Code, Field: v.Field, Params: v.Params, Message: v.Error()}
		}
		return validationFailure(c, "Bid validation failed", errs)
	case errors.As(err, &notFound):
		return failure(c, fiber.StatusNotFound, notFound.Error())
	case errors.As(err, &fetchErr):
		logrus.WithError(err).WithField("path", c.Path()).Error("Upstream read failed")
		return failure(c, fiber.StatusServiceUnavailable, "Failed to load "+fetchErr.Source)
	case errors.As(err, &serviceErr):
		return respondServiceError(c, serviceErr)
	}

	logrus.WithError(err).WithField("path", c.Path()).Error("Request failed")
	return failure(c, fiber.StatusInternalServerError, "Internal server error")
}

func respondServiceError(c *fiber.Ctx, err *shared.ServiceError) error {
	switch err.Category {
	case shared.ErrorCategoryValidation:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   err.Message,
			"details": err.Details,
		})
	case shared.ErrorCategoryNotFound:
		return failure(c, fiber.StatusNotFound, err.Message)
	case shared.ErrorCategoryConflict:
		return failure(c, fiber.StatusConflict, err.Message)
	case shared.ErrorCategoryAuthentication:
		return failure(c, fiber.StatusUnauthorized, err.Message)
	case shared.ErrorCategoryAuthorization:
		return failure(c, fiber.StatusForbidden, err.Message)
	case shared.ErrorCategoryNetwork, shared.ErrorCategoryFetch:
		err.LogError()
		return failure(c, fiber.StatusBadGateway, err.Message)
	case shared.ErrorCategoryConfiguration:
		err.LogError()
		return failure(c, fiber.StatusServiceUnavailable, err.Message)
	}
	err.LogError()
	return failure(c, fiber.StatusInternalServerError, "Internal server error")
}

// parseBody decodes the request body into dst and runs struct validation.
// It writes the error response itself and reports whether to continue.
func parseBody(c *fiber.Ctx, dst interface{}) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		return false, failure(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var invalid validator.ValidationErrors
		if !errors.As(err, &invalid) {
			return false, failure(c, fiber.StatusBadRequest, "Invalid request body")
		}
		errs := make([]fieldError, len(invalid))
		for i, fe := range invalid {
			errs[i] = fieldError{
				Code:    fe.Tag(),
				Field:   fe.Field(),
				Message: fieldMessage(fe),
			}
			if fe.Param() != "" {
				errs[i].Params = []interface{}{fe.Param()}
			}
		}
		return false, validationFailure(c, "Request validation failed", errs)
	}
	return true, nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fe.Param()
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "url":
		return field + " must be a URL"
	case "email":
		return field + " must be an email address"
	case "len":
		return field + " must be " + fe.Param() + " characters"
	}
	return field + " is invalid"
}

func parseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, bool, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, false, failure(c, fiber.StatusBadRequest, "Invalid "+name)
	}
	return id, true, nil
}
