package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	accessKeyPattern  = regexp.MustCompile(`^(AKIA|ASIA)[A-Z0-9]{12,124}$`)
	awsRegionPattern  = regexp.MustCompile(`^[a-z]{2}(-gov)?-[a-z]+-\d$`)
	resourceIDPattern = regexp.MustCompile(`^(i|vol|snap|ami|sg|eipalloc)-[0-9a-f]{8,17}$`)
)

// Validator wraps go-playground validator
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// New creates a new validator instance with the AWS specific tags registered
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("aws_access_key", func(fl validator.FieldLevel) bool {
		return accessKeyPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("aws_region", func(fl validator.FieldLevel) bool {
		return awsRegionPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("aws_resource_id", func(fl validator.FieldLevel) bool {
		return resourceIDPattern.MatchString(fl.Field().String())
	})

	return &Validator{validate: v}
}

// Validate validates a struct
func (v *Validator) Validate(i interface{}) []ValidationError {
	var validationErrors []ValidationError

	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []ValidationError{{Message: err.Error()}}
	}
	for _, fe := range fieldErrors {
		validationErrors = append(validationErrors, ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Value:   redact(fe),
			Message: msgForTag(fe),
		})
	}

	return validationErrors
}

// ValidateVar validates a single variable
func (v *Validator) ValidateVar(field interface{}, tag string) error {
	return v.validate.Var(field, tag)
}

// redact keeps credential values out of error payloads
func redact(fe validator.FieldError) string {
	if strings.Contains(strings.ToLower(fe.Field()), "secret") {
		return ""
	}
	return fmt.Sprintf("%v", fe.Value())
}

func msgForTag(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "aws_access_key":
		return fmt.Sprintf("%s must be an AWS access key id", field)
	case "aws_region":
		return fmt.Sprintf("%s must be an AWS region name", field)
	case "aws_resource_id":
		return fmt.Sprintf("%s must be an EC2 resource id", field)
	default:
		return fmt.Sprintf("%s failed validation for tag: %s", field, fe.Tag())
	}
}
