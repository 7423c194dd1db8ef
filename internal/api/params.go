package api

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/steemit/sdgforum/internal/apperr"
	"github.com/steemit/sdgforum/internal/thread"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func paramValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// bindParams decodes named params into dest and validates its tags
func bindParams(params json.RawMessage, dest interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		params = json.RawMessage("{}")
	}
	if err := json.Unmarshal(params, dest); err != nil {
		return apperr.Validation("invalid params: %v", err)
	}

	if err := paramValidator().Struct(dest); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return apperr.Validation("%s", describe(fieldErrs[0]))
		}
		return apperr.Validation("invalid params: %v", err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "uuid":
		return fe.Field() + " must be a valid id"
	case "max":
		return fe.Field() + " must be at most " + fe.Param()
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "len":
		return fe.Field() + " must be exactly " + fe.Param() + " characters"
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

type threadIDParams struct {
	ThreadID string `json:"thread_id" validate:"required,uuid"`
}

type createThreadParams struct {
	Title          string         `json:"title" validate:"max=255"`
	Body           string         `json:"body" validate:"required"`
	Tags           thread.TagList `json:"tags"`
	CategoryIDs    []string       `json:"category_ids" validate:"omitempty,dive,uuid"`
	Image          string         `json:"image" validate:"omitempty,max=1024"`
	ParentThreadID string         `json:"parent_thread_id" validate:"omitempty,uuid"`
}

type updateThreadParams struct {
	ThreadID    string         `json:"thread_id" validate:"required,uuid"`
	Title       *string        `json:"title" validate:"omitempty,max=255"`
	Body        *string        `json:"body"`
	Tags        thread.TagList `json:"tags"`
	CategoryIDs []string       `json:"category_ids" validate:"omitempty,dive,uuid"`
	Image       *string        `json:"image" validate:"omitempty,max=1024"`
}

type setStatusParams struct {
	ThreadID string `json:"thread_id" validate:"required,uuid"`
	Status   string `json:"status" validate:"required,oneof=ACTIVE REMOVED"`
}

type reportParams struct {
	ThreadID   string `json:"thread_id" validate:"required,uuid"`
	ReasonCode string `json:"reason_code" validate:"required,max=64"`
	Message    string `json:"message" validate:"max=2000"`
}

type listThreadsParams struct {
	Page        int            `json:"page" validate:"min=0"`
	PageSize    int            `json:"page_size" validate:"min=0"`
	Tags        thread.TagList `json:"tags"`
	CategoryIDs []string       `json:"category_ids" validate:"omitempty,dive,uuid"`
	Search      string         `json:"search" validate:"max=200"`
}

type listRepliesParams struct {
	ThreadID string `json:"thread_id" validate:"required,uuid"`
	Page     int    `json:"page" validate:"min=0"`
	PageSize int    `json:"page_size" validate:"min=0"`
}

type createGroupParams struct {
	Name        string   `json:"name" validate:"required,max=100"`
	CategoryIDs []string `json:"category_ids" validate:"omitempty,dive,uuid"`
}

type groupIDParams struct {
	GroupID string `json:"group_id" validate:"required,uuid"`
}

type listGroupsParams struct {
	Page     int `json:"page" validate:"min=0"`
	PageSize int `json:"page_size" validate:"min=0"`
}

type sendMessageParams struct {
	GroupID   string `json:"group_id" validate:"required,uuid"`
	Body      string `json:"body" validate:"required"`
	ReplyToID string `json:"reply_to_id" validate:"omitempty,len=13,alphanum"`
}

type listMessagesParams struct {
	GroupID string `json:"group_id" validate:"required,uuid"`
	After   string `json:"after" validate:"omitempty,len=13,alphanum"`
	Limit   int    `json:"limit" validate:"min=0"`
}
