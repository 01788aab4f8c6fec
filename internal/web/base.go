package web

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"stockFundFlow/internal/errs"
	"stockFundFlow/internal/trace"
)

var val = validator.New(validator.WithRequiredStructEnabled())

type (
	BadField struct {
		Field string      `json:"field"`
		Tag   string      `json:"tag"`
		Value interface{} `json:"value"`
	}

	BadFields struct {
		Items []*BadField
	}

	// ErrBody 错误响应体
	ErrBody struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
	}
)

const (
	ArgQuery = 1
	ArgBody  = 2
)

const (
	codeInvalidArgs = "InvalidArgs"
	codeNotFound    = "NotFound"
)

func VerifyArg(c *fiber.Ctx, out interface{}, from int) error {
	var err error
	if from == ArgQuery {
		err = c.QueryParser(out)
	} else if from == ArgBody {
		err = c.BodyParser(out)
	} else {
		return fmt.Errorf("unsupport arg source: %v", from)
	}
	if err != nil {
		return &fiber.Error{
			Code:    fiber.StatusBadRequest,
			Message: err.Error(),
		}
	}
	if err2 := Validate(out); err2 != nil {
		return err2
	}
	return nil
}

func Validate(data interface{}) *BadFields {
	errArr := val.Struct(data)
	if errArr == nil {
		return nil
	}
	var ive *validator.InvalidValidationError
	if errors.As(errArr, &ive) {
		return &BadFields{Items: []*BadField{{Field: "invalid", Tag: "invalid", Value: ive.Error()}}}
	}
	var ves validator.ValidationErrors
	if !errors.As(errArr, &ves) {
		return &BadFields{Items: []*BadField{{Field: "invalid", Tag: "invalid", Value: errArr.Error()}}}
	}
	fields := make([]*BadField, 0, len(ves))
	for _, fe := range ves {
		fields = append(fields, &BadField{Field: fe.Field(), Tag: fe.Tag(), Value: fe.Value()})
	}
	return &BadFields{Items: fields}
}

func (f *BadFields) Error() string {
	if f == nil {
		return ""
	}
	texts := make([]string, 0, len(f.Items))
	for _, it := range f.Items {
		texts = append(texts, fmt.Sprintf("[%s]: '%v', must %s", it.Field, it.Value, it.Tag))
	}
	return strings.Join(texts, ", ")
}

// StatusOf 错误分类对应的 HTTP 状态码。
func StatusOf(code errs.Code) int {
	switch {
	case errs.IsInput(code):
		return fiber.StatusBadRequest
	case code == errs.CodeEmptyDataset:
		return fiber.StatusNotFound
	case code == errs.CodeProviderUnavailable, code == errs.CodeProviderParseError:
		return fiber.StatusBadGateway
	case code == errs.CodeNarrationUnavailable:
		return fiber.StatusServiceUnavailable
	case code == errs.CodeNarrationTimeout:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrHandler 所有请求错误在此转为 {code,msg} JSON，进程不因单次请求失败退出。
func ErrHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	body := ErrBody{Code: errs.CodeUnknown.String(), Msg: err.Error()}

	var fieldErr *BadFields
	var fe *fiber.Error
	var appErr *errs.Error
	if errors.As(err, &fieldErr) {
		status = fiber.StatusBadRequest
		body.Code = codeInvalidArgs
	} else if errors.As(err, &appErr) {
		status = StatusOf(appErr.Code)
		body.Code = appErr.Code.String()
		body.Msg = appErr.Short()
	} else if errors.As(err, &fe) {
		status = fe.Code
		body.Msg = fe.Message
		if status == fiber.StatusNotFound {
			body.Code = codeNotFound
		} else if status < fiber.StatusInternalServerError {
			body.Code = codeInvalidArgs
		}
	}
	if status == fiber.StatusInternalServerError {
		body.Msg = "服务内部错误"
	}

	fields := []zap.Field{
		zap.String("trace", trace.TraceID(c.UserContext())),
		zap.String("m", c.Method()),
		zap.String("url", c.OriginalURL()),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= fiber.StatusInternalServerError {
		trace.Logger().Warn("server error", fields...)
	} else {
		trace.Logger().Info("req fail", fields...)
	}
	return c.Status(status).JSON(body)
}
