package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

var (
	postalCodeRe = regexp.MustCompile(`^\d{5}-?\d{3}$`)
	phoneRe      = regexp.MustCompile(`^\d{10,11}$`)
	imageURLRe   = regexp.MustCompile(`(?i)^https?://.+\.(jpg|jpeg|png|gif)$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("money", validateMoney)
	_ = v.RegisterValidation("postal_code", matches(postalCodeRe))
	_ = v.RegisterValidation("phone", matches(phoneRe))
	_ = v.RegisterValidation("image_url", matches(imageURLRe))
	return v
}

// validateMoney checks a decimal string with at most two fraction digits.
// An optional "min:max" parameter bounds it inclusively; a leading ">"
// on min makes the lower bound exclusive ("money=>0:50").
func validateMoney(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil || !d.Equal(d.Round(2)) {
		return false
	}
	param := fl.Param()
	if param == "" {
		return true
	}
	lo, hi, ok := strings.Cut(param, ":")
	if !ok {
		return false
	}
	exclusive := strings.HasPrefix(lo, ">")
	min, err := decimal.NewFromString(strings.TrimPrefix(lo, ">"))
	if err != nil {
		return false
	}
	max, err := decimal.NewFromString(hi)
	if err != nil {
		return false
	}
	if exclusive && !d.GreaterThan(min) || !exclusive && d.LessThan(min) {
		return false
	}
	return !d.GreaterThan(max)
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// decodeAndValidate decodes the JSON body into v and validates it. On
// failure it writes the 400 response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return false
	}
	if details := validationDetails(validate.Struct(v)); details != nil {
		writeValidationError(w, "invalid request", details)
		return false
	}
	return true
}

// validationDetails converts validator errors to a field -> message map.
func validationDetails(err error) map[string]string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fieldPath(fe)] = fieldMessage(fe)
	}
	return details
}

// fieldPath drops the top-level struct name: "createOrderRequest.items[0].quantity" -> "items[0].quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at least %s element(s)", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "money":
		if fe.Param() == "" {
			return "must be a decimal amount"
		}
		lo, hi, _ := strings.Cut(fe.Param(), ":")
		if strings.HasPrefix(lo, ">") {
			return fmt.Sprintf("must be greater than %s and at most %s", strings.TrimPrefix(lo, ">"), hi)
		}
		return fmt.Sprintf("must be between %s and %s", lo, hi)
	case "postal_code":
		return "must be a postal code like 01234-567"
	case "phone":
		return "must have 10 or 11 digits"
	case "image_url":
		return "must be an http(s) URL ending in .jpg, .jpeg, .png or .gif"
	}
	return "is invalid"
}

// parseIDParam reads a positive integer path parameter. On failure it
// writes the 400 response and returns false.
func parseIDParam(w http.ResponseWriter, r *http.Request, name, label string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid "+label+" ID")
		return 0, false
	}
	return id, true
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// parsePage reads zero-based page and size query parameters. Pages whose
// offset would not fit the int32 OFFSET parameter are rejected.
func parsePage(w http.ResponseWriter, r *http.Request) (page, size int, ok bool) {
	size = defaultPageSize
	if s := r.URL.Query().Get("size"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			size = v
		}
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	if s := r.URL.Query().Get("page"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			page = v
		}
	}
	if page > math.MaxInt32/size {
		writeValidationError(w, "invalid request", map[string]string{
			"page": fmt.Sprintf("must be at most %d for size %d", math.MaxInt32/size, size),
		})
		return 0, 0, false
	}
	return page, size, true
}

// pageResponse wraps one page of a listing.
type pageResponse[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int64 `json:"total_pages"`
}

func newPage[T any](content []T, page, size int, total int64) pageResponse[T] {
	pages := total / int64(size)
	if total%int64(size) != 0 {
		pages++
	}
	return pageResponse[T]{Content: content, Page: page, Size: size, TotalElements: total, TotalPages: pages}
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}
