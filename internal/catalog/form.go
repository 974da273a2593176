package catalog

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"artemisa_pos/internal/sales"
)

// FieldError is a validation problem attached to one form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a product form has invalid fields.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid product: " + strings.Join(parts, "; ")
}

// ProductForm is the editable part of a product.
type ProductForm struct {
	Name     string         `json:"name" validate:"required"`
	Category sales.Category `json:"category" validate:"omitempty,category"`
	Price    *float64       `json:"price" validate:"omitempty,gte=1"`
	BuyPrice *float64       `json:"buyPrice" validate:"omitempty,gte=0"`
	Stock    *int           `json:"stock" validate:"omitempty,gte=0"`
	Code     *int           `json:"code" validate:"omitempty,gte=0"`
}

var messages = map[string]string{
	"required": "is required",
	"category": "is not a known category",
	"gte":      "must be at least ",
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return sales.Category(fl.Field().String()).Valid()
	})
	return v
}

// Validate checks f and reports every invalid field.
func (f ProductForm) Validate(v *validator.Validate) error {
	f.Name = strings.TrimSpace(f.Name)
	err := v.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		msg := messages[fe.Tag()]
		if fe.Tag() == "gte" {
			msg += fe.Param()
		}
		if msg == "" {
			msg = "is invalid"
		}
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}

// Product converts the form into the backend's product shape. An empty category
// falls back to the default one.
func (f ProductForm) Product() sales.Product {
	p := sales.Product{
		Name:     strings.TrimSpace(f.Name),
		Category: f.Category,
		Stock:    f.Stock,
	}
	if p.Category == "" {
		p.Category = sales.DefaultCategory
	}
	if f.Price != nil {
		p.Price = decimal.NewNullDecimal(decimal.NewFromFloat(*f.Price))
	}
	if f.BuyPrice != nil {
		p.BuyPrice = decimal.NewNullDecimal(decimal.NewFromFloat(*f.BuyPrice))
	}
	if f.Code != nil {
		p.Code = *f.Code
	}
	return p
}
