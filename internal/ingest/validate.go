package ingest

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "stockmatrix/internal/errors"
	"stockmatrix/internal/matrix"
	"stockmatrix/pkg/contracts/domain"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("datelabel", func(fl validator.FieldLevel) bool {
		_, ok := matrix.ParseDateArg(fl.Field().String())
		return ok
	})
	// report JSON names in messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateBatches checks every batch and joins the failures into one
// validation error.
func validateBatches(v *validator.Validate, batches []domain.ObservationBatch) error {
	var problems []string
	for i := range batches {
		err := v.Struct(&batches[i])
		if err == nil {
			continue
		}
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return apperrors.NewAppValidationError(err.Error())
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("batch %d (%s): %s failed %s", i, batches[i].SymbolKey, fe.Namespace(), fe.Tag()))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return apperrors.NewAppValidationError("invalid observation batches").WithContext("problems", problems)
}
