package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryEnum reads an optional enum filter. isValid decides membership.
func ParseQueryEnum[T ~string](r *http.Request, key string, isValid func(T) bool) (*T, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value := T(raw)
	if !isValid(value) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported "+key).WithDetails(map[string]any{"field": key, "value": raw})
	}
	return &value, nil
}
