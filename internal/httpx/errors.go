package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-lifecycle/internal/orders"
)

type errorResp struct {
	Error   string             `json:"error"`
	Message string             `json:"message"`
	Fields  map[string]string  `json:"fields,omitempty"`
	Details []orders.Shortfall `json:"details,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// pakai nama field json di pesan error
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into dst and validates it. It writes the 400 response itself.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "InvalidRequest", Message: "invalid json"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, errorResp{
				Error: "InvalidRequest", Message: "validation failed", Fields: formatValidation(ve),
			})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "InvalidRequest", Message: err.Error()})
		return false
	}
	return true
}

func formatValidation(ve validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		// "createOrderReq.lines[0].quantity" -> "lines[0].quantity"
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", fe.Field())
		case "min":
			out[field] = fmt.Sprintf("%s must have at least %s item(s)", fe.Field(), fe.Param())
		case "gt":
			out[field] = fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
		case "lte":
			out[field] = fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param())
		case "gte":
			out[field] = fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
		default:
			out[field] = fmt.Sprintf("%s is invalid", fe.Field())
		}
	}
	return out
}

// writeError maps domain errors to status codes. Unexpected failures are logged and
// answered with a generic message.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		stock *orders.StockExceededError
		code  int
		kind  string
	)
	switch {
	case errors.As(err, &stock):
		writeJSON(w, http.StatusConflict, errorResp{Error: "StockExceeded", Message: err.Error(), Details: stock.Shortfalls})
		return
	case errors.Is(err, orders.ErrAlreadyPaid):
		code, kind = http.StatusConflict, "AlreadyPaid"
	case errors.Is(err, orders.ErrAlreadyCancelled):
		code, kind = http.StatusConflict, "AlreadyCancelled"
	case errors.Is(err, orders.ErrOrderNotFound):
		code, kind = http.StatusNotFound, "OrderNotFound"
	case errors.Is(err, orders.ErrProductNotFound):
		code, kind = http.StatusNotFound, "ProductNotFound"
	case errors.Is(err, orders.ErrInvalidOrder):
		code, kind = http.StatusBadRequest, "InvalidOrder"
	case errors.Is(err, orders.ErrInvalidProduct):
		code, kind = http.StatusBadRequest, "InvalidProduct"
	default:
		logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp{
			Error: "OrderProcessingFailure", Message: orders.ErrOrderProcessing.Error(),
		})
		return
	}
	writeJSON(w, code, errorResp{Error: kind, Message: err.Error()})
}
