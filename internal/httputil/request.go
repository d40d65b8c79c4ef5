package httputil

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// GetNumericQueryParameters reads the optional numeric query parameters
// named by paramKeys. Parameters left out are absent from the returned map.
// If any of them isn't a number, it'll write a 400 status code as well as
// the reasoning for the error into the ResponseWriter, and return false.
func GetNumericQueryParameters(w http.ResponseWriter, r *http.Request, paramKeys ...string) (map[string]float64, zerolog.Logger, bool) {
	params := make(map[string]float64, len(paramKeys))
	logger := log.With()
	query := r.URL.Query()
	for _, key := range paramKeys {
		raw := query.Get(key)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("expected a number for the %s query parameter", key), http.StatusBadRequest)
			return nil, zerolog.Nop(), false
		}
		params[key] = value
		logger = logger.Float64(key, value)
	}
	return params, logger.Logger(), true
}
