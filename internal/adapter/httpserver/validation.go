package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/openweather-proxy/internal/domain"
)

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// weatherParams mirrors the One Call query surface for struct validation.
type weatherParams struct {
	Lat   float64 `validate:"gte=-90,lte=90"`
	Lon   float64 `validate:"gte=-180,lte=180"`
	Units string  `validate:"omitempty,oneof=standard metric imperial"`
	Lang  string  `validate:"omitempty,min=2,max=5"`
}

// parseWeatherQuery validates and normalizes the request parameters.
func parseWeatherQuery(r *http.Request) (domain.WeatherQuery, error) {
	qs := r.URL.Query()

	latStr := qs.Get("lat")
	lonStr := qs.Get("lon")
	if latStr == "" || lonStr == "" {
		return domain.WeatherQuery{}, fmt.Errorf("%w: lat and lon are required", domain.ErrInvalidArgument)
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return domain.WeatherQuery{}, fmt.Errorf("%w: lat must be a number", domain.ErrInvalidArgument)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return domain.WeatherQuery{}, fmt.Errorf("%w: lon must be a number", domain.ErrInvalidArgument)
	}

	p := weatherParams{
		Lat:   lat,
		Lon:   lon,
		Units: qs.Get("units"),
		Lang:  qs.Get("lang"),
	}
	if err := getValidator().Struct(p); err != nil {
		return domain.WeatherQuery{}, fmt.Errorf("%w: %s", domain.ErrInvalidArgument, validationMessage(err))
	}

	exclude := qs.Get("exclude")
	if err := validateExclude(exclude); err != nil {
		return domain.WeatherQuery{}, err
	}

	return domain.WeatherQuery{
		Lat:     lat,
		Lon:     lon,
		Exclude: exclude,
		Units:   p.Units,
		Lang:    p.Lang,
	}, nil
}

// validateExclude enforces the comma-separated subset of valid parts.
func validateExclude(exclude string) error {
	if exclude == "" {
		return nil
	}
	valid := make(map[string]bool, len(domain.ExcludeParts))
	for _, p := range domain.ExcludeParts {
		valid[p] = true
	}
	for _, part := range strings.Split(exclude, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !valid[part] {
			return fmt.Errorf("%w: exclude part %q is not one of %s",
				domain.ErrInvalidArgument, part, strings.Join(domain.ExcludeParts, ","))
		}
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag())
	}
	return err.Error()
}
