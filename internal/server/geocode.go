package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"tripline/internal/app"
	"tripline/internal/geocode"
)

// registerGeocode proxies place lookups so browser clients never talk to the
// resolver directly.
func registerGeocode(api huma.API, a app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "geocode-search",
		Method:      http.MethodGet,
		Path:        "/geocode",
		Summary:     "Resolve a place name to coordinates",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Query string `query:"q" minLength:"1"`
	}) (*struct {
		Body []geocode.Place `json:"body"`
	}, error) {
		if _, authErr := userFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if input.Query == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "q is required", nil)
		}
		places, err := a.Geocoder.Search(ctx, input.Query)
		if err != nil {
			return nil, handleError(err)
		}
		if places == nil {
			places = []geocode.Place{}
		}
		return &struct {
			Body []geocode.Place `json:"body"`
		}{Body: places}, nil
	})
}
