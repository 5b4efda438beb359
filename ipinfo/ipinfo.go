// Package ipinfo fetches the caller's geolocation used to seed the
// catalogue loader's distance calculation (spec.md §6 IP-info endpoint).
package ipinfo

import (
	"context"
	"net/http"
	"strconv"

	"github.com/speedcore-project/speedcore"
	"github.com/speedcore-project/speedcore/errorsx"
	"github.com/speedcore-project/speedcore/httpfetch"
	"github.com/speedcore-project/speedcore/model"
)

// Fetch issues an HTTP GET to url via fetcher and decodes the URL-encoded
// "ip_address/isp/lat/lon" response body into a model.IPInfo.
func Fetch(ctx context.Context, fetcher speedcore.Fetcher, url string) (model.IPInfo, error) {
	status, body, err := fetcher.Fetch(ctx, http.MethodGet, url, "")
	if err != nil {
		return model.IPInfo{}, errorsx.Wrap(err, errorsx.ErrCatalogueFailure, "ip-info request failed")
	}
	if status < 200 || status >= 300 || len(body) == 0 {
		return model.IPInfo{}, errorsx.New(errorsx.ErrCatalogueFailure, "non-2xx or empty ip-info response")
	}
	values := httpfetch.ParseQueryString(string(body))
	lat, _ := strconv.ParseFloat(values["lat"], 64)
	lon, _ := strconv.ParseFloat(values["lon"], 64)
	return model.IPInfo{
		IPAddress: values["ip_address"],
		ISP:       values["isp"],
		Latitude:  lat,
		Longitude: lon,
	}, nil
}
