// Package catalogue fetches and parses the server list, sorting candidates
// by distance from the caller (spec.md §4.2).
package catalogue

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/speedcore-project/speedcore"
	"github.com/speedcore-project/speedcore/errorsx"
	"github.com/speedcore-project/speedcore/geo"
	"github.com/speedcore-project/speedcore/model"
	"github.com/speedcore-project/speedcore/spec"
)

// serverXML mirrors one <server .../> element's attributes. Fields not
// present in a given element decode to their zero value, matching the
// "missing optional attribute -> empty string/default" rule in spec.md
// §4.2 step 2.
type serverXML struct {
	URL         string `xml:"url,attr"`
	Lat         string `xml:"lat,attr"`
	Lon         string `xml:"lon,attr"`
	Name        string `xml:"name,attr"`
	Country     string `xml:"country,attr"`
	CountryCode string `xml:"cc,attr"`
	Host        string `xml:"host,attr"`
	ID          string `xml:"id,attr"`
	Sponsor     string `xml:"sponsor,attr"`
}

// FetchServers issues an HTTP GET to url via fetcher, parses the XML body
// for <server> elements, computes each candidate's distance from origin,
// and returns the list sorted ascending by distance (stable for ties).
func FetchServers(ctx context.Context, fetcher speedcore.Fetcher, url string, origin model.IPInfo) ([]model.ServerInfo, error) {
	if origin.IPAddress == "" && origin.Latitude == 0 && origin.Longitude == 0 {
		return nil, errorsx.New(errorsx.ErrCatalogueFailure, "missing IPInfo prerequisite")
	}

	status, body, err := fetcher.Fetch(ctx, http.MethodGet, url, "")
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ErrCatalogueFailure, "server list request failed")
	}
	if status < 200 || status >= 300 || len(body) == 0 {
		return nil, errorsx.New(errorsx.ErrCatalogueFailure, "non-2xx or empty server list response")
	}

	decoder := xml.NewDecoder(strings.NewReader(string(body)))
	var servers []model.ServerInfo
	for {
		tok, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, errorsx.Wrap(err, errorsx.ErrCatalogueFailure, "XML parse error")
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "server" {
			continue
		}
		var raw serverXML
		if err := decoder.DecodeElement(&raw, &start); err != nil {
			return nil, errorsx.Wrap(err, errorsx.ErrCatalogueFailure, "XML parse error")
		}
		if raw.URL == "" {
			continue
		}
		info := model.ServerInfo{
			URL:         raw.URL,
			Name:        raw.Name,
			Country:     raw.Country,
			CountryCode: raw.CountryCode,
			Host:        raw.Host,
			Sponsor:     raw.Sponsor,
			Latitude:    parseFloatOrZero(raw.Lat),
			Longitude:   parseFloatOrZero(raw.Lon),
			ID:          parseIntOrZero(raw.ID),
		}
		info.DistanceKm = geo.HaversineKm(origin.Latitude, origin.Longitude, info.Latitude, info.Longitude, spec.EarthRadiusKm)
		servers = append(servers, info)
	}

	sort.SliceStable(servers, func(i, j int) bool {
		return servers[i].DistanceKm < servers[j].DistanceKm
	})
	return servers, nil
}

func parseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseIntOrZero(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
