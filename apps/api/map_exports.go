package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	exportFormatCSV     = "csv"
	exportFormatGeoJSON = "geojson"
	exportFormatPDF     = "pdf"
)

func buildPointsCSV(points []GeocodedPoint) (string, error) {
	buffer := bytes.NewBuffer(nil)
	writer := csv.NewWriter(buffer)
	headers := []string{"row", "name", "display_name", "lat", "lon", "engagements"}
	if err := writer.Write(headers); err != nil {
		return "", err
	}
	for idx, point := range points {
		row := []string{
			strconv.Itoa(idx + 1),
			point.Name,
			point.DisplayName,
			fmt.Sprintf("%f", point.Latitude),
			fmt.Sprintf("%f", point.Longitude),
			formatWeight(point.Weight),
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return buffer.String(), nil
}

func buildPointsGeoJSON(artifact MapArtifact) (string, error) {
	features := make([]map[string]any, 0, len(artifact.Points)+len(usFacilities)+len(rokFacilities))
	for _, point := range artifact.Points {
		features = append(features, map[string]any{
			"type": "Feature",
			"geometry": map[string]any{
				"type":        "Point",
				"coordinates": []float64{point.Longitude, point.Latitude},
			},
			"properties": map[string]any{
				"kind":         "engagement",
				"name":         point.Name,
				"display_name": point.DisplayName,
				"weight":       point.Weight,
			},
		})
	}
	for _, facilities := range [][]StaticFacility{usFacilities, rokFacilities} {
		for _, facility := range facilities {
			features = append(features, map[string]any{
				"type": "Feature",
				"geometry": map[string]any{
					"type":        "Point",
					"coordinates": []float64{facility.Longitude, facility.Latitude},
				},
				"properties": map[string]any{
					"kind":     "facility",
					"name":     facility.Name,
					"category": facility.Category,
				},
			})
		}
	}
	payload := map[string]any{
		"type":     "FeatureCollection",
		"features": features,
		"properties": map[string]any{
			"artifact_id": artifact.ID,
			"created_at":  artifact.CreatedAt,
			"language":    artifact.Language,
		},
	}
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func artifactExportURL(artifactID, token, format string) string {
	return "/maps/" + url.PathEscape(artifactID) + "/export?format=" + url.QueryEscape(format) + "&token=" + url.QueryEscape(token)
}

func (a *App) mapExportHandler(c *gin.Context) {
	artifactID, err := a.authorizeArtifact(c)
	if err != nil {
		a.writeAPIError(c, err)
		return
	}
	format := strings.ToLower(strings.TrimSpace(c.Query("format")))
	if format == "" {
		format = exportFormatCSV
	}
	if format != exportFormatCSV && format != exportFormatGeoJSON && format != exportFormatPDF {
		a.writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_format", Message: "Unsupported export format."})
		return
	}

	artifact, err := a.loadArtifact(artifactID)
	if err != nil {
		a.writeAPIError(c, err)
		return
	}

	var (
		contentType string
		body        []byte
	)
	switch format {
	case exportFormatGeoJSON:
		encoded, buildErr := buildPointsGeoJSON(*artifact)
		contentType, body, err = "application/geo+json", []byte(encoded), buildErr
	case exportFormatPDF:
		contentType = "application/pdf"
		body, err = buildMapSummaryPDF(*artifact)
	default:
		encoded, buildErr := buildPointsCSV(artifact.Points)
		contentType, body, err = "text/csv; charset=utf-8", []byte(encoded), buildErr
	}
	if err != nil {
		a.writeAPIError(c, err)
		return
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"map-%s.%s\"", artifact.ID, format))
	_, _ = c.Writer.Write(body)
}
