package main

import (
	"fmt"
	"html/template"
	"io"
)

const (
	mapCenterLat    = 36.5
	mapCenterLon    = 127.5
	mapZoom         = 7
	heatLayerRadius = 25
	mapTileURL      = "https://{s}.basemaps.cartocdn.com/rastertiles/voyager/{z}/{x}/{y}{r}.png"
	mapTileCredit   = "&copy; OpenStreetMap contributors &copy; CARTO"
	mapTitle        = "South Korea engagement map"
)

// GeocodedPoint is a resolved LocationRecord weighted by its engagement count.
type GeocodedPoint struct {
	Name        string  `json:"name"`
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
	DisplayName string  `json:"display_name"`
	Weight      float64 `json:"weight"`
}

type mapTemplateData struct {
	Title           string
	Center          [2]float64
	Zoom            int
	TileURL         string
	TileAttribution string
	HeatPoints      [][3]float64
	HeatRadius      int
	USFacilities    []StaticFacility
	ROKFacilities   []StaticFacility
}

var mapDocumentTemplate = template.Must(template.ParseFS(templateFS, "templates/map.html.tmpl"))

func buildHeatData(points []GeocodedPoint) [][3]float64 {
	if len(points) == 0 {
		return nil
	}
	heat := make([][3]float64, 0, len(points))
	for _, p := range points {
		heat = append(heat, [3]float64{p.Latitude, p.Longitude, p.Weight})
	}
	return heat
}

// renderMapDocument writes a standalone Leaflet page. The heat layer is left out when there are no points.
func renderMapDocument(w io.Writer, points []GeocodedPoint) error {
	data := mapTemplateData{
		Title:           mapTitle,
		Center:          [2]float64{mapCenterLat, mapCenterLon},
		Zoom:            mapZoom,
		TileURL:         mapTileURL,
		TileAttribution: mapTileCredit,
		HeatPoints:      buildHeatData(points),
		HeatRadius:      heatLayerRadius,
		USFacilities:    usFacilities,
		ROKFacilities:   rokFacilities,
	}
	if err := mapDocumentTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render map document: %w", err)
	}
	return nil
}
