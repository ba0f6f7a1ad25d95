package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	languageRomanized  = "romanized"
	geocodeLangEnglish = "en"
	geocodeLangKorean  = "ko"
)

// geocodeLanguage maps the form's language choice to the geocoder language.
// "romanized" (the form default) asks for English names; anything else asks for Hangul.
func geocodeLanguage(choice string) string {
	choice = strings.ToLower(strings.TrimSpace(choice))
	if choice == "" || choice == languageRomanized {
		return geocodeLangEnglish
	}
	return geocodeLangKorean
}

func (a *App) uploadFormHandler(c *gin.Context) {
	tmpl, err := a.pages.templatesForRender("templates/upload.tmpl")
	if err != nil {
		a.writeAPIError(c, err)
		return
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(c.Writer, nil); err != nil {
		a.log.Error("render upload form", "err", err)
	}
}

func (a *App) uploadSubmitHandler(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil || strings.TrimSpace(fileHeader.Filename) == "" {
		a.writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "validation_error", Message: "No file uploaded."})
		return
	}
	if fileHeader.Size > a.cfg.MaxUploadBytes {
		a.writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "validation_error", Message: "Uploaded file is too large."})
		return
	}

	opened, err := fileHeader.Open()
	if err != nil {
		a.writeAPIError(c, err)
		return
	}
	content, readErr := io.ReadAll(io.LimitReader(opened, a.cfg.MaxUploadBytes+1))
	_ = opened.Close()
	if readErr != nil {
		a.writeAPIError(c, readErr)
		return
	}
	if int64(len(content)) > a.cfg.MaxUploadBytes {
		a.writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "validation_error", Message: "Uploaded file is too large."})
		return
	}

	language := geocodeLanguage(c.PostForm("language"))
	artifact, err := a.buildHeatMap(c.Request.Context(), content, fileHeader.Filename, language)
	if err != nil {
		a.writeAPIError(c, err)
		return
	}

	token, err := a.createViewToken(artifact.ID, a.cfg.ViewLinkTTL)
	if err != nil {
		a.writeAPIError(c, err)
		return
	}
	c.Redirect(http.StatusFound, artifactURL("/view", artifact.ID, token))
}

// buildHeatMap runs the whole pipeline for one upload: store, parse, geocode every
// row, render and commit. Nothing is rendered unless every row geocodes.
func (a *App) buildHeatMap(ctx context.Context, content []byte, clientFilename, language string) (*MapArtifact, error) {
	uploadKey, err := a.artifacts.SaveUpload(content, clientFilename)
	if err != nil {
		return nil, err
	}

	records, err := readLocationRecords(bytes.NewReader(content))
	if err != nil {
		return nil, &apiError{Status: http.StatusBadRequest, Code: "parse_error", Message: fmt.Sprintf("Error processing file: %v", err)}
	}

	points, err := a.geocodeRecords(ctx, records, language)
	if err != nil {
		return nil, err
	}

	var document bytes.Buffer
	if err := renderMapDocument(&document, points); err != nil {
		return nil, err
	}

	artifact := MapArtifact{
		ID:           newArtifactID(),
		CreatedAt:    a.now().UTC(),
		Language:     language,
		UploadKey:    uploadKey,
		UploadDigest: uploadDigest(content),
		Points:       points,
	}
	if err := a.artifacts.SaveMap(artifact, document.Bytes()); err != nil {
		return nil, err
	}

	a.log.Info("map generated", "artifact_id", artifact.ID, "upload_key", uploadKey, "points", len(points), "lang", language)
	return &artifact, nil
}

func (a *App) geocodeRecords(ctx context.Context, records []LocationRecord, language string) ([]GeocodedPoint, error) {
	points := make([]GeocodedPoint, 0, len(records))
	for _, record := range records {
		result, err := a.geocoder.Geocode(ctx, GeocodeQuery{Name: record.Name, Language: language})
		if err != nil {
			return nil, fmt.Errorf("geocode %q (row %d): %w", record.Name, record.Row, err)
		}
		if result == nil {
			a.log.Info("location not found", "name", record.Name, "row", record.Row, "lang", language)
			return nil, &apiError{Status: http.StatusBadRequest, Code: "geocode_error", Message: fmt.Sprintf("Location '%s' could not be geocoded.", record.Name)}
		}
		points = append(points, GeocodedPoint{
			Name:        record.Name,
			Latitude:    result.Latitude,
			Longitude:   result.Longitude,
			DisplayName: result.DisplayName,
			Weight:      record.Engagements,
		})
	}
	return points, nil
}

func (a *App) renderWorkbookFile(ctx context.Context, path, languageChoice string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	artifact, err := a.buildHeatMap(ctx, content, filepath.Base(path), geocodeLanguage(languageChoice))
	if err != nil {
		return err
	}
	documentPath, err := a.artifacts.DocumentPath(artifact.ID)
	if err != nil {
		return err
	}
	a.log.Info("render completed", "artifact_id", artifact.ID, "document", documentPath)
	return nil
}

func (a *App) loadArtifact(artifactID string) (*MapArtifact, error) {
	artifact, err := a.artifacts.LoadArtifact(artifactID)
	if errors.Is(err, errArtifactNotFound) {
		return nil, &apiError{Status: http.StatusNotFound, Code: "not_found", Message: "Map not found."}
	}
	return artifact, err
}

// Every upload gets its own artifact, so there is no shared latest map to show here.
func (a *App) viewIndexHandler(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/")
}

type viewPageData struct {
	DocumentURL string
	SummaryURL  string
	CSVURL      string
	GeoJSONURL  string
	PointCount  int
	CreatedAt   string
}

func (a *App) viewMapHandler(c *gin.Context) {
	artifactID, err := a.authorizeArtifact(c)
	if err != nil {
		a.writeAPIError(c, err)
		return
	}
	artifact, err := a.loadArtifact(artifactID)
	if err != nil {
		a.writeAPIError(c, err)
		return
	}

	token := c.Query("token")
	data := viewPageData{
		DocumentURL: artifactURL("/maps", artifact.ID, token),
		SummaryURL:  artifactSummaryURL(artifact.ID, token),
		CSVURL:      artifactExportURL(artifact.ID, token, exportFormatCSV),
		GeoJSONURL:  artifactExportURL(artifact.ID, token, exportFormatGeoJSON),
		PointCount:  len(artifact.Points),
		CreatedAt:   artifact.CreatedAt.Format("2006-01-02 15:04 MST"),
	}

	tmpl, err := a.pages.templatesForRender("templates/view.tmpl")
	if err != nil {
		a.writeAPIError(c, err)
		return
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(c.Writer, data); err != nil {
		a.log.Error("render view page", "artifact_id", artifact.ID, "err", err)
	}
}

func (a *App) mapDocumentHandler(c *gin.Context) {
	artifactID, err := a.authorizeArtifact(c)
	if err != nil {
		a.writeAPIError(c, err)
		return
	}
	path, err := a.artifacts.DocumentPath(artifactID)
	if errors.Is(err, errArtifactNotFound) {
		a.writeAPIError(c, &apiError{Status: http.StatusNotFound, Code: "not_found", Message: "Map not found."})
		return
	}
	if err != nil {
		a.writeAPIError(c, err)
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.File(path)
}
