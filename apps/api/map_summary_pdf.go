package main

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-pdf/fpdf"
)

const summaryTopLocations = 25

func buildMapSummaryPDF(artifact MapArtifact) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 16)
	pdf.Cell(0, 10, mapTitle)

	pdf.Ln(12)

	totalWeight := 0.0
	for _, point := range artifact.Points {
		totalWeight += point.Weight
	}

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", artifact.CreatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Locations: %d", len(artifact.Points)))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Total engagements: %s", formatWeight(totalWeight)))
	pdf.Ln(7)
	if artifact.UploadDigest != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Upload fingerprint (blake2b-256): %s", uploadFingerprint(artifact.UploadDigest)))
		pdf.Ln(7)
	}
	pdf.Ln(3)

	// Core fonts cover cp1252 only; Hangul names degrade in the PDF but stay intact on the map.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "Top locations")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	points := make([]GeocodedPoint, len(artifact.Points))
	copy(points, artifact.Points)
	sort.SliceStable(points, func(i, j int) bool { return points[i].Weight > points[j].Weight })
	limit := len(points)
	if limit > summaryTopLocations {
		limit = summaryTopLocations
	}
	for i := 0; i < limit; i++ {
		p := points[i]
		pdf.Cell(0, 6, tr(fmt.Sprintf("- %s: %s (%.4f, %.4f)", p.Name, formatWeight(p.Weight), p.Latitude, p.Longitude)))
		pdf.Ln(6)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "Reference facilities")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("- US installations (star markers): %d", len(usFacilities)))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("- ROK installations (circle markers): %d", len(rokFacilities)))
	pdf.Ln(6)

	buffer := bytes.NewBuffer(nil)
	if err := pdf.Output(buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func uploadFingerprint(digest string) string {
	if len(digest) > uploadDigestHexLength {
		return digest[:uploadDigestHexLength]
	}
	return digest
}

func formatWeight(weight float64) string {
	if weight == float64(int64(weight)) {
		return fmt.Sprintf("%d", int64(weight))
	}
	return fmt.Sprintf("%.2f", weight)
}

func (a *App) mapSummaryPDFHandler(c *gin.Context) {
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

	body, err := buildMapSummaryPDF(*artifact)
	if err != nil {
		a.writeAPIError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"map-%s.pdf\"", artifact.ID))
	c.Data(http.StatusOK, "application/pdf", body)
}
