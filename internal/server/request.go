package server

import (
	"fmt"

	"stressvision/internal/analytics"
	"stressvision/internal/pipeline"
	"stressvision/internal/raster"
	"stressvision/internal/visual"
)

// BandsRequest carries six co-registered reflectance grids, each flattened
// row-major to Height*Width values
type BandsRequest struct {
	Height  int       `json:"height"`
	Width   int       `json:"width"`
	Blue    []float32 `json:"blue"`
	Green   []float32 `json:"green"`
	Red     []float32 `json:"red"`
	RedEdge []float32 `json:"red_edge"`
	NIR     []float32 `json:"nir"`
	SWIR    []float32 `json:"swir"`
}

// NewBandsRequest flattens b into a request body
func NewBandsRequest(b raster.Bands) BandsRequest {
	shape := b.Shape()
	return BandsRequest{
		Height:  shape.H,
		Width:   shape.W,
		Blue:    b.Blue.Data(),
		Green:   b.Green.Data(),
		Red:     b.Red.Data(),
		RedEdge: b.RedEdge.Data(),
		NIR:     b.NIR.Data(),
		SWIR:    b.SWIR.Data(),
	}
}

// Bands validates the request and builds the band set
func (r BandsRequest) Bands() (raster.Bands, error) {
	return raster.BandsFromSlices(r.Height, r.Width, [6][]float32{
		r.Blue, r.Green, r.Red, r.RedEdge, r.NIR, r.SWIR,
	})
}

// AnalyzeResponse is the body returned by POST /analyze
type AnalyzeResponse struct {
	RequestID        string                 `json:"request_id"`
	RGBImage         string                 `json:"rgb_image"`
	NDVIImage        string                 `json:"ndvi_image"`
	OverlayImage     string                 `json:"overlay_image"`
	StressPercentage float64                `json:"stress_percentage"`
	AlertLevel       analytics.Level        `json:"alert_level"`
	Distribution     analytics.Distribution `json:"distribution"`
	Forecast         []float64              `json:"forecast"`
	AdvisoryMessage  string                 `json:"advisory_message"`
	Advice           analytics.Advice       `json:"advice"`
	ElapsedMS        int64                  `json:"elapsed_ms"`
}

func newAnalyzeResponse(requestID string, res *pipeline.Result) (*AnalyzeResponse, error) {
	resp := &AnalyzeResponse{
		RequestID:        requestID,
		StressPercentage: res.StressPercentage,
		AlertLevel:       res.AlertLevel,
		Distribution:     res.Distribution,
		Forecast:         res.Forecast,
		AdvisoryMessage:  res.Advisory,
		Advice:           res.Advice,
		ElapsedMS:        res.Elapsed.Milliseconds(),
	}
	var err error
	if resp.RGBImage, err = visual.EncodePNGBase64(res.RGB); err != nil {
		return nil, fmt.Errorf("rgb image: %w", err)
	}
	if resp.NDVIImage, err = visual.EncodePNGBase64(res.NDVI); err != nil {
		return nil, fmt.Errorf("ndvi image: %w", err)
	}
	if resp.OverlayImage, err = visual.EncodePNGBase64(res.Overlay); err != nil {
		return nil, fmt.Errorf("overlay image: %w", err)
	}
	return resp, nil
}
