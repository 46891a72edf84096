package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camrecorder/internal/api/models"
)

// registerLEDRoutes registers the recording indicator status.
func (s *Server) registerLEDRoutes() {
	if s.options.LEDs == nil {
		s.logger.Debug("LED indicator disabled, skipping LED routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-led",
		Method:      http.MethodGet,
		Path:        "/api/led",
		Summary:     "Recording LED",
		Description: "The LED lit while a segment is written and blinking during pre-roll",
		Tags:        []string{"leds"},
	}, func(_ context.Context, _ *struct{}) (*models.LEDResponse, error) {
		available := s.options.LEDs.Available()
		if available == nil {
			available = []string{}
		}
		return &models.LEDResponse{
			Body: models.LEDData{
				LED:       s.options.LEDs.LED(),
				Pattern:   s.options.LEDs.Pattern(),
				Available: available,
			},
		}, nil
	})
}
