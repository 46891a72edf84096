package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/smazurov/camrecorder/internal/streaming"
)

// registerStreamRoutes registers the live MJPEG preview.
func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "preview-stream",
		Method:      http.MethodGet,
		Path:        "/stream.mjpg",
		Summary:     "Live preview",
		Description: "multipart/x-mixed-replace MJPEG stream. The first viewer starts the camera, the last one stops it.",
		Tags:        []string{"preview"},
		Errors:      []int{503},
	}, func(ctx context.Context, _ *struct{}) (*huma.StreamResponse, error) {
		if s.options.Frames == nil {
			return nil, huma.Error503ServiceUnavailable("Preview is not configured")
		}
		viewer := uuid.NewString()
		if err := s.options.Controller.AddViewer(ctx); err != nil {
			s.logger.Error("Failed to start preview", "viewer", viewer, "error", err)
			return nil, huma.Error503ServiceUnavailable("Failed to start preview", err)
		}

		return &huma.StreamResponse{
			Body: func(hctx huma.Context) {
				// The request context is already cancelled after a disconnect.
				defer func() {
					if err := s.options.Controller.RemoveViewer(context.WithoutCancel(hctx.Context())); err != nil {
						s.logger.Error("Failed to stop preview", "viewer", viewer, "error", err)
					}
				}()

				hctx.SetHeader("Age", "0")
				hctx.SetHeader("Cache-Control", "no-cache, private")
				hctx.SetHeader("Pragma", "no-cache")
				hctx.SetHeader("Content-Type", streaming.ContentType)
				hctx.SetStatus(http.StatusOK)

				s.logger.Info("Preview viewer connected", "viewer", viewer, "remote_addr", hctx.RemoteAddr())
				err := streaming.Serve(hctx.Context(), hctx.BodyWriter(), s.options.Frames)
				switch {
				case err == nil, errors.Is(err, context.Canceled):
					s.logger.Info("Preview viewer disconnected", "viewer", viewer)
				default:
					s.logger.Warn("Removed preview viewer", "viewer", viewer, "error", err)
				}
			},
		}, nil
	})
}
