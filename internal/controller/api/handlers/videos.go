package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/Ericatici/video-service/internal/controller/api/middleware"
	"github.com/Ericatici/video-service/internal/core/job"
	"github.com/Ericatici/video-service/internal/core/service"
)

type VideosHandler struct {
	submit   *service.SubmissionService
	status   *service.StatusReader
	download *service.DownloadService
}

func NewVideosHandler(submit *service.SubmissionService, status *service.StatusReader, download *service.DownloadService) *VideosHandler {
	return &VideosHandler{
		submit:   submit,
		status:   status,
		download: download,
	}
}

type EmptyInput struct{}

type SubmitDTO struct {
	JobID  string `json:"job_id" doc:"Conversion job ID"`
	Status string `json:"status" doc:"Initial job status"`
}

// Status returns all of the caller's jobs with their current state.
func (h *VideosHandler) Status(ctx context.Context, _ *EmptyInput) (*DataOutput[[]job.Summary], error) {
	userID, err := principalID(ctx)
	if err != nil {
		return nil, huma.Error401Unauthorized("authentication required")
	}

	summaries, err := h.status.Status(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("status read failed")
		return nil, huma.Error500InternalServerError("failed to load job status")
	}
	return OK(summaries), nil
}

// Upload accepts a multipart video (or zip containing one), creates the
// conversion job and returns its id. Registered directly on echo because
// multipart streaming does not fit huma's resolved-body model.
func (h *VideosHandler) Upload(c echo.Context) error {
	userID, err := principalID(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
	}
	defer f.Close()

	j, err := h.submit.Submit(c.Request().Context(), userID, fileHeader.Filename, f)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedFormat),
			errors.Is(err, service.ErrInvalidArchive),
			errors.Is(err, service.ErrNoVideoInArchive):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Str("user_id", userID.String()).Msg("submission failed")
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to submit video")
		}
	}

	return c.JSON(http.StatusCreated, DataBody[SubmitDTO]{
		Success: true,
		Data:    SubmitDTO{JobID: j.ID.String(), Status: string(j.Status)},
	})
}

// Download streams the converted output as a zip archive. Missing, foreign
// and unfinished jobs all answer 404.
func (h *VideosHandler) Download(c echo.Context) error {
	userID, err := principalID(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	d, err := h.download.Open(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, service.ErrNotFound.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open download")
	}
	defer d.Close()

	c.Response().Header().Set(echo.HeaderContentType, "application/zip")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+d.ArchiveName+`"`)
	c.Response().WriteHeader(http.StatusOK)
	return d.WriteZip(c.Response())
}

func principalID(ctx context.Context) (uuid.UUID, error) {
	return uuid.Parse(middleware.GetUserID(ctx))
}
