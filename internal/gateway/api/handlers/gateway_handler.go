package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"media_pipeline/internal/gateway/app"
	"media_pipeline/internal/gateway/domain"
	pipeline "media_pipeline/internal/pipeline/domain"
	"media_pipeline/pkg/logger"
	"media_pipeline/pkg/middlewares"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GatewayHandler ingress / egress http handler
type GatewayHandler struct {
	Usecase app.GatewayUseCase
}

// NewGatewayHandler create gateway handler
func NewGatewayHandler(uc app.GatewayUseCase) *GatewayHandler {
	return &GatewayHandler{Usecase: uc}
}

// UploadResponse body of a successful upload
type UploadResponse struct {
	Message string `json:"message"`
	JobID   string `json:"job_id"`
}

// ErrorResponse body of a failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// Upload godoc
// @Summary Upload a file for conversion
// @Description Stores exactly one multipart file part and enqueues its conversion job
// @Tags Gateway
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "File to convert"
// @Success 200 {object} UploadResponse
// @Failure 400 {object} ErrorResponse "not exactly one file"
// @Failure 401 {object} ErrorResponse "missing or invalid token"
// @Failure 500 {object} ErrorResponse "storage or enqueue failure"
// @Router /upload [post]
func (h *GatewayHandler) Upload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "exactly 1 file required"})
	}

	// 計算所有欄位的檔案數量
	var files []*multipart.FileHeader
	for _, fhs := range form.File {
		files = append(files, fhs...)
	}
	if len(files) != 1 {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "exactly 1 file required"})
	}
	fh := files[0]

	file, err := fh.Open()
	if err != nil {
		logger.Log.Error("Open file failed", zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to open file"})
	}
	defer file.Close()

	contentType, err := sniff(file)
	if err != nil {
		logger.Log.Error("Sniff file failed", zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to read file"})
	}

	res, err := h.Usecase.Upload(c.UserContext(), domain.UploadReq{
		FileName:    fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		File:        file,
		Owner:       middlewares.Identity(c),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(UploadResponse{Message: "success!", JobID: res.JobID})
}

// sniff detect the content type from the head of f and rewind it
func sniff(f multipart.File) (string, error) {
	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mtype.String(), nil
}

// Download godoc
// @Summary Download a conversion result
// @Description Streams the stored result object as an attachment
// @Tags Gateway
// @Produce octet-stream
// @Security BearerAuth
// @Param fid query string true "Result handle"
// @Success 200 {file} binary
// @Failure 400 {object} ErrorResponse "fid is required"
// @Failure 404 {object} ErrorResponse "not found"
// @Failure 500 {object} ErrorResponse "internal server error"
// @Router /download [get]
func (h *GatewayHandler) Download(c *fiber.Ctx) error {
	fid := c.Query("fid")
	if fid == "" {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "fid is required"})
	}

	res, err := h.Usecase.Download(c.UserContext(), fid)
	if err != nil {
		return writeError(c, err)
	}

	c.Set(fiber.HeaderContentType, res.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, res.FileName))
	// fasthttp closes the body once it is sent
	return c.SendStream(res.Body, int(res.Size))
}

func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, pipeline.ErrValidation):
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	case errors.Is(err, pipeline.ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(ErrorResponse{Error: "not found"})
	case errors.Is(err, pipeline.ErrStorage), errors.Is(err, pipeline.ErrEnqueue):
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	default:
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{Error: "internal server error"})
	}
}
