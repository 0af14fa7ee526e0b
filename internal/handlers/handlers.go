package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/Brownie44l1/leafcare-api/internal/config"
	"github.com/Brownie44l1/leafcare-api/internal/middleware"
	"github.com/Brownie44l1/leafcare-api/internal/model"
	"github.com/Brownie44l1/leafcare-api/internal/pipeline"
	"github.com/Brownie44l1/leafcare-api/internal/preprocess"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const formField = "image"

// Predictor is the part of pipeline.Service the HTTP layer uses.
type Predictor interface {
	PredictImage(data []byte) (*pipeline.Result, error)
	PredictTensor(input []float32) (*pipeline.Result, error)
	Labels() []pipeline.LabelInfo
	InputShape() []int64
	Ready() error
}

type PredictResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    *pipeline.Result `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type Handler struct {
	predictor Predictor
	upload    config.UploadConfig
	log       *zap.Logger
}

func NewHandler(predictor Predictor, upload config.UploadConfig, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		predictor: predictor,
		upload:    upload,
		log:       log,
	}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/labels", h.Labels)
	r.POST("/predict", h.Predict)
	r.POST("/predict/image", h.PredictFromImage)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Ready loads the model if nobody has yet and reports whether it worked.
func (h *Handler) Ready(c *gin.Context) {
	if err := h.predictor.Ready(); err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Success: false,
			Message: "Model unavailable",
			Error:   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *Handler) Labels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"input_shape": h.predictor.InputShape(),
		"labels":      h.predictor.Labels(),
	})
}

// Predict classifies a raw NHWC tensor sent as {"image": [...]}.
func (h *Handler) Predict(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.upload.MaxSize)

	var req model.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.fail(c, http.StatusRequestEntityTooLarge, "Request body too large", err)
			return
		}
		h.fail(c, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	result, err := h.predictor.PredictTensor(req.Image)
	if err != nil {
		h.failPrediction(c, err)
		return
	}

	h.respond(c, result)
}

// PredictFromImage classifies a JPEG or PNG uploaded as multipart field "image".
func (h *Handler) PredictFromImage(c *gin.Context) {
	// Leave room for multipart framing around the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.upload.MaxSize+1<<20)

	header, err := c.FormFile(formField)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.fail(c, http.StatusRequestEntityTooLarge, h.tooLargeMessage(), err)
			return
		}
		h.fail(c, http.StatusBadRequest, "No image file provided. Use 'image' as the form field name", err)
		return
	}

	if header.Size > h.upload.MaxSize {
		h.fail(c, http.StatusRequestEntityTooLarge, h.tooLargeMessage(), nil)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !h.isAllowedType(contentType) {
		h.fail(c, http.StatusUnsupportedMediaType, "Unsupported file type. Supported: JPEG, PNG",
			fmt.Errorf("content type %q", contentType))
		return
	}

	file, err := header.Open()
	if err != nil {
		h.fail(c, http.StatusBadRequest, "Failed to open uploaded file", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(c, http.StatusBadRequest, "Failed to read uploaded file", err)
		return
	}

	h.log.Debug("received file",
		zap.String("filename", header.Filename),
		zap.String("content_type", contentType),
		zap.Int("bytes", len(data)),
		zap.String("request_id", c.GetString(middleware.RequestIDKey)))

	result, err := h.predictor.PredictImage(data)
	if err != nil {
		h.failPrediction(c, err)
		return
	}

	h.respond(c, result)
}

func (h *Handler) respond(c *gin.Context, result *pipeline.Result) {
	c.JSON(http.StatusOK, PredictResponse{
		Success: true,
		Message: "Prediction complete",
		Data:    result,
	})
}

func (h *Handler) failPrediction(c *gin.Context, err error) {
	switch {
	case errors.Is(err, preprocess.ErrDecode), errors.Is(err, preprocess.ErrTooLarge):
		h.fail(c, http.StatusBadRequest, "The image could not be read", err)
	case errors.Is(err, pipeline.ErrInvalidInput):
		h.fail(c, http.StatusBadRequest, "Invalid input tensor", err)
	case errors.Is(err, model.ErrModelLoad),
		errors.Is(err, model.ErrLabelMismatch),
		errors.Is(err, model.ErrShapeMismatch):
		h.log.Error("model unavailable", zap.Error(err))
		h.fail(c, http.StatusServiceUnavailable, "Model unavailable", err)
	default:
		h.log.Error("prediction error", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, "Prediction failed", err)
	}
}

func (h *Handler) fail(c *gin.Context, status int, message string, err error) {
	resp := ErrorResponse{Success: false, Message: message}
	if err != nil {
		_ = c.Error(err)
		resp.Error = err.Error()
	}
	c.AbortWithStatusJSON(status, resp)
}

func (h *Handler) tooLargeMessage() string {
	return fmt.Sprintf("File exceeds size limit (%d MB)", h.upload.MaxSize/(1024*1024))
}

func (h *Handler) isAllowedType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, allowed := range h.upload.AllowedTypes {
		if strings.EqualFold(mediaType, allowed) {
			return true
		}
	}
	return false
}
