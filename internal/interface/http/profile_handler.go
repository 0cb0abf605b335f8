package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/artztall/user-service/internal/application"
	"github.com/artztall/user-service/internal/interface/middleware"
	"github.com/artztall/user-service/pkg/response"
)

// MaxAvatarBytes caps the accepted avatar file size.
const MaxAvatarBytes = 5 << 20

type ProfileHandler struct {
	Svc    *application.ProfileService
	Logger *logrus.Logger
}

func NewProfileHandler(svc *application.ProfileService, logger *logrus.Logger) *ProfileHandler {
	return &ProfileHandler{Svc: svc, Logger: logger}
}

// Me returns the profile of the signed-in account.
func (h *ProfileHandler) Me(c *gin.Context) {
	id, kind, ok := middleware.Identity(c)
	if !ok {
		response.JSON(c, response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil))
		return
	}
	acc, err := h.Svc.GetProfile(c.Request.Context(), kind, id)
	if err != nil {
		h.profileError(c, err)
		return
	}
	response.JSON(c, response.Success(c, http.StatusOK, toAccountDTO(acc, ""), "profile", nil))
}

// UploadAvatar replaces the profile picture with the multipart "file" field.
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	id, kind, ok := middleware.Identity(c)
	if !ok {
		response.JSON(c, response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxAvatarBytes+(1<<20))
	fh, err := c.FormFile("file")
	if err != nil {
		response.JSON(c, response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"file": "is required"}))
		return
	}
	if fh.Size > MaxAvatarBytes {
		response.JSON(c, response.Error[any](c, http.StatusRequestEntityTooLarge, "file too large", map[string]string{"file": "must be at most 5MB"}))
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	defer f.Close()

	acc, err := h.Svc.UploadAvatar(c.Request.Context(), kind, id, fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		h.profileError(c, err)
		return
	}
	response.JSON(c, response.Success(c, http.StatusOK, toAccountDTO(acc, ""), "avatar updated", nil))
}

// SearchArtisans runs a full-text query over artisan profiles.
func (h *ProfileHandler) SearchArtisans(c *gin.Context) {
	size, _ := strconv.Atoi(c.Query("size"))
	hits, err := h.Svc.SearchArtisans(c.Request.Context(), c.Query("q"), size)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.JSON(c, response.Success(c, http.StatusOK, hits, "ok", map[string]any{"count": len(hits)}))
}

// profileError answers 404 for a token whose account no longer exists.
func (h *ProfileHandler) profileError(c *gin.Context, err error) {
	if errors.Is(err, application.ErrUserNotFound) || errors.Is(err, application.ErrUnknownKind) {
		response.JSON(c, response.Error[any](c, http.StatusNotFound, "user not found", nil))
		return
	}
	writeError(c, h.Logger, err)
}
