package controllers

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"Gin_postgres_redis_library/app"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxUpload = 5 << 20

var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// imageExt sniffs head and returns the file extension for accepted images.
func imageExt(head []byte) (string, bool) {
	ext, ok := imageTypes[http.DetectContentType(head)]
	return ext, ok
}

// POST /api/uploads  (multipart field "file")
// 用于 ID 卡照片与封面图，存到 UPLOAD_DIR，经 /uploads 对外提供
func (s *Srv) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUpload+1024)
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "missing file"})
		return
	}
	if fh.Size > maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, app.H{"error": "file too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	ext, ok := imageExt(head[:n])
	if !ok {
		c.JSON(http.StatusUnsupportedMediaType, app.H{"error": "only jpeg, png or webp images"})
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}

	if err := os.MkdirAll(s.Cfg.UploadDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	name := uuid.NewString() + ext
	out, err := os.Create(filepath.Join(s.Cfg.UploadDir, name))
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	defer out.Close()
	if _, err := io.Copy(out, f); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}

	s.Log.Info("file uploaded", "user", app.UserID(c), "name", name, "bytes", fh.Size)
	c.JSON(http.StatusCreated, app.H{"url": "/uploads/" + name})
}
