package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/almacen/inventory_backend/config"
	"github.com/almacen/inventory_backend/utils"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	maxUploadSizeBytes int64 = 5 * 1024 * 1024
	thumbnailWidth           = 200
	imageFolder              = "productos"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

type uploadImageResponse struct {
	ImageURL     string `json:"image_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// uploadImageHandler stores a product image and a 200px wide JPEG thumbnail.
// The returned image_url goes into a product's image_url field.
func (a *App) uploadImageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.objects == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Almacenamiento de imágenes no configurado"})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSizeBytes+1024*1024)
		fh, err := c.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "La imagen supera el límite de 5MB"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "Falta el archivo 'file'"})
			return
		}
		if fh.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "La imagen supera el límite de 5MB"})
			return
		}

		f, err := fh.Open()
		if err != nil {
			respondError(c, err)
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			respondError(c, err)
			return
		}

		mimeType := http.DetectContentType(data)
		ext, ok := imageExtensions[mimeType]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Solo se permiten imágenes JPEG o PNG"})
			return
		}
		thumb, err := makeThumbnail(data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No se pudo leer la imagen"})
			return
		}

		ctx := c.Request.Context()
		name := utils.GenerateUniqueFilename()
		objectKey := path.Join(imageFolder, name+ext)
		thumbKey := path.Join(imageFolder, "thumbnails", name+".jpg")

		imageURL, err := a.objects.Put(ctx, objectKey, data, mimeType)
		if err != nil {
			logUploadError(c, a.logger, objectKey, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "No se pudo subir la imagen"})
			return
		}
		thumbURL, err := a.objects.Put(ctx, thumbKey, thumb, "image/jpeg")
		if err != nil {
			logUploadError(c, a.logger, thumbKey, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "No se pudo subir la miniatura"})
			return
		}
		c.JSON(http.StatusCreated, uploadImageResponse{ImageURL: imageURL, ThumbnailURL: thumbURL})
	}
}

func makeThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	if img.Bounds().Dx() > thumbnailWidth {
		img = imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func logUploadError(c *gin.Context, logger *logrus.Logger, objectKey string, err error) {
	config.LoggerFromContext(c.Request.Context(), logger).WithFields(logrus.Fields{
		"field":      "uploads",
		"object_key": objectKey,
	}).WithError(err).Error("image upload failed")
}
