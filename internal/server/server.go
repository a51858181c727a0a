// Package server exposes background removal over HTTP.
package server

import (
	"bytes"
	"context"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/menta2k/background-remover/internal/config"
	"github.com/menta2k/background-remover/internal/logger"
	"github.com/menta2k/background-remover/pkg/cropper"
	"github.com/menta2k/background-remover/pkg/processing"
	"github.com/menta2k/background-remover/pkg/segment"
	"github.com/menta2k/background-remover/pkg/types"
)

// DefaultMaxUpload limits the multipart body size
const DefaultMaxUpload = 32 << 20

var contentTypes = map[types.Format]string{
	types.FormatPNG:  "image/png",
	types.FormatJPEG: "image/jpeg",
	types.FormatWEBP: "image/webp",
}

// Options configures a Server
type Options struct {
	// Quality and Background are used when a request does not set them
	Quality    int
	Background types.RGB
	MaxUpload  int64
	Logger     zerolog.Logger
}

// Server serves the removal API. Model calls are serialized.
type Server struct {
	pipeline  *segment.Pipeline
	processor *processing.Processor
	cropper   *cropper.SmartCropper
	sem       chan struct{}
	opts      Options
	log       zerolog.Logger
}

// New creates a Server around p
func New(p *segment.Pipeline, opts Options) *Server {
	if opts.Quality < 1 || opts.Quality > 100 {
		opts.Quality = config.DefaultQuality
	}
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = DefaultMaxUpload
	}
	return &Server{
		pipeline:  p,
		processor: processing.NewProcessor(),
		cropper:   cropper.New(),
		sem:       make(chan struct{}, 1),
		opts:      opts,
		log:       logger.Component(opts.Logger, "server"),
	}
}

// Handler returns the gin engine with all routes registered
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.MaxMultipartMemory = s.opts.MaxUpload

	r.GET("/healthz", s.health)
	v1 := r.Group("/v1")
	v1.POST("/remove", s.remove)
	return r
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Str("backend", s.pipeline.Name()).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": s.pipeline.Name()})
}

func (s *Server) remove(c *gin.Context) {
	opts, err := s.saveOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	framing, err := framingOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUpload)
	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing multipart field \"image\""})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	img, err := s.processor.DecodeImage(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	res, err := s.pipeline.RemoveBackground(ctx, img)
	<-s.sem
	if err == nil {
		res, err = s.cropper.Frame(res, framing)
	}
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := s.processor.Encode(&buf, res, opts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cd := mime.FormatMediaType("inline", map[string]string{"filename": processing.OutputPath(fh.Filename, "", opts.Format)}); cd != "" {
		c.Header("Content-Disposition", cd)
	}
	c.Data(http.StatusOK, contentTypes[opts.Format], buf.Bytes())
}

func (s *Server) saveOptions(c *gin.Context) (processing.SaveOptions, error) {
	opts := processing.SaveOptions{
		Format:     types.FormatPNG,
		Quality:    s.opts.Quality,
		Background: s.opts.Background,
	}

	if v := c.Query("format"); v != "" {
		f, err := types.ParseFormat(v)
		if err != nil {
			return opts, err
		}
		if _, ok := contentTypes[f]; !ok {
			return opts, errors.Errorf("format %s is not served", f)
		}
		opts.Format = f
	}
	if v := c.Query("quality"); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil || q < 1 || q > 100 {
			return opts, errors.Errorf("quality must be an integer between 1 and 100, got %q", v)
		}
		opts.Quality = q
	}
	if v := c.Query("bg"); v != "" {
		rgb, err := types.ParseHex(v)
		if err != nil {
			return opts, err
		}
		opts.Background = rgb
	}
	return opts, nil
}

func framingOptions(c *gin.Context) (cropper.Framing, error) {
	var f cropper.Framing
	if v := c.Query("trim"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.Errorf("trim must be a boolean, got %q", v)
		}
		f.Trim = b
	}
	if v := c.Query("ratio"); v != "" {
		ar, err := cropper.ParseAspectRatio(v)
		if err != nil {
			return f, err
		}
		f.Ratio = ar
	}
	return f, nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := ksuid.New().String()
		c.Header("X-Request-ID", id)

		c.Next()

		s.log.Info().
			Str("request_id", id).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
