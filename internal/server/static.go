package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	indexCacheControl = "no-cache"
	assetCacheControl = "public, max-age=31536000, immutable"
)

// frontend describes the files found in the static directory.
type frontend struct {
	index   string
	assets  string
	favicon string
}

func existingFile(path string) string {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}
	return ""
}

func existingDir(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}
	return ""
}

func findFrontend(dir string) frontend {
	return frontend{
		index:   existingFile(filepath.Join(dir, "index.html")),
		assets:  existingDir(filepath.Join(dir, "assets")),
		favicon: existingFile(filepath.Join(dir, "favicon.ico")),
	}
}

// mountStatic serves the built board UI. Client-side routes fall back to
// index.html; unknown /api/ paths stay JSON 404s.
func (s *Server) mountStatic() {
	if s.staticDir == "" {
		s.logger.Warn("static directory not configured; API only mode")
		return
	}
	if existingDir(s.staticDir) == "" {
		s.logger.Warn("static directory missing; API only mode", "path", s.staticDir)
		return
	}

	fe := findFrontend(s.staticDir)
	if fe.index != "" {
		serveIndex := func(c *gin.Context) {
			c.Header("Cache-Control", indexCacheControl)
			c.File(fe.index)
		}
		s.engine.GET("/", serveIndex)
		s.engine.HEAD("/", serveIndex)
		s.engine.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api/") {
				respondNotFound(c, "endpoint")
				return
			}
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				c.Status(http.StatusNotFound)
				return
			}
			serveIndex(c)
		})
	}

	if fe.assets != "" {
		assets := s.engine.Group("/assets", func(c *gin.Context) {
			c.Header("Cache-Control", assetCacheControl)
		})
		assets.StaticFS("/", gin.Dir(fe.assets, false))
	}
	if fe.favicon != "" {
		s.engine.StaticFile("/favicon.ico", fe.favicon)
	}

	s.logger.Info("serving board frontend",
		"path", s.staticDir,
		"index", fe.index != "",
		"assets", fe.assets != "",
	)
}
