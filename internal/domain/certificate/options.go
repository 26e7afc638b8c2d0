package certificate

import "github.com/okian/certify/pkg/logger"

// Option applies a configuration option to the Renderer.
type Option func(*Renderer)

// WithTemplatePath sets the background image. Its pixel size becomes the page size.
func WithTemplatePath(path string) Option {
	return func(r *Renderer) { r.templatePath = path }
}

// WithFontPath sets the bundled bold TrueType font.
func WithFontPath(path string) Option {
	return func(r *Renderer) { r.fontPath = path }
}

// WithOutputDir sets the directory certificates are written to.
func WithOutputDir(dir string) Option {
	return func(r *Renderer) {
		if dir != "" {
			r.outputDir = dir
		}
	}
}

// WithLogger sets a custom logger for the renderer.
func WithLogger(l logger.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}
