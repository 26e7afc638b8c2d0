// Package certificate renders personalized certificate PDFs.
package certificate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // template formats
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/okian/certify/pkg/logger"
	"github.com/okian/certify/pkg/metrics"
)

// Layout constants, in points. The horizontal offset and baseline are
// tuned to the production template and must not change.
const (
	FontSize   = 25.0
	XOffset    = 50.0
	BaselineY  = 235.0
	customFont = "Poppins"
	fallback   = "Helvetica"
	fontStyle  = "B"
	dirPerm    = 0o755
)

// FallbackPage is landscape A4, used when no template size is available.
var FallbackPage = fpdf.SizeType{Wd: 841.8897637795275, Ht: 595.2755905511812}

var filenameReplacer = strings.NewReplacer(" ", "_", "/", "_", `\`, "_")

// Filename returns the artifact name for a display name. Spaces and path
// separators become underscores so the artifact stays in the output dir.
func Filename(name string) string {
	return "certificate_" + filenameReplacer.Replace(name) + ".pdf"
}

// Placement returns the text origin for a canvas width and measured text
// width. y is measured from the bottom edge of the page.
func Placement(canvasWidth, textWidth float64) (x, y float64) {
	return (canvasWidth-textWidth)/2 + XOffset, BaselineY
}

// Layout describes where a name lands on the page.
type Layout struct {
	PageWidth  float64
	PageHeight float64
	Font       string
	TextWidth  float64
	X          float64
	Y          float64 // from the bottom edge
	Template   bool
}

// Renderer draws names onto the certificate template.
type Renderer struct {
	templatePath string
	fontPath     string
	outputDir    string
	logger       logger.Logger
}

// NewRenderer creates a renderer. Without options it renders onto a blank
// landscape A4 page with Helvetica bold into ./generated.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		outputDir: "generated",
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OutputDir returns the directory artifacts are written to.
func (r *Renderer) OutputDir() string { return r.outputDir }

// Render draws name and writes certificate_<name>.pdf into the output
// directory, replacing any previous artifact for the same name.
func (r *Renderer) Render(ctx context.Context, name string) (string, error) {
	start := time.Now()

	pdf, _, err := r.compose(ctx, name)
	if err != nil {
		return "", r.fail(ctx, name, err)
	}
	if err := os.MkdirAll(r.outputDir, dirPerm); err != nil {
		return "", r.fail(ctx, name, err)
	}
	path := filepath.Join(r.outputDir, Filename(name))
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", r.fail(ctx, name, err)
	}

	metrics.RecordCertificateRendered(float64(time.Since(start).Milliseconds()))
	r.logger.Debug(ctx, "certificate rendered", logger.String("path", path))
	return path, nil
}

// RenderBytes is Render without touching the output directory.
func (r *Renderer) RenderBytes(ctx context.Context, name string) ([]byte, error) {
	start := time.Now()

	pdf, _, err := r.compose(ctx, name)
	if err != nil {
		return nil, r.fail(ctx, name, err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, r.fail(ctx, name, err)
	}

	metrics.RecordCertificateRendered(float64(time.Since(start).Milliseconds()))
	return buf.Bytes(), nil
}

// Layout computes the page and text placement for name without producing output.
func (r *Renderer) Layout(ctx context.Context, name string) (Layout, error) {
	_, l, err := r.compose(ctx, name)
	if err != nil {
		return Layout{}, fmt.Errorf("%w: %w", ErrRender, err)
	}
	return l, nil
}

func (r *Renderer) fail(ctx context.Context, name string, err error) error {
	metrics.RecordCertificateFailure()
	r.logger.Error(ctx, "certificate generation failed", logger.String("name", name), logger.Error(err))
	return fmt.Errorf("%w: %w", ErrRender, err)
}

func (r *Renderer) compose(ctx context.Context, name string) (*fpdf.Fpdf, Layout, error) {
	if err := ctx.Err(); err != nil {
		return nil, Layout{}, err
	}

	size, hasTemplate := r.pageSize(ctx)
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           size,
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	l := Layout{PageWidth: size.Wd, PageHeight: size.Ht}
	if hasTemplate {
		l.Template = r.drawTemplate(ctx, pdf, size)
	}

	family, translate := r.selectFont(ctx, pdf)
	pdf.SetFont(family, fontStyle, FontSize)
	pdf.SetTextColor(0, 0, 0)

	text := translate(name)
	l.Font = family
	l.TextWidth = pdf.GetStringWidth(text)
	l.X, l.Y = Placement(size.Wd, l.TextWidth)
	pdf.Text(l.X, size.Ht-l.Y, text)

	if err := pdf.Error(); err != nil {
		return nil, Layout{}, err
	}
	return pdf, l, nil
}

// pageSize returns the template's pixel dimensions, or landscape A4 when
// the template is absent or its header cannot be decoded. The second
// result reports whether a template file exists at all.
func (r *Renderer) pageSize(ctx context.Context) (fpdf.SizeType, bool) {
	if r.templatePath == "" {
		return FallbackPage, false
	}
	f, err := os.Open(r.templatePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger.Error(ctx, "error reading template size", logger.String("path", r.templatePath), logger.Error(err))
			metrics.RecordAssetFallback("template")
			return FallbackPage, true
		}
		r.logger.Warn(ctx, "template not found", logger.String("path", r.templatePath))
		metrics.RecordAssetFallback("template")
		return FallbackPage, false
	}
	defer func() { _ = f.Close() }()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		r.logger.Error(ctx, "error reading template size", logger.String("path", r.templatePath), logger.Error(err))
		metrics.RecordAssetFallback("template")
		return FallbackPage, true
	}
	return fpdf.SizeType{Wd: float64(cfg.Width), Ht: float64(cfg.Height)}, true
}

func (r *Renderer) drawTemplate(ctx context.Context, pdf *fpdf.Fpdf, size fpdf.SizeType) bool {
	info := pdf.RegisterImageOptions(r.templatePath, fpdf.ImageOptions{})
	if !pdf.Ok() || info == nil {
		r.logger.Error(ctx, "error loading template", logger.String("path", r.templatePath), logger.Error(pdf.Error()))
		metrics.RecordAssetFallback("template")
		pdf.ClearError()
		return false
	}
	pdf.ImageOptions(r.templatePath, 0, 0, size.Wd, size.Ht, false, fpdf.ImageOptions{}, 0, "")
	return true
}

// selectFont registers the bundled font, falling back to Helvetica bold.
// The returned function prepares text for the selected font's encoding.
func (r *Renderer) selectFont(ctx context.Context, pdf *fpdf.Fpdf) (string, func(string) string) {
	useFallback := func() (string, func(string) string) {
		metrics.RecordAssetFallback("font")
		return fallback, pdf.UnicodeTranslatorFromDescriptor("")
	}

	if r.fontPath == "" {
		return useFallback()
	}
	data, err := os.ReadFile(r.fontPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Warn(ctx, "font file not found", logger.String("path", r.fontPath))
		} else {
			r.logger.Error(ctx, "error reading font", logger.String("path", r.fontPath), logger.Error(err))
		}
		return useFallback()
	}

	if err := registerFont(pdf, data); err != nil {
		r.logger.Error(ctx, "error registering font", logger.String("path", r.fontPath), logger.Error(err))
		pdf.ClearError()
		return useFallback()
	}
	return customFont, func(s string) string { return s }
}

// TrueType outline tags accepted by the embedder.
var (
	sfntTrueType = []byte{0x00, 0x01, 0x00, 0x00}
	sfntApple    = []byte("true")
)

func registerFont(pdf *fpdf.Fpdf, data []byte) (err error) {
	if !bytes.HasPrefix(data, sfntTrueType) && !bytes.HasPrefix(data, sfntApple) {
		return errNotTrueType
	}
	// The TTF parser panics on some malformed files.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("parse font: %v", p)
		}
	}()
	pdf.AddUTF8FontFromBytes(customFont, fontStyle, data)
	if err := pdf.Error(); err != nil {
		return err
	}
	// A table the parser cannot read leaves the family unregistered
	// without setting an error; selecting it surfaces that.
	pdf.SetFont(customFont, fontStyle, FontSize)
	return pdf.Error()
}
