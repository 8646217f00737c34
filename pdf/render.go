package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PageImage is an embedded raster image extracted from a page.
type PageImage struct {
	Name string
	Data []byte
}

// Renderer produces viewable artifacts for figure regions and whole pages.
// Artifact bytes come with the file extension they should be stored under.
// Close releases any scratch space once ingestion is done with the document.
type Renderer interface {
	RenderRegion(page int, region Rect) ([]byte, string, error)
	RenderPage(page int) ([]byte, string, error)
	PageImages(page int) ([]PageImage, error)
	Close() error
}

// CropRenderer renders regions by cropping single-page PDFs out of the
// source document. The artifacts stay vector-true at any zoom, which suits
// schematic figures better than a fixed-resolution raster.
type CropRenderer struct {
	path string
	conf *model.Configuration
	tmp  string
	seq  int
}

func NewCropRenderer(path string) *CropRenderer {
	return &CropRenderer{path: path, conf: api.LoadConfiguration()}
}

func (r *CropRenderer) tmpDir() (string, error) {
	if r.tmp != "" {
		return r.tmp, nil
	}
	dir, err := os.MkdirTemp("", "docrag-render-*")
	if err != nil {
		return "", fmt.Errorf("create render dir: %w", err)
	}
	r.tmp = dir
	return dir, nil
}

// Close removes the renderer's scratch directory and everything in it.
func (r *CropRenderer) Close() error {
	if r.tmp == "" {
		return nil
	}
	dir := r.tmp
	r.tmp = ""
	return os.RemoveAll(dir)
}

func (r *CropRenderer) trimPage(dir string, page int) (string, error) {
	r.seq++
	out := filepath.Join(dir, fmt.Sprintf("page_%d_%d.pdf", page, r.seq))
	if err := api.TrimFile(r.path, out, []string{strconv.Itoa(page)}, r.conf); err != nil {
		return "", fmt.Errorf("trim page %d: %w", page, err)
	}
	return out, nil
}

func (r *CropRenderer) RenderPage(page int) ([]byte, string, error) {
	dir, err := r.tmpDir()
	if err != nil {
		return nil, "", err
	}
	out, err := r.trimPage(dir, page)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, "", fmt.Errorf("read page artifact: %w", err)
	}
	return data, ".pdf", nil
}

func (r *CropRenderer) RenderRegion(page int, region Rect) ([]byte, string, error) {
	dir, err := r.tmpDir()
	if err != nil {
		return nil, "", err
	}
	trimmed, err := r.trimPage(dir, page)
	if err != nil {
		return nil, "", err
	}

	boxStr := fmt.Sprintf("[%.2f %.2f %.2f %.2f]", region.X0, region.Y0, region.X1, region.Y1)
	box, err := model.ParseBox(boxStr, types.POINTS)
	if err != nil {
		return nil, "", fmt.Errorf("parse crop box: %w", err)
	}

	r.seq++
	out := filepath.Join(dir, fmt.Sprintf("region_%d_%d.pdf", page, r.seq))
	if err := api.CropFile(trimmed, out, nil, box, r.conf); err != nil {
		return nil, "", fmt.Errorf("crop region on page %d: %w", page, err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, "", fmt.Errorf("read region artifact: %w", err)
	}
	return data, ".pdf", nil
}

func (r *CropRenderer) PageImages(page int) ([]PageImage, error) {
	dir, err := r.tmpDir()
	if err != nil {
		return nil, err
	}
	r.seq++
	outDir := filepath.Join(dir, fmt.Sprintf("images_%d_%d", page, r.seq))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	if err := api.ExtractImagesFile(r.path, outDir, []string{strconv.Itoa(page)}, r.conf); err != nil {
		return nil, fmt.Errorf("extract images from page %d: %w", page, err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("read image dir: %w", err)
	}
	var images []PageImage
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(outDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read extracted image %s: %w", e.Name(), err)
		}
		images = append(images, PageImage{Name: e.Name(), Data: data})
	}
	return images, nil
}
