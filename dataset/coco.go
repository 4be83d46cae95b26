// Package dataset - COCO-style annotation store supplying ground truth per image.
package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/nvr-ai/go-eval/images"
	"github.com/nvr-ai/go-eval/models"
	"github.com/nvr-ai/go-eval/models/postprocess"
	"github.com/pkg/errors"
)

// ErrUnknownCategory is returned when a category name is not in the store.
var ErrUnknownCategory = errors.New("unknown category")

// Image is one entry of the COCO "images" list.
type Image struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Annotation is one entry of the COCO "annotations" list.
type Annotation struct {
	ID         int `json:"id"`
	ImageID    int `json:"image_id"`
	CategoryID int `json:"category_id"`
	// BBox is [x, y, width, height].
	BBox []float64 `json:"bbox"`
}

// Category is one entry of the COCO "categories" list.
type Category struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory,omitempty"`
}

// File is the on-disk COCO document.
type File struct {
	Images      []Image      `json:"images"`
	Annotations []Annotation `json:"annotations"`
	Categories  []Category   `json:"categories"`
}

// Store indexes a COCO document for per-category lookups.
type Store struct {
	// PathPrefix is joined in front of every image file name by ImagePaths.
	PathPrefix string

	images      map[int]Image
	categories  []Category
	catByName   map[string]int
	annsByImage map[int][]Annotation
	imgsByCat   map[int][]int
}

// Load reads and indexes a COCO JSON file.
//
// Arguments:
//   - path: The annotation file.
//
// Returns:
//   - *Store: The indexed store.
//   - error: If the file cannot be read or parsed, or an annotation is malformed.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open annotations")
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "annotations %s", path)
	}
	return s, nil
}

// Parse decodes and indexes a COCO JSON document.
func Parse(r io.Reader) (*Store, error) {
	var doc File
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode COCO document")
	}
	return New(doc)
}

// New indexes an in-memory COCO document.
func New(doc File) (*Store, error) {
	s := &Store{
		images:      make(map[int]Image, len(doc.Images)),
		categories:  doc.Categories,
		catByName:   make(map[string]int, len(doc.Categories)),
		annsByImage: make(map[int][]Annotation),
		imgsByCat:   make(map[int][]int),
	}
	for _, img := range doc.Images {
		s.images[img.ID] = img
	}
	for _, c := range doc.Categories {
		s.catByName[c.Name] = c.ID
	}

	seen := make(map[[2]int]bool)
	for i, a := range doc.Annotations {
		if err := validateBBox(a.BBox); err != nil {
			return nil, &postprocess.ValidationError{
				Field:  fmt.Sprintf("annotations[%d].bbox", i),
				Reason: err.Error(),
			}
		}
		if _, ok := s.images[a.ImageID]; !ok {
			return nil, fmt.Errorf("annotation %d references unknown image %d", a.ID, a.ImageID)
		}
		s.annsByImage[a.ImageID] = append(s.annsByImage[a.ImageID], a)

		key := [2]int{a.CategoryID, a.ImageID}
		if !seen[key] {
			seen[key] = true
			s.imgsByCat[a.CategoryID] = append(s.imgsByCat[a.CategoryID], a.ImageID)
		}
	}
	for _, ids := range s.imgsByCat {
		sort.Ints(ids)
	}

	return s, nil
}

func validateBBox(b []float64) error {
	if len(b) != 4 {
		return fmt.Errorf("bbox needs 4 values, got %d", len(b))
	}
	if r := (images.Rect{X1: b[0], Y1: b[1], X2: b[2], Y2: b[3]}); !r.IsFinite() {
		return fmt.Errorf("bbox %v has a non-finite value", b)
	}
	return nil
}

// CategoryID returns the id of a category name.
func (s *Store) CategoryID(name string) (int, error) {
	id, ok := s.catByName[name]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownCategory, "%q", name)
	}
	return id, nil
}

// ImageIDs returns, in ascending order, the images holding at least one
// annotation of the category.
func (s *Store) ImageIDs(category string) ([]int, error) {
	id, err := s.CategoryID(category)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), s.imgsByCat[id]...), nil
}

// ImagePaths returns the file paths of the category's images, prefixed with
// PathPrefix. n caps the count; -1 returns all.
func (s *Store) ImagePaths(category string, n int) ([]string, error) {
	ids, err := s.ImageIDs(category)
	if err != nil {
		return nil, err
	}
	ids = head(ids, n)

	paths := make([]string, len(ids))
	for i, id := range ids {
		paths[i] = filepath.Join(s.PathPrefix, s.images[id].FileName)
	}
	return paths, nil
}

// Annotations returns the ground truth of the category's images, one
// Annotation per image in ImageIDs order. Every box of the image is included,
// not only those of the category, with [x, y, w, h] converted to
// (x, y, x+w, y+h). n caps the image count; -1 returns all.
func (s *Store) Annotations(category string, n int) ([]postprocess.Annotation, error) {
	ids, err := s.ImageIDs(category)
	if err != nil {
		return nil, err
	}
	ids = head(ids, n)

	out := make([]postprocess.Annotation, len(ids))
	for i, id := range ids {
		out[i] = s.ImageAnnotation(id)
	}
	return out, nil
}

// ImageAnnotation converts every box of one image to evaluation form.
func (s *Store) ImageAnnotation(imageID int) postprocess.Annotation {
	anns := s.annsByImage[imageID]
	out := make(postprocess.Annotation, len(anns))
	for i, a := range anns {
		out[i] = ToTruth(a)
	}
	return out
}

// ToTruth converts a COCO [x, y, w, h] box to corner form.
func ToTruth(a Annotation) postprocess.Truth {
	x, y, w, h := a.BBox[0], a.BBox[1], a.BBox[2], a.BBox[3]
	return postprocess.Truth{
		Box:   images.Rect{X1: x, Y1: y, X2: x + w, Y2: y + h},
		Class: a.CategoryID,
	}
}

// Image returns the image record for id.
func (s *Store) Image(id int) (Image, bool) {
	img, ok := s.images[id]
	return img, ok
}

// ClassSet exposes the categories as a class set of the given taxonomy, for
// building class maps by name.
func (s *Store) ClassSet(style models.Taxonomy) *models.OutputClassSet {
	classes := make([]models.OutputClass, len(s.categories))
	for i, c := range s.categories {
		classes[i] = models.OutputClass{Index: c.ID, Name: c.Name}
	}
	return &models.OutputClassSet{Style: style, Classes: classes}
}

func head(ids []int, n int) []int {
	if n >= 0 && n < len(ids) {
		return ids[:n]
	}
	return ids
}
