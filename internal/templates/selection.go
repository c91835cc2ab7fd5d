package templates

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/corona10/goimagehash"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
)

// SaveSelections crops each rectangle out of screen and saves it as
// <base>_<unix>_<NN>.png. All rectangles are validated before anything is
// written. It returns the saved names in order.
func (s *Store) SaveSelections(base string, screen image.Image, rects []image.Rectangle) ([]string, error) {
	if len(rects) == 0 {
		return nil, cferrors.Invalidf("no regions selected")
	}
	if _, err := s.Normalize(base); err != nil {
		return nil, err
	}

	crops := make([]image.Rectangle, len(rects))
	for i, r := range rects {
		r = r.Canon().Intersect(screen.Bounds())
		if r.Dx() < s.minSelection || r.Dy() < s.minSelection {
			return nil, cferrors.Invalidf("region %d is %dx%d, minimum is %dx%d",
				i+1, r.Dx(), r.Dy(), s.minSelection, s.minSelection)
		}
		crops[i] = r
	}

	stamp := s.now().Unix()
	names := make([]string, 0, len(crops))
	for i, r := range crops {
		name := fmt.Sprintf("%s_%d_%02d.png", base, stamp, i+1)
		if _, err := s.Save(name, Crop(screen, r)); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

// Crop copies r out of img into a new image anchored at the origin.
func Crop(img image.Image, r image.Rectangle) *image.RGBA {
	r = r.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}

// hashCache keeps perceptual hashes keyed by template digest.
type hashCache struct {
	mu     sync.Mutex
	hashes map[string]*goimagehash.ImageHash
}

var phashes = &hashCache{hashes: map[string]*goimagehash.ImageHash{}}

func (c *hashCache) get(key string, load func() (image.Image, error)) (*goimagehash.ImageHash, error) {
	c.mu.Lock()
	h, ok := c.hashes[key]
	c.mu.Unlock()
	if ok {
		return h, nil
	}
	img, err := load()
	if err != nil {
		return nil, err
	}
	h, err = goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.hashes[key] = h
	c.mu.Unlock()
	return h, nil
}

// warnDuplicates logs templates that look like img. Failures are only
// logged; saving has already succeeded.
func (s *Store) warnDuplicates(name string, img image.Image) {
	if s.dupDistance < 0 {
		return
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		s.logger.Debug("perceptual hash failed", "name", name, "error", err)
		return
	}

	existing, err := s.List()
	if err != nil {
		return
	}
	for _, d := range existing {
		if d.Name == name {
			continue
		}
		other, err := phashes.get(d.Digest, func() (image.Image, error) { return s.Load(d.Name) })
		if err != nil {
			continue
		}
		dist, err := hash.Distance(other)
		if err != nil {
			continue
		}
		if dist <= s.dupDistance {
			s.logger.Warn("template looks like an existing one", "name", name, "similar", d.Name, "distance", dist)
		}
	}
}
