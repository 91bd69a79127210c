package register

import (
	"container/list"
	"image"

	"github.com/MeKo-Tech/omr/internal/normalize"
)

// blobStats accumulates statistics for one 4-connected dark region.
type blobStats struct {
	count int
	sumX  float64
	sumY  float64
	minX  int
	minY  int
	maxX  int
	maxY  int
}

// centroidX returns the mean x coordinate of the blob.
func (b blobStats) centroidX() float64 { return b.sumX / float64(b.count) }

// centroidY returns the mean y coordinate of the blob.
func (b blobStats) centroidY() float64 { return b.sumY / float64(b.count) }

// connectedBlobs finds 4-connected dark regions of the mask inside window.
// Components touching the window edge are kept; the fiducial search window is
// sized so a real mark fits fully inside.
func connectedBlobs(mask *normalize.BinaryMask, window image.Rectangle) []blobStats {
	window = window.Intersect(image.Rect(0, 0, mask.Width, mask.Height))
	if window.Empty() {
		return nil
	}
	w := window.Dx()
	h := window.Dy()
	visited := make([]bool, w*h)
	var blobs []blobStats

	for wy := range h {
		for wx := range w {
			if visited[wy*w+wx] || !mask.At(window.Min.X+wx, window.Min.Y+wy) {
				continue
			}
			blobs = append(blobs, blobBFS(mask, window, visited, wx, wy))
		}
	}
	return blobs
}

// blobBFS flood-fills one component starting from a seed pixel in window
// coordinates and returns its stats in image coordinates.
func blobBFS(mask *normalize.BinaryMask, window image.Rectangle, visited []bool, startX, startY int) blobStats {
	w := window.Dx()
	h := window.Dy()
	st := blobStats{
		minX: window.Min.X + startX,
		minY: window.Min.Y + startY,
		maxX: window.Min.X + startX,
		maxY: window.Min.Y + startY,
	}

	q := list.New()
	q.PushBack(startY*w + startX)
	visited[startY*w+startX] = true

	dirs := [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

	for q.Len() > 0 {
		e := q.Front()
		q.Remove(e)
		ci, ok := e.Value.(int)
		if !ok {
			continue
		}
		wx, wy := ci%w, ci/w
		ix, iy := window.Min.X+wx, window.Min.Y+wy
		st.count++
		st.sumX += float64(ix)
		st.sumY += float64(iy)
		if ix < st.minX {
			st.minX = ix
		}
		if iy < st.minY {
			st.minY = iy
		}
		if ix > st.maxX {
			st.maxX = ix
		}
		if iy > st.maxY {
			st.maxY = iy
		}

		for _, d := range dirs {
			nx, ny := wx+d[0], wy+d[1]
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			ni := ny*w + nx
			if visited[ni] || !mask.At(window.Min.X+nx, window.Min.Y+ny) {
				continue
			}
			visited[ni] = true
			q.PushBack(ni)
		}
	}
	return st
}
