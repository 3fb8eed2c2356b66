package registration

import (
	"math"
	"sort"

	"markscan/internal/template"
	"markscan/pkg/geometry"
	"markscan/pkg/raster"
)

// candidate is a connected dark component that looks like a fiducial.
type candidate struct {
	center     geometry.Point2D
	size       float64 // mean of bounding-box edge lengths
	confidence float64 // density x contrast, in (0,1]
}

// findCandidates binarizes the buffer and collects connected dark
// components whose shape is plausible for a fiducial of roughly
// markerSize pixels.
func (d *Detector) findCandidates(buf *raster.Buffer, markerSize float64) []candidate {
	cutoff := otsuThreshold(buf)
	dark := make([]bool, len(buf.Pix))
	for i, v := range buf.Pix {
		dark[i] = v <= cutoff
	}

	minSize := markerSize * 0.4
	maxSize := markerSize * 2.5

	var out []candidate
	visited := make([]bool, len(buf.Pix))
	var stack []int

	for start := range dark {
		if !dark[start] || visited[start] {
			continue
		}

		// Flood-fill one 4-connected component, tracking its extent.
		visited[start] = true
		stack = append(stack[:0], start)
		area := 0
		minX, minY := buf.Width, buf.Height
		maxX, maxY := 0, 0
		var sumX, sumY, sumVal float64

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := idx%buf.Width, idx/buf.Width

			area++
			sumX += float64(x)
			sumY += float64(y)
			sumVal += float64(buf.Pix[idx])
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}

			for _, n := range [4]int{idx - 1, idx + 1, idx - buf.Width, idx + buf.Width} {
				if n < 0 || n >= len(dark) || visited[n] || !dark[n] {
					continue
				}
				// Horizontal neighbors must stay on the same row.
				if (n == idx-1 || n == idx+1) && n/buf.Width != y {
					continue
				}
				visited[n] = true
				stack = append(stack, n)
			}
		}

		w := float64(maxX - minX + 1)
		h := float64(maxY - minY + 1)
		size := (w + h) / 2
		if size < minSize || size > maxSize {
			continue
		}
		aspect := w / h
		if aspect < 0.5 || aspect > 2.0 {
			continue
		}
		density := float64(area) / (w * h)
		if density < d.cfg.MinDensity {
			continue
		}

		center := geometry.Pt(sumX/float64(area), sumY/float64(area))
		innerMean := sumVal / float64(area)
		contrast := markerContrast(buf, center, size/2, innerMean)
		if contrast <= 0 {
			continue
		}

		out = append(out, candidate{
			center:     center,
			size:       size,
			confidence: density * contrast,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].confidence > out[j].confidence })
	return out
}

// markerContrast compares the component's mean intensity against the
// paper in an annular ring from 1.5r to 2.5r around it, normalized to
// (0,1]. Fiducials sit on blank paper, so a real marker shows strong
// contrast while print noise does not.
func markerContrast(buf *raster.Buffer, center geometry.Point2D, radius, innerMean float64) float64 {
	cx, cy := int(center.X+0.5), int(center.Y+0.5)
	innerR := int(radius*1.5 + 0.5)
	outerR := int(radius*2.5 + 0.5)

	var outerSum float64
	var outerCount int
	for dy := -outerR; dy <= outerR; dy++ {
		for dx := -outerR; dx <= outerR; dx++ {
			d2 := dx*dx + dy*dy
			if d2 < innerR*innerR || d2 > outerR*outerR {
				continue
			}
			outerSum += float64(buf.At(cx+dx, cy+dy))
			outerCount++
		}
	}
	if outerCount == 0 {
		return 0
	}
	outerMean := outerSum / float64(outerCount)
	if outerMean <= innerMean {
		return 0
	}
	return (outerMean - innerMean) / 255.0
}

// match pairs a template marker index with its detected candidate.
type match struct {
	markerIdx int
	cand      candidate
}

// assign greedily picks, for each expected marker position, the candidate
// with the highest confidence inside the search radius. The radius covers
// the worst-case displacement under the configured rotation bound, which
// grows with the marker's distance from the page center (a rotation by
// theta about the center moves a point at distance r by 2*r*sin(theta/2)).
// Candidates with confidence within 10% of the best are tie-broken by
// distance to the expected position after the coarse scale estimate. Each
// candidate is used at most once.
func (d *Detector) assign(tmpl *template.Template, candidates []candidate, scaleX, scaleY, markerSize float64) []match {
	maxRot := d.cfg.MaxRotationDeg * math.Pi / 180
	center := geometry.Pt(tmpl.PageWidth*scaleX/2, tmpl.PageHeight*scaleY/2)
	taken := make([]bool, len(candidates))
	var out []match

	for i, m := range tmpl.Markers {
		expected := geometry.Pt(m.Position.X*scaleX, m.Position.Y*scaleY)
		searchRadius := markerSize*4 + 2*math.Sin(maxRot/2)*expected.Distance(center)

		best := -1
		bestConf := 0.0
		bestDist := 0.0
		for j, c := range candidates {
			if taken[j] {
				continue
			}
			dist := c.center.Distance(expected)
			if dist > searchRadius {
				continue
			}
			switch {
			case best == -1 || c.confidence > bestConf*1.1:
				best, bestConf, bestDist = j, c.confidence, dist
			case c.confidence > bestConf*0.9 && dist < bestDist:
				// Comparable confidence: prefer the closer candidate.
				best, bestConf, bestDist = j, c.confidence, dist
			}
		}
		if best >= 0 {
			taken[best] = true
			out = append(out, match{markerIdx: i, cand: candidates[best]})
		}
	}
	return out
}

// otsuThreshold computes the global binarization cutoff that maximizes
// between-class variance over the intensity histogram. The returned value
// is the darkest class's upper bound: pixels at or below it are ink. On a
// pure two-level image it is the ink intensity itself.
func otsuThreshold(buf *raster.Buffer) uint8 {
	var hist [256]int
	for _, v := range buf.Pix {
		hist[v]++
	}
	total := len(buf.Pix)

	var sum float64
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}

	var sumBg float64
	var wBg int
	bestVar := -1.0
	best := 128
	for t := 0; t < 256; t++ {
		wBg += hist[t]
		if wBg == 0 {
			continue
		}
		wFg := total - wBg
		if wFg == 0 {
			break
		}
		sumBg += float64(t) * float64(hist[t])
		meanBg := sumBg / float64(wBg)
		meanFg := (sum - sumBg) / float64(wFg)
		diff := meanBg - meanFg
		between := float64(wBg) * float64(wFg) * diff * diff
		if between > bestVar {
			bestVar = between
			best = t
		}
	}
	return uint8(best)
}
