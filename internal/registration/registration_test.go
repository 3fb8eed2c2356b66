package registration

import (
	"errors"
	"math"
	"testing"

	"markscan/internal/render"
	"markscan/internal/template"
	"markscan/pkg/geometry"
	"markscan/pkg/raster"
)

func fourMarkerTemplate() *template.Template {
	return &template.Template{
		PageWidth:  600,
		PageHeight: 800,
		Markers: []template.Marker{
			{Position: geometry.Pt(40, 40), Shape: template.MarkerSquare, Size: 24},
			{Position: geometry.Pt(560, 40), Shape: template.MarkerSquare, Size: 24},
			{Position: geometry.Pt(40, 760), Shape: template.MarkerSquare, Size: 24},
			{Position: geometry.Pt(560, 760), Shape: template.MarkerSquare, Size: 24},
		},
		Questions: []template.Question{
			{
				ID:     "Q01",
				Radius: 12,
				Bubbles: []geometry.Point2D{
					geometry.Pt(200, 400), geometry.Pt(260, 400),
				},
			},
		},
	}
}

func renderSheet(t *testing.T, tmpl *template.Template) *raster.Buffer {
	t.Helper()
	buf, err := render.New(render.Options{Scale: 1}).Render(tmpl)
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

// warp resamples src through the inverse of t with nearest-neighbor
// lookup, so markers land exactly where t.Apply predicts.
func warp(src *raster.Buffer, t geometry.AffineTransform, w, h int) *raster.Buffer {
	inv, ok := t.Inverse()
	if !ok {
		panic("warp: singular transform")
	}
	dst, err := raster.New(w, h, 255)
	if err != nil {
		panic(err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := inv.Apply(geometry.Pt(float64(x), float64(y)))
			sx, sy := int(p.X+0.5), int(p.Y+0.5)
			if sx >= 0 && sx < src.Width && sy >= 0 && sy < src.Height {
				dst.Set(x, y, src.At(sx, sy))
			}
		}
	}
	return dst
}

func TestLocateIdentityScan(t *testing.T) {
	tmpl := fourMarkerTemplate()
	sheet := renderSheet(t, tmpl)

	res, err := NewDetector(Config{}).Locate(sheet, tmpl)
	if err != nil {
		t.Fatalf("clean render failed to register: %v", err)
	}
	if len(res.Matched) != 4 {
		t.Errorf("matched %d markers, want 4", len(res.Matched))
	}
	if res.Confidence <= 0 || res.Confidence > 1 {
		t.Errorf("confidence %.3f outside (0, 1]", res.Confidence)
	}
	for _, m := range tmpl.Markers {
		got := res.Transform.Apply(m.Position)
		if got.Distance(m.Position) > 2 {
			t.Errorf("marker at %v mapped to %v, expected near identity", m.Position, got)
		}
	}
}

func TestLocateRotatedScan(t *testing.T) {
	tmpl := fourMarkerTemplate()
	scan, rot := rotateScan(t, tmpl, 5)

	res, err := NewDetector(Config{}).Locate(scan, tmpl)
	if err != nil {
		t.Fatalf("5 degree rotation failed to register: %v", err)
	}
	gotDeg := res.Transform.RotationAngle() * 180 / math.Pi
	if math.Abs(gotDeg-5) > 1 {
		t.Errorf("recovered rotation %.2f°, want ~5°", gotDeg)
	}
	for _, m := range tmpl.Markers {
		want := rot.Apply(m.Position)
		got := res.Transform.Apply(m.Position)
		if got.Distance(want) > 3 {
			t.Errorf("marker %v mapped to %v, want near %v", m.Position, got, want)
		}
	}
}

func TestLocateScaledScan(t *testing.T) {
	tmpl := fourMarkerTemplate()
	sheet := renderSheet(t, tmpl)

	for _, s := range []float64{0.5, 1.5} {
		scan := warp(sheet, geometry.Scaling(s, s), int(600*s), int(800*s))
		res, err := NewDetector(Config{}).Locate(scan, tmpl)
		if err != nil {
			t.Fatalf("%.1fx scale failed to register: %v", s, err)
		}
		if got := res.Transform.ScaleFactor(); math.Abs(got-s) > 0.05 {
			t.Errorf("recovered scale %.3f, want %.1f", got, s)
		}
	}
}

// insetMarkerTemplate places the fiducials far enough from the corners
// that a full-bound rotation keeps all four on the page.
func insetMarkerTemplate() *template.Template {
	tmpl := fourMarkerTemplate()
	for i, p := range []geometry.Point2D{
		geometry.Pt(80, 80), geometry.Pt(520, 80),
		geometry.Pt(80, 720), geometry.Pt(520, 720),
	} {
		tmpl.Markers[i].Position = p
	}
	return tmpl
}

func rotateScan(t *testing.T, tmpl *template.Template, deg float64) (*raster.Buffer, geometry.AffineTransform) {
	t.Helper()
	sheet := renderSheet(t, tmpl)
	cx, cy := tmpl.PageWidth/2, tmpl.PageHeight/2
	rot := geometry.Translation(cx, cy).
		Compose(geometry.Rotation(deg * math.Pi / 180)).
		Compose(geometry.Translation(-cx, -cy))
	return warp(sheet, rot, sheet.Width, sheet.Height), rot
}

func TestLocateNearRotationBound(t *testing.T) {
	tmpl := insetMarkerTemplate()
	scan, rot := rotateScan(t, tmpl, 14)

	res, err := NewDetector(Config{}).Locate(scan, tmpl)
	if err != nil {
		t.Fatalf("14 degree rotation inside the 15 degree bound failed: %v", err)
	}
	gotDeg := res.Transform.RotationAngle() * 180 / math.Pi
	if math.Abs(gotDeg-14) > 1 {
		t.Errorf("recovered rotation %.2f°, want ~14°", gotDeg)
	}
	for _, m := range tmpl.Markers {
		want := rot.Apply(m.Position)
		if got := res.Transform.Apply(m.Position); got.Distance(want) > 4 {
			t.Errorf("marker %v mapped to %v, want near %v", m.Position, got, want)
		}
	}
}

func TestLocateRejectsJustOverRotationBound(t *testing.T) {
	tmpl := insetMarkerTemplate()
	scan, _ := rotateScan(t, tmpl, 17)

	_, err := NewDetector(Config{}).Locate(scan, tmpl)
	if err == nil {
		t.Fatal("17 degree rotation registered, want failure")
	}
	var regErr *Error
	if !errors.As(err, &regErr) {
		t.Fatalf("error %v is not a registration Error", err)
	}
}

func TestLocateRejectsExcessiveRotation(t *testing.T) {
	tmpl := fourMarkerTemplate()
	scan, _ := rotateScan(t, tmpl, 25)

	_, err := NewDetector(Config{}).Locate(scan, tmpl)
	if err == nil {
		t.Fatal("25 degree rotation registered, want failure")
	}
	var regErr *Error
	if !errors.As(err, &regErr) {
		t.Fatalf("error %v is not a registration Error", err)
	}
}

func TestLocateRejectsBlankImage(t *testing.T) {
	tmpl := fourMarkerTemplate()
	blank, err := raster.New(600, 800, 255)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewDetector(Config{}).Locate(blank, tmpl)
	if err == nil {
		t.Fatal("blank image registered")
	}
	var regErr *Error
	if !errors.As(err, &regErr) {
		t.Fatalf("error %v is not a registration Error", err)
	}
	if regErr.Matched != 0 {
		t.Errorf("blank image matched %d markers", regErr.Matched)
	}
}

func TestLocateRejectsExtremeScaleRatio(t *testing.T) {
	tmpl := fourMarkerTemplate()
	tiny, err := raster.New(60, 80, 255)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewDetector(Config{}).Locate(tiny, tmpl)
	var regErr *Error
	if !errors.As(err, &regErr) {
		t.Fatalf("want registration Error for 0.1x image, got %v", err)
	}
}

// The threshold is inclusive: pixels at or below it count as ink, so on a
// two-level image it must land on the dark intensity, not above it.
func TestOtsuThresholdSeparatesModes(t *testing.T) {
	buf, err := raster.New(64, 64, 255)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			buf.Set(x, y, 30)
		}
	}
	thr := otsuThreshold(buf)
	if thr < 30 || thr >= 255 {
		t.Errorf("threshold %d does not separate 30 from 255", thr)
	}
}

func TestOtsuThresholdPureInkAndPaper(t *testing.T) {
	buf, err := raster.New(32, 32, 255)
	if err != nil {
		t.Fatal(err)
	}
	for x := 0; x < 32; x++ {
		buf.Set(x, 0, 0)
	}
	if thr := otsuThreshold(buf); thr != 0 {
		t.Errorf("threshold %d on a 0/255 image, want 0", thr)
	}
}

func TestSolveAffineExactFit(t *testing.T) {
	want := geometry.AffineTransform{A: 1.2, B: -0.1, TX: 15, C: 0.1, D: 1.2, TY: -8}
	src := []geometry.Point2D{
		geometry.Pt(0, 0), geometry.Pt(100, 0), geometry.Pt(0, 100), geometry.Pt(100, 100),
	}
	dst := make([]geometry.Point2D, len(src))
	for i, p := range src {
		dst[i] = want.Apply(p)
	}
	got, err := solveAffine(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range src {
		if got.Apply(p).Distance(dst[i]) > 1e-9 {
			t.Errorf("point %d not reproduced by fit", i)
		}
	}
}

func TestSolveAffineTooFewPoints(t *testing.T) {
	pts := []geometry.Point2D{geometry.Pt(0, 0), geometry.Pt(1, 1)}
	if _, err := solveAffine(pts, pts); err == nil {
		t.Error("affine fit accepted 2 points")
	}
}
