package dataset

// Label types a region-of-interest field may hold. Bounding boxes are in
// relative coordinates [x, y, width, height], each in [0, 1], matching the
// host framework's convention.

// Detection is a single labeled bounding box.
type Detection struct {
	Label       string
	BoundingBox [4]float64
}

// Detections is a list of detections.
type Detections struct {
	Detections []Detection
}

// Polyline is a labeled set of points. For ROI purposes it is reduced to its
// axis-aligned bounding box.
type Polyline struct {
	Label  string
	Points [][2]float64
}

// Polylines is a list of polylines.
type Polylines struct {
	Polylines []Polyline
}

// ToDetection returns the polyline's bounding box as a detection.
func (p Polyline) ToDetection() Detection {
	if len(p.Points) == 0 {
		return Detection{Label: p.Label}
	}
	minX, minY := p.Points[0][0], p.Points[0][1]
	maxX, maxY := minX, minY
	for _, pt := range p.Points[1:] {
		if pt[0] < minX {
			minX = pt[0]
		}
		if pt[0] > maxX {
			maxX = pt[0]
		}
		if pt[1] < minY {
			minY = pt[1]
		}
		if pt[1] > maxY {
			maxY = pt[1]
		}
	}
	return Detection{
		Label:       p.Label,
		BoundingBox: [4]float64{minX, minY, maxX - minX, maxY - minY},
	}
}

// ToDetections returns the polylines' bounding boxes as detections.
func (p Polylines) ToDetections() Detections {
	dets := make([]Detection, 0, len(p.Polylines))
	for _, pl := range p.Polylines {
		dets = append(dets, pl.ToDetection())
	}
	return Detections{Detections: dets}
}
