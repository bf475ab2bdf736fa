package identity

import "sort"

// ComputeIoU calculates Intersection over Union between two bounding boxes.
// bbox1 and bbox2 are [x1, y1, x2, y2] in the same coordinate system.
func ComputeIoU(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 0
	}

	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := (x2 - x1) * (y2 - y1)

	area1 := (bbox1[2] - bbox1[0]) * (bbox1[3] - bbox1[1])
	area2 := (bbox2[2] - bbox2[0]) * (bbox2[3] - bbox2[1])
	union := area1 + area2 - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// SuppressOverlaps drops detections whose box overlaps a higher-confidence
// detection of the same label by more than threshold IoU, so one face seen
// twice in a frame counts once. A threshold <= 0 returns the input unchanged.
// Surviving detections keep their original order.
func SuppressOverlaps(dets []Detection, threshold float64) []Detection {
	if threshold <= 0 || len(dets) < 2 {
		return dets
	}

	order := make([]int, len(dets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dets[order[a]].Confidence > dets[order[b]].Confidence
	})

	dropped := make([]bool, len(dets))
	for i, hi := range order {
		if dropped[hi] {
			continue
		}
		for _, lo := range order[i+1:] {
			if dropped[lo] || Key(dets[lo].Label) != Key(dets[hi].Label) {
				continue
			}
			if ComputeIoU(dets[hi].BBox, dets[lo].BBox) > threshold {
				dropped[lo] = true
			}
		}
	}

	kept := make([]Detection, 0, len(dets))
	for i, d := range dets {
		if !dropped[i] {
			kept = append(kept, d)
		}
	}
	return kept
}
