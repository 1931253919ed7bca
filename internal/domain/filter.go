package domain

import "fmt"

type FilterKind int

const (
	FilterCopy FilterKind = iota
	FilterScaleCrop
	FilterScaleOnly
)

func (k FilterKind) String() string {
	switch k {
	case FilterCopy:
		return "copy"
	case FilterScaleCrop:
		return "scale_crop"
	case FilterScaleOnly:
		return "scale_only"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// FilterDirective decides whether the video stream is copied untouched or
// rescaled (and optionally center-cropped) before a re-encode.
type FilterDirective struct {
	Kind         FilterKind
	TargetHeight int

	// AspectNum and AspectDen describe the crop target for FilterScaleCrop.
	AspectNum int
	AspectDen int
}

// Copy reports whether the video stream is passed through without re-encoding.
func (d FilterDirective) Copy() bool {
	return d.Kind == FilterCopy
}

// VideoFilter renders the ffmpeg -vf value, or "" for a stream copy.
func (d FilterDirective) VideoFilter() string {
	switch d.Kind {
	case FilterScaleOnly:
		return fmt.Sprintf("scale=-2:%d", d.TargetHeight)
	case FilterScaleCrop:
		num, den := d.AspectNum, d.AspectDen
		if num <= 0 || den <= 0 {
			num, den = 9, 16
		}
		return fmt.Sprintf("scale=-2:%d,crop=ih*(%d/%d):ih:(iw-ow)/2:0", d.TargetHeight, num, den)
	default:
		return ""
	}
}
