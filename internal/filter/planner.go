// Package filter decides how the base video is shaped for a vertical frame.
package filter

import "github.com/eleven-am/reelsync/internal/domain"

// Aspect is a width:height ratio.
type Aspect struct {
	Num int
	Den int
}

func (a Aspect) Ratio() float64 {
	if a.Den == 0 {
		return 0
	}
	return float64(a.Num) / float64(a.Den)
}

var DefaultAspect = Aspect{Num: 9, Den: 16}

const (
	DefaultMaxDim = 1280

	// tolerance keeps sources that are already (almost) at the target aspect
	// on the copy path.
	tolerance = 0.01
)

// Plan maps source dimensions to a filter directive. Sources wider than the
// target aspect are scaled to maxDim in height and center-cropped; tall
// sources above maxDim are only scaled down; everything else is copied.
func Plan(width, height int, aspect Aspect, maxDim int) domain.FilterDirective {
	if width <= 0 || height <= 0 {
		return domain.FilterDirective{Kind: domain.FilterCopy}
	}

	current := float64(width) / float64(height)
	if current > aspect.Ratio()+tolerance {
		return domain.FilterDirective{
			Kind:         domain.FilterScaleCrop,
			TargetHeight: maxDim,
			AspectNum:    aspect.Num,
			AspectDen:    aspect.Den,
		}
	}

	if height > maxDim {
		return domain.FilterDirective{Kind: domain.FilterScaleOnly, TargetHeight: maxDim}
	}

	return domain.FilterDirective{Kind: domain.FilterCopy}
}

// PlanDefault plans against a 9:16 frame with a 1280 pixel ceiling.
func PlanDefault(width, height int) domain.FilterDirective {
	return Plan(width, height, DefaultAspect, DefaultMaxDim)
}
