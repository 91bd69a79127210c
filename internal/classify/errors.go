package classify

import "errors"

var (
	errThresholdRange = errors.New("classifier thresholds must be within [0,1]")
	errAnnulusScale   = errors.New("annulus scale must be greater than 1 when background normalization is enabled")
)
