package cli

import (
	"github.com/posener/complete"
	"github.com/willabides/kongplete"

	"github.com/semmy-space/skc/internal/config"
)

// Predictors returns the completion predictors referenced by predictor tags.
func Predictors() []kongplete.Option {
	return []kongplete.Option{
		kongplete.WithPredictor("backend", complete.PredictSet(config.Backends...)),
		kongplete.WithPredictor("codec", complete.PredictSet("json", "cbor")),
		kongplete.WithPredictor("config_key", complete.PredictSet(config.Keys()...)),
	}
}
