// Package logg centralizes the structured log field names shared
// across components so every zap.Logger.With call uses the same key
// for the same concept.
package logg

const (
	Layer       = "layer"
	Operation   = "op"
	Selector    = "selector"
	URL         = "url"
	Action      = "action"
	TaskID      = "task_id"
	Strategy    = "strategy"
	Attempt     = "attempt"
	Cached      = "cached"
	Confidence  = "confidence"
	ErrorClass  = "error_class"
)
