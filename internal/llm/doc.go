// Package llm is the boundary to external language model providers. It treats
// the provider as an untrusted oracle: responses are parsed leniently, their
// confidence is validated, and transient failures are retried before the
// predictor reports that no prediction is available.
package llm
