// Package llm defines the language-inference capability consumed by the
// query pipeline, with provider implementations in subpackages.
package llm
