// Package genai adapts the Gemini API to the classifier and synthesizer
// ports. Classification uses structured JSON output constrained by a
// response schema; synthesis is plain text grounded in backend evidence.
package genai
