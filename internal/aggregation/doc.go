// Package aggregation computes the six aggregate views from a clean table
// and filters them by ticker selection.
package aggregation
