// Package testutil provides deterministic fixtures shared by package tests:
// reproducible raster images and fixed trace ID generators.
package testutil
