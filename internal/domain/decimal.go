package domain

import "github.com/shopspring/decimal"

// init configures the process-wide decimal division precision once, at
// import time, mirroring model.py's module-level
// `getcontext().traps[FloatOperation] = True`: every Position/Order
// computation in this repo runs under one explicit, high-precision
// decimal context instead of shopspring's 16-fractional-digit default, so
// a chain of Div calls (Position.Sub's ratio, Normalize's VWAP) does not
// silently lose precision partway through a reconciliation. 50 fractional
// digits comfortably clears every ratio this package computes (prices and
// sizes are at most a few significant digits each).
func init() {
	decimal.DivisionPrecision = 50
}
