// Package vacation is the date-pair form logic that feeds the offline core:
// validate a pair, keep it in the local history, and hand it to delivery.
package vacation
