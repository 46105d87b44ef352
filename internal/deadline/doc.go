// Package deadline implements the cancellable one-shot timer armed on a
// fetch. Firing and cancellation are resolved by a single compare-and-swap
// each, so whichever the scheduler processes first is the only one observed.
package deadline
