// Package events implements the one-way notification channel between the
// runtime and the presentation layer. It carries a small closed set of
// message variants over a best-effort in-process bus.
package events
