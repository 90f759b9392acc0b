// Package vad measures voice activity in normalized recordings. Windows of
// PCM are scored by RMS level with light smoothing, and consecutive voiced
// windows are merged into speech segments so silent or clipped takes can be
// flagged before the participant moves on.
package vad
