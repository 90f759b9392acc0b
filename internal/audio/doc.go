// Package audio normalizes captured recordings into canonical 16-bit PCM WAV.
// It implements channel interleaving, asymmetric float-to-int16 quantization,
// the 44-byte RIFF header, pluggable decoder backends (WAV, MP3, ffmpeg) and a
// fallback that hands back the original capture when conversion is impossible.
package audio
