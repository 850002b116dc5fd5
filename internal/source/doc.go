// ABOUTME: Audio file loading for the sampler
// ABOUTME: Decodes WAV, MP3, FLAC, and Opus files into planar float32 buffers
// Package source loads audio files into memory for chopping.
//
// Load picks a decoder by file extension (.wav, .mp3, .flac, .opus) or
// streams MP3 from an http(s) URL. Every format ends up as a planar
// float32 SourceBuffer at the file's native sample rate; rate conversion
// happens at preload time, not here.
package source
