// Package archive stores frames received over a duplex channel in
// PostgreSQL.
//
// Frames are batched and inserted into channel_frames with
// ON CONFLICT (id) DO NOTHING, so a frame delivered twice (channels are
// at-least-once) is stored once. Frames without an envelope id get a
// random one and are never deduplicated.
package archive
