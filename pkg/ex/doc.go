// Package ex encodes and decodes JETI EX telemetry packets, the payload
// of Ex Bus telemetry answers.
//
// A packet is
//
//	0x9F, type<<6 | length, manufacturer (LE16), device (LE16), 0x00, body, CRC-8
//
// where length counts the bytes following the type/length byte and the
// CRC-8 (polynomial 0x07) covers the type/length byte through the body.
package ex
