// Package exbus implements the sensor (slave) side of the JETI Ex Bus protocol.
package exbus

// Ex Bus is a half-duplex serial link (8-N-1, 125000 or 250000 baud)
// driven by the receiver (master). The master sends channel data frames
// and request frames; a sensor may answer a request within a short slot
// right after the request, otherwise the line belongs to the master.
//
// Every frame has the layout:
//
//	byte 0     header: 0x3E channels, 0x3D request, 0x3B answer
//	byte 1     0x03 (no answer allowed) or 0x01 (answer slot follows)
//	byte 2     total length including header and checksum
//	byte 3     packet ID, echoed by the answer
//	byte 4     data identifier: 0x31 channels, 0x3A telemetry, 0x3B JetiBox
//	byte 5     data block length
//	byte 6..   data block
//	last 2     CRC16-CCITT (reflected, init 0), LSB first
//
// Producer: receiver (master) and sensors (slaves)
// Consumer: this package, running as one sensor on the bus
