package frames

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/exbus.go/pkg/cli/sh"
	"github.com/robotalks/exbus.go/pkg/ex"
	"github.com/robotalks/exbus.go/pkg/exbus"
	"github.com/robotalks/exbus.go/pkg/jetibox"
)

// Checksums is the result of the crc command.
type Checksums struct {
	CRC16 uint16 `json:"crc16"`
	CRC8  byte   `json:"crc8"`
}

// Encoded is the result of encoding commands.
type Encoded struct {
	Frame string `json:"frame"`
}

var (
	// DecodeCmd decodes a frame.
	DecodeCmd = ishell.Cmd{
		Name:    "decode",
		Aliases: []string{"d"},
		Help:    "HEX",
		Func: func(c *ishell.Context) {
			b, err := sh.ParseHex(c.Args...)
			if err != nil {
				c.Err(err)
				return
			}
			d, err := Decode(b)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, d, d.String())
		},
	}

	// CRCCmd calculates checksums.
	CRCCmd = ishell.Cmd{
		Name: "crc",
		Help: "HEX",
		Func: func(c *ishell.Context) {
			b, err := sh.ParseHex(c.Args...)
			if err != nil {
				c.Err(err)
				return
			}
			sums := Checksums{CRC16: exbus.Checksum(b), CRC8: ex.CRC8(b)}
			sh.Print(c, &sums, fmt.Sprintf("crc16=%04x crc8=%02x", sums.CRC16, sums.CRC8))
		},
	}

	// RequestCmd encodes a master request.
	RequestCmd = ishell.Cmd{
		Name:    "request",
		Aliases: []string{"req"},
		Help:    "telemetry|jetibox ID [BUTTONS]",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("kind and ID required"))
				return
			}
			id, err := parseByte(c.Args[1])
			if err != nil {
				c.Err(fmt.Errorf("Invalid ID: %v", err))
				return
			}
			var frame []byte
			switch c.Args[0] {
			case "telemetry", "t":
				frame = exbus.EncodeTelemetryRequest(id)
			case "jetibox", "j":
				buttons := byte(jetibox.None)
				if len(c.Args) > 2 {
					if buttons, err = ParseButtons(c.Args[2]); err != nil {
						c.Err(err)
						return
					}
				}
				frame = exbus.EncodeJetiBoxRequest(id, buttons)
			default:
				c.Err(fmt.Errorf("unknown request %q", c.Args[0]))
				return
			}
			printFrame(c, frame)
		},
	}

	// ChannelsCmd encodes a channel data frame.
	ChannelsCmd = ishell.Cmd{
		Name:    "channels",
		Aliases: []string{"ch"},
		Help:    "ID MS...",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("ID and channel values required"))
				return
			}
			id, err := parseByte(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("Invalid ID: %v", err))
				return
			}
			channels := make([]uint16, 0, len(c.Args)-1)
			for _, arg := range c.Args[1:] {
				ms, err := strconv.ParseFloat(arg, 64)
				if err != nil || ms < 0 || ms*8000 > 0xFFFF {
					c.Err(fmt.Errorf("Invalid channel value %q", arg))
					return
				}
				channels = append(channels, uint16(ms*8000+0.5))
			}
			frame, err := exbus.EncodeChannels(id, channels)
			if err != nil {
				c.Err(err)
				return
			}
			printFrame(c, frame)
		},
	}
)

// ParseButtons parses pressed buttons like "LR" into the request byte.
func ParseButtons(s string) (byte, error) {
	buttons := jetibox.None
	for _, ch := range s {
		switch ch {
		case 'L', 'l':
			buttons &^= jetibox.Left
		case 'D', 'd':
			buttons &^= jetibox.Down
		case 'U', 'u':
			buttons &^= jetibox.Up
		case 'R', 'r':
			buttons &^= jetibox.Right
		case '-':
		default:
			return 0, fmt.Errorf("Invalid button %q", ch)
		}
	}
	return byte(buttons), nil
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	return byte(v), err
}

func printFrame(c *ishell.Context, frame []byte) {
	s := hex.EncodeToString(frame)
	sh.Print(c, &Encoded{Frame: s}, s)
}

func init() {
	sh.AddCmds(
		&DecodeCmd,
		&CRCCmd,
		&RequestCmd,
		&ChannelsCmd,
	)
}
