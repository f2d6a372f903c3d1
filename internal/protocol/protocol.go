package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Protocol constants
const (
	// Packet types
	PacketTypeFormat = 0x01
	PacketTypeAudio  = 0x02

	// Packet structure sizes
	HeaderSize             = 8  // 1 + 2 + 4 + 1 bytes
	FormatPayloadSize      = 36 // 4 + 32 bytes
	AudioPayloadHeaderSize = 4  // Sequence number (4 bytes)
	SampleSize             = 4  // float32

	SourceNameSize = 32

	// MaxChannels bounds the interleaved channel count a sender may announce.
	MaxChannels = 8

	// MaxPacketSize is the largest value PacketLen can carry.
	MaxPacketSize = math.MaxUint16
)

// ErrShortPacket is returned when a buffer is too small for the structure
// being parsed.
var ErrShortPacket = errors.New("packet too short")

// Header represents the 8-byte packet header
// Layout: [PacketType:1][PacketLen:2][SourceID:4][Channels:1]
type Header struct {
	PacketType uint8  // 0x01=Format, 0x02=Audio
	PacketLen  uint16 // Total packet size (header + payload)
	SourceID   uint32 // Sender-chosen stream identifier
	Channels   uint8  // Interleaved channel count, 1..MaxChannels
}

// FormatPayload announces the stream format
// Layout: [SampleRate:4][SourceName:32]
type FormatPayload struct {
	SampleRate uint32
	SourceName [SourceNameSize]byte // Null-terminated string
}

// AudioPayload represents the audio packet payload
// Layout: [Sequence:4][Samples:N*4]
type AudioPayload struct {
	Sequence uint32    // Packet sequence number
	Samples  []float32 // Interleaved samples, little-endian float32 on the wire
}

// ParsedPacket represents a fully parsed packet
type ParsedPacket struct {
	Header *Header
	Format *FormatPayload // Only set for format packets
	Audio  *AudioPayload  // Only set for audio packets
}

// ParseHeader parses the 8-byte packet header
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, got %d", ErrShortPacket, HeaderSize, len(data))
	}

	header := &Header{
		PacketType: data[0],
		PacketLen:  binary.BigEndian.Uint16(data[1:3]),
		SourceID:   binary.BigEndian.Uint32(data[3:7]),
		Channels:   data[7],
	}

	return header, nil
}

// ParseFormatPayload parses the 36-byte format payload
func ParseFormatPayload(data []byte) (*FormatPayload, error) {
	if len(data) < FormatPayloadSize {
		return nil, fmt.Errorf("%w: format payload needs %d bytes, got %d",
			ErrShortPacket, FormatPayloadSize, len(data))
	}

	payload := &FormatPayload{
		SampleRate: binary.BigEndian.Uint32(data[0:4]),
	}
	copy(payload.SourceName[:], data[4:4+SourceNameSize])

	return payload, nil
}

// ParseAudioPayload parses the audio payload (4-byte sequence + samples)
func ParseAudioPayload(data []byte, channels uint8) (*AudioPayload, error) {
	if len(data) < AudioPayloadHeaderSize {
		return nil, fmt.Errorf("%w: audio payload needs at least %d bytes, got %d",
			ErrShortPacket, AudioPayloadHeaderSize, len(data))
	}

	body := data[AudioPayloadHeaderSize:]
	frameSize := SampleSize * int(channels)
	if frameSize == 0 || len(body)%frameSize != 0 {
		return nil, fmt.Errorf("audio data of %d bytes is not a whole number of %d-channel frames",
			len(body), channels)
	}

	payload := &AudioPayload{
		Sequence: binary.BigEndian.Uint32(data[0:4]),
		Samples:  make([]float32, len(body)/SampleSize),
	}
	for i := range payload.Samples {
		bits := binary.LittleEndian.Uint32(body[i*SampleSize:])
		payload.Samples[i] = math.Float32frombits(bits)
	}

	return payload, nil
}

// ParsePacket parses a complete packet (header + payload)
func ParsePacket(data []byte) (*ParsedPacket, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	// Validate packet length matches actual data
	if int(header.PacketLen) != len(data) {
		return nil, fmt.Errorf("packet length mismatch: header says %d bytes, got %d bytes",
			header.PacketLen, len(data))
	}

	if err := ValidateHeader(header); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	packet := &ParsedPacket{Header: header}
	payloadData := data[HeaderSize:]

	switch header.PacketType {
	case PacketTypeFormat:
		payload, err := ParseFormatPayload(payloadData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse format payload: %w", err)
		}
		packet.Format = payload

	case PacketTypeAudio:
		payload, err := ParseAudioPayload(payloadData, header.Channels)
		if err != nil {
			return nil, fmt.Errorf("failed to parse audio payload: %w", err)
		}
		packet.Audio = payload

	default:
		return nil, fmt.Errorf("unknown packet type: 0x%02x", header.PacketType)
	}

	return packet, nil
}

// ValidateHeader validates the packet header fields
func ValidateHeader(header *Header) error {
	if !IsValidPacketType(header.PacketType) {
		return fmt.Errorf("invalid packet type: 0x%02x", header.PacketType)
	}

	if header.Channels < 1 || header.Channels > MaxChannels {
		return fmt.Errorf("invalid channel count: %d (allowed 1..%d)", header.Channels, MaxChannels)
	}

	if header.PacketLen < HeaderSize {
		return fmt.Errorf("packet length too small: %d (minimum %d)", header.PacketLen, HeaderSize)
	}

	expectedPayloadSize := int(header.PacketLen) - HeaderSize
	switch header.PacketType {
	case PacketTypeFormat:
		if expectedPayloadSize != FormatPayloadSize {
			return fmt.Errorf("format packet payload size mismatch: expected %d, got %d",
				FormatPayloadSize, expectedPayloadSize)
		}
	case PacketTypeAudio:
		if expectedPayloadSize < AudioPayloadHeaderSize {
			return fmt.Errorf("audio packet payload too small: expected at least %d, got %d",
				AudioPayloadHeaderSize, expectedPayloadSize)
		}
	}

	return nil
}

// IsValidPacketType checks if the packet type is valid
func IsValidPacketType(ptype uint8) bool {
	return ptype == PacketTypeFormat || ptype == PacketTypeAudio
}

// EncodeFormatPacket builds a format announcement packet.
func EncodeFormatPacket(sourceID uint32, channels uint8, sampleRate uint32, name string) []byte {
	packet := make([]byte, HeaderSize+FormatPayloadSize)
	putHeader(packet, PacketTypeFormat, sourceID, channels)

	binary.BigEndian.PutUint32(packet[HeaderSize:], sampleRate)
	// Leave room for the terminator
	nameField := packet[HeaderSize+4 : HeaderSize+4+SourceNameSize-1]
	copy(nameField, name)

	return packet
}

// EncodeAudioPacket builds an audio packet carrying interleaved samples. It
// returns an error when the samples do not fit in a single packet.
func EncodeAudioPacket(sourceID uint32, channels uint8, sequence uint32, samples []float32) ([]byte, error) {
	size := HeaderSize + AudioPayloadHeaderSize + len(samples)*SampleSize
	if size > MaxPacketSize {
		return nil, fmt.Errorf("%d samples exceed the maximum packet size of %d bytes", len(samples), MaxPacketSize)
	}
	if channels == 0 || len(samples)%int(channels) != 0 {
		return nil, fmt.Errorf("%d samples are not a whole number of %d-channel frames", len(samples), channels)
	}

	packet := make([]byte, size)
	putHeader(packet, PacketTypeAudio, sourceID, channels)

	binary.BigEndian.PutUint32(packet[HeaderSize:], sequence)
	body := packet[HeaderSize+AudioPayloadHeaderSize:]
	for i, s := range samples {
		binary.LittleEndian.PutUint32(body[i*SampleSize:], math.Float32bits(s))
	}

	return packet, nil
}

func putHeader(packet []byte, ptype uint8, sourceID uint32, channels uint8) {
	packet[0] = ptype
	binary.BigEndian.PutUint16(packet[1:3], uint16(len(packet)))
	binary.BigEndian.PutUint32(packet[3:7], sourceID)
	packet[7] = channels
}

// ExtractString extracts a null-terminated string from a fixed-size byte array
func ExtractString(buf []byte) string {
	nullPos := len(buf)
	for i, b := range buf {
		if b == 0 {
			nullPos = i
			break
		}
	}
	return string(buf[:nullPos])
}

// GetSourceName extracts the source name as a string
func (f *FormatPayload) GetSourceName() string {
	return ExtractString(f.SourceName[:])
}

// String returns a human-readable representation of the header
func (h *Header) String() string {
	var packetType string

	switch h.PacketType {
	case PacketTypeFormat:
		packetType = "Format"
	case PacketTypeAudio:
		packetType = "Audio"
	default:
		packetType = fmt.Sprintf("Unknown(0x%02x)", h.PacketType)
	}

	return fmt.Sprintf("Header{Type:%s, Len:%d, SourceID:%d, Channels:%d}",
		packetType, h.PacketLen, h.SourceID, h.Channels)
}

// String returns a human-readable representation of the format payload
func (f *FormatPayload) String() string {
	return fmt.Sprintf("FormatPayload{SampleRate:%d, SourceName:%q}", f.SampleRate, f.GetSourceName())
}

// String returns a human-readable representation of the audio payload
func (a *AudioPayload) String() string {
	return fmt.Sprintf("AudioPayload{Sequence:%d, Samples:%d}", a.Sequence, len(a.Samples))
}
