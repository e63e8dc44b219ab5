// Package protocol implements the SeaDrop wire format: the 12-byte packet
// header, the message catalogue, and the incremental stream parser. Every
// multi-byte field is little-endian; payload encoding uses codec.
package protocol

import (
	"seadrop/codec"
	"seadrop/seaerr"
)

// ProtocolMagic is "SEAD" little-endian.
const ProtocolMagic uint32 = 0x44414553

// ProtocolVersion is the only version this package speaks.
const ProtocolVersion uint8 = 1

// MaxPayloadSize bounds any single packet's payload.
const MaxPayloadSize uint32 = 16 * 1024 * 1024

// HeaderSize is the fixed wire size of PacketHeader.
const HeaderSize = 12

// DefaultChunkSize is the default file-chunk payload size (spec §4.8).
const DefaultChunkSize = 64 * 1024

// MaxProtocolFilename bounds a FileEntry basename.
const MaxProtocolFilename = 255

// MaxFilesPerRequest bounds the file list of a TransferRequest.
const MaxFilesPerRequest = 1000

// MessageType is the one-byte message discriminator.
type MessageType uint8

const (
	Hello           MessageType = 0x01
	HelloAck        MessageType = 0x02
	VersionMismatch MessageType = 0x03

	TransferRequest MessageType = 0x10
	TransferAccept  MessageType = 0x11
	TransferReject  MessageType = 0x12
	TransferCancel  MessageType = 0x13
	TransferPause   MessageType = 0x14
	TransferResume  MessageType = 0x15

	FileHeader   MessageType = 0x20
	FileChunk    MessageType = 0x21
	FileComplete MessageType = 0x22
	ChunkAck     MessageType = 0x23
	ChunkNack    MessageType = 0x24

	Progress MessageType = 0x30
	Error    MessageType = 0x31

	Ping MessageType = 0x40
	Pong MessageType = 0x41

	ClipboardPush MessageType = 0x50
	ClipboardAck  MessageType = 0x51
)

// Name returns the human-readable message type name, or "Unknown".
func (t MessageType) Name() string {
	switch t {
	case Hello:
		return "Hello"
	case HelloAck:
		return "HelloAck"
	case VersionMismatch:
		return "VersionMismatch"
	case TransferRequest:
		return "TransferRequest"
	case TransferAccept:
		return "TransferAccept"
	case TransferReject:
		return "TransferReject"
	case TransferCancel:
		return "TransferCancel"
	case TransferPause:
		return "TransferPause"
	case TransferResume:
		return "TransferResume"
	case FileHeader:
		return "FileHeader"
	case FileChunk:
		return "FileChunk"
	case FileComplete:
		return "FileComplete"
	case ChunkAck:
		return "ChunkAck"
	case ChunkNack:
		return "ChunkNack"
	case Progress:
		return "Progress"
	case Error:
		return "Error"
	case Ping:
		return "Ping"
	case Pong:
		return "Pong"
	case ClipboardPush:
		return "ClipboardPush"
	case ClipboardAck:
		return "ClipboardAck"
	default:
		return "Unknown"
	}
}

// Capability bits advertised in Hello/HelloAck (spec §4.3).
const (
	CapWifiDirect uint32 = 1 << 0
	CapBluetooth  uint32 = 1 << 1
	CapClipboard  uint32 = 1 << 2
	CapResumable  uint32 = 1 << 3
)

// PacketHeader is the 12-byte framing prefix of every packet.
type PacketHeader struct {
	Magic       uint32
	Version     uint8
	Type        MessageType
	Flags       uint16
	PayloadSize uint32
}

// NewHeader builds a valid header for type with the given payload length.
func NewHeader(msgType MessageType, payloadLen uint32) PacketHeader {
	return PacketHeader{
		Magic:       ProtocolMagic,
		Version:     ProtocolVersion,
		Type:        msgType,
		PayloadSize: payloadLen,
	}
}

// IsValid reports whether the header's fixed fields are well-formed.
func (h PacketHeader) IsValid() bool {
	return h.Magic == ProtocolMagic && h.Version == ProtocolVersion && h.PayloadSize <= MaxPayloadSize
}

// EncodeHeader writes the 12-byte wire form of h.
func EncodeHeader(h PacketHeader) []byte {
	w := codec.NewWriter(HeaderSize)
	w.PutU32(h.Magic)
	w.PutBytes([]byte{byte(h.Version), byte(h.Type)})
	w.PutU16(h.Flags)
	w.PutU32(h.PayloadSize)
	return w.Bytes()
}

// DecodeHeader parses a 12-byte header, validating magic/version/size.
func DecodeHeader(buf []byte) (PacketHeader, error) {
	if len(buf) < HeaderSize {
		return PacketHeader{}, seaerr.New(seaerr.DecodeTruncated, "short packet header")
	}
	r := codec.NewReader(buf[:HeaderSize])

	magic, _ := r.U32()
	if magic != ProtocolMagic {
		return PacketHeader{}, seaerr.Newf(seaerr.ProtocolBadMagic, "bad magic 0x%08x", magic)
	}
	versionByte, _ := r.Bytes(1)
	typeByte, _ := r.Bytes(1)
	flags, _ := r.U16()
	payloadSize, _ := r.U32()

	h := PacketHeader{
		Magic:       magic,
		Version:     versionByte[0],
		Type:        MessageType(typeByte[0]),
		Flags:       flags,
		PayloadSize: payloadSize,
	}
	if h.Version != ProtocolVersion {
		return PacketHeader{}, seaerr.Newf(seaerr.ProtocolVersionMismatch, "version %d unsupported", h.Version)
	}
	if h.PayloadSize > MaxPayloadSize {
		return PacketHeader{}, seaerr.Newf(seaerr.ProtocolOverflow, "payload_size %d exceeds max", h.PayloadSize)
	}
	return h, nil
}

// BuildPacket concatenates an encoded header with its payload.
func BuildPacket(msgType MessageType, payload []byte) []byte {
	h := NewHeader(msgType, uint32(len(payload)))
	out := make([]byte, 0, HeaderSize+len(payload))
	out = append(out, EncodeHeader(h)...)
	out = append(out, payload...)
	return out
}
