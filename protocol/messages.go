package protocol

import (
	"seadrop/codec"
	"seadrop/device"
	"seadrop/seaerr"
)

// HelloMessage is the plaintext handshake payload (spec §4.3, §4.4). The
// ephemeral X25519 public key travels alongside the long-term identity so
// first contact and re-pairing share one message shape.
type HelloMessage struct {
	DeviceID        device.ID
	DeviceName      string
	Platform        device.Platform
	VersionString   string
	Capabilities    uint32
	EphemeralPubKey [32]byte
}

func (m HelloMessage) Encode() []byte {
	w := codec.NewWriter(64 + len(m.DeviceName) + len(m.VersionString))
	w.PutBytes(m.DeviceID[:])
	_ = w.PutString(m.DeviceName)
	w.PutBytes([]byte{byte(m.Platform)})
	_ = w.PutString(m.VersionString)
	w.PutU32(m.Capabilities)
	w.PutBytes(m.EphemeralPubKey[:])
	return w.Bytes()
}

func DecodeHello(payload []byte) (HelloMessage, error) {
	r := codec.NewReader(payload)
	var m HelloMessage

	idBytes, err := r.Bytes(device.IDSize)
	if err != nil {
		return m, wrapTruncated(err)
	}
	copy(m.DeviceID[:], idBytes)

	if m.DeviceName, err = r.String(); err != nil {
		return m, wrapTruncated(err)
	}
	platformByte, err := r.Bytes(1)
	if err != nil {
		return m, wrapTruncated(err)
	}
	m.Platform = device.Platform(platformByte[0])
	if m.VersionString, err = r.String(); err != nil {
		return m, wrapTruncated(err)
	}
	if m.Capabilities, err = r.U32(); err != nil {
		return m, wrapTruncated(err)
	}
	ephemeral, err := r.Bytes(32)
	if err != nil {
		return m, wrapTruncated(err)
	}
	copy(m.EphemeralPubKey[:], ephemeral)
	return m, nil
}

// FileEntry describes one file within a TransferRequest.
type FileEntry struct {
	RelativePath string
	Size         uint64
	MimeType     string
	Checksum     [32]byte
	ModifiedTime uint64
}

func (f FileEntry) encode(w *codec.Writer) error {
	if err := w.PutString(f.RelativePath); err != nil {
		return err
	}
	w.PutU64(f.Size)
	if err := w.PutString(f.MimeType); err != nil {
		return err
	}
	w.PutBytes(f.Checksum[:])
	w.PutU64(f.ModifiedTime)
	return nil
}

func decodeFileEntry(r *codec.Reader) (FileEntry, error) {
	var f FileEntry
	var err error
	if f.RelativePath, err = r.String(); err != nil {
		return f, wrapTruncated(err)
	}
	if f.Size, err = r.U64(); err != nil {
		return f, wrapTruncated(err)
	}
	if f.MimeType, err = r.String(); err != nil {
		return f, wrapTruncated(err)
	}
	checksum, err := r.Bytes(32)
	if err != nil {
		return f, wrapTruncated(err)
	}
	copy(f.Checksum[:], checksum)
	if f.ModifiedTime, err = r.U64(); err != nil {
		return f, wrapTruncated(err)
	}
	return f, nil
}

// TransferRequestMessage announces an incoming batch of files.
type TransferRequestMessage struct {
	TransferID      device.TransferID
	Files           []FileEntry
	TotalSize       uint64
	IncludeChecksum bool
}

func (m TransferRequestMessage) Encode() ([]byte, error) {
	if len(m.Files) > MaxFilesPerRequest {
		return nil, seaerr.Newf(seaerr.InvalidArgument, "%d files exceeds max %d", len(m.Files), MaxFilesPerRequest)
	}
	w := codec.NewWriter(64)
	w.PutBytes(m.TransferID[:])
	w.PutU32(uint32(len(m.Files)))
	for _, f := range m.Files {
		if err := f.encode(w); err != nil {
			return nil, err
		}
	}
	w.PutU64(m.TotalSize)
	w.PutBool(m.IncludeChecksum)
	return w.Bytes(), nil
}

func DecodeTransferRequest(payload []byte) (TransferRequestMessage, error) {
	r := codec.NewReader(payload)
	var m TransferRequestMessage

	idBytes, err := r.Bytes(device.TransferIDSize)
	if err != nil {
		return m, wrapTruncated(err)
	}
	copy(m.TransferID[:], idBytes)

	count, err := r.U32()
	if err != nil {
		return m, wrapTruncated(err)
	}
	if count > MaxFilesPerRequest {
		return m, seaerr.Newf(seaerr.ProtocolOverflow, "%d files exceeds max %d", count, MaxFilesPerRequest)
	}
	m.Files = make([]FileEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		f, err := decodeFileEntry(r)
		if err != nil {
			return m, err
		}
		m.Files = append(m.Files, f)
	}
	if m.TotalSize, err = r.U64(); err != nil {
		return m, wrapTruncated(err)
	}
	if m.IncludeChecksum, err = r.Bool(); err != nil {
		return m, wrapTruncated(err)
	}
	return m, nil
}

// TransferAcceptMessage accepts a pending TransferRequest.
type TransferAcceptMessage struct {
	TransferID    device.TransferID
	SaveDirectory string
}

func (m TransferAcceptMessage) Encode() []byte {
	w := codec.NewWriter(32 + len(m.SaveDirectory))
	w.PutBytes(m.TransferID[:])
	_ = w.PutString(m.SaveDirectory)
	return w.Bytes()
}

func DecodeTransferAccept(payload []byte) (TransferAcceptMessage, error) {
	r := codec.NewReader(payload)
	var m TransferAcceptMessage
	idBytes, err := r.Bytes(device.TransferIDSize)
	if err != nil {
		return m, wrapTruncated(err)
	}
	copy(m.TransferID[:], idBytes)
	if m.SaveDirectory, err = r.String(); err != nil {
		return m, wrapTruncated(err)
	}
	return m, nil
}

// TransferRejectMessage rejects a pending TransferRequest.
type TransferRejectMessage struct {
	TransferID device.TransferID
	Reason     string
}

func (m TransferRejectMessage) Encode() []byte {
	w := codec.NewWriter(32 + len(m.Reason))
	w.PutBytes(m.TransferID[:])
	_ = w.PutString(m.Reason)
	return w.Bytes()
}

func DecodeTransferReject(payload []byte) (TransferRejectMessage, error) {
	r := codec.NewReader(payload)
	var m TransferRejectMessage
	idBytes, err := r.Bytes(device.TransferIDSize)
	if err != nil {
		return m, wrapTruncated(err)
	}
	copy(m.TransferID[:], idBytes)
	if m.Reason, err = r.String(); err != nil {
		return m, wrapTruncated(err)
	}
	return m, nil
}

// TransferIDOnlyMessage is the shared shape of TransferCancel/Pause/Resume.
type TransferIDOnlyMessage struct {
	TransferID device.TransferID
}

func (m TransferIDOnlyMessage) Encode() []byte {
	w := codec.NewWriter(device.TransferIDSize)
	w.PutBytes(m.TransferID[:])
	return w.Bytes()
}

func DecodeTransferIDOnly(payload []byte) (TransferIDOnlyMessage, error) {
	r := codec.NewReader(payload)
	var m TransferIDOnlyMessage
	idBytes, err := r.Bytes(device.TransferIDSize)
	if err != nil {
		return m, wrapTruncated(err)
	}
	copy(m.TransferID[:], idBytes)
	return m, nil
}

// FileHeaderMessage precedes a file's chunk stream.
type FileHeaderMessage struct {
	TransferID  device.TransferID
	FileIndex   uint32
	Filename    string
	FileSize    uint64
	TotalChunks uint32
	ChunkSize   uint32
}

func (m FileHeaderMessage) Encode() []byte {
	w := codec.NewWriter(48 + len(m.Filename))
	w.PutBytes(m.TransferID[:])
	w.PutU32(m.FileIndex)
	_ = w.PutString(m.Filename)
	w.PutU64(m.FileSize)
	w.PutU32(m.TotalChunks)
	w.PutU32(m.ChunkSize)
	return w.Bytes()
}

func DecodeFileHeader(payload []byte) (FileHeaderMessage, error) {
	r := codec.NewReader(payload)
	var m FileHeaderMessage
	idBytes, err := r.Bytes(device.TransferIDSize)
	if err != nil {
		return m, wrapTruncated(err)
	}
	copy(m.TransferID[:], idBytes)
	if m.FileIndex, err = r.U32(); err != nil {
		return m, wrapTruncated(err)
	}
	if m.Filename, err = r.String(); err != nil {
		return m, wrapTruncated(err)
	}
	if m.FileSize, err = r.U64(); err != nil {
		return m, wrapTruncated(err)
	}
	if m.TotalChunks, err = r.U32(); err != nil {
		return m, wrapTruncated(err)
	}
	if m.ChunkSize, err = r.U32(); err != nil {
		return m, wrapTruncated(err)
	}
	return m, nil
}

// FileChunkMessage carries the fixed header for one chunk; the raw chunk
// bytes follow immediately after it in the packet payload.
type FileChunkMessage struct {
	TransferID device.TransferID
	FileIndex  uint32
	ChunkIndex uint32
	ChunkSize  uint32
}

// FileChunkHeaderSize is the encoded size of FileChunkMessage, before the
// raw chunk bytes.
const FileChunkHeaderSize = device.TransferIDSize + 4 + 4 + 4

func (m FileChunkMessage) EncodeHeader() []byte {
	w := codec.NewWriter(FileChunkHeaderSize)
	w.PutBytes(m.TransferID[:])
	w.PutU32(m.FileIndex)
	w.PutU32(m.ChunkIndex)
	w.PutU32(m.ChunkSize)
	return w.Bytes()
}

// EncodePacket builds the full FileChunk packet payload: header then data.
func (m FileChunkMessage) EncodePacket(data []byte) []byte {
	out := make([]byte, 0, FileChunkHeaderSize+len(data))
	out = append(out, m.EncodeHeader()...)
	return append(out, data...)
}

// DecodeFileChunk splits a FileChunk payload into its header and the raw
// chunk bytes that follow.
func DecodeFileChunk(payload []byte) (FileChunkMessage, []byte, error) {
	r := codec.NewReader(payload)
	var m FileChunkMessage
	idBytes, err := r.Bytes(device.TransferIDSize)
	if err != nil {
		return m, nil, wrapTruncated(err)
	}
	copy(m.TransferID[:], idBytes)
	if m.FileIndex, err = r.U32(); err != nil {
		return m, nil, wrapTruncated(err)
	}
	if m.ChunkIndex, err = r.U32(); err != nil {
		return m, nil, wrapTruncated(err)
	}
	if m.ChunkSize, err = r.U32(); err != nil {
		return m, nil, wrapTruncated(err)
	}
	data, err := r.Bytes(int(m.ChunkSize))
	if err != nil {
		return m, nil, wrapTruncated(err)
	}
	return m, data, nil
}

// FileCompleteMessage marks the end of one file's chunk stream.
type FileCompleteMessage struct {
	TransferID device.TransferID
	FileIndex  uint32
}

func (m FileCompleteMessage) Encode() []byte {
	w := codec.NewWriter(device.TransferIDSize + 4)
	w.PutBytes(m.TransferID[:])
	w.PutU32(m.FileIndex)
	return w.Bytes()
}

func DecodeFileComplete(payload []byte) (FileCompleteMessage, error) {
	r := codec.NewReader(payload)
	var m FileCompleteMessage
	idBytes, err := r.Bytes(device.TransferIDSize)
	if err != nil {
		return m, wrapTruncated(err)
	}
	copy(m.TransferID[:], idBytes)
	if m.FileIndex, err = r.U32(); err != nil {
		return m, wrapTruncated(err)
	}
	return m, nil
}

// ChunkAckMessage acknowledges (or negatively acknowledges) one chunk.
// ChunkNack packets use this same shape with Success=false.
type ChunkAckMessage struct {
	TransferID device.TransferID
	FileIndex  uint32
	ChunkIndex uint32
	Success    bool
}

func (m ChunkAckMessage) Encode() []byte {
	w := codec.NewWriter(device.TransferIDSize + 9)
	w.PutBytes(m.TransferID[:])
	w.PutU32(m.FileIndex)
	w.PutU32(m.ChunkIndex)
	w.PutBool(m.Success)
	return w.Bytes()
}

func DecodeChunkAck(payload []byte) (ChunkAckMessage, error) {
	r := codec.NewReader(payload)
	var m ChunkAckMessage
	idBytes, err := r.Bytes(device.TransferIDSize)
	if err != nil {
		return m, wrapTruncated(err)
	}
	copy(m.TransferID[:], idBytes)
	if m.FileIndex, err = r.U32(); err != nil {
		return m, wrapTruncated(err)
	}
	if m.ChunkIndex, err = r.U32(); err != nil {
		return m, wrapTruncated(err)
	}
	if m.Success, err = r.Bool(); err != nil {
		return m, wrapTruncated(err)
	}
	return m, nil
}

// ProgressMessage reports cumulative transfer progress.
type ProgressMessage struct {
	TransferID     device.TransferID
	BytesDone      uint64
	BytesTotal     uint64
	FilesCompleted uint32
	TotalFiles     uint32
}

func (m ProgressMessage) Encode() []byte {
	w := codec.NewWriter(device.TransferIDSize + 24)
	w.PutBytes(m.TransferID[:])
	w.PutU64(m.BytesDone)
	w.PutU64(m.BytesTotal)
	w.PutU32(m.FilesCompleted)
	w.PutU32(m.TotalFiles)
	return w.Bytes()
}

func DecodeProgress(payload []byte) (ProgressMessage, error) {
	r := codec.NewReader(payload)
	var m ProgressMessage
	idBytes, err := r.Bytes(device.TransferIDSize)
	if err != nil {
		return m, wrapTruncated(err)
	}
	copy(m.TransferID[:], idBytes)
	if m.BytesDone, err = r.U64(); err != nil {
		return m, wrapTruncated(err)
	}
	if m.BytesTotal, err = r.U64(); err != nil {
		return m, wrapTruncated(err)
	}
	if m.FilesCompleted, err = r.U32(); err != nil {
		return m, wrapTruncated(err)
	}
	if m.TotalFiles, err = r.U32(); err != nil {
		return m, wrapTruncated(err)
	}
	return m, nil
}

// ErrorMessage reports a protocol-level or transfer-level failure.
type ErrorMessage struct {
	TransferID device.TransferID
	Code       string
	Message    string
	Fatal      bool
}

func (m ErrorMessage) Encode() ([]byte, error) {
	w := codec.NewWriter(64 + len(m.Code) + len(m.Message))
	w.PutBytes(m.TransferID[:])
	if err := w.PutString(m.Code); err != nil {
		return nil, err
	}
	if err := w.PutString(m.Message); err != nil {
		return nil, err
	}
	w.PutBool(m.Fatal)
	return w.Bytes(), nil
}

func DecodeError(payload []byte) (ErrorMessage, error) {
	r := codec.NewReader(payload)
	var m ErrorMessage
	idBytes, err := r.Bytes(device.TransferIDSize)
	if err != nil {
		return m, wrapTruncated(err)
	}
	copy(m.TransferID[:], idBytes)
	if m.Code, err = r.String(); err != nil {
		return m, wrapTruncated(err)
	}
	if m.Message, err = r.String(); err != nil {
		return m, wrapTruncated(err)
	}
	if m.Fatal, err = r.Bool(); err != nil {
		return m, wrapTruncated(err)
	}
	return m, nil
}

// ClipboardPushMessage carries a pushed clipboard payload.
type ClipboardPushMessage struct {
	Kind       device.ClipboardKind
	Bytes      []byte
	MimeType   string
	Width      uint32
	Height     uint32
	Files      []string
	CapturedAt uint64
}

func (m ClipboardPushMessage) Encode() ([]byte, error) {
	w := codec.NewWriter(64 + len(m.Bytes) + len(m.MimeType))
	w.PutBytes([]byte{byte(m.Kind)})
	w.PutU32(uint32(len(m.Bytes)))
	w.PutBytes(m.Bytes)
	if err := w.PutString(m.MimeType); err != nil {
		return nil, err
	}
	w.PutU32(m.Width)
	w.PutU32(m.Height)
	w.PutU32(uint32(len(m.Files)))
	for _, f := range m.Files {
		if err := w.PutString(f); err != nil {
			return nil, err
		}
	}
	w.PutU64(m.CapturedAt)
	return w.Bytes(), nil
}

func DecodeClipboardPush(payload []byte) (ClipboardPushMessage, error) {
	r := codec.NewReader(payload)
	var m ClipboardPushMessage

	kindByte, err := r.Bytes(1)
	if err != nil {
		return m, wrapTruncated(err)
	}
	m.Kind = device.ClipboardKind(kindByte[0])

	byteLen, err := r.U32()
	if err != nil {
		return m, wrapTruncated(err)
	}
	if m.Bytes, err = r.Bytes(int(byteLen)); err != nil {
		return m, wrapTruncated(err)
	}
	if m.MimeType, err = r.String(); err != nil {
		return m, wrapTruncated(err)
	}
	if m.Width, err = r.U32(); err != nil {
		return m, wrapTruncated(err)
	}
	if m.Height, err = r.U32(); err != nil {
		return m, wrapTruncated(err)
	}
	fileCount, err := r.U32()
	if err != nil {
		return m, wrapTruncated(err)
	}
	m.Files = make([]string, 0, fileCount)
	for i := uint32(0); i < fileCount; i++ {
		f, err := r.String()
		if err != nil {
			return m, wrapTruncated(err)
		}
		m.Files = append(m.Files, f)
	}
	if m.CapturedAt, err = r.U64(); err != nil {
		return m, wrapTruncated(err)
	}
	return m, nil
}

// ClipboardAckMessage acknowledges a ClipboardPush, optionally with an error.
type ClipboardAckMessage struct {
	Success bool
	Code    string
}

func (m ClipboardAckMessage) Encode() ([]byte, error) {
	w := codec.NewWriter(8 + len(m.Code))
	w.PutBool(m.Success)
	if err := w.PutString(m.Code); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeClipboardAck(payload []byte) (ClipboardAckMessage, error) {
	r := codec.NewReader(payload)
	var m ClipboardAckMessage
	var err error
	if m.Success, err = r.Bool(); err != nil {
		return m, wrapTruncated(err)
	}
	if m.Code, err = r.String(); err != nil {
		return m, wrapTruncated(err)
	}
	return m, nil
}

func wrapTruncated(err error) error {
	if err == codec.ErrTruncated {
		return seaerr.New(seaerr.DecodeTruncated, "short message payload")
	}
	return err
}
